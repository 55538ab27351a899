// Package trade executes commodity trades between characters and ports.
//
// Every trade against a port runs under that port's resource lock, so
// concurrent buys and sells against the same port serialize and the
// read-modify-write of stock, credits, and holds stays consistent.
package trade

import (
	"context"
	"fmt"

	"github.com/tradewinds-game/tradewinds/internal/events"
	"github.com/tradewinds-game/tradewinds/internal/locks"
	apperrors "github.com/tradewinds-game/tradewinds/internal/platform/errors"
	"github.com/tradewinds-game/tradewinds/internal/storage"
)

// TransitChecker reports whether a character is in hyperspace.
type TransitChecker interface {
	InHyperspace(characterID string) bool
}

// Emitter publishes trade events. *events.Dispatcher satisfies it.
type Emitter interface {
	Emit(ctx context.Context, input events.EmitInput)
}

// Service executes trades against the world store.
type Service struct {
	store   storage.Store
	locks   *locks.Manager
	transit TransitChecker
	emitter Emitter
}

// NewService wires a trade service. The emitter may be nil.
func NewService(store storage.Store, lockManager *locks.Manager, transit TransitChecker, emitter Emitter) *Service {
	return &Service{
		store:   store,
		locks:   lockManager,
		transit: transit,
		emitter: emitter,
	}
}

// Side is the direction of a trade from the character's perspective.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Receipt summarizes a completed trade.
type Receipt struct {
	Side      Side              `json:"side"`
	Sector    int               `json:"sector"`
	PortID    string            `json:"port_id"`
	Commodity storage.Commodity `json:"commodity"`
	Quantity  int               `json:"quantity"`
	UnitPrice int64             `json:"unit_price"`
	Total     int64             `json:"total"`
	Credits   int64             `json:"credits"` // character balance after the trade
}

// Buy purchases quantity units of commodity from the port in the
// character's current sector.
func (s *Service) Buy(ctx context.Context, characterID string, commodity storage.Commodity, quantity int) (Receipt, error) {
	return s.trade(ctx, SideBuy, characterID, commodity, quantity)
}

// Sell sells quantity units of commodity from the character's hold to the
// port in the character's current sector.
func (s *Service) Sell(ctx context.Context, characterID string, commodity storage.Commodity, quantity int) (Receipt, error) {
	return s.trade(ctx, SideSell, characterID, commodity, quantity)
}

func (s *Service) trade(ctx context.Context, side Side, characterID string, commodity storage.Commodity, quantity int) (Receipt, error) {
	if quantity <= 0 {
		return Receipt{}, apperrors.New(apperrors.CodeTradeInvalidQuantity,
			"trade quantity must be positive")
	}

	character, err := s.store.GetCharacter(ctx, characterID)
	if err != nil {
		return Receipt{}, err
	}
	if s.transit != nil && s.transit.InHyperspace(characterID) {
		return Receipt{}, apperrors.WithMetadata(apperrors.CodeCharacterInHyperspace,
			"cannot trade while in hyperspace", map[string]string{"character": characterID})
	}

	port, err := s.store.GetPortBySector(ctx, character.Sector)
	if err != nil {
		return Receipt{}, err
	}

	var receipt Receipt
	err = s.locks.With(portKey(port.Sector), func() error {
		receipt, err = s.tradeLocked(ctx, side, character, port, commodity, quantity)
		return err
	})
	if err != nil {
		return Receipt{}, err
	}

	s.emit(ctx, character, receipt)
	return receipt, nil
}

// tradeLocked runs the read-modify-write cycle while holding the port lock.
// Character state is re-read inside the lock so back-to-back trades see
// each other's credit and hold changes.
func (s *Service) tradeLocked(ctx context.Context, side Side, character storage.Character, port storage.Port, commodity storage.Commodity, quantity int) (Receipt, error) {
	character, err := s.store.GetCharacter(ctx, character.ID)
	if err != nil {
		return Receipt{}, err
	}
	stock, err := s.store.GetPortStock(ctx, port.ID, commodity)
	if err != nil {
		return Receipt{}, err
	}
	hold, err := s.store.GetHold(ctx, character.ID, commodity)
	if err != nil {
		return Receipt{}, err
	}

	total := stock.Price * int64(quantity)
	switch side {
	case SideBuy:
		if stock.Quantity < quantity {
			return Receipt{}, apperrors.WithMetadata(apperrors.CodeTradeInsufficientStock,
				"port does not have enough stock",
				map[string]string{"commodity": string(commodity), "available": fmt.Sprintf("%d", stock.Quantity)})
		}
		if character.Credits < total {
			return Receipt{}, apperrors.WithMetadata(apperrors.CodeTradeInsufficientCredit,
				"not enough credits",
				map[string]string{"required": fmt.Sprintf("%d", total), "available": fmt.Sprintf("%d", character.Credits)})
		}
		stock.Quantity -= quantity
		hold.Quantity += quantity
		character.Credits -= total
		port.Credits += total
	case SideSell:
		if hold.Quantity < quantity {
			return Receipt{}, apperrors.WithMetadata(apperrors.CodeTradeInsufficientCargo,
				"not enough cargo to sell",
				map[string]string{"commodity": string(commodity), "available": fmt.Sprintf("%d", hold.Quantity)})
		}
		if port.Credits < total {
			return Receipt{}, apperrors.WithMetadata(apperrors.CodeTradeInsufficientCredit,
				"port cannot afford the purchase",
				map[string]string{"required": fmt.Sprintf("%d", total), "available": fmt.Sprintf("%d", port.Credits)})
		}
		stock.Quantity += quantity
		hold.Quantity -= quantity
		character.Credits += total
		port.Credits -= total
	default:
		return Receipt{}, apperrors.New(apperrors.CodeUnknown, "unknown trade side")
	}

	if err := s.store.UpdatePortStock(ctx, stock); err != nil {
		return Receipt{}, err
	}
	if err := s.store.UpdatePort(ctx, port); err != nil {
		return Receipt{}, err
	}
	if err := s.store.SetHold(ctx, hold); err != nil {
		return Receipt{}, err
	}
	if err := s.store.UpdateCharacter(ctx, character); err != nil {
		return Receipt{}, err
	}

	return Receipt{
		Side:      side,
		Sector:    port.Sector,
		PortID:    port.ID,
		Commodity: commodity,
		Quantity:  quantity,
		UnitPrice: stock.Price,
		Total:     total,
		Credits:   character.Credits,
	}, nil
}

func (s *Service) emit(ctx context.Context, character storage.Character, receipt Receipt) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(ctx, events.EmitInput{
		Name:            "port.traded",
		Payload:         receipt,
		CharacterFilter: []string{character.ID},
		Log: events.LogContext{
			SenderID:      character.ID,
			Sector:        receipt.Sector,
			CorporationID: character.CorporationID,
		},
	})
}

func portKey(sector int) string {
	return fmt.Sprintf("port:%d", sector)
}
