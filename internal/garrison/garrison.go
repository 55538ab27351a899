// Package garrison manages sector fighter garrisons: deployment, posture
// changes, and withdrawal.
package garrison

import (
	"context"
	"fmt"

	"github.com/tradewinds-game/tradewinds/internal/events"
	apperrors "github.com/tradewinds-game/tradewinds/internal/platform/errors"
	"github.com/tradewinds-game/tradewinds/internal/storage"
)

// TransitChecker reports whether a character is in hyperspace. Characters
// in transit cannot manage garrisons.
type TransitChecker interface {
	InHyperspace(characterID string) bool
}

// Emitter publishes garrison events. *events.Dispatcher satisfies it.
type Emitter interface {
	Emit(ctx context.Context, input events.EmitInput)
}

// Service coordinates garrison operations against the world store.
type Service struct {
	garrisons  storage.GarrisonStore
	characters storage.CharacterStore
	transit    TransitChecker
	emitter    Emitter
}

// NewService wires a garrison service. The emitter may be nil.
func NewService(garrisons storage.GarrisonStore, characters storage.CharacterStore, transit TransitChecker, emitter Emitter) *Service {
	return &Service{
		garrisons:  garrisons,
		characters: characters,
		transit:    transit,
		emitter:    emitter,
	}
}

// DeployInput describes a garrison deployment.
type DeployInput struct {
	CharacterID string
	Sector      int
	Fighters    int
	Mode        storage.GarrisonMode
	Toll        int64
}

// Deploy stations fighters in a sector. The sector must be empty or
// already held by the same character; deploying onto an existing garrison
// adds fighters and applies the new posture.
func (s *Service) Deploy(ctx context.Context, input DeployInput) (storage.Garrison, error) {
	if err := s.checkActor(ctx, input.CharacterID); err != nil {
		return storage.Garrison{}, err
	}
	if input.Fighters <= 0 {
		return storage.Garrison{}, apperrors.New(apperrors.CodeGarrisonInvalidFighters,
			"deployment requires at least one fighter")
	}
	if err := validatePosture(input.Mode, input.Toll); err != nil {
		return storage.Garrison{}, err
	}

	g := storage.Garrison{
		Sector:   input.Sector,
		OwnerID:  input.CharacterID,
		Mode:     input.Mode,
		Toll:     input.Toll,
		Fighters: input.Fighters,
	}
	existing, err := s.garrisons.GetGarrison(ctx, input.Sector)
	switch {
	case err == nil:
		if existing.OwnerID != input.CharacterID {
			return storage.Garrison{}, apperrors.WithMetadata(apperrors.CodeGarrisonNotOwner,
				"sector is already garrisoned by another character",
				map[string]string{"sector": fmt.Sprintf("%d", input.Sector)})
		}
		g.Fighters += existing.Fighters
	case apperrors.IsCode(err, apperrors.CodeGarrisonNotFound):
		// Empty sector, fresh deployment.
	default:
		return storage.Garrison{}, err
	}

	if err := s.garrisons.UpsertGarrison(ctx, g); err != nil {
		return storage.Garrison{}, err
	}
	s.emit(ctx, "garrison.deployed", g)
	return g, nil
}

// SetMode changes the posture of an existing garrison.
func (s *Service) SetMode(ctx context.Context, characterID string, sector int, mode storage.GarrisonMode, toll int64) (storage.Garrison, error) {
	if err := s.checkActor(ctx, characterID); err != nil {
		return storage.Garrison{}, err
	}
	if err := validatePosture(mode, toll); err != nil {
		return storage.Garrison{}, err
	}

	g, err := s.requireOwned(ctx, characterID, sector)
	if err != nil {
		return storage.Garrison{}, err
	}
	g.Mode = mode
	g.Toll = toll
	if err := s.garrisons.UpsertGarrison(ctx, g); err != nil {
		return storage.Garrison{}, err
	}
	s.emit(ctx, "garrison.mode_changed", g)
	return g, nil
}

// Withdraw removes the character's garrison from a sector and returns the
// recovered fighter count.
func (s *Service) Withdraw(ctx context.Context, characterID string, sector int) (int, error) {
	if err := s.checkActor(ctx, characterID); err != nil {
		return 0, err
	}
	g, err := s.requireOwned(ctx, characterID, sector)
	if err != nil {
		return 0, err
	}
	if err := s.garrisons.DeleteGarrison(ctx, sector); err != nil {
		return 0, err
	}
	s.emit(ctx, "garrison.removed", g)
	return g.Fighters, nil
}

// Get returns the garrison in a sector, if any.
func (s *Service) Get(ctx context.Context, sector int) (storage.Garrison, error) {
	return s.garrisons.GetGarrison(ctx, sector)
}

func (s *Service) checkActor(ctx context.Context, characterID string) error {
	if _, err := s.characters.GetCharacter(ctx, characterID); err != nil {
		return err
	}
	if s.transit != nil && s.transit.InHyperspace(characterID) {
		return apperrors.WithMetadata(apperrors.CodeGarrisonOwnerInTransit,
			"cannot manage garrisons while in hyperspace",
			map[string]string{"character": characterID})
	}
	return nil
}

func (s *Service) requireOwned(ctx context.Context, characterID string, sector int) (storage.Garrison, error) {
	g, err := s.garrisons.GetGarrison(ctx, sector)
	if err != nil {
		return storage.Garrison{}, err
	}
	if g.OwnerID != characterID {
		return storage.Garrison{}, apperrors.WithMetadata(apperrors.CodeGarrisonNotOwner,
			"garrison belongs to another character",
			map[string]string{"sector": fmt.Sprintf("%d", sector)})
	}
	return g, nil
}

func (s *Service) emit(ctx context.Context, name string, g storage.Garrison) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(ctx, events.EmitInput{
		Name:            name,
		Payload:         g,
		CharacterFilter: []string{g.OwnerID},
		Log: events.LogContext{
			SenderID: g.OwnerID,
			Sector:   g.Sector,
		},
	})
}

func validatePosture(mode storage.GarrisonMode, toll int64) error {
	if !storage.ValidGarrisonMode(mode) {
		return apperrors.WithMetadata(apperrors.CodeGarrisonInvalidMode,
			"unknown garrison mode", map[string]string{"mode": string(mode)})
	}
	if mode == storage.GarrisonToll {
		if toll <= 0 {
			return apperrors.New(apperrors.CodeGarrisonInvalidToll,
				"toll mode requires a positive toll")
		}
		return nil
	}
	if toll != 0 {
		return apperrors.New(apperrors.CodeGarrisonInvalidToll,
			"toll only applies to toll mode")
	}
	return nil
}
