// Package storage defines the persistent world state interfaces.
//
// The game core depends only on these interfaces; the sqlite subpackage
// provides the durable implementation.
package storage

import "context"

// Commodity names the tradeable goods.
type Commodity string

const (
	CommodityFuelOre   Commodity = "fuel_ore"
	CommodityOrganics  Commodity = "organics"
	CommodityEquipment Commodity = "equipment"
)

// Commodities lists all known commodities in canonical order.
func Commodities() []Commodity {
	return []Commodity{CommodityFuelOre, CommodityOrganics, CommodityEquipment}
}

// Character is a registered player character. Fighters and Shields are
// the ship's current combat stats; TurnsPerWarp is the ship speed rating
// that also feeds flee odds in combat.
type Character struct {
	ID            string
	Name          string
	CorporationID string
	Sector        int
	Credits       int64
	Fighters      int
	Shields       int
	TurnsPerWarp  int
}

// Corporation groups characters for rankings and shared assets.
type Corporation struct {
	ID   string
	Name string
}

// Port is a trading station bound to a sector.
type Port struct {
	ID      string
	Sector  int
	Name    string
	Credits int64
}

// PortStock is one commodity line at a port.
type PortStock struct {
	PortID    string
	Commodity Commodity
	Quantity  int
	Price     int64
}

// Hold is one commodity line in a character's cargo hold.
type Hold struct {
	CharacterID string
	Commodity   Commodity
	Quantity    int
}

// GarrisonMode is the stance of a deployed fighter garrison.
type GarrisonMode string

const (
	GarrisonOffensive GarrisonMode = "offensive"
	GarrisonDefensive GarrisonMode = "defensive"
	GarrisonToll      GarrisonMode = "toll"
)

// ValidGarrisonMode reports whether mode is one of the known stances.
func ValidGarrisonMode(mode GarrisonMode) bool {
	switch mode {
	case GarrisonOffensive, GarrisonDefensive, GarrisonToll:
		return true
	default:
		return false
	}
}

// Garrison is a stationary fighter deployment in a sector.
type Garrison struct {
	Sector   int
	OwnerID  string
	Mode     GarrisonMode
	Toll     int64
	Fighters int
}

// CharacterStore persists characters.
type CharacterStore interface {
	CreateCharacter(ctx context.Context, c Character) error
	GetCharacter(ctx context.Context, id string) (Character, error)
	UpdateCharacter(ctx context.Context, c Character) error
	ListCharacters(ctx context.Context) ([]Character, error)
}

// CorporationStore persists corporations.
type CorporationStore interface {
	CreateCorporation(ctx context.Context, c Corporation) error
	ListCorporations(ctx context.Context) ([]Corporation, error)
}

// PortStore persists ports and their stock.
type PortStore interface {
	CreatePort(ctx context.Context, p Port, stock []PortStock) error
	GetPortBySector(ctx context.Context, sector int) (Port, error)
	GetPortStock(ctx context.Context, portID string, commodity Commodity) (PortStock, error)
	UpdatePort(ctx context.Context, p Port) error
	UpdatePortStock(ctx context.Context, s PortStock) error
}

// HoldStore persists character cargo holds.
type HoldStore interface {
	GetHold(ctx context.Context, characterID string, commodity Commodity) (Hold, error)
	SetHold(ctx context.Context, h Hold) error
	ListHolds(ctx context.Context, characterID string) ([]Hold, error)
}

// GarrisonStore persists sector garrisons.
type GarrisonStore interface {
	UpsertGarrison(ctx context.Context, g Garrison) error
	GetGarrison(ctx context.Context, sector int) (Garrison, error)
	DeleteGarrison(ctx context.Context, sector int) error
	ListGarrisons(ctx context.Context) ([]Garrison, error)
}

// Store aggregates every persistence interface the server needs.
type Store interface {
	CharacterStore
	CorporationStore
	PortStore
	HoldStore
	GarrisonStore
}
