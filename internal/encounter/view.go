package encounter

import (
	"sort"

	"github.com/tradewinds-game/tradewinds/internal/combat"
)

// View is a read-only snapshot of an encounter, safe to hand to transports
// and event payloads while resolution continues.
type View struct {
	ID         string           `json:"combat_id"`
	Sector     int              `json:"sector"`
	Round      int              `json:"round"`
	Ended      bool             `json:"ended"`
	EndState   combat.EndState  `json:"end_state,omitempty"`
	Combatants []ViewCombatant  `json:"combatants"`
	Rounds     []ViewRoundEntry `json:"rounds,omitempty"`
}

// ViewCombatant is the wire form of one combatant's current state.
type ViewCombatant struct {
	ID           string               `json:"id"`
	Kind         combat.CombatantKind `json:"kind"`
	Name         string               `json:"name,omitempty"`
	Fighters     int                  `json:"fighters"`
	Shields      int                  `json:"shields"`
	MaxFighters  int                  `json:"max_fighters"`
	MaxShields   int                  `json:"max_shields"`
	TurnsPerWarp int                  `json:"turns_per_warp"`
	OwnerID      string               `json:"owner_id,omitempty"`
}

// ViewRoundEntry summarizes one resolved round for the encounter log.
type ViewRoundEntry struct {
	Round      int             `json:"round"`
	EndState   combat.EndState `json:"end_state"`
	Eliminated []string        `json:"eliminated,omitempty"`
	Fled       []string        `json:"fled,omitempty"`
}

// snapshotLocked copies the encounter into a View. Caller holds enc.mu.
func snapshotLocked(enc *encounter) View {
	view := View{
		ID:       enc.id,
		Sector:   enc.sector,
		Round:    enc.round,
		Ended:    enc.ended,
		EndState: enc.endState,
	}
	for _, c := range enc.combatants {
		view.Combatants = append(view.Combatants, ViewCombatant{
			ID:           c.ID,
			Kind:         c.Kind,
			Name:         c.Name,
			Fighters:     c.Fighters,
			Shields:      c.Shields,
			MaxFighters:  c.MaxFighters,
			MaxShields:   c.MaxShields,
			TurnsPerWarp: c.TurnsPerWarp,
			OwnerID:      c.OwnerID,
		})
	}
	sort.Slice(view.Combatants, func(i, j int) bool {
		return view.Combatants[i].ID < view.Combatants[j].ID
	})
	for _, outcome := range enc.log {
		entry := ViewRoundEntry{
			Round:      outcome.Round,
			EndState:   outcome.EndState,
			Eliminated: append([]string(nil), outcome.Eliminated...),
		}
		for pid, fled := range outcome.FleeResults {
			if fled {
				entry.Fled = append(entry.Fled, pid)
			}
		}
		sort.Strings(entry.Fled)
		view.Rounds = append(view.Rounds, entry)
	}
	return view
}
