// Package combat implements pure round resolution for sector encounters.
//
// The engine is free of I/O and shared state: given an encounter's current
// combatants and the actions submitted for the round, it computes the round
// outcome. The caller (the encounter manager) owns applying that outcome.
package combat

import (
	"math/rand"
	"sort"
	"strconv"

	apperrors "github.com/tradewinds-game/tradewinds/internal/platform/errors"
)

// ResolveRound computes one round's outcome.
//
// # Determinism
//
// ResolveRound is deterministic with respect to RoundInput.Seed and
// RoundInput.Round. Flee attempts draw from a PRNG seeded with both values,
// and participants are processed in sorted identifier order, so repeated
// computation against the same encounter and round reproduces the same
// outcome.
//
// # Resolution order
//
//  1. Missing actions default to brace.
//  2. Flee attempts resolve first; successful fleers are excluded from the
//     rest of the round.
//  3. Attack damage is applied simultaneously: every attack reads pre-round
//     target state, commit depletes shields first, any remainder depletes
//     fighters, clamped at zero.
//  4. A round with no effective damage classifies as a stalemate.
//  5. A round leaving zero or one live, unfled participants is terminal.
//
// Constraints and errors
//
//   - An attack must name a target; a missing target id is a contract
//     violation, as is a negative commit or an unknown action kind.
//   - An attack naming an identifier that is neither a current combatant
//     nor a departed one is a contract violation. Attacks against departed
//     or freshly fled combatants are no-ops.
func ResolveRound(input RoundInput) (RoundOutcome, error) {
	ids := make([]string, 0, len(input.Combatants))
	for id := range input.Combatants {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	actions := make(map[string]Action, len(ids))
	for _, id := range ids {
		action, ok := input.Actions[id]
		if !ok {
			action = BraceAction()
		}
		if err := ValidateAction(id, action, input.Combatants, input.Departed); err != nil {
			return RoundOutcome{}, err
		}
		actions[id] = action
	}

	rng := rand.New(rand.NewSource(input.Seed + int64(input.Round)))

	// Flee attempts resolve before any damage, in sorted order so the
	// PRNG draw sequence is stable.
	fleeResults := make(map[string]bool, len(ids))
	fled := make(map[string]bool)
	for _, id := range ids {
		fleeResults[id] = false
		if actions[id].Kind != ActionFlee {
			continue
		}
		if attemptFlee(rng, input.Combatants[id].TurnsPerWarp) {
			fleeResults[id] = true
			fled[id] = true
		}
	}

	// Accumulate damage against pre-round state so application order
	// cannot matter. Attacks against fled or departed targets are no-ops.
	damage := make(map[string]int)
	effective := false
	for _, id := range ids {
		action := actions[id]
		if action.Kind != ActionAttack || fled[id] {
			continue
		}
		target, present := input.Combatants[action.TargetID]
		if !present || fled[action.TargetID] {
			continue
		}
		if target.Fighters <= 0 {
			continue
		}
		if action.Commit > 0 {
			damage[action.TargetID] += action.Commit
			effective = true
		}
	}

	remaining := make(map[string]Standing, len(ids))
	var eliminated []string
	for _, id := range ids {
		state := input.Combatants[id]
		standing := Standing{Fighters: state.Fighters, Shields: state.Shields}
		if dmg := damage[id]; dmg > 0 {
			absorbed := min(dmg, standing.Shields)
			standing.Shields -= absorbed
			standing.Fighters -= dmg - absorbed
			if standing.Fighters < 0 {
				standing.Fighters = 0
			}
			if standing.Fighters == 0 {
				eliminated = append(eliminated, id)
			}
		}
		remaining[id] = standing
	}

	outcome := RoundOutcome{
		Round:       input.Round,
		Remaining:   remaining,
		FleeResults: fleeResults,
		Eliminated:  eliminated,
	}
	outcome.EndState = classify(ids, remaining, fled, eliminated, effective)
	return outcome, nil
}

// attemptFlee draws one escape attempt. Slower ships (more turns per warp)
// escape less often.
func attemptFlee(rng *rand.Rand, turnsPerWarp int) bool {
	if turnsPerWarp < 1 {
		turnsPerWarp = 1
	}
	return rng.Float64() < 1.0/float64(1+turnsPerWarp)
}

// ValidateAction checks one participant's action against the engine
// contract. Callers accepting actions ahead of resolution run the same
// check so a violating action is rejected at submission instead of
// failing the whole round later.
func ValidateAction(id string, action Action, combatants map[string]Combatant, departed map[string]bool) error {
	if action.Commit < 0 {
		return apperrors.WithMetadata(apperrors.CodeCombatNegativeCommit,
			"negative commit value", map[string]string{
				"participant_id": id,
				"commit":         strconv.Itoa(action.Commit),
			})
	}
	switch action.Kind {
	case ActionBrace, ActionFlee:
		return nil
	case ActionAttack:
		if action.TargetID == "" {
			return apperrors.WithMetadata(apperrors.CodeCombatMissingTarget,
				"attack requires a target", map[string]string{"participant_id": id})
		}
		if _, ok := combatants[action.TargetID]; ok {
			return nil
		}
		if departed[action.TargetID] {
			return nil
		}
		return apperrors.WithMetadata(apperrors.CodeCombatUnknownTarget,
			"attack names an unknown target", map[string]string{
				"participant_id": id,
				"target_id":      action.TargetID,
			})
	default:
		return apperrors.WithMetadata(apperrors.CodeCombatUnknownAction,
			"unknown action kind", map[string]string{
				"participant_id": id,
				"kind":           string(action.Kind),
			})
	}
}

// classify determines the round's end state from post-round standings.
func classify(ids []string, remaining map[string]Standing, fled map[string]bool, eliminated []string, effective bool) EndState {
	alive := 0
	for _, id := range ids {
		if fled[id] {
			continue
		}
		if remaining[id].Fighters > 0 {
			alive++
		}
	}

	switch {
	case alive == 0 && len(eliminated) > 0:
		return EndMutualDestruction
	case alive == 0:
		return EndAllFled
	case alive == 1 && len(ids) > 1 && (len(eliminated) > 0 || len(fled) > 0):
		return EndVictory
	case !effective:
		return EndStalemate
	default:
		return EndOngoing
	}
}
