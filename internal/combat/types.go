package combat

// CombatantKind identifies the flavor of entity behind a combatant.
type CombatantKind string

const (
	KindCharacter CombatantKind = "character"
	KindDrone     CombatantKind = "drone"
	KindGarrison  CombatantKind = "garrison"
)

// Combatant is the mutable per-participant state inside an encounter.
// Current values never exceed their maxima and clamp at zero.
type Combatant struct {
	ID           string
	Kind         CombatantKind
	Name         string
	Fighters     int
	Shields      int
	MaxFighters  int
	MaxShields   int
	TurnsPerWarp int
	OwnerID      string // empty for non-character combatants
}

// ActionKind is the move a participant commits for one round.
type ActionKind string

const (
	ActionAttack ActionKind = "attack"
	ActionBrace  ActionKind = "brace"
	ActionFlee   ActionKind = "flee"
)

// Action is one participant's submitted move for the current round.
type Action struct {
	Kind     ActionKind
	Commit   int    // intensity committed, >= 0
	TargetID string // required for attack
}

// BraceAction is the default substituted for participants that did not act.
func BraceAction() Action {
	return Action{Kind: ActionBrace}
}

// EndState classifies a resolved round.
type EndState string

const (
	EndOngoing           EndState = "ongoing"
	EndStalemate         EndState = "stalemate"
	EndVictory           EndState = "victory"
	EndMutualDestruction EndState = "mutual_destruction"
	EndAllFled           EndState = "all_fled"

	// EndCancelled is set by the encounter manager, never by the engine.
	EndCancelled EndState = "cancelled"
)

// Terminal reports whether the end state finishes the encounter on its own.
// Stalemate is a per-round classification; the encounter manager decides
// when repeated stalemates terminate an encounter.
func (s EndState) Terminal() bool {
	switch s {
	case EndVictory, EndMutualDestruction, EndAllFled:
		return true
	default:
		return false
	}
}

// Standing is a participant's fighters and shields after a round.
type Standing struct {
	Fighters int
	Shields  int
}

// RoundInput is everything ResolveRound needs to compute one round.
//
// Departed lists participants that left the encounter in earlier rounds
// (fled or eliminated); attacks against them are no-ops rather than
// contract violations.
type RoundInput struct {
	Seed       int64
	Round      int
	Combatants map[string]Combatant
	Actions    map[string]Action
	Departed   map[string]bool
}

// RoundOutcome is the engine's pure output for one round. The caller applies
// it to the encounter's state; the engine never mutates its input.
type RoundOutcome struct {
	Round       int
	Remaining   map[string]Standing // post-round values for every pre-round participant
	FleeResults map[string]bool     // per participant, true only on a successful flee
	Eliminated  []string            // participants reduced to zero fighters this round
	EndState    EndState
}
