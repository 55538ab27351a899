// Package encounter owns the set of live combat encounters and drives their
// round progression.
//
// Each encounter carries its own mutex covering "apply this round's outcome".
// Timer ticks and action-complete triggers both pass through that boundary,
// so a resolution in flight makes a concurrent attempt wait rather than run
// redundantly. The manager-level mutex only guards the live set and the
// participant index; it is always taken before an encounter's own lock,
// never after.
package encounter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tradewinds-game/tradewinds/internal/combat"
	"github.com/tradewinds-game/tradewinds/internal/events"
	"github.com/tradewinds-game/tradewinds/internal/platform/id"
	"github.com/tradewinds-game/tradewinds/internal/random"

	apperrors "github.com/tradewinds-game/tradewinds/internal/platform/errors"
)

// SalvageRequest asks an external collaborator to turn an eliminated
// combatant's cargo into a recoverable container.
type SalvageRequest struct {
	Sector        int
	ParticipantID string
	Cargo         map[string]int
}

// SalvageCreator receives salvage-creation requests on elimination.
type SalvageCreator interface {
	CreateSalvage(ctx context.Context, req SalvageRequest) error
}

// CargoFunc returns the current cargo snapshot for a participant.
type CargoFunc func(participantID string) map[string]int

// Emitter is the slice of the event dispatcher the manager needs.
type Emitter interface {
	Emit(ctx context.Context, input events.EmitInput)
}

// Options tune encounter progression policy.
type Options struct {
	// RoundInterval is how long the manager waits for actions before a
	// round resolves anyway. Zero means the 10s default.
	RoundInterval time.Duration
	// StalemateLimit ends an encounter after this many consecutive
	// stalemate rounds. Zero means the default of 3.
	StalemateLimit int
	// GracePeriod keeps an ended encounter queryable before removal.
	// Zero means the 60s default.
	GracePeriod time.Duration
}

const (
	defaultRoundInterval  = 10 * time.Second
	defaultStalemateLimit = 3
	defaultGracePeriod    = time.Minute
)

type encounter struct {
	mu sync.Mutex

	id         string
	sector     int
	seed       int64
	round      int
	ended      bool
	endState   combat.EndState
	combatants map[string]combat.Combatant
	departed   map[string]bool
	pending    map[string]combat.Action
	log        []combat.RoundOutcome

	stalemates int
	timer      *time.Timer
}

// Manager owns the live encounter set.
type Manager struct {
	mu            sync.Mutex
	encounters    map[string]*encounter
	byParticipant map[string]string

	emitter Emitter
	salvage SalvageCreator
	cargo   CargoFunc
	opts    Options
}

// NewManager creates an encounter manager. The emitter is required; salvage
// and cargo may be nil when salvage generation is handled elsewhere.
func NewManager(emitter Emitter, salvage SalvageCreator, cargo CargoFunc, opts Options) *Manager {
	if opts.RoundInterval <= 0 {
		opts.RoundInterval = defaultRoundInterval
	}
	if opts.StalemateLimit <= 0 {
		opts.StalemateLimit = defaultStalemateLimit
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = defaultGracePeriod
	}
	return &Manager{
		encounters:    make(map[string]*encounter),
		byParticipant: make(map[string]string),
		emitter:       emitter,
		salvage:       salvage,
		cargo:         cargo,
		opts:          opts,
	}
}

// Start registers a new active encounter and schedules round ticking.
func (m *Manager) Start(ctx context.Context, sector int, combatants []combat.Combatant) (View, error) {
	if len(combatants) < 2 {
		return View{}, apperrors.WithMetadata(apperrors.CodeEncounterTooFew,
			"an encounter needs at least two combatants",
			map[string]string{"sector": fmt.Sprintf("%d", sector)})
	}

	combatID, err := id.NewID()
	if err != nil {
		return View{}, fmt.Errorf("new combat id: %w", err)
	}
	seed, err := random.NewSeed()
	if err != nil {
		return View{}, fmt.Errorf("new combat seed: %w", err)
	}

	enc := &encounter{
		id:         combatID,
		sector:     sector,
		seed:       seed,
		round:      1,
		combatants: make(map[string]combat.Combatant, len(combatants)),
		departed:   make(map[string]bool),
		pending:    make(map[string]combat.Action),
	}
	for _, c := range combatants {
		enc.combatants[c.ID] = c
	}

	m.mu.Lock()
	// Check-and-register under one lock hold: a participant can be in at
	// most one live encounter, or FindFor loses track of the older one.
	for _, c := range combatants {
		if existing, ok := m.byParticipant[c.ID]; ok {
			m.mu.Unlock()
			return View{}, apperrors.WithMetadata(apperrors.CodeAlreadyInCombat,
				"combatant is already in an encounter", map[string]string{
					"participant_id": c.ID,
					"combat_id":      existing,
				})
		}
	}
	m.encounters[combatID] = enc
	for _, c := range combatants {
		m.byParticipant[c.ID] = combatID
	}
	m.mu.Unlock()

	enc.mu.Lock()
	m.armTimerLocked(enc)
	enc.mu.Unlock()

	m.emitter.Emit(ctx, events.EmitInput{
		Name:            "combat.started",
		Payload:         m.snapshot(enc),
		CharacterFilter: ownerFilter(combatants),
		Log:             events.LogContext{SenderID: "system", Sector: sector},
	})
	return m.snapshot(enc), nil
}

// SubmitAction records a participant's action for the current round.
// Resubmission overwrites the prior pending action. Once every live
// participant has acted the round resolves immediately instead of waiting
// for the timer.
func (m *Manager) SubmitAction(ctx context.Context, combatID, participantID string, action combat.Action) error {
	enc, err := m.lookup(combatID)
	if err != nil {
		return err
	}

	enc.mu.Lock()
	if enc.ended {
		enc.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeEncounterAlreadyEnded,
			"encounter has ended", map[string]string{"combat_id": combatID})
	}
	if _, ok := enc.combatants[participantID]; !ok {
		enc.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeParticipantNotFound,
			"participant is not in this encounter", map[string]string{
				"combat_id":      combatID,
				"participant_id": participantID,
			})
	}
	// Reject contract-violating actions here so the violation surfaces to
	// the submitter alone and a pending action can never fail the round.
	if err := combat.ValidateAction(participantID, action, enc.combatants, enc.departed); err != nil {
		enc.mu.Unlock()
		return err
	}
	enc.pending[participantID] = action
	complete := len(enc.pending) == len(enc.combatants)
	var resolveErr error
	if complete {
		resolveErr = m.resolveLocked(ctx, enc)
	}
	enc.mu.Unlock()
	return resolveErr
}

// ResolveNow forces the current round to resolve, substituting brace for
// missing actions. Used by tests and admin tooling; the timer path is
// equivalent.
func (m *Manager) ResolveNow(ctx context.Context, combatID string) error {
	enc, err := m.lookup(combatID)
	if err != nil {
		return err
	}
	enc.mu.Lock()
	defer enc.mu.Unlock()
	if enc.ended {
		return nil
	}
	return m.resolveLocked(ctx, enc)
}

// Cancel removes the encounter from the live set and stops its timer. It is
// idempotent: cancelling twice, or after natural termination, is not an
// error.
func (m *Manager) Cancel(ctx context.Context, combatID string) {
	m.mu.Lock()
	enc, ok := m.encounters[combatID]
	if ok {
		delete(m.encounters, combatID)
		for pid, cid := range m.byParticipant {
			if cid == combatID {
				delete(m.byParticipant, pid)
			}
		}
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	// Mark ended under the encounter lock so an in-flight tick that
	// already fired resolves to a no-op instead of advancing state.
	enc.mu.Lock()
	enc.ended = true
	if enc.endState == "" {
		enc.endState = combat.EndCancelled
	}
	if enc.timer != nil {
		enc.timer.Stop()
		enc.timer = nil
	}
	enc.mu.Unlock()
}

// Get returns a consistent snapshot of the encounter.
func (m *Manager) Get(combatID string) (View, error) {
	enc, err := m.lookup(combatID)
	if err != nil {
		return View{}, err
	}
	return m.snapshot(enc), nil
}

// FindFor returns the encounter a participant is currently fighting in.
func (m *Manager) FindFor(participantID string) (View, error) {
	m.mu.Lock()
	combatID, ok := m.byParticipant[participantID]
	m.mu.Unlock()
	if !ok {
		return View{}, apperrors.WithMetadata(apperrors.CodeEncounterNotFound,
			"participant is not in combat",
			map[string]string{"participant_id": participantID})
	}
	return m.Get(combatID)
}

func (m *Manager) lookup(combatID string) (*encounter, error) {
	m.mu.Lock()
	enc, ok := m.encounters[combatID]
	m.mu.Unlock()
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeEncounterNotFound,
			"no encounter for combat id", map[string]string{"combat_id": combatID})
	}
	return enc, nil
}

// armTimerLocked schedules the next round tick. Caller holds enc.mu.
func (m *Manager) armTimerLocked(enc *encounter) {
	if enc.timer != nil {
		enc.timer.Stop()
	}
	enc.timer = time.AfterFunc(m.opts.RoundInterval, func() {
		m.tick(enc)
	})
}

func (m *Manager) tick(enc *encounter) {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	if enc.ended {
		return
	}
	// Pending actions are validated at submission, so resolution cannot
	// fail on the timer path; if it ever does, the pending set is tainted.
	// Drop it and re-arm rather than retrying the same failing input.
	if err := m.resolveLocked(context.Background(), enc); err != nil {
		enc.pending = make(map[string]combat.Action)
		m.armTimerLocked(enc)
	}
}

// resolveLocked runs one round. Caller holds enc.mu.
func (m *Manager) resolveLocked(ctx context.Context, enc *encounter) error {
	outcome, err := combat.ResolveRound(combat.RoundInput{
		Seed:       enc.seed,
		Round:      enc.round,
		Combatants: enc.combatants,
		Actions:    enc.pending,
		Departed:   enc.departed,
	})
	if err != nil {
		return err
	}

	// Owners of every pre-round participant get the round notification,
	// including owners whose combatant departs this round.
	var recipients []string
	for _, c := range enc.combatants {
		if c.OwnerID != "" {
			recipients = append(recipients, c.OwnerID)
		}
	}
	sort.Strings(recipients)

	// Apply the outcome atomically with respect to readers: combatant
	// state, departures, and bookkeeping all change under enc.mu.
	var removed []string
	for pid, standing := range outcome.Remaining {
		c := enc.combatants[pid]
		c.Fighters = standing.Fighters
		c.Shields = standing.Shields
		enc.combatants[pid] = c
	}
	for _, pid := range outcome.Eliminated {
		delete(enc.combatants, pid)
		enc.departed[pid] = true
		removed = append(removed, pid)
	}
	for pid, fled := range outcome.FleeResults {
		if fled {
			delete(enc.combatants, pid)
			enc.departed[pid] = true
			removed = append(removed, pid)
		}
	}
	enc.log = append(enc.log, outcome)
	enc.round++
	enc.pending = make(map[string]combat.Action)

	if outcome.EndState == combat.EndStalemate {
		enc.stalemates++
	} else {
		enc.stalemates = 0
	}

	terminal := outcome.EndState.Terminal()
	if !terminal && enc.stalemates >= m.opts.StalemateLimit {
		terminal = true
		outcome.EndState = combat.EndStalemate
	}

	if terminal {
		enc.ended = true
		enc.endState = outcome.EndState
		if enc.timer != nil {
			enc.timer.Stop()
			enc.timer = nil
		}
	} else {
		m.armTimerLocked(enc)
	}

	m.afterRound(ctx, enc, outcome, removed, recipients, terminal)
	return nil
}

// afterRound handles index updates, salvage, and notification. Caller holds
// enc.mu; manager-level work runs in a goroutine to respect lock ordering.
func (m *Manager) afterRound(ctx context.Context, enc *encounter, outcome combat.RoundOutcome, removed, recipients []string, terminal bool) {
	view := snapshotLocked(enc)
	eliminated := append([]string(nil), outcome.Eliminated...)
	sector := enc.sector
	combatID := enc.id

	go func() {
		m.mu.Lock()
		for _, pid := range removed {
			if m.byParticipant[pid] == combatID {
				delete(m.byParticipant, pid)
			}
		}
		if terminal {
			for pid, cid := range m.byParticipant {
				if cid == combatID {
					delete(m.byParticipant, pid)
				}
			}
		}
		m.mu.Unlock()

		for _, pid := range eliminated {
			m.requestSalvage(ctx, sector, pid)
		}

		name := "combat.round"
		if terminal {
			name = "combat.ended"
		}
		m.emitter.Emit(ctx, events.EmitInput{
			Name:            name,
			Payload:         view,
			CharacterFilter: recipients,
			Log:             events.LogContext{SenderID: "system", Sector: sector},
		})

		if terminal {
			time.AfterFunc(m.opts.GracePeriod, func() {
				m.mu.Lock()
				delete(m.encounters, combatID)
				m.mu.Unlock()
			})
		}
	}()
}

func (m *Manager) requestSalvage(ctx context.Context, sector int, participantID string) {
	if m.salvage == nil {
		return
	}
	cargo := map[string]int{}
	if m.cargo != nil {
		cargo = m.cargo(participantID)
	}
	_ = m.salvage.CreateSalvage(ctx, SalvageRequest{
		Sector:        sector,
		ParticipantID: participantID,
		Cargo:         cargo,
	})
}

func (m *Manager) snapshot(enc *encounter) View {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	return snapshotLocked(enc)
}

func ownerFilter(combatants []combat.Combatant) []string {
	var owners []string
	for _, c := range combatants {
		if c.OwnerID != "" {
			owners = append(owners, c.OwnerID)
		}
	}
	sort.Strings(owners)
	return owners
}
