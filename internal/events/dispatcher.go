// Package events fans state-change notifications out to connected clients.
//
// The dispatcher owns the set of registered delivery sinks and a durable
// audit log. Emission never fails client-visibly: per-sink delivery errors
// and audit-append faults are observed through telemetry and swallowed.
package events

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/tradewinds-game/tradewinds/internal/events/eventlog"
	"github.com/tradewinds-game/tradewinds/internal/telemetry"
)

// Sink is a registered delivery target, typically one per connected client.
// Concrete transports (a WebSocket connection, a test stub) implement it.
type Sink interface {
	// Deliver sends one event to the client. Implementations must bound
	// their own blocking; the dispatcher treats any error as a dropped
	// delivery for this sink only.
	Deliver(ctx context.Context, env Envelope) error
	// MatchesCharacters reports whether the sink's bound identity is one
	// of the given character ids.
	MatchesCharacters(ids []string) bool
	// MatchesNames reports whether the sink's bound display name is one
	// of the given names.
	MatchesNames(names []string) bool
}

// Envelope is the unit of dispatch handed to each sink.
type Envelope struct {
	Name    string            `json:"event"`
	Payload any               `json:"payload,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// LogContext carries the audit fields every emission site must supply.
type LogContext struct {
	SenderID      string
	Sector        int
	CorporationID string
}

// EmitInput describes one emission.
type EmitInput struct {
	Name            string
	Payload         any
	CharacterFilter []string // empty means broadcast
	NameFilter      []string // empty means broadcast
	Meta            map[string]string
	Log             LogContext
}

// Auditor persists audit records. *eventlog.Log satisfies it.
type Auditor interface {
	Append(rec eventlog.Record) error
}

// Dispatcher fans emissions out to matching sinks and records the audit
// trail. Construct one per process and pass it to every emitting component.
type Dispatcher struct {
	mu     sync.Mutex
	sinks  map[string]Sink
	closed bool

	inflight sync.WaitGroup

	audit     Auditor
	telemetry *telemetry.Emitter
}

// NewDispatcher creates a dispatcher writing its audit trail to audit.
// The telemetry emitter may be nil.
func NewDispatcher(audit Auditor, tel *telemetry.Emitter) *Dispatcher {
	return &Dispatcher{
		sinks:     make(map[string]Sink),
		audit:     audit,
		telemetry: tel,
	}
}

// Register binds a sink under receiverID, replacing any prior sink with the
// same id. Safe to call concurrently with in-flight emissions.
func (d *Dispatcher) Register(receiverID string, sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.sinks[receiverID] = sink
}

// Unregister removes the sink bound under receiverID. Emissions that already
// snapshotted the sink set may still deliver to it.
func (d *Dispatcher) Unregister(receiverID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sinks, receiverID)
}

// Emit delivers one logical event to every registered sink matching the
// input's filters, then records the interaction. Emit never returns an
// error: delivery and audit faults are isolated per sink and observed via
// telemetry.
func (d *Dispatcher) Emit(ctx context.Context, input EmitInput) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.inflight.Add(1)
	// Snapshot the sink set; sinks registered after this point are not
	// obligated to receive this emission.
	type boundSink struct {
		id   string
		sink Sink
	}
	snapshot := make([]boundSink, 0, len(d.sinks))
	for id, sink := range d.sinks {
		snapshot = append(snapshot, boundSink{id: id, sink: sink})
	}
	d.mu.Unlock()
	// Deliver in receiver order so the audit trail is stable.
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].id < snapshot[j].id })
	defer d.inflight.Done()

	env := Envelope{Name: input.Name, Payload: input.Payload, Meta: input.Meta}

	d.appendAudit(ctx, eventlog.Record{
		Direction:     eventlog.DirectionSent,
		Event:         input.Name,
		Payload:       input.Payload,
		Sender:        input.Log.SenderID,
		Sector:        input.Log.Sector,
		CorporationID: input.Log.CorporationID,
		Metadata:      input.Meta,
	})

	for _, bound := range snapshot {
		if !matches(bound.sink, input) {
			continue
		}
		if err := bound.sink.Deliver(ctx, env); err != nil {
			log.Printf("events: drop %s for %s: %v", input.Name, bound.id, err)
			d.count(ctx, "delivery_dropped", bound.id, input.Name)
			continue
		}
		d.appendAudit(ctx, eventlog.Record{
			Direction:     eventlog.DirectionReceived,
			Event:         input.Name,
			Payload:       input.Payload,
			Sender:        input.Log.SenderID,
			Receiver:      bound.id,
			Sector:        input.Log.Sector,
			CorporationID: input.Log.CorporationID,
			Metadata:      input.Meta,
		})
	}
}

// Close stops accepting emissions and waits for in-flight deliveries to
// drain. Registered sinks are released; their transports are closed by
// their owners.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.sinks = make(map[string]Sink)
	d.mu.Unlock()

	d.inflight.Wait()
}

func matches(sink Sink, input EmitInput) bool {
	if len(input.CharacterFilter) > 0 && !sink.MatchesCharacters(input.CharacterFilter) {
		return false
	}
	if len(input.NameFilter) > 0 && !sink.MatchesNames(input.NameFilter) {
		return false
	}
	return true
}

// appendAudit records one side of an emission. Audit faults never block
// delivery; they are counted and logged instead.
func (d *Dispatcher) appendAudit(ctx context.Context, rec eventlog.Record) {
	if d.audit == nil {
		return
	}
	if err := d.audit.Append(rec); err != nil {
		log.Printf("events: audit append failed for %s: %v", rec.Event, err)
		d.count(ctx, "audit_append_failed", rec.Receiver, rec.Event)
	}
}

func (d *Dispatcher) count(ctx context.Context, name, receiver, event string) {
	_ = d.telemetry.Emit(ctx, telemetry.Event{
		Severity:  telemetry.SeverityWarn,
		Component: "events",
		Name:      name,
		Fields: map[string]string{
			"receiver": receiver,
			"event":    event,
		},
	})
}
