package events

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/tradewinds-game/tradewinds/internal/events/eventlog"
	"github.com/tradewinds-game/tradewinds/internal/telemetry"
)

type stubSink struct {
	mu         sync.Mutex
	characters []string
	names      []string
	delivered  []Envelope
	fail       error
}

func (s *stubSink) Deliver(_ context.Context, env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.delivered = append(s.delivered, env)
	return nil
}

func (s *stubSink) MatchesCharacters(ids []string) bool {
	for _, id := range ids {
		if slices.Contains(s.characters, id) {
			return true
		}
	}
	return false
}

func (s *stubSink) MatchesNames(names []string) bool {
	for _, name := range names {
		if slices.Contains(s.names, name) {
			return true
		}
	}
	return false
}

func (s *stubSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

type memoryAudit struct {
	mu      sync.Mutex
	records []eventlog.Record
	fail    error
}

func (m *memoryAudit) Append(rec eventlog.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryAudit) byDirection(dir eventlog.Direction) []eventlog.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []eventlog.Record
	for _, rec := range m.records {
		if rec.Direction == dir {
			out = append(out, rec)
		}
	}
	return out
}

type telemetryCapture struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (c *telemetryCapture) AppendTelemetryEvent(_ context.Context, evt telemetry.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func testLogContext() LogContext {
	return LogContext{SenderID: "alpha", Sector: 12, CorporationID: "corp-1"}
}

func TestEmitBroadcastsWithoutFilters(t *testing.T) {
	audit := &memoryAudit{}
	d := NewDispatcher(audit, nil)
	a := &stubSink{characters: []string{"char-a"}}
	b := &stubSink{characters: []string{"char-b"}}
	d.Register("char-a", a)
	d.Register("char-b", b)

	d.Emit(context.Background(), EmitInput{Name: "sector.updated", Log: testLogContext()})

	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("expected both sinks delivered, got %d and %d", a.count(), b.count())
	}
}

func TestEmitCharacterFilterSelectsMatchingSink(t *testing.T) {
	audit := &memoryAudit{}
	d := NewDispatcher(audit, nil)
	a := &stubSink{characters: []string{"char-a"}}
	b := &stubSink{characters: []string{"char-b"}}
	d.Register("char-a", a)
	d.Register("char-b", b)

	d.Emit(context.Background(), EmitInput{
		Name:            "combat.round",
		CharacterFilter: []string{"char-a"},
		Log:             testLogContext(),
	})

	if a.count() != 1 {
		t.Fatalf("expected sink a delivered, got %d", a.count())
	}
	if b.count() != 0 {
		t.Fatalf("expected sink b skipped, got %d", b.count())
	}
}

func TestEmitNameFilter(t *testing.T) {
	d := NewDispatcher(&memoryAudit{}, nil)
	a := &stubSink{names: []string{"Trader Jane"}}
	b := &stubSink{names: []string{"Trader Bob"}}
	d.Register("a", a)
	d.Register("b", b)

	d.Emit(context.Background(), EmitInput{
		Name:       "hail",
		NameFilter: []string{"Trader Jane"},
		Log:        testLogContext(),
	})

	if a.count() != 1 || b.count() != 0 {
		t.Fatalf("expected name-filtered delivery, got %d and %d", a.count(), b.count())
	}
}

func TestEmitWritesOneSentAndOneReceivedPerMatch(t *testing.T) {
	audit := &memoryAudit{}
	d := NewDispatcher(audit, nil)
	d.Register("char-a", &stubSink{characters: []string{"char-a"}})
	d.Register("char-b", &stubSink{characters: []string{"char-b"}})

	d.Emit(context.Background(), EmitInput{Name: "port.traded", Log: testLogContext()})

	sent := audit.byDirection(eventlog.DirectionSent)
	received := audit.byDirection(eventlog.DirectionReceived)
	if len(sent) != 1 {
		t.Fatalf("expected exactly one sent record, got %d", len(sent))
	}
	if len(received) != 2 {
		t.Fatalf("expected one received record per sink, got %d", len(received))
	}
	if sent[0].Sender != "alpha" || sent[0].Sector != 12 || sent[0].CorporationID != "corp-1" {
		t.Fatalf("sent record missing log context: %+v", sent[0])
	}
	receivers := []string{received[0].Receiver, received[1].Receiver}
	slices.Sort(receivers)
	if receivers[0] != "char-a" || receivers[1] != "char-b" {
		t.Fatalf("unexpected receivers: %v", receivers)
	}
}

func TestEmitZeroMatchesStillWritesSentRecord(t *testing.T) {
	audit := &memoryAudit{}
	d := NewDispatcher(audit, nil)
	d.Register("char-a", &stubSink{characters: []string{"char-a"}})

	d.Emit(context.Background(), EmitInput{
		Name:            "whisper",
		CharacterFilter: []string{"char-z"},
		Log:             testLogContext(),
	})

	if len(audit.byDirection(eventlog.DirectionSent)) != 1 {
		t.Fatal("expected one sent record for zero-match emission")
	}
	if len(audit.byDirection(eventlog.DirectionReceived)) != 0 {
		t.Fatal("expected no received records for zero-match emission")
	}
}

func TestEmitIsolatesSinkFailures(t *testing.T) {
	audit := &memoryAudit{}
	capture := &telemetryCapture{}
	d := NewDispatcher(audit, telemetry.NewEmitter(capture))
	broken := &stubSink{characters: []string{"char-a"}, fail: errors.New("conn gone")}
	healthy := &stubSink{characters: []string{"char-b"}}
	d.Register("char-a", broken)
	d.Register("char-b", healthy)

	d.Emit(context.Background(), EmitInput{Name: "combat.round", Log: testLogContext()})

	if healthy.count() != 1 {
		t.Fatal("expected healthy sink to receive despite broken sibling")
	}
	received := audit.byDirection(eventlog.DirectionReceived)
	if len(received) != 1 || received[0].Receiver != "char-b" {
		t.Fatalf("expected one received record for the healthy sink, got %+v", received)
	}
	capture.mu.Lock()
	defer capture.mu.Unlock()
	if len(capture.events) != 1 || capture.events[0].Name != "delivery_dropped" {
		t.Fatalf("expected one delivery_dropped telemetry event, got %+v", capture.events)
	}
}

func TestEmitSurvivesAuditFault(t *testing.T) {
	audit := &memoryAudit{fail: errors.New("disk full")}
	capture := &telemetryCapture{}
	d := NewDispatcher(audit, telemetry.NewEmitter(capture))
	sink := &stubSink{characters: []string{"char-a"}}
	d.Register("char-a", sink)

	d.Emit(context.Background(), EmitInput{Name: "combat.round", Log: testLogContext()})

	if sink.count() != 1 {
		t.Fatal("audit fault must not block delivery")
	}
	capture.mu.Lock()
	defer capture.mu.Unlock()
	found := false
	for _, evt := range capture.events {
		if evt.Name == "audit_append_failed" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected audit_append_failed telemetry")
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	d := NewDispatcher(&memoryAudit{}, nil)
	sink := &stubSink{characters: []string{"char-a"}}
	d.Register("char-a", sink)
	d.Unregister("char-a")

	d.Emit(context.Background(), EmitInput{Name: "sector.updated", Log: testLogContext()})

	if sink.count() != 0 {
		t.Fatal("expected no delivery after unregister")
	}
}

func TestRegisterReplacesExistingSink(t *testing.T) {
	d := NewDispatcher(&memoryAudit{}, nil)
	old := &stubSink{characters: []string{"char-a"}}
	replacement := &stubSink{characters: []string{"char-a"}}
	d.Register("char-a", old)
	d.Register("char-a", replacement)

	d.Emit(context.Background(), EmitInput{Name: "sector.updated", Log: testLogContext()})

	if old.count() != 0 || replacement.count() != 1 {
		t.Fatalf("expected replacement sink only, got %d and %d", old.count(), replacement.count())
	}
}

func TestConcurrentRegisterAndEmit(t *testing.T) {
	d := NewDispatcher(&memoryAudit{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n))
			d.Register(id, &stubSink{characters: []string{id}})
		}(i)
		go func() {
			defer wg.Done()
			d.Emit(context.Background(), EmitInput{Name: "sector.updated", Log: testLogContext()})
		}()
	}
	wg.Wait()
}

func TestCloseDrainsAndRejectsFurtherEmissions(t *testing.T) {
	audit := &memoryAudit{}
	d := NewDispatcher(audit, nil)
	sink := &stubSink{characters: []string{"char-a"}}
	d.Register("char-a", sink)

	d.Close()
	d.Emit(context.Background(), EmitInput{Name: "sector.updated", Log: testLogContext()})

	if sink.count() != 0 {
		t.Fatal("expected no delivery after close")
	}
	if len(audit.byDirection(eventlog.DirectionSent)) != 0 {
		t.Fatal("expected no audit records after close")
	}
	// Close is idempotent.
	d.Close()
}
