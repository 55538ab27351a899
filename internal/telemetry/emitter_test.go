package telemetry

import (
	"context"
	"testing"
	"time"
)

type captureStore struct {
	events []Event
}

func (c *captureStore) AppendTelemetryEvent(_ context.Context, evt Event) error {
	c.events = append(c.events, evt)
	return nil
}

func TestEmitStampsTimestamp(t *testing.T) {
	store := &captureStore{}
	emitter := NewEmitter(store)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	emitter.clock = func() time.Time { return fixed }

	err := emitter.Emit(context.Background(), Event{
		Severity:  SeverityWarn,
		Component: "events",
		Name:      "audit_append_failed",
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(store.events) != 1 {
		t.Fatalf("expected one event, got %d", len(store.events))
	}
	if !store.events[0].Timestamp.Equal(fixed) {
		t.Fatalf("expected stamped timestamp, got %v", store.events[0].Timestamp)
	}
}

func TestEmitPreservesExplicitTimestamp(t *testing.T) {
	store := &captureStore{}
	emitter := NewEmitter(store)
	explicit := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := emitter.Emit(context.Background(), Event{Timestamp: explicit, Name: "x"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if !store.events[0].Timestamp.Equal(explicit) {
		t.Fatalf("expected explicit timestamp, got %v", store.events[0].Timestamp)
	}
}

func TestEmitNilStoreIsNoop(t *testing.T) {
	emitter := NewEmitter(nil)
	if err := emitter.Emit(context.Background(), Event{Name: "x"}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}
