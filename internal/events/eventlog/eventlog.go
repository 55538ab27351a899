// Package eventlog persists the broadcast audit trail.
//
// Every emission produces one "sent" record, and one "received" record per
// sink that actually got the event. Records are appended as one JSON object
// per line so the log can be tailed and replayed with standard tooling.
package eventlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Direction marks which side of an emission a record describes.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Record is one line of the audit log.
type Record struct {
	Timestamp     time.Time         `json:"timestamp"`
	Direction     Direction         `json:"direction"`
	Event         string            `json:"event"`
	Payload       any               `json:"payload,omitempty"`
	Sender        string            `json:"sender,omitempty"`
	Receiver      string            `json:"receiver,omitempty"`
	Sector        int               `json:"sector,omitempty"`
	CorporationID string            `json:"corporation_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Log appends records to a durable writer. Append is safe for concurrent use.
type Log struct {
	mu     sync.Mutex
	writer io.Writer
	closer io.Closer
	clock  func() time.Time
}

// Open opens (or creates) an append-only log file at path.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	log := NewWriter(f)
	log.closer = f
	return log, nil
}

// NewWriter creates a log appending to w. Used by tests and for in-memory
// capture; production code opens a file via Open.
func NewWriter(w io.Writer) *Log {
	return &Log{writer: w, clock: time.Now}
}

// Append writes one record as a single JSON line. A zero timestamp is
// stamped with the current time.
func (l *Log) Append(rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.clock().UTC()
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal event record: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.writer.Write(line); err != nil {
		return fmt.Errorf("append event record: %w", err)
	}
	return nil
}

// Close closes the underlying file when the log owns one.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
