// Package brain is the permanent memory store: conversations, learned
// knowledge, patterns, skill tracking, and the persistent cortex layers,
// all in the embedded SQLite database.
package brain

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/thalamus-ai/thalamus/pkg/database"
)

// timeFormat is the canonical timestamp encoding for every table.
// Fixed-width fractional seconds keep lexicographic string order equal to
// chronological order, which the ORDER BY clauses rely on.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime encodes a timestamp for storage, always in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// Store wraps the shared database client. Writes are serialized with a
// mutex on top of SQLite's single connection so interleaved multi-statement
// operations stay atomic per call.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	clock  func() time.Time

	mu     sync.Mutex
	lastTS time.Time
}

// NewStore creates a Store over an opened database client.
func NewStore(client *database.Client, logger *slog.Logger) *Store {
	return &Store{
		db:     client.DB(),
		logger: logger,
		clock:  time.Now,
	}
}

// now returns a timestamp strictly after every previously issued one, so
// conversation ordering is stable even when the wall clock ties.
func (s *Store) now() time.Time {
	t := s.clock()
	if !t.After(s.lastTS) {
		t = s.lastTS.Add(time.Microsecond)
	}
	s.lastTS = t
	return t
}

func marshalJSON(v any) string {
	if v == nil {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func marshalList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalList(raw string) []string {
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func unmarshalMap(raw string) map[string]string {
	var out map[string]string
	if err := json.Unmarshal([]byte(raw), &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeFormat, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
