package brain

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/thalamus-ai/thalamus/pkg/thunk"
)

// SaveThunk upserts a compressed thunk row.
func (s *Store) SaveThunk(ctx context.Context, t *thunk.Thunk) error {
	vars, err := json.Marshal(t.Variables)
	if err != nil {
		return fmt.Errorf("marshal thunk variables: %w", err)
	}
	var lastFired any
	if !t.LastFired.IsZero() {
		lastFired = formatTime(t.LastFired)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO thunks
			(id, name, type, trigger_pattern, template, variables, confidence,
			 fire_count, created_from_count, original_bytes, thunk_bytes,
			 created_at, last_fired)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			trigger_pattern = excluded.trigger_pattern,
			template = excluded.template,
			variables = excluded.variables,
			confidence = excluded.confidence,
			fire_count = excluded.fire_count,
			created_from_count = excluded.created_from_count,
			original_bytes = excluded.original_bytes,
			thunk_bytes = excluded.thunk_bytes,
			last_fired = excluded.last_fired`,
		t.ID, t.Name, string(t.Type), t.Trigger, t.Template, string(vars),
		t.Confidence, t.FireCount, t.CreatedFromCount, t.OriginalBytes,
		t.ThunkBytes, formatTime(t.CreatedAt), lastFired)
	if err != nil {
		return fmt.Errorf("save thunk %s: %w", t.Name, err)
	}
	return nil
}

// Thunks loads every stored thunk.
func (s *Store) Thunks(ctx context.Context) ([]*thunk.Thunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, trigger_pattern, template, variables, confidence,
		       fire_count, created_from_count, original_bytes, thunk_bytes,
		       created_at, last_fired
		FROM thunks`)
	if err != nil {
		return nil, fmt.Errorf("load thunks: %w", err)
	}
	defer rows.Close()

	var thunks []*thunk.Thunk
	for rows.Next() {
		var (
			t                   thunk.Thunk
			typ, vars, created  string
			lastFired           sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Name, &typ, &t.Trigger, &t.Template,
			&vars, &t.Confidence, &t.FireCount, &t.CreatedFromCount,
			&t.OriginalBytes, &t.ThunkBytes, &created, &lastFired); err != nil {
			return nil, fmt.Errorf("scan thunk: %w", err)
		}
		t.Type = thunk.Type(typ)
		t.CreatedAt = parseTime(created)
		if lastFired.Valid {
			t.LastFired = parseTime(lastFired.String)
		}
		if err := json.Unmarshal([]byte(vars), &t.Variables); err != nil {
			t.Variables = nil
		}
		thunks = append(thunks, &t)
	}
	return thunks, rows.Err()
}
