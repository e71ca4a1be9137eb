package brain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SkillStats summarizes one agent/skill's track record.
type SkillStats struct {
	Skill       string    `json:"skill"`
	Attempts    int       `json:"attempts"`
	Successes   int       `json:"successes"`
	SuccessRate float64   `json:"success_rate"`
	LastUsed    time.Time `json:"last_used"`
	Notes       string    `json:"notes,omitempty"`
}

// RecordPattern stores an observed behavioral pattern.
func (s *Store) RecordPattern(ctx context.Context, patternType, data string, success bool) error {
	s.mu.Lock()
	now := formatTime(s.now())
	s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patterns (pattern_type, data, success, recorded_at)
		VALUES (?, ?, ?, ?)`,
		patternType, data, boolInt(success), now)
	if err != nil {
		return fmt.Errorf("record pattern %s: %w", patternType, err)
	}
	return nil
}

// TrackSkillUse bumps a skill's attempt/success counters. Non-empty notes
// replace the stored ones.
func (s *Store) TrackSkillUse(ctx context.Context, skill string, success bool, notes string) error {
	s.mu.Lock()
	now := formatTime(s.now())
	s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO skills (skill, attempts, successes, last_used, notes)
		VALUES (?, 1, ?, ?, ?)
		ON CONFLICT (skill) DO UPDATE SET
			attempts = attempts + 1,
			successes = successes + excluded.successes,
			last_used = excluded.last_used,
			notes = CASE WHEN excluded.notes != '' THEN excluded.notes ELSE notes END`,
		skill, boolInt(success), now, notes)
	if err != nil {
		return fmt.Errorf("track skill %s: %w", skill, err)
	}
	return nil
}

// SkillStats returns one skill's record; ok=false when unseen.
func (s *Store) SkillStats(ctx context.Context, skill string) (*SkillStats, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT skill, attempts, successes, last_used, notes
		FROM skills WHERE skill = ?`, skill)

	var (
		st       SkillStats
		lastUsed string
	)
	err := row.Scan(&st.Skill, &st.Attempts, &st.Successes, &lastUsed, &st.Notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("skill stats %s: %w", skill, err)
	}
	st.LastUsed = parseTime(lastUsed)
	if st.Attempts > 0 {
		st.SuccessRate = float64(st.Successes) / float64(st.Attempts)
	}
	return &st, true, nil
}

// AgentPerformance returns every tracked skill's record, keyed by name.
func (s *Store) AgentPerformance(ctx context.Context) (map[string]*SkillStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT skill, attempts, successes, last_used, notes FROM skills`)
	if err != nil {
		return nil, fmt.Errorf("agent performance: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*SkillStats)
	for rows.Next() {
		var (
			st       SkillStats
			lastUsed string
		)
		if err := rows.Scan(&st.Skill, &st.Attempts, &st.Successes, &lastUsed, &st.Notes); err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		st.LastUsed = parseTime(lastUsed)
		if st.Attempts > 0 {
			st.SuccessRate = float64(st.Successes) / float64(st.Attempts)
		}
		out[st.Skill] = &st
	}
	return out, rows.Err()
}

// RecordFinding stores a security scan/lookup finding.
func (s *Store) RecordFinding(ctx context.Context, target, finding, severity string) error {
	s.mu.Lock()
	now := formatTime(s.now())
	s.mu.Unlock()

	if severity == "" {
		severity = "info"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_findings (target, finding, severity, recorded_at)
		VALUES (?, ?, ?, ?)`, target, finding, severity, now)
	if err != nil {
		return fmt.Errorf("record finding: %w", err)
	}
	return nil
}

// RecordUserEvent appends to a user's interaction history.
func (s *Store) RecordUserEvent(ctx context.Context, userID, event string, metadata map[string]string) error {
	s.mu.Lock()
	now := formatTime(s.now())
	s.mu.Unlock()

	if userID == "" {
		userID = "default"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_history (user_id, event, recorded_at, metadata)
		VALUES (?, ?, ?, ?)`, userID, event, now, marshalJSON(metadata))
	if err != nil {
		return fmt.Errorf("record user event: %w", err)
	}
	return nil
}
