package brain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CommProfile is one user's learned communication profile for one
// conversational context. The governance layer owns the semantics; the
// store just persists the dimensions.
type CommProfile struct {
	UserID                string    `json:"user_id"`
	Context               string    `json:"context"`
	Formality             float64   `json:"formality"`
	Empathy               float64   `json:"empathy"`
	TechnicalDepth        float64   `json:"technical_depth"`
	Verbosity             float64   `json:"verbosity"`
	ResponseSpeedPriority bool      `json:"response_speed_priority"`
	ExplanationStyle      string    `json:"explanation_style"`
	ConfidenceExpression  string    `json:"confidence_expression"`
	ErrorHandling         string    `json:"error_handling"`
	PersonalityExpression float64   `json:"personality_expression"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// SaveCommProfile upserts a user's profile for a context.
func (s *Store) SaveCommProfile(ctx context.Context, p *CommProfile) error {
	s.mu.Lock()
	now := s.now()
	s.mu.Unlock()
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comm_profiles
			(user_id, context, formality, empathy, technical_depth, verbosity,
			 response_speed_priority, explanation_style, confidence_expression,
			 error_handling, personality_expression, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, context) DO UPDATE SET
			formality = excluded.formality,
			empathy = excluded.empathy,
			technical_depth = excluded.technical_depth,
			verbosity = excluded.verbosity,
			response_speed_priority = excluded.response_speed_priority,
			explanation_style = excluded.explanation_style,
			confidence_expression = excluded.confidence_expression,
			error_handling = excluded.error_handling,
			personality_expression = excluded.personality_expression,
			updated_at = excluded.updated_at`,
		p.UserID, p.Context, p.Formality, p.Empathy, p.TechnicalDepth,
		p.Verbosity, boolInt(p.ResponseSpeedPriority), p.ExplanationStyle,
		p.ConfidenceExpression, p.ErrorHandling, p.PersonalityExpression,
		formatTime(now))
	if err != nil {
		return fmt.Errorf("save comm profile %s/%s: %w", p.UserID, p.Context, err)
	}
	return nil
}

// CommProfileFor loads one profile; ok=false when never saved.
func (s *Store) CommProfileFor(ctx context.Context, userID, commContext string) (*CommProfile, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, context, formality, empathy, technical_depth, verbosity,
		       response_speed_priority, explanation_style, confidence_expression,
		       error_handling, personality_expression, updated_at
		FROM comm_profiles WHERE user_id = ? AND context = ?`, userID, commContext)

	p, err := scanCommProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load comm profile %s/%s: %w", userID, commContext, err)
	}
	return p, true, nil
}

// LastCommProfile returns a user's most recently updated profile across
// contexts, for low-confidence context detection fallback.
func (s *Store) LastCommProfile(ctx context.Context, userID string) (*CommProfile, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, context, formality, empathy, technical_depth, verbosity,
		       response_speed_priority, explanation_style, confidence_expression,
		       error_handling, personality_expression, updated_at
		FROM comm_profiles WHERE user_id = ?
		ORDER BY updated_at DESC LIMIT 1`, userID)

	p, err := scanCommProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("last comm profile %s: %w", userID, err)
	}
	return p, true, nil
}

func scanCommProfile(row *sql.Row) (*CommProfile, error) {
	var (
		p       CommProfile
		speed   int
		updated string
	)
	err := row.Scan(&p.UserID, &p.Context, &p.Formality, &p.Empathy,
		&p.TechnicalDepth, &p.Verbosity, &speed, &p.ExplanationStyle,
		&p.ConfidenceExpression, &p.ErrorHandling,
		&p.PersonalityExpression, &updated)
	if err != nil {
		return nil, err
	}
	p.ResponseSpeedPriority = speed != 0
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}
