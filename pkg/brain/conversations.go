package brain

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Turn is one user/assistant exchange.
type Turn struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	UserText      string            `json:"user_text"`
	AssistantText string            `json:"assistant_text"`
	Topics        []string          `json:"topics,omitempty"`
	Importance    int               `json:"importance"`
	Success       bool              `json:"success"`
	ModelsUsed    []string          `json:"models_used,omitempty"`
	ContextHint   string            `json:"context_hint,omitempty"`
	UserID        string            `json:"user_id"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// StoreConversation records a turn. Missing ID, timestamp, user ID and
// importance are filled in; the returned turn carries the final values.
func (s *Store) StoreConversation(ctx context.Context, turn Turn) (*Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	if turn.UserID == "" {
		turn.UserID = "default"
	}
	if turn.Importance == 0 {
		turn.Importance = 5
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations
			(id, timestamp, user_text, assistant_text, topics, importance,
			 success, models_used, context_hint, user_id, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, formatTime(turn.Timestamp), turn.UserText,
		turn.AssistantText, marshalList(turn.Topics), turn.Importance,
		boolInt(turn.Success), marshalList(turn.ModelsUsed),
		turn.ContextHint, turn.UserID, marshalJSON(turn.Metadata))
	if err != nil {
		return nil, fmt.Errorf("store conversation: %w", err)
	}
	return &turn, nil
}

// ConversationContext returns the most recent turns, newest first.
func (s *Store) ConversationContext(ctx context.Context, limit int) ([]*Turn, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, user_text, assistant_text, topics, importance,
		       success, models_used, context_hint, user_id, metadata
		FROM conversations ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation context: %w", err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

// SearchConversations returns turns whose text shares tokens with the
// query, ranked by overlap then importance. minImportance <= 0 means no
// floor.
func (s *Store) SearchConversations(ctx context.Context, query string, limit, minImportance int) ([]*Turn, error) {
	if limit <= 0 {
		limit = 10
	}
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	where := make([]string, 0, len(tokens)+1)
	args := make([]any, 0, len(tokens)+2)
	for _, tok := range tokens {
		where = append(where, "(user_text LIKE ? OR assistant_text LIKE ?)")
		args = append(args, "%"+tok+"%", "%"+tok+"%")
	}
	clause := strings.Join(where, " OR ")
	if minImportance > 0 {
		clause = "(" + clause + ") AND importance >= ?"
		args = append(args, minImportance)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, user_text, assistant_text, topics, importance,
		        success, models_used, context_hint, user_id, metadata
		 FROM conversations WHERE `+clause+`
		 ORDER BY timestamp DESC LIMIT 200`, args...)
	if err != nil {
		return nil, fmt.Errorf("search conversations: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(turns, func(i, j int) bool {
		oi, oj := tokenOverlap(turns[i], tokens), tokenOverlap(turns[j], tokens)
		if oi != oj {
			return oi > oj
		}
		return turns[i].Importance > turns[j].Importance
	})
	if len(turns) > limit {
		turns = turns[:limit]
	}
	return turns, nil
}

func tokenOverlap(t *Turn, tokens []string) int {
	text := strings.ToLower(t.UserText + " " + t.AssistantText)
	n := 0
	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			n++
		}
	}
	return n
}

// queryTokens lowercases and keeps tokens long enough to be selective.
func queryTokens(query string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		tok = strings.Trim(tok, "?.!,:;\"'")
		if len(tok) > 2 {
			out = append(out, tok)
		}
	}
	return out
}

func scanTurns(rows *sql.Rows) ([]*Turn, error) {
	var turns []*Turn
	for rows.Next() {
		var (
			t                            Turn
			ts, topics, models, metadata string
			success                      int
			hint                         sql.NullString
		)
		if err := rows.Scan(&t.ID, &ts, &t.UserText, &t.AssistantText,
			&topics, &t.Importance, &success, &models, &hint,
			&t.UserID, &metadata); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		t.Timestamp = parseTime(ts)
		t.Topics = unmarshalList(topics)
		t.Success = success != 0
		t.ModelsUsed = unmarshalList(models)
		t.ContextHint = hint.String
		t.Metadata = unmarshalMap(metadata)
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
