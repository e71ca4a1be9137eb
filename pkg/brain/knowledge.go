package brain

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Fact is one stored piece of knowledge, unique per (category, key).
type Fact struct {
	Category     string            `json:"category"`
	Key          string            `json:"key"`
	Value        string            `json:"value"`
	Source       string            `json:"source,omitempty"`
	Importance   int               `json:"importance"`
	Confidence   float64           `json:"confidence"`
	CreatedAt    time.Time         `json:"created_at"`
	LastAccessed time.Time         `json:"last_accessed"`
	AccessCount  int               `json:"access_count"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// KnowledgeOptions tunes a StoreKnowledge call.
type KnowledgeOptions struct {
	Source     string
	Importance int     // 0 means default 5
	Confidence float64 // 0 means default 0.8
	// Downgrade permits lowering confidence/importance below the stored
	// values; without it the upsert only bumps them upward.
	Downgrade bool
	Metadata  map[string]string
}

// StoreKnowledge upserts a fact. The value always overwrites; confidence
// and importance move monotonically upward unless Downgrade is set.
func (s *Store) StoreKnowledge(ctx context.Context, category, key, value string, opts KnowledgeOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	importance := opts.Importance
	if importance == 0 {
		importance = 5
	}
	confidence := opts.Confidence
	if confidence == 0 {
		confidence = 0.8
	}
	now := formatTime(s.now())

	bump := `importance = MAX(knowledge.importance, excluded.importance),
	         confidence = MAX(knowledge.confidence, excluded.confidence)`
	if opts.Downgrade {
		bump = `importance = excluded.importance,
		        confidence = excluded.confidence`
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO knowledge
			(category, key, value, source, importance, confidence,
			 created_at, last_accessed, access_count, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT (category, key) DO UPDATE SET
			value = excluded.value,
			source = excluded.source,
			%s,
			last_accessed = excluded.last_accessed,
			metadata = excluded.metadata`, bump),
		category, key, value, opts.Source, importance, confidence,
		now, now, marshalJSON(opts.Metadata))
	if err != nil {
		return fmt.Errorf("store knowledge %s/%s: %w", category, key, err)
	}
	return nil
}

// RecallKnowledge fetches facts in a category; key narrows to one fact.
// Reads bump access counters.
func (s *Store) RecallKnowledge(ctx context.Context, category, key string) ([]*Fact, error) {
	q := `SELECT category, key, value, source, importance, confidence,
	             created_at, last_accessed, access_count, metadata
	      FROM knowledge WHERE category = ?`
	args := []any{category}
	if key != "" {
		q += " AND key = ?"
		args = append(args, key)
	}
	q += " ORDER BY importance DESC, last_accessed DESC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("recall knowledge %s: %w", category, err)
	}
	defer rows.Close()

	facts, err := scanFacts(rows)
	if err != nil {
		return nil, err
	}
	s.touchFacts(ctx, facts)
	return facts, nil
}

// SearchKnowledge matches facts against query tokens across key and
// value, ranked by overlap then importance.
func (s *Store) SearchKnowledge(ctx context.Context, query string, limit int) ([]*Fact, error) {
	if limit <= 0 {
		limit = 10
	}
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	where := make([]string, 0, len(tokens))
	args := make([]any, 0, len(tokens)*2)
	for _, tok := range tokens {
		where = append(where, "(key LIKE ? OR value LIKE ?)")
		args = append(args, "%"+tok+"%", "%"+tok+"%")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, key, value, source, importance, confidence,
		        created_at, last_accessed, access_count, metadata
		 FROM knowledge WHERE `+strings.Join(where, " OR ")+`
		 LIMIT 200`, args...)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}
	defer rows.Close()

	facts, err := scanFacts(rows)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(facts, func(i, j int) bool {
		oi, oj := factOverlap(facts[i], tokens), factOverlap(facts[j], tokens)
		if oi != oj {
			return oi > oj
		}
		return facts[i].Importance > facts[j].Importance
	})
	if len(facts) > limit {
		facts = facts[:limit]
	}
	s.touchFacts(ctx, facts)
	return facts, nil
}

func factOverlap(f *Fact, tokens []string) int {
	text := strings.ToLower(f.Key + " " + f.Value)
	n := 0
	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			n++
		}
	}
	return n
}

func (s *Store) touchFacts(ctx context.Context, facts []*Fact) {
	if len(facts) == 0 {
		return
	}
	s.mu.Lock()
	now := formatTime(s.now())
	s.mu.Unlock()

	for _, f := range facts {
		f.AccessCount++
		if _, err := s.db.ExecContext(ctx, `
			UPDATE knowledge SET access_count = access_count + 1, last_accessed = ?
			WHERE category = ? AND key = ?`, now, f.Category, f.Key); err != nil {
			s.logger.Warn("knowledge access bump failed",
				"category", f.Category, "key", f.Key, "error", err)
		}
	}
}

func scanFacts(rows *sql.Rows) ([]*Fact, error) {
	var facts []*Fact
	for rows.Next() {
		var (
			f                       Fact
			created, accessed, meta string
		)
		if err := rows.Scan(&f.Category, &f.Key, &f.Value, &f.Source,
			&f.Importance, &f.Confidence, &created, &accessed,
			&f.AccessCount, &meta); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f.CreatedAt = parseTime(created)
		f.LastAccessed = parseTime(accessed)
		f.Metadata = unmarshalMap(meta)
		facts = append(facts, &f)
	}
	return facts, rows.Err()
}
