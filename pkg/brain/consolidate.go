package brain

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// conversationRetention is how long full conversation rows are kept
// before being folded into daily summaries.
const conversationRetention = 30 * 24 * time.Hour

// MemoryStats is the permanent store's size report.
type MemoryStats struct {
	Conversations int `json:"conversations"`
	Knowledge     int `json:"knowledge"`
	Patterns      int `json:"patterns"`
	Skills        int `json:"skills"`
	CortexItems   int `json:"cortex_items"`
	Thunks        int `json:"thunks"`
	ScanFindings  int `json:"scan_findings"`
}

// Stats counts every table.
func (s *Store) Stats(ctx context.Context) (*MemoryStats, error) {
	stats := &MemoryStats{}
	for table, dst := range map[string]*int{
		"conversations": &stats.Conversations,
		"knowledge":     &stats.Knowledge,
		"patterns":      &stats.Patterns,
		"skills":        &stats.Skills,
		"cortex_items":  &stats.CortexItems,
		"thunks":        &stats.Thunks,
		"scan_findings": &stats.ScanFindings,
	} {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(dst); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
	}
	return stats, nil
}

// Consolidate folds conversations older than the retention window into
// per-day summary facts, deletes the originals, and re-optimizes the
// database. Running it twice in a row is a no-op the second time.
func (s *Store) Consolidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := formatTime(s.clock().Add(-conversationRetention))

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, topics FROM conversations WHERE timestamp < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("consolidate read: %w", err)
	}

	type daySummary struct {
		count  int
		topics map[string]int
	}
	days := make(map[string]*daySummary)
	for rows.Next() {
		var ts, topics string
		if err := rows.Scan(&ts, &topics); err != nil {
			rows.Close()
			return fmt.Errorf("consolidate scan: %w", err)
		}
		day := ts
		if len(day) > 10 {
			day = day[:10]
		}
		d, ok := days[day]
		if !ok {
			d = &daySummary{topics: make(map[string]int)}
			days[day] = d
		}
		d.count++
		for _, topic := range unmarshalList(topics) {
			d.topics[topic]++
		}
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("consolidate read: %w", err)
	}

	if len(days) > 0 {
		now := formatTime(s.now())
		for day, d := range days {
			_, err := s.db.ExecContext(ctx, `
				INSERT INTO knowledge
					(category, key, value, source, importance, confidence,
					 created_at, last_accessed, access_count, metadata)
				VALUES ('daily_summary', ?, ?, 'consolidation', 4, 0.9, ?, ?, 0, '{}')
				ON CONFLICT (category, key) DO UPDATE SET
					value = excluded.value, last_accessed = excluded.last_accessed`,
				day, summarizeDay(day, d.count, d.topics), now, now)
			if err != nil {
				return fmt.Errorf("consolidate summary %s: %w", day, err)
			}
		}
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM conversations WHERE timestamp < ?`, cutoff); err != nil {
			return fmt.Errorf("consolidate prune: %w", err)
		}
		s.logger.Info("conversations consolidated", "days", len(days))
	}

	if _, err := s.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("consolidate analyze: %w", err)
	}
	return nil
}

func summarizeDay(day string, count int, topics map[string]int) string {
	names := make([]string, 0, len(topics))
	for topic := range topics {
		if topic != "" {
			names = append(names, topic)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if topics[names[i]] != topics[names[j]] {
			return topics[names[i]] > topics[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > 5 {
		names = names[:5]
	}

	summary := fmt.Sprintf("%d conversations on %s", count, day)
	if len(names) > 0 {
		summary += "; topics: " + strings.Join(names, ", ")
	}
	return summary
}
