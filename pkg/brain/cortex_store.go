package brain

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/thalamus-ai/thalamus/pkg/cortex"
)

// The methods below implement cortex.Store, persisting the SHORT_TERM,
// LONG_TERM and ARCHIVE layers in the cortex_items table.

// InsertItem writes a new cortex item row.
func (s *Store) InsertItem(ctx context.Context, item *cortex.Item) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cortex_items
			(id, content, layer, importance, confidence, access_count,
			 created_at, last_accessed, promoted_at, keywords, topic, source, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Content, string(item.Layer), item.Importance,
		item.Confidence, item.AccessCount,
		formatTime(item.CreatedAt), formatTime(item.LastAccessed),
		formatTime(item.PromotedAt), marshalList(item.Keywords),
		item.Topic, item.Source, marshalJSON(item.Metadata))
	if err != nil {
		return fmt.Errorf("insert cortex item: %w", err)
	}
	return nil
}

// UpdateItem rewrites a cortex item row, including layer moves.
func (s *Store) UpdateItem(ctx context.Context, item *cortex.Item) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cortex_items SET
			content = ?, layer = ?, importance = ?, confidence = ?,
			access_count = ?, last_accessed = ?, promoted_at = ?,
			keywords = ?, topic = ?, source = ?, metadata = ?
		WHERE id = ?`,
		item.Content, string(item.Layer), item.Importance, item.Confidence,
		item.AccessCount, formatTime(item.LastAccessed),
		formatTime(item.PromotedAt), marshalList(item.Keywords),
		item.Topic, item.Source, marshalJSON(item.Metadata), item.ID)
	if err != nil {
		return fmt.Errorf("update cortex item %s: %w", item.ID, err)
	}
	return nil
}

// DeleteItem removes a cortex item row.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cortex_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete cortex item %s: %w", id, err)
	}
	return nil
}

// ItemsByLayer loads every item in a layer.
func (s *Store) ItemsByLayer(ctx context.Context, layer cortex.Layer) ([]*cortex.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, layer, importance, confidence, access_count,
		       created_at, last_accessed, promoted_at, keywords, topic, source, metadata
		FROM cortex_items WHERE layer = ?`, string(layer))
	if err != nil {
		return nil, fmt.Errorf("items by layer %s: %w", layer, err)
	}
	defer rows.Close()
	return scanCortexItems(rows)
}

// SearchItems matches a layer's items against query tokens over content
// and keywords, most important first.
func (s *Store) SearchItems(ctx context.Context, layer cortex.Layer, tokens []string, limit int) ([]*cortex.Item, error) {
	if len(tokens) == 0 || limit <= 0 {
		return nil, nil
	}

	where := make([]string, 0, len(tokens))
	args := []any{string(layer)}
	for _, tok := range tokens {
		where = append(where, "(content LIKE ? OR keywords LIKE ?)")
		args = append(args, "%"+tok+"%", "%"+tok+"%")
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, layer, importance, confidence, access_count,
		       created_at, last_accessed, promoted_at, keywords, topic, source, metadata
		FROM cortex_items WHERE layer = ? AND (`+strings.Join(where, " OR ")+`)
		ORDER BY importance DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("search cortex items %s: %w", layer, err)
	}
	defer rows.Close()
	return scanCortexItems(rows)
}

// CountItems counts one layer's rows.
func (s *Store) CountItems(ctx context.Context, layer cortex.Layer) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cortex_items WHERE layer = ?`, string(layer)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count cortex items %s: %w", layer, err)
	}
	return n, nil
}

// EvictOverCapacity deletes a layer's lowest-importance rows (oldest as
// tiebreak) beyond the capacity, returning the number removed.
func (s *Store) EvictOverCapacity(ctx context.Context, layer cortex.Layer, capacity int) (int, error) {
	n, err := s.CountItems(ctx, layer)
	if err != nil {
		return 0, err
	}
	excess := n - capacity
	if excess <= 0 {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM cortex_items WHERE id IN (
			SELECT id FROM cortex_items WHERE layer = ?
			ORDER BY importance ASC, created_at ASC LIMIT ?
		)`, string(layer), excess)
	if err != nil {
		return 0, fmt.Errorf("evict cortex items %s: %w", layer, err)
	}
	removed, _ := res.RowsAffected()
	return int(removed), nil
}

func scanCortexItems(rows *sql.Rows) ([]*cortex.Item, error) {
	var items []*cortex.Item
	for rows.Next() {
		var (
			it                                       cortex.Item
			layer, created, accessed, keywords, meta string
			promoted                                 sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.Content, &layer, &it.Importance,
			&it.Confidence, &it.AccessCount, &created, &accessed,
			&promoted, &keywords, &it.Topic, &it.Source, &meta); err != nil {
			return nil, fmt.Errorf("scan cortex item: %w", err)
		}
		it.Layer = cortex.Layer(layer)
		it.CreatedAt = parseTime(created)
		it.LastAccessed = parseTime(accessed)
		if promoted.Valid {
			it.PromotedAt = parseTime(promoted.String)
		}
		it.Keywords = unmarshalList(keywords)
		it.Metadata = unmarshalMap(meta)
		items = append(items, &it)
	}
	return items, rows.Err()
}
