package store

import (
	"context"
	"time"
)

// WebhookEvent is one inbound data point pushed by the external monitoring
// service. Rows are append-only; the payload stays opaque.
type WebhookEvent struct {
	ID         int64     `json:"id"`
	SourceID   string    `json:"source_id"`
	Value      *float64  `json:"value"`
	Payload    []byte    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}

func (s *Store) InsertWebhookEvent(ctx context.Context, sourceID string, value *float64, payload []byte) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO webhook_events (source_id, value, payload)
		VALUES ($1, $2, $3)
		RETURNING id`, sourceID, value, payload).Scan(&id)
	return id, err
}

// LatestWebhookValues returns the most recent non-null value per source id.
func (s *Store) LatestWebhookValues(ctx context.Context) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (source_id) source_id, value
		FROM webhook_events
		WHERE value IS NOT NULL
		ORDER BY source_id, received_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]float64)
	for rows.Next() {
		var sourceID string
		var value float64
		if err := rows.Scan(&sourceID, &value); err != nil {
			return nil, err
		}
		values[sourceID] = value
	}
	return values, rows.Err()
}

// ListWebhookEvents returns events received after the cutoff. An empty
// sourceID lists events across all sources.
func (s *Store) ListWebhookEvents(ctx context.Context, sourceID string, since time.Time) ([]WebhookEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, source_id, value, payload, received_at
		FROM webhook_events
		WHERE ($1 = '' OR source_id = $1) AND received_at > $2
		ORDER BY received_at`, sourceID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []WebhookEvent
	for rows.Next() {
		var e WebhookEvent
		if err := rows.Scan(&e.ID, &e.SourceID, &e.Value, &e.Payload, &e.ReceivedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CleanupOldWebhookEvents deletes events older than the given duration.
func (s *Store) CleanupOldWebhookEvents(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM webhook_events WHERE received_at < $1`, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
