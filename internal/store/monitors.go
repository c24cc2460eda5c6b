package store

import (
	"context"
	"time"
)

type Monitor struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Formula       string     `json:"formula"`
	Unit          string     `json:"unit"`
	DecimalPlaces int        `json:"decimal_places"`
	Color         string     `json:"color"`
	Enabled       bool       `json:"enabled"`
	LastValue     *float64   `json:"last_value"`
	ComputedAt    *time.Time `json:"computed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

const monitorCols = `id, name, formula, unit, decimal_places, color, enabled, last_value, computed_at, created_at, updated_at`

func (s *Store) ListMonitors(ctx context.Context) ([]Monitor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+monitorCols+` FROM monitors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var monitors []Monitor
	for rows.Next() {
		var m Monitor
		if err := rows.Scan(&m.ID, &m.Name, &m.Formula, &m.Unit, &m.DecimalPlaces, &m.Color,
			&m.Enabled, &m.LastValue, &m.ComputedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		monitors = append(monitors, m)
	}
	return monitors, rows.Err()
}

func (s *Store) GetMonitor(ctx context.Context, id int64) (*Monitor, error) {
	var m Monitor
	err := s.pool.QueryRow(ctx,
		`SELECT `+monitorCols+` FROM monitors WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.Formula, &m.Unit, &m.DecimalPlaces, &m.Color,
			&m.Enabled, &m.LastValue, &m.ComputedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (s *Store) CreateMonitor(ctx context.Context, name, formula, unit string, decimalPlaces int, color string, enabled bool) (*Monitor, error) {
	var m Monitor
	err := s.pool.QueryRow(ctx, `
		INSERT INTO monitors (name, formula, unit, decimal_places, color, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+monitorCols,
		name, formula, unit, decimalPlaces, color, enabled).
		Scan(&m.ID, &m.Name, &m.Formula, &m.Unit, &m.DecimalPlaces, &m.Color,
			&m.Enabled, &m.LastValue, &m.ComputedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) UpdateMonitor(ctx context.Context, id int64, name, formula, unit string, decimalPlaces int, color string, enabled bool) (*Monitor, error) {
	var m Monitor
	err := s.pool.QueryRow(ctx, `
		UPDATE monitors
		SET name = $2, formula = $3, unit = $4, decimal_places = $5, color = $6, enabled = $7, updated_at = now()
		WHERE id = $1
		RETURNING `+monitorCols,
		id, name, formula, unit, decimalPlaces, color, enabled).
		Scan(&m.ID, &m.Name, &m.Formula, &m.Unit, &m.DecimalPlaces, &m.Color,
			&m.Enabled, &m.LastValue, &m.ComputedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

// DeleteMonitor removes a monitor; alert rules and samples cascade.
func (s *Store) DeleteMonitor(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM monitors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetMonitorValue persists the latest computed value and appends a history sample.
func (s *Store) SetMonitorValue(ctx context.Context, id int64, value float64, at time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE monitors SET last_value = $2, computed_at = $3 WHERE id = $1`,
		id, value, at); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO monitor_samples (monitor_id, value, computed_at) VALUES ($1, $2, $3)`,
		id, value, at); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type Sample struct {
	Value      float64   `json:"value"`
	ComputedAt time.Time `json:"computed_at"`
}

func (s *Store) ListSamples(ctx context.Context, monitorID int64, since time.Time) ([]Sample, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT value, computed_at FROM monitor_samples
		WHERE monitor_id = $1 AND computed_at > $2
		ORDER BY computed_at`, monitorID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var p Sample
		if err := rows.Scan(&p.Value, &p.ComputedAt); err != nil {
			return nil, err
		}
		samples = append(samples, p)
	}
	return samples, rows.Err()
}

// CleanupOldSamples deletes history samples older than the given duration.
func (s *Store) CleanupOldSamples(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM monitor_samples WHERE computed_at < $1`, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
