package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

type AlertRule struct {
	ID              int64     `json:"id"`
	MonitorID       int64     `json:"monitor_id"`
	Name            string    `json:"name"`
	Condition       string    `json:"condition"`
	Level           string    `json:"level"`
	Enabled         bool      `json:"enabled"`
	CooldownSeconds int       `json:"cooldown_seconds"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

const alertRuleCols = `id, monitor_id, name, condition, level, enabled, cooldown_seconds, created_at, updated_at`

func (s *Store) ListAlertRules(ctx context.Context) ([]AlertRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+alertRuleCols+` FROM alert_rules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlertRules(rows)
}

func (s *Store) ListAlertRulesByMonitor(ctx context.Context, monitorID int64) ([]AlertRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+alertRuleCols+` FROM alert_rules WHERE monitor_id = $1 ORDER BY id`, monitorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlertRules(rows)
}

func (s *Store) ListEnabledAlertRulesByMonitor(ctx context.Context, monitorID int64) ([]AlertRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+alertRuleCols+` FROM alert_rules WHERE monitor_id = $1 AND enabled = true ORDER BY id`, monitorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlertRules(rows)
}

func (s *Store) CreateAlertRule(ctx context.Context, monitorID int64, name, condition, level string, enabled bool, cooldownSeconds int) (*AlertRule, error) {
	var r AlertRule
	err := s.pool.QueryRow(ctx, `
		INSERT INTO alert_rules (monitor_id, name, condition, level, enabled, cooldown_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+alertRuleCols,
		monitorID, name, condition, level, enabled, cooldownSeconds).
		Scan(&r.ID, &r.MonitorID, &r.Name, &r.Condition, &r.Level, &r.Enabled,
			&r.CooldownSeconds, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) UpdateAlertRule(ctx context.Context, id int64, name, condition, level string, enabled bool, cooldownSeconds int) (*AlertRule, error) {
	var r AlertRule
	err := s.pool.QueryRow(ctx, `
		UPDATE alert_rules
		SET name = $2, condition = $3, level = $4, enabled = $5, cooldown_seconds = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+alertRuleCols,
		id, name, condition, level, enabled, cooldownSeconds).
		Scan(&r.ID, &r.MonitorID, &r.Name, &r.Condition, &r.Level, &r.Enabled,
			&r.CooldownSeconds, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

func (s *Store) DeleteAlertRule(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAlertRules(rows pgx.Rows) ([]AlertRule, error) {
	var rules []AlertRule
	for rows.Next() {
		var r AlertRule
		if err := rows.Scan(&r.ID, &r.MonitorID, &r.Name, &r.Condition, &r.Level, &r.Enabled,
			&r.CooldownSeconds, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// AlertEvent is one dispatched notification, kept as the alert log.
type AlertEvent struct {
	ID        int64     `json:"id"`
	RuleID    int64     `json:"rule_id"`
	MonitorID int64     `json:"monitor_id"`
	Value     float64   `json:"value"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sent_at"`
}

func (s *Store) InsertAlertEvent(ctx context.Context, ruleID, monitorID int64, value float64, level, message string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alert_events (rule_id, monitor_id, value, level, message)
		VALUES ($1, $2, $3, $4, $5)`,
		ruleID, monitorID, value, level, message)
	return err
}

func (s *Store) ListAlertEvents(ctx context.Context, limit int) ([]AlertEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, rule_id, monitor_id, value, level, message, sent_at
		FROM alert_events
		ORDER BY sent_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AlertEvent
	for rows.Next() {
		var e AlertEvent
		if err := rows.Scan(&e.ID, &e.RuleID, &e.MonitorID, &e.Value, &e.Level, &e.Message, &e.SentAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
