package store

import (
	"context"
	"time"
)

// PushoverConfig is the singleton notification credential row.
type PushoverConfig struct {
	UserKey   string    `json:"user_key"`
	APIToken  string    `json:"api_token"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Store) GetPushoverConfig(ctx context.Context) (*PushoverConfig, error) {
	var c PushoverConfig
	err := s.pool.QueryRow(ctx,
		`SELECT user_key, api_token, enabled, updated_at FROM pushover_config WHERE id = 1`).
		Scan(&c.UserKey, &c.APIToken, &c.Enabled, &c.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *Store) SetPushoverConfig(ctx context.Context, userKey, apiToken string, enabled bool) (*PushoverConfig, error) {
	var c PushoverConfig
	err := s.pool.QueryRow(ctx, `
		UPDATE pushover_config
		SET user_key = $1, api_token = $2, enabled = $3, updated_at = now()
		WHERE id = 1
		RETURNING user_key, api_token, enabled, updated_at`,
		userKey, apiToken, enabled).
		Scan(&c.UserKey, &c.APIToken, &c.Enabled, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
