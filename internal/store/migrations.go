package store

import "context"

const migrationSQL = `
CREATE TABLE IF NOT EXISTS monitors (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    formula TEXT NOT NULL,
    unit TEXT NOT NULL DEFAULT '',
    decimal_places INT NOT NULL DEFAULT 2,
    color TEXT NOT NULL DEFAULT '#3b82f6',
    enabled BOOLEAN NOT NULL DEFAULT true,
    last_value DOUBLE PRECISION,
    computed_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS monitor_samples (
    id BIGSERIAL PRIMARY KEY,
    monitor_id BIGINT NOT NULL REFERENCES monitors(id) ON DELETE CASCADE,
    value DOUBLE PRECISION NOT NULL,
    computed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_monitor_samples_monitor_time
    ON monitor_samples (monitor_id, computed_at DESC);

CREATE TABLE IF NOT EXISTS webhook_events (
    id BIGSERIAL PRIMARY KEY,
    source_id TEXT NOT NULL,
    value DOUBLE PRECISION,
    payload JSONB NOT NULL DEFAULT '{}',
    received_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_webhook_events_source_time
    ON webhook_events (source_id, received_at DESC);

CREATE TABLE IF NOT EXISTS alert_rules (
    id BIGSERIAL PRIMARY KEY,
    monitor_id BIGINT NOT NULL REFERENCES monitors(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    condition TEXT NOT NULL,
    level TEXT NOT NULL DEFAULT 'medium',
    enabled BOOLEAN NOT NULL DEFAULT true,
    cooldown_seconds INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_alert_rules_monitor ON alert_rules (monitor_id);

CREATE TABLE IF NOT EXISTS alert_events (
    id BIGSERIAL PRIMARY KEY,
    rule_id BIGINT NOT NULL,
    monitor_id BIGINT NOT NULL,
    value DOUBLE PRECISION NOT NULL,
    level TEXT NOT NULL,
    message TEXT NOT NULL,
    sent_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_alert_events_time ON alert_events (sent_at DESC);

CREATE TABLE IF NOT EXISTS dex_accounts (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    venue TEXT NOT NULL,
    address TEXT NOT NULL,
    enabled BOOLEAN NOT NULL DEFAULT true,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (venue, address)
);

CREATE TABLE IF NOT EXISTS funding_rates (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES dex_accounts(id) ON DELETE CASCADE,
    symbol TEXT NOT NULL,
    rate NUMERIC NOT NULL,
    annualized NUMERIC NOT NULL,
    position_size NUMERIC NOT NULL DEFAULT 0,
    fetched_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_funding_rates_account_time
    ON funding_rates (account_id, symbol, fetched_at DESC);

CREATE TABLE IF NOT EXISTS pushover_config (
    id INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    user_key TEXT NOT NULL DEFAULT '',
    api_token TEXT NOT NULL DEFAULT '',
    enabled BOOLEAN NOT NULL DEFAULT false,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

INSERT INTO pushover_config (id) VALUES (1)
ON CONFLICT (id) DO NOTHING;
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrationSQL)
	return err
}
