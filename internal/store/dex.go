package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type DexAccount struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Venue     string    `json:"venue"`
	Address   string    `json:"address"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) ListDexAccounts(ctx context.Context) ([]DexAccount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, venue, address, enabled, created_at FROM dex_accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []DexAccount
	for rows.Next() {
		var a DexAccount
		if err := rows.Scan(&a.ID, &a.Name, &a.Venue, &a.Address, &a.Enabled, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Store) ListEnabledDexAccounts(ctx context.Context) ([]DexAccount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, venue, address, enabled, created_at FROM dex_accounts WHERE enabled = true ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []DexAccount
	for rows.Next() {
		var a DexAccount
		if err := rows.Scan(&a.ID, &a.Name, &a.Venue, &a.Address, &a.Enabled, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Store) CreateDexAccount(ctx context.Context, name, venue, address string, enabled bool) (*DexAccount, error) {
	var a DexAccount
	err := s.pool.QueryRow(ctx, `
		INSERT INTO dex_accounts (name, venue, address, enabled)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, venue, address, enabled, created_at`,
		name, venue, address, enabled).
		Scan(&a.ID, &a.Name, &a.Venue, &a.Address, &a.Enabled, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) DeleteDexAccount(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dex_accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FundingRate is one observed funding snapshot for an account's position symbol.
type FundingRate struct {
	ID           int64           `json:"id"`
	AccountID    int64           `json:"account_id"`
	Symbol       string          `json:"symbol"`
	Rate         decimal.Decimal `json:"rate"`
	Annualized   decimal.Decimal `json:"annualized"`
	PositionSize decimal.Decimal `json:"position_size"`
	FetchedAt    time.Time       `json:"fetched_at"`
}

func (s *Store) InsertFundingRates(ctx context.Context, rates []FundingRate) error {
	if len(rates) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	for _, r := range rates {
		_, err := tx.Exec(ctx, `
			INSERT INTO funding_rates (account_id, symbol, rate, annualized, position_size, fetched_at)
			VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6)`,
			r.AccountID, r.Symbol, r.Rate.String(), r.Annualized.String(), r.PositionSize.String(), r.FetchedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// LatestFundingRates returns the newest rate per (account, symbol).
func (s *Store) LatestFundingRates(ctx context.Context) ([]FundingRate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (account_id, symbol)
			id, account_id, symbol, rate::text, annualized::text, position_size::text, fetched_at
		FROM funding_rates
		ORDER BY account_id, symbol, fetched_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rates []FundingRate
	for rows.Next() {
		var r FundingRate
		var rateStr, annStr, posStr string
		if err := rows.Scan(&r.ID, &r.AccountID, &r.Symbol, &rateStr, &annStr, &posStr, &r.FetchedAt); err != nil {
			return nil, err
		}
		var convErr error
		if r.Rate, convErr = decimal.NewFromString(rateStr); convErr != nil {
			return nil, fmt.Errorf("parse rate: %w", convErr)
		}
		if r.Annualized, convErr = decimal.NewFromString(annStr); convErr != nil {
			return nil, fmt.Errorf("parse annualized: %w", convErr)
		}
		if r.PositionSize, convErr = decimal.NewFromString(posStr); convErr != nil {
			return nil, fmt.Errorf("parse position size: %w", convErr)
		}
		rates = append(rates, r)
	}
	return rates, rows.Err()
}

// CleanupOldFundingRates deletes funding snapshots older than the given duration.
func (s *Store) CleanupOldFundingRates(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM funding_rates WHERE fetched_at < $1`, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
