package dex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const (
	hyperliquidInfoURL = "https://api.hyperliquid.xyz/info"
	hyperliquidWSURL   = "wss://api.hyperliquid.xyz/ws"
)

// Hyperliquid funds hourly; annualized = rate * 24 * 365.
var hoursPerYear = decimal.NewFromInt(24 * 365)

// Funding is one observed funding payment for an account position.
type Funding struct {
	Symbol       string
	Rate         decimal.Decimal
	Annualized   decimal.Decimal
	PositionSize decimal.Decimal
	Time         time.Time
}

type hlFundingDelta struct {
	Time  int64 `json:"time"`
	Delta struct {
		Type        string `json:"type"`
		Coin        string `json:"coin"`
		USDC        string `json:"usdc"`
		Szi         string `json:"szi"`
		FundingRate string `json:"fundingRate"`
	} `json:"delta"`
}

func parseFundingDelta(d hlFundingDelta) (*Funding, error) {
	if d.Delta.Type != "funding" {
		return nil, nil
	}
	rate, err := decimal.NewFromString(d.Delta.FundingRate)
	if err != nil {
		return nil, fmt.Errorf("parse funding rate %q: %w", d.Delta.FundingRate, err)
	}
	size, err := decimal.NewFromString(d.Delta.Szi)
	if err != nil {
		return nil, fmt.Errorf("parse position size %q: %w", d.Delta.Szi, err)
	}
	return &Funding{
		Symbol:       d.Delta.Coin,
		Rate:         rate,
		Annualized:   rate.Mul(hoursPerYear),
		PositionSize: size,
		Time:         time.UnixMilli(d.Time),
	}, nil
}

// subscribeMsg is the ws subscription for an account's funding payments.
func subscribeMsg(address string) []byte {
	msg := map[string]any{
		"method": "subscribe",
		"subscription": map[string]any{
			"type": "userFundings",
			"user": address,
		},
	}
	b, _ := json.Marshal(msg)
	return b
}

type wsEnvelope struct {
	Channel string `json:"channel"`
	Data    struct {
		User       string           `json:"user"`
		Fundings   []hlFundingDelta `json:"fundings"`
		IsSnapshot bool             `json:"isSnapshot"`
	} `json:"data"`
}

// parseWSMessage extracts funding payments from a userFundings frame.
// Non-funding frames (subscription acks, pings) return an empty slice.
func parseWSMessage(data []byte) ([]Funding, error) {
	var env wsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode ws frame: %w", err)
	}
	if env.Channel != "userFundings" {
		return nil, nil
	}

	var out []Funding
	for _, d := range env.Data.Fundings {
		f, err := parseFundingDelta(d)
		if err != nil || f == nil {
			continue
		}
		out = append(out, *f)
	}
	return out, nil
}

// fetchRecentFundingsFrom backfills the last day of funding payments over
// REST so the API has data before the stream delivers anything.
func fetchRecentFundingsFrom(ctx context.Context, client *http.Client, infoURL, address string) ([]Funding, error) {
	reqBody, _ := json.Marshal(map[string]any{
		"type":      "userFunding",
		"user":      address,
		"startTime": time.Now().Add(-24 * time.Hour).UnixMilli(),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, infoURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create info request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("info request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read info response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("info API status %d", resp.StatusCode)
	}

	var deltas []hlFundingDelta
	if err := json.Unmarshal(body, &deltas); err != nil {
		return nil, fmt.Errorf("decode info response: %w", err)
	}

	var out []Funding
	for _, d := range deltas {
		f, err := parseFundingDelta(d)
		if err != nil || f == nil {
			continue
		}
		out = append(out, *f)
	}
	return out, nil
}
