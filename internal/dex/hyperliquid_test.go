package dex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWSMessageFundings(t *testing.T) {
	frame := `{
		"channel": "userFundings",
		"data": {
			"user": "0xabc",
			"isSnapshot": false,
			"fundings": [
				{
					"time": 1700000000000,
					"delta": {
						"type": "funding",
						"coin": "ETH",
						"usdc": "-1.25",
						"szi": "10.5",
						"fundingRate": "0.0000125"
					}
				}
			]
		}
	}`

	fundings, err := parseWSMessage([]byte(frame))
	require.NoError(t, err)
	require.Len(t, fundings, 1)

	f := fundings[0]
	assert.Equal(t, "ETH", f.Symbol)
	assert.True(t, f.Rate.Equal(decimal.RequireFromString("0.0000125")), "rate = %s", f.Rate)
	assert.True(t, f.PositionSize.Equal(decimal.RequireFromString("10.5")))
	assert.Equal(t, time.UnixMilli(1700000000000), f.Time)

	// 0.0000125 * 24 * 365 = 0.1095 → 10.95% annualized
	assert.True(t, f.Annualized.Equal(decimal.RequireFromString("0.1095")), "annualized = %s", f.Annualized)
}

func TestParseWSMessageIgnoresOtherChannels(t *testing.T) {
	fundings, err := parseWSMessage([]byte(`{"channel":"subscriptionResponse","data":{}}`))
	require.NoError(t, err)
	assert.Empty(t, fundings)
}

func TestParseWSMessageBadJSON(t *testing.T) {
	_, err := parseWSMessage([]byte(`{not json`))
	assert.Error(t, err)
}

func TestParseFundingDeltaSkipsNonFunding(t *testing.T) {
	f, err := parseFundingDelta(hlFundingDelta{})
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestFetchRecentFundings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"time": 1700000000000, "delta": {"type": "funding", "coin": "BTC", "usdc": "0.5", "szi": "-2", "fundingRate": "0.00001"}},
			{"time": 1700000001000, "delta": {"type": "deposit", "coin": "", "usdc": "100", "szi": "0", "fundingRate": ""}}
		]`))
	}))
	defer srv.Close()

	fundings, err := fetchRecentFundingsFrom(context.Background(), srv.Client(), srv.URL, "0xabc")
	require.NoError(t, err)
	require.Len(t, fundings, 1)
	assert.Equal(t, "BTC", fundings[0].Symbol)
	assert.True(t, fundings[0].PositionSize.Equal(decimal.NewFromInt(-2)))
}
