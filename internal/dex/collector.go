// Package dex tracks perpetual funding rates per configured exchange account.
// One websocket stream per account delivers funding payments; a REST backfill
// seeds recent history on startup so the dashboard is never empty.
package dex

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/store"
)

const (
	reconnectBase  = 2 * time.Second
	reconnectMax   = 60 * time.Second
	flushInterval  = 5 * time.Second
	reloadInterval = 5 * time.Minute
)

type Collector struct {
	store  *store.Store
	logger *slog.Logger
	client *http.Client

	mu      sync.Mutex
	buffer  []store.FundingRate
	streams map[int64]context.CancelFunc
}

func New(db *store.Store, logger *slog.Logger) *Collector {
	return &Collector{
		store:   db,
		logger:  logger.With("component", "dex"),
		client:  &http.Client{Timeout: 15 * time.Second},
		buffer:  make([]store.FundingRate, 0, 64),
		streams: make(map[int64]context.CancelFunc),
	}
}

// Run starts the collector. Blocks until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	go c.flushLoop(ctx)

	c.reload(ctx)

	ticker := time.NewTicker(reloadInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.flush(context.Background())
			return
		case <-ticker.C:
			c.reload(ctx)
		}
	}
}

// reload reconciles running streams with the enabled account set.
func (c *Collector) reload(ctx context.Context) {
	accounts, err := c.store.ListEnabledDexAccounts(ctx)
	if err != nil {
		c.logger.Error("list dex accounts failed", "error", err)
		return
	}

	want := make(map[int64]store.DexAccount, len(accounts))
	for _, a := range accounts {
		if a.Venue == "hyperliquid" {
			want[a.ID] = a
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for id, cancel := range c.streams {
		if _, ok := want[id]; !ok {
			cancel()
			delete(c.streams, id)
			c.logger.Info("funding stream stopped", "account_id", id)
		}
	}

	for id, account := range want {
		if _, ok := c.streams[id]; ok {
			continue
		}
		streamCtx, cancel := context.WithCancel(ctx)
		c.streams[id] = cancel
		go c.runStream(streamCtx, account)
	}
}

// runStream backfills an account's recent fundings, then holds a websocket
// subscription open with exponential reconnect backoff.
func (c *Collector) runStream(ctx context.Context, account store.DexAccount) {
	c.backfill(ctx, account)

	backoff := reconnectBase
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := c.connectAndRead(ctx, account)
		if ctx.Err() != nil {
			return
		}

		metrics.FundingStreamReconnects.WithLabelValues(account.Venue).Inc()
		c.logger.Warn("funding ws disconnected, reconnecting...",
			"account", account.Name, "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = time.Duration(math.Min(float64(backoff*2), float64(reconnectMax)))
	}
}

func (c *Collector) connectAndRead(ctx context.Context, account store.DexAccount) error {
	conn, _, err := websocket.Dial(ctx, hyperliquidWSURL, nil)
	if err != nil {
		return err
	}
	defer conn.CloseNow() //nolint:errcheck

	if err := conn.Write(ctx, websocket.MessageText, subscribeMsg(account.Address)); err != nil {
		return err
	}
	c.logger.Info("funding ws connected", "account", account.Name)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		fundings, err := parseWSMessage(data)
		if err != nil {
			c.logger.Warn("bad ws frame", "account", account.Name, "error", err)
			continue
		}
		c.bufferFundings(account.ID, fundings)
	}
}

func (c *Collector) backfill(ctx context.Context, account store.DexAccount) {
	fundings, err := fetchRecentFundingsFrom(ctx, c.client, hyperliquidInfoURL, account.Address)
	if err != nil {
		metrics.FundingFetchTotal.WithLabelValues(account.Venue, "error").Inc()
		c.logger.Warn("funding backfill failed", "account", account.Name, "error", err)
		return
	}
	metrics.FundingFetchTotal.WithLabelValues(account.Venue, "ok").Inc()
	c.bufferFundings(account.ID, fundings)
	c.logger.Info("backfilled funding history", "account", account.Name, "count", len(fundings))
}

func (c *Collector) bufferFundings(accountID int64, fundings []Funding) {
	if len(fundings) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range fundings {
		c.buffer = append(c.buffer, store.FundingRate{
			AccountID:    accountID,
			Symbol:       f.Symbol,
			Rate:         f.Rate,
			Annualized:   f.Annualized,
			PositionSize: f.PositionSize,
			FetchedAt:    f.Time,
		})
	}
}

func (c *Collector) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.flush(ctx)
		}
	}
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	batch := c.buffer
	c.buffer = make([]store.FundingRate, 0, 64)
	c.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := c.store.InsertFundingRates(ctx, batch); err != nil {
		c.logger.Error("funding flush failed", "count", len(batch), "error", err)
		return
	}
	c.logger.Debug("flushed funding rates", "count", len(batch))
}
