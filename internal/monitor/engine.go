// Package monitor implements the refresh loop: periodic recomputation of all
// enabled monitors in dependency order, value persistence, and hand-off of
// fresh values to the alert engine.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pulseboard/pulseboard/internal/formula"
	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/store"
)

const (
	defaultInterval  = 30 * time.Second
	cleanupEvery     = 1 * time.Hour
	sampleRetention  = 90 * 24 * time.Hour
	fundingRetention = 30 * 24 * time.Hour
)

// Store is the slice of the persistence layer the engine needs.
type Store interface {
	ListMonitors(ctx context.Context) ([]store.Monitor, error)
	LatestWebhookValues(ctx context.Context) (map[string]float64, error)
	SetMonitorValue(ctx context.Context, id int64, value float64, at time.Time) error
	CleanupOldWebhookEvents(ctx context.Context, maxAge time.Duration) (int64, error)
	CleanupOldSamples(ctx context.Context, maxAge time.Duration) (int64, error)
	CleanupOldFundingRates(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Checker receives each successfully computed value. Implemented by the
// alert engine.
type Checker interface {
	Check(ctx context.Context, m store.Monitor, value float64)
}

type Engine struct {
	store     Store
	alerts    Checker
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	kick      chan struct{}

	mu        sync.Mutex
	exprCache map[string]*formula.Expr
	lastCycle string
	lastIDs   map[int64]struct{}
}

func NewEngine(s Store, alerts Checker, logger *slog.Logger, interval, webhookRetention time.Duration) *Engine {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Engine{
		store:     s,
		alerts:    alerts,
		logger:    logger.With("component", "engine"),
		interval:  interval,
		retention: webhookRetention,
		kick:      make(chan struct{}, 1),
		exprCache: make(map[string]*formula.Expr),
	}
}

// Kick requests an immediate refresh outside the regular cadence. Used by the
// API after a monitor is created or edited. Non-blocking.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled, recomputing all monitors each interval.
func (e *Engine) Run(ctx context.Context) {
	e.Refresh(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	cleanup := time.NewTicker(cleanupEvery)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Refresh(ctx)
		case <-e.kick:
			e.Refresh(ctx)
		case <-cleanup.C:
			e.runCleanup(ctx)
		}
	}
}

// Refresh recomputes every enabled monitor once, in dependency order.
// Monitors whose formula references a value that does not exist yet keep
// their previous value; monitors participating in a reference cycle are
// skipped for the whole pass.
func (e *Engine) Refresh(ctx context.Context) {
	start := time.Now()

	// The full set goes into the lookup map so disabled monitors still
	// resolve from their stored value; only enabled ones are evaluated.
	monitors, err := e.store.ListMonitors(ctx)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		e.logger.Error("list monitors failed", "error", err)
		return
	}

	webhookValues, err := e.store.LatestWebhookValues(ctx)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		e.logger.Error("load webhook values failed", "error", err)
		return
	}

	exprs := make(map[int64]*formula.Expr, len(monitors))
	byID := make(map[int64]store.Monitor, len(monitors))
	active := make(map[string]struct{}, len(monitors))
	for _, m := range monitors {
		byID[m.ID] = m
		active[m.Formula] = struct{}{}
		if !m.Enabled {
			continue
		}
		expr, err := e.parse(m.Formula)
		if err != nil {
			// Formulas are validated at save time; log and leave the value alone.
			metrics.MonitorsSkippedTotal.WithLabelValues("eval_error").Inc()
			e.logger.Error("stored formula unparseable", "monitor_id", m.ID, "error", err)
			continue
		}
		exprs[m.ID] = expr
	}
	e.pruneCache(active)

	order, cyclic := topoOrder(exprs)
	e.reportCycles(cyclic, byID)

	computed := make(map[int64]float64, len(order))
	resolver := formula.ResolverFunc(func(ref formula.Ref) (float64, bool) {
		switch ref.Kind {
		case formula.RefWebhook:
			v, ok := webhookValues[ref.ID]
			return v, ok
		case formula.RefMonitor:
			id, err := strconv.ParseInt(ref.ID, 10, 64)
			if err != nil {
				return 0, false
			}
			if v, ok := computed[id]; ok {
				return v, true
			}
			// Fall back to the stored value for monitors outside this pass
			// (disabled, cyclic, or not yet computed).
			if m, ok := byID[id]; ok && m.LastValue != nil {
				return *m.LastValue, true
			}
			return 0, false
		}
		return 0, false
	})

	now := time.Now().UTC()
	for _, id := range order {
		m := byID[id]
		value, err := exprs[id].Eval(resolver)
		switch {
		case errors.Is(err, formula.ErrNoValue):
			metrics.MonitorsSkippedTotal.WithLabelValues("no_value").Inc()
			e.logger.Debug("monitor has no value yet", "monitor_id", id, "detail", err)
			continue
		case err != nil:
			metrics.MonitorsSkippedTotal.WithLabelValues("eval_error").Inc()
			e.logger.Warn("formula evaluation failed", "monitor_id", id, "error", err)
			continue
		}

		computed[id] = value
		metrics.MonitorValue.WithLabelValues(strconv.FormatInt(id, 10)).Set(value)

		if err := e.store.SetMonitorValue(ctx, id, value, now); err != nil {
			e.logger.Error("persist monitor value failed", "monitor_id", id, "error", err)
			continue
		}
		if e.alerts != nil {
			e.alerts.Check(ctx, m, value)
		}
	}

	current := make(map[int64]struct{}, len(exprs))
	for id := range exprs {
		current[id] = struct{}{}
	}
	e.syncValueSeries(current)

	metrics.RefreshTotal.WithLabelValues("ok").Inc()
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	e.logger.Debug("refresh pass complete",
		"enabled", len(exprs), "computed", len(computed), "elapsed", time.Since(start).String())
}

func (e *Engine) parse(text string) (*formula.Expr, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if expr, ok := e.exprCache[text]; ok {
		return expr, nil
	}
	expr, err := formula.Parse(text)
	if err != nil {
		return nil, err
	}
	e.exprCache[text] = expr
	return expr, nil
}

// pruneCache drops cached expressions whose formula text no longer belongs
// to any monitor, so edits do not accumulate stale entries.
func (e *Engine) pruneCache(active map[string]struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for text := range e.exprCache {
		if _, ok := active[text]; !ok {
			delete(e.exprCache, text)
		}
	}
}

// syncValueSeries deletes gauge series for monitors that are no longer
// enabled, so deletions and disables do not leave stale values exported.
func (e *Engine) syncValueSeries(current map[int64]struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.lastIDs {
		if _, ok := current[id]; !ok {
			metrics.MonitorValue.DeleteLabelValues(strconv.FormatInt(id, 10))
		}
	}
	e.lastIDs = current
}

// reportCycles logs cyclic monitors once per distinct cycle set, so a
// standing misconfiguration does not flood the log every tick.
func (e *Engine) reportCycles(cyclic []int64, byID map[int64]store.Monitor) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(cyclic) == 0 {
		e.lastCycle = ""
		return
	}

	metrics.MonitorsSkippedTotal.WithLabelValues("cycle").Add(float64(len(cyclic)))

	parts := make([]string, len(cyclic))
	for i, id := range cyclic {
		parts[i] = fmt.Sprintf("%d (%s)", id, byID[id].Name)
	}
	fingerprint := strings.Join(parts, ",")
	if fingerprint == e.lastCycle {
		return
	}
	e.lastCycle = fingerprint
	e.logger.Warn("monitors reference each other in a cycle, skipping", "monitors", fingerprint)
}

// topoOrder Kahn-sorts monitors by their monitor-reference edges. The second
// return lists monitors that are part of (or downstream of) a cycle, sorted
// by id.
func topoOrder(exprs map[int64]*formula.Expr) (order []int64, cyclic []int64) {
	deps := make(map[int64][]int64, len(exprs))       // id -> monitors it reads
	dependents := make(map[int64][]int64, len(exprs)) // id -> monitors reading it
	indegree := make(map[int64]int, len(exprs))

	for id, expr := range exprs {
		indegree[id] = 0
		for _, refID := range expr.MonitorRefs() {
			dep, err := strconv.ParseInt(refID, 10, 64)
			if err != nil {
				continue
			}
			if _, ok := exprs[dep]; !ok || dep == id {
				// Unknown or self reference: self handled as a 1-cycle below,
				// unknown resolves against stored values at eval time.
				if dep == id {
					deps[id] = append(deps[id], dep)
				}
				continue
			}
			deps[id] = append(deps[id], dep)
			dependents[dep] = append(dependents[dep], id)
			indegree[id]++
		}
	}

	var ready []int64
	for id := range exprs {
		if indegree[id] == 0 && !hasSelfRef(deps[id], id) {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 && !hasSelfRef(deps[next], next) {
				ready = append(ready, next)
			}
		}
	}

	if len(order) < len(exprs) {
		seen := make(map[int64]bool, len(order))
		for _, id := range order {
			seen[id] = true
		}
		for id := range exprs {
			if !seen[id] {
				cyclic = append(cyclic, id)
			}
		}
		sort.Slice(cyclic, func(i, j int) bool { return cyclic[i] < cyclic[j] })
	}
	return order, cyclic
}

func hasSelfRef(deps []int64, id int64) bool {
	for _, d := range deps {
		if d == id {
			return true
		}
	}
	return false
}

func (e *Engine) runCleanup(ctx context.Context) {
	if n, err := e.store.CleanupOldWebhookEvents(ctx, e.retention); err != nil {
		e.logger.Error("webhook event cleanup failed", "error", err)
	} else if n > 0 {
		e.logger.Info("cleaned up old webhook events", "deleted", n)
	}
	if n, err := e.store.CleanupOldSamples(ctx, sampleRetention); err != nil {
		e.logger.Error("sample cleanup failed", "error", err)
	} else if n > 0 {
		e.logger.Info("cleaned up old monitor samples", "deleted", n)
	}
	if n, err := e.store.CleanupOldFundingRates(ctx, fundingRetention); err != nil {
		e.logger.Error("funding rate cleanup failed", "error", err)
	} else if n > 0 {
		e.logger.Info("cleaned up old funding rates", "deleted", n)
	}
}
