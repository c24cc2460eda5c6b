package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulseboard",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pulseboard",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pulseboard",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})
)

// ── Webhook ingest metrics ─────────────────────────────────────────────

var (
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulseboard",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Inbound webhook events by outcome.",
	}, []string{"outcome"})

	WebhookRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulseboard",
		Subsystem: "webhook",
		Name:      "rate_limited_total",
		Help:      "Webhook requests rejected by the rate limiter.",
	})
)

// ── Refresh loop metrics ───────────────────────────────────────────────

var (
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulseboard",
		Subsystem: "refresh",
		Name:      "total",
		Help:      "Refresh ticks by status.",
	}, []string{"status"})

	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pulseboard",
		Subsystem: "refresh",
		Name:      "duration_seconds",
		Help:      "Duration of one full monitor recomputation pass.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	MonitorValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pulseboard",
		Subsystem: "monitor",
		Name:      "value",
		Help:      "Latest computed value per monitor id.",
	}, []string{"monitor_id"})

	MonitorsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulseboard",
		Subsystem: "monitor",
		Name:      "skipped_total",
		Help:      "Monitor evaluations skipped, by reason (cycle, no_value, eval_error).",
	}, []string{"reason"})
)

// ── Alert delivery metrics ─────────────────────────────────────────────

var (
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulseboard",
		Subsystem: "alerts",
		Name:      "sent_total",
		Help:      "Total alerts successfully delivered.",
	}, []string{"level"})

	AlertsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulseboard",
		Subsystem: "alerts",
		Name:      "failed_total",
		Help:      "Total alert delivery failures.",
	}, []string{"level"})

	AlertsSuppressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulseboard",
		Subsystem: "alerts",
		Name:      "suppressed_total",
		Help:      "Total alerts suppressed by the cooldown window.",
	}, []string{"level"})
)

// ── Funding collector metrics ──────────────────────────────────────────

var (
	FundingFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulseboard",
		Subsystem: "funding",
		Name:      "fetch_total",
		Help:      "Funding rate fetch attempts per venue.",
	}, []string{"venue", "status"})

	FundingStreamReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulseboard",
		Subsystem: "funding",
		Name:      "stream_reconnects_total",
		Help:      "Websocket reconnects per venue.",
	}, []string{"venue"})
)
