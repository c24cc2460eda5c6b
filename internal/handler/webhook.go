package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/store"
)

const maxWebhookBody = 64 << 10

// Kicker requests an immediate refresh pass. Implemented by the monitor engine.
type Kicker interface {
	Kick()
}

// IngestWebhook accepts data-change notifications from the external
// monitoring service. The payload is stored opaquely; a numeric value is
// extracted from the "value" field or parsed out of the "text" field.
// Events are append-only.
func IngestWebhook(s *store.Store, engine Kicker, logger *slog.Logger) http.HandlerFunc {
	type payload struct {
		ID       string   `json:"id"`
		SourceID string   `json:"source_id"`
		Name     string   `json:"name"`
		Text     string   `json:"text"`
		Value    *float64 `json:"value"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, `{"error":"payload too large"}`, http.StatusRequestEntityTooLarge)
			return
		}

		var p payload
		if err := json.Unmarshal(body, &p); err != nil {
			metrics.WebhookEventsTotal.WithLabelValues("bad_payload").Inc()
			http.Error(w, `{"error":"invalid JSON payload"}`, http.StatusBadRequest)
			return
		}

		sourceID := p.SourceID
		if sourceID == "" {
			sourceID = p.ID
		}
		if sourceID == "" {
			metrics.WebhookEventsTotal.WithLabelValues("bad_payload").Inc()
			http.Error(w, `{"error":"id or source_id required"}`, http.StatusBadRequest)
			return
		}

		value := p.Value
		if value == nil {
			if v, ok := extractNumber(p.Text); ok {
				value = &v
			}
		}

		if _, err := s.InsertWebhookEvent(r.Context(), sourceID, value, body); err != nil {
			metrics.WebhookEventsTotal.WithLabelValues("store_error").Inc()
			logger.Error("store webhook event failed", "source_id", sourceID, "error", err)
			http.Error(w, `{"error":"failed to store event"}`, http.StatusInternalServerError)
			return
		}

		if value != nil {
			metrics.WebhookEventsTotal.WithLabelValues("ok").Inc()
		} else {
			// Stored, but no numeric value could be extracted.
			metrics.WebhookEventsTotal.WithLabelValues("no_value").Inc()
			logger.Warn("webhook event without numeric value", "source_id", sourceID, "text", p.Text)
		}

		if engine != nil {
			engine.Kick()
		}

		w.WriteHeader(http.StatusAccepted)
	}
}

// WebhookEventLister reads back stored events. Satisfied by *store.Store.
type WebhookEventLister interface {
	ListWebhookEvents(ctx context.Context, sourceID string, since time.Time) ([]store.WebhookEvent, error)
}

// ListWebhookEvents exposes the raw event log so formulas can be debugged
// against what actually arrived. source_id narrows to one source; without it
// all sources are returned.
func ListWebhookEvents(s WebhookEventLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sourceID := r.URL.Query().Get("source_id")

		hours := 24
		if h := r.URL.Query().Get("hours"); h != "" {
			if v, err := strconv.Atoi(h); err == nil && v > 0 {
				hours = v
			}
		}

		events, err := s.ListWebhookEvents(r.Context(), sourceID, time.Now().Add(-time.Duration(hours)*time.Hour))
		if err != nil {
			http.Error(w, `{"error":"failed to list webhook events"}`, http.StatusInternalServerError)
			return
		}
		if events == nil {
			events = []store.WebhookEvent{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(events)
	}
}

// extractNumber pulls the first number out of free-form monitored text.
// Currency symbols, thousands separators, and surrounding prose are ignored:
// "$1,234.56 USD" yields 1234.56.
func extractNumber(text string) (float64, bool) {
	start := -1
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c >= '0' && c <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, false
	}

	end := start
	for end < len(text) {
		c := text[end]
		if (c >= '0' && c <= '9') || c == '.' || c == ',' {
			end++
			continue
		}
		break
	}

	candidate := strings.ReplaceAll(text[start:end], ",", "")
	candidate = strings.TrimRight(candidate, ".")
	if start > 0 && text[start-1] == '-' {
		candidate = "-" + candidate
	}

	v, err := strconv.ParseFloat(candidate, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
