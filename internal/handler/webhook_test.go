package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pulseboard/pulseboard/internal/store"
)

type fakeEventLister struct {
	events      []store.WebhookEvent
	gotSourceID string
}

func (f *fakeEventLister) ListWebhookEvents(_ context.Context, sourceID string, _ time.Time) ([]store.WebhookEvent, error) {
	f.gotSourceID = sourceID
	return f.events, nil
}

func TestListWebhookEventsUnfiltered(t *testing.T) {
	// No source_id means list across all sources, not a client error.
	lister := &fakeEventLister{events: []store.WebhookEvent{
		{ID: 1, SourceID: "btc-price"},
		{ID: 2, SourceID: "gas-price"},
	}}
	handler := ListWebhookEvents(lister)

	req := httptest.NewRequest(http.MethodGet, "/api/webhook-events", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if lister.gotSourceID != "" {
		t.Errorf("source id = %q, want empty", lister.gotSourceID)
	}
	var got []store.WebhookEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("events = %d, want 2", len(got))
	}
}

func TestListWebhookEventsBySource(t *testing.T) {
	lister := &fakeEventLister{}
	handler := ListWebhookEvents(lister)

	req := httptest.NewRequest(http.MethodGet, "/api/webhook-events?source_id=btc-price", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if lister.gotSourceID != "btc-price" {
		t.Errorf("source id = %q, want btc-price", lister.gotSourceID)
	}
	// Empty result still serializes as [].
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestIngestWebhookValidation(t *testing.T) {
	// Validation failures return before the store is touched.
	handler := IngestWebhook(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "invalid JSON",
			body:       `{invalid`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing id",
			body:       `{"text": "$100"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhook/distill", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestExtractNumber(t *testing.T) {
	tests := []struct {
		text string
		want float64
		ok   bool
	}{
		{"1234.56", 1234.56, true},
		{"$1,234.56", 1234.56, true},
		{"$1,234.56 USD", 1234.56, true},
		{"Price: 42", 42, true},
		{"-12.5%", -12.5, true},
		{"up 3.14 points", 3.14, true},
		{"ends with dot 7.", 7, true},
		{"no digits here", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := extractNumber(tt.text)
		if ok != tt.ok {
			t.Errorf("extractNumber(%q) ok = %v, want %v", tt.text, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("extractNumber(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
