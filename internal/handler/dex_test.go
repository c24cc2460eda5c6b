package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pulseboard/pulseboard/internal/alert"
)

func TestCreateDexAccountValidation(t *testing.T) {
	handler := CreateDexAccount(nil)

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
			name:       "missing address",
			body:       `{"name": "main"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unsupported venue",
			body:       `{"name": "main", "venue": "dydx", "address": "0x1111111111111111111111111111111111111111"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad address",
			body:       `{"name": "main", "address": "not-an-address"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "short address",
			body:       `{"name": "main", "address": "0x1234"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/dex/accounts", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

type stubNotifier struct {
	err  error
	sent []alert.Notification
}

func (n *stubNotifier) Notify(_ context.Context, notif alert.Notification) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notif)
	return nil
}

func TestTestPushover(t *testing.T) {
	notifier := &stubNotifier{}
	handler := TestPushover(notifier)

	req := httptest.NewRequest(http.MethodPost, "/api/pushover/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(notifier.sent))
	}
}

func TestTestPushoverFailure(t *testing.T) {
	notifier := &stubNotifier{err: errors.New("credentials not configured")}
	handler := TestPushover(notifier)

	req := httptest.NewRequest(http.MethodPost, "/api/pushover/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}
