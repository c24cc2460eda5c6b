package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pulseboard/pulseboard/internal/alert"
	"github.com/pulseboard/pulseboard/internal/store"
)

// Notifier sends a push notification. Implemented by the pushover client.
type Notifier interface {
	Notify(ctx context.Context, n alert.Notification) error
}

// GetPushoverConfig returns the stored credentials with the API token
// redacted to a set/unset flag.
func GetPushoverConfig(s *store.Store) http.HandlerFunc {
	type response struct {
		UserKey     string `json:"user_key"`
		APITokenSet bool   `json:"api_token_set"`
		Enabled     bool   `json:"enabled"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := s.GetPushoverConfig(r.Context())
		if err != nil {
			http.Error(w, `{"error":"failed to load config"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response{
			UserKey:     cfg.UserKey,
			APITokenSet: cfg.APIToken != "",
			Enabled:     cfg.Enabled,
		})
	}
}

// PutPushoverConfig replaces the stored credentials. An empty api_token
// keeps the existing one so the UI never has to echo the secret back.
func PutPushoverConfig(s *store.Store) http.HandlerFunc {
	type request struct {
		UserKey  string `json:"user_key"`
		APIToken string `json:"api_token"`
		Enabled  bool   `json:"enabled"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Enabled && req.UserKey == "" {
			http.Error(w, `{"error":"user_key required when enabled"}`, http.StatusBadRequest)
			return
		}

		if req.APIToken == "" {
			existing, err := s.GetPushoverConfig(r.Context())
			if err != nil {
				http.Error(w, `{"error":"failed to load config"}`, http.StatusInternalServerError)
				return
			}
			req.APIToken = existing.APIToken
		}

		cfg, err := s.SetPushoverConfig(r.Context(), req.UserKey, req.APIToken, req.Enabled)
		if err != nil {
			http.Error(w, `{"error":"failed to save config"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user_key":      cfg.UserKey,
			"api_token_set": cfg.APIToken != "",
			"enabled":       cfg.Enabled,
		})
	}
}

// TestPushover sends a low-priority test notification with the stored
// credentials so the user can verify them end to end.
func TestPushover(notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := notifier.Notify(r.Context(), alert.Notification{
			Title:    "Pulseboard test",
			Message:  "Push notifications are working.",
			Priority: -1,
		})
		if err != nil {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "sent"})
	}
}
