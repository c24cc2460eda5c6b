package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pulseboard/pulseboard/internal/alert"
	"github.com/pulseboard/pulseboard/internal/store"
)

// FiringStore reports whether a rule's condition currently matches.
// Implemented by the cooldown tracker.
type FiringStore interface {
	IsFiring(ctx context.Context, ruleID int64) bool
}

// alertRuleStatus is a stored rule plus its live firing state.
type alertRuleStatus struct {
	store.AlertRule
	Firing bool `json:"firing"`
}

func withFiring(ctx context.Context, state FiringStore, rules []store.AlertRule) []alertRuleStatus {
	out := make([]alertRuleStatus, 0, len(rules))
	for _, r := range rules {
		out = append(out, alertRuleStatus{AlertRule: r, Firing: state.IsFiring(ctx, r.ID)})
	}
	return out
}

func ListAlertRules(s *store.Store, state FiringStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			rules []store.AlertRule
			err   error
		)
		if mid := r.URL.Query().Get("monitor_id"); mid != "" {
			id, perr := strconv.ParseInt(mid, 10, 64)
			if perr != nil {
				http.Error(w, `{"error":"invalid monitor_id"}`, http.StatusBadRequest)
				return
			}
			rules, err = s.ListAlertRulesByMonitor(r.Context(), id)
		} else {
			rules, err = s.ListAlertRules(r.Context())
		}
		if err != nil {
			http.Error(w, `{"error":"failed to list alert rules"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(withFiring(r.Context(), state, rules))
	}
}

func ListAlertRulesByMonitor(s *store.Store, state FiringStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, `{"error":"invalid monitor id"}`, http.StatusBadRequest)
			return
		}

		rules, err := s.ListAlertRulesByMonitor(r.Context(), id)
		if err != nil {
			http.Error(w, `{"error":"failed to list alert rules"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(withFiring(r.Context(), state, rules))
	}
}

type alertRuleRequest struct {
	MonitorID       int64  `json:"monitor_id"`
	Name            string `json:"name"`
	Condition       string `json:"condition"`
	Level           string `json:"level"`
	Enabled         *bool  `json:"enabled"`
	CooldownSeconds int    `json:"cooldown_seconds"`
}

func (req *alertRuleRequest) validate() string {
	if req.Name == "" {
		return "name required"
	}
	if _, err := alert.ParseCondition(req.Condition); err != nil {
		return fmt.Sprintf("invalid condition: %v", err)
	}
	if _, err := alert.ParseLevel(req.Level); err != nil {
		return fmt.Sprintf("invalid level: %v", err)
	}
	if req.CooldownSeconds < 0 {
		return "cooldown_seconds must not be negative"
	}
	return ""
}

func CreateAlertRule(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req alertRuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.MonitorID == 0 {
			http.Error(w, `{"error":"monitor_id required"}`, http.StatusBadRequest)
			return
		}
		if msg := req.validate(); msg != "" {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, msg), http.StatusBadRequest)
			return
		}

		if _, err := s.GetMonitor(r.Context(), req.MonitorID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, `{"error":"monitor not found"}`, http.StatusBadRequest)
				return
			}
			http.Error(w, `{"error":"failed to load monitor"}`, http.StatusInternalServerError)
			return
		}

		enabled := true
		if req.Enabled != nil {
			enabled = *req.Enabled
		}

		rule, err := s.CreateAlertRule(r.Context(), req.MonitorID, req.Name, req.Condition, req.Level, enabled, req.CooldownSeconds)
		if err != nil {
			http.Error(w, `{"error":"failed to create alert rule"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(rule)
	}
}

func UpdateAlertRule(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, `{"error":"invalid alert rule id"}`, http.StatusBadRequest)
			return
		}

		var req alertRuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if msg := req.validate(); msg != "" {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, msg), http.StatusBadRequest)
			return
		}

		enabled := true
		if req.Enabled != nil {
			enabled = *req.Enabled
		}

		rule, err := s.UpdateAlertRule(r.Context(), id, req.Name, req.Condition, req.Level, enabled, req.CooldownSeconds)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"alert rule not found"}`, http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, `{"error":"failed to update alert rule"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rule)
	}
}

func DeleteAlertRule(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, `{"error":"invalid alert rule id"}`, http.StatusBadRequest)
			return
		}

		if err := s.DeleteAlertRule(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, `{"error":"alert rule not found"}`, http.StatusNotFound)
				return
			}
			http.Error(w, `{"error":"failed to delete alert rule"}`, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// ListAlertEvents returns the delivered-notification log, newest first.
func ListAlertEvents(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if l := r.URL.Query().Get("limit"); l != "" {
			v, err := strconv.Atoi(l)
			if err != nil || v <= 0 {
				http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
				return
			}
			if v > 1000 {
				v = 1000
			}
			limit = v
		}

		events, err := s.ListAlertEvents(r.Context(), limit)
		if err != nil {
			http.Error(w, `{"error":"failed to list alert events"}`, http.StatusInternalServerError)
			return
		}
		if events == nil {
			events = []store.AlertEvent{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(events)
	}
}
