package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pulseboard/pulseboard/internal/chart"
	"github.com/pulseboard/pulseboard/internal/formula"
	"github.com/pulseboard/pulseboard/internal/store"
)

func ListMonitors(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		monitors, err := s.ListMonitors(r.Context())
		if err != nil {
			http.Error(w, `{"error":"failed to list monitors"}`, http.StatusInternalServerError)
			return
		}
		if monitors == nil {
			monitors = []store.Monitor{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(monitors)
	}
}

func GetMonitor(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, `{"error":"invalid monitor id"}`, http.StatusBadRequest)
			return
		}

		m, err := s.GetMonitor(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"monitor not found"}`, http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, `{"error":"failed to load monitor"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m)
	}
}

type monitorRequest struct {
	Name          string `json:"name"`
	Formula       string `json:"formula"`
	Unit          string `json:"unit"`
	DecimalPlaces int    `json:"decimal_places"`
	Color         string `json:"color"`
	Enabled       *bool  `json:"enabled"`
}

func (req *monitorRequest) validate() string {
	if req.Name == "" {
		return "name required"
	}
	if req.Formula == "" {
		return "formula required"
	}
	if _, err := formula.Parse(req.Formula); err != nil {
		return fmt.Sprintf("invalid formula: %v", err)
	}
	if req.DecimalPlaces < 0 || req.DecimalPlaces > 8 {
		return "decimal_places must be between 0 and 8"
	}
	return ""
}

func CreateMonitor(s *store.Store, engine Kicker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req monitorRequest
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

		m, err := s.CreateMonitor(r.Context(), req.Name, req.Formula, req.Unit, req.DecimalPlaces, req.Color, enabled)
		if err != nil {
			http.Error(w, `{"error":"failed to create monitor"}`, http.StatusInternalServerError)
			return
		}

		if engine != nil {
			engine.Kick()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(m)
	}
}

func UpdateMonitor(s *store.Store, engine Kicker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, `{"error":"invalid monitor id"}`, http.StatusBadRequest)
			return
		}

		var req monitorRequest
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

		m, err := s.UpdateMonitor(r.Context(), id, req.Name, req.Formula, req.Unit, req.DecimalPlaces, req.Color, enabled)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"monitor not found"}`, http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, `{"error":"failed to update monitor"}`, http.StatusInternalServerError)
			return
		}

		if engine != nil {
			engine.Kick()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m)
	}
}

func DeleteMonitor(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, `{"error":"invalid monitor id"}`, http.StatusBadRequest)
			return
		}

		if err := s.DeleteMonitor(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, `{"error":"monitor not found"}`, http.StatusNotFound)
				return
			}
			http.Error(w, `{"error":"failed to delete monitor"}`, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// MonitorHistory returns the sampled value series for a monitor, newest
// last. The window defaults to 24 hours and is capped at 90 days.
func MonitorHistory(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, `{"error":"invalid monitor id"}`, http.StatusBadRequest)
			return
		}

		if _, err := s.GetMonitor(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, `{"error":"monitor not found"}`, http.StatusNotFound)
				return
			}
			http.Error(w, `{"error":"failed to load monitor"}`, http.StatusInternalServerError)
			return
		}

		samples, err := s.ListSamples(r.Context(), id, time.Now().Add(-historyWindow(r)))
		if err != nil {
			http.Error(w, `{"error":"failed to load history"}`, http.StatusInternalServerError)
			return
		}
		if samples == nil {
			samples = []store.Sample{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(samples)
	}
}

// MonitorChart renders the history window as a PNG line chart.
func MonitorChart(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, `{"error":"invalid monitor id"}`, http.StatusBadRequest)
			return
		}

		m, err := s.GetMonitor(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"monitor not found"}`, http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, `{"error":"failed to load monitor"}`, http.StatusInternalServerError)
			return
		}

		samples, err := s.ListSamples(r.Context(), id, time.Now().Add(-historyWindow(r)))
		if err != nil {
			http.Error(w, `{"error":"failed to load history"}`, http.StatusInternalServerError)
			return
		}
		if len(samples) < 2 {
			http.Error(w, `{"error":"not enough data yet"}`, http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		if err := chart.RenderHistory(w, m, samples); err != nil {
			// Headers are already out; nothing left to do but log-free bail.
			return
		}
	}
}

func historyWindow(r *http.Request) time.Duration {
	hours := 24
	if h := r.URL.Query().Get("hours"); h != "" {
		if v, err := strconv.Atoi(h); err == nil && v > 0 {
			hours = v
		}
	}
	if hours > 24*90 {
		hours = 24 * 90
	}
	return time.Duration(hours) * time.Hour
}
