package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pulseboard/pulseboard/internal/store"
)

func ListDexAccounts(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := s.ListDexAccounts(r.Context())
		if err != nil {
			http.Error(w, `{"error":"failed to list accounts"}`, http.StatusInternalServerError)
			return
		}
		if accounts == nil {
			accounts = []store.DexAccount{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(accounts)
	}
}

func CreateDexAccount(s *store.Store) http.HandlerFunc {
	type request struct {
		Name    string `json:"name"`
		Venue   string `json:"venue"`
		Address string `json:"address"`
		Enabled *bool  `json:"enabled"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		req.Venue = strings.ToLower(req.Venue)
		if req.Venue == "" {
			req.Venue = "hyperliquid"
		}
		if req.Venue != "hyperliquid" {
			http.Error(w, `{"error":"unsupported venue"}`, http.StatusBadRequest)
			return
		}
		if req.Name == "" || req.Address == "" {
			http.Error(w, `{"error":"name and address required"}`, http.StatusBadRequest)
			return
		}
		if !strings.HasPrefix(req.Address, "0x") || len(req.Address) != 42 {
			http.Error(w, `{"error":"address must be a 0x-prefixed 40-hex-char address"}`, http.StatusBadRequest)
			return
		}

		enabled := true
		if req.Enabled != nil {
			enabled = *req.Enabled
		}

		account, err := s.CreateDexAccount(r.Context(), req.Name, req.Venue, strings.ToLower(req.Address), enabled)
		if err != nil {
			http.Error(w, `{"error":"failed to create account"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(account)
	}
}

func DeleteDexAccount(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, `{"error":"invalid account id"}`, http.StatusBadRequest)
			return
		}

		if err := s.DeleteDexAccount(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
				return
			}
			http.Error(w, `{"error":"failed to delete account"}`, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// FundingRates returns the latest observed funding rate per account/symbol.
func FundingRates(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rates, err := s.LatestFundingRates(r.Context())
		if err != nil {
			http.Error(w, `{"error":"failed to list funding rates"}`, http.StatusInternalServerError)
			return
		}
		if rates == nil {
			rates = []store.FundingRate{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rates)
	}
}
