package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"merit/internal/models"
	"merit/internal/store"

	"github.com/go-chi/chi/v5"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type enablePoolRequest struct {
	ContractPercent json.Number `json:"contractPercent"`
}

type investRequest struct {
	Amount json.Number `json:"amount"`
}

func (h *Handler) EnablePool(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	slug := chi.URLParam(r, "slug")
	if !validSlug(w, slug) {
		return
	}
	var req enablePoolRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	percent, err := parsePoints(req.ContractPercent, true)
	if err != nil || percent > 100 {
		respondError(w, http.StatusBadRequest, "invalid_contract_percent")
		return
	}
	pool, err := h.investments.EnablePool(r.Context(), userID, slug, percent)
	if err != nil {
		h.respondServiceError(w, err, "unable to enable pool")
		return
	}
	respondJSON(w, http.StatusCreated, pool)
}

func (h *Handler) Invest(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	slug := chi.URLParam(r, "slug")
	if !validSlug(w, slug) {
		return
	}
	var req investRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	points, err := parsePoints(req.Amount, false)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	pool, err := h.investments.Invest(r.Context(), userID, slug, points)
	if err != nil {
		h.respondServiceError(w, err, "investment_failed")
		return
	}
	respondJSON(w, http.StatusCreated, pool)
}

func (h *Handler) GetInvestments(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if !validSlug(w, slug) {
		return
	}
	breakdown, err := h.investments.Breakdown(r.Context(), slug)
	if err != nil {
		h.respondServiceError(w, err, "unable to load investments")
		return
	}
	if breakdown.Investors == nil {
		breakdown.Investors = []models.InvestorShare{}
	}
	respondJSON(w, http.StatusOK, breakdown)
}

func (h *Handler) ListEarnings(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	earnings, err := h.investments.Earnings(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err, "unable to load earnings")
		return
	}
	if earnings == nil {
		earnings = []models.EarningsEntry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"earnings": earnings})
}

// PoolHistory lists the audit trail of a publication's pool: investments,
// distributions and withdrawals.
func (h *Handler) PoolHistory(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if !validSlug(w, slug) {
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}
	entries, err := h.audit.ListForEntity(r.Context(), "publication", slug, limit)
	if err != nil {
		h.respondServiceError(w, err, "unable to load pool history")
		return
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) ClosePool(w http.ResponseWriter, r *http.Request) {
	h.drainPool(w, r, h.investments.ClosePool)
}

func (h *Handler) ReturnPool(w http.ResponseWriter, r *http.Request) {
	h.drainPool(w, r, h.investments.ReturnPool)
}

func (h *Handler) drainPool(w http.ResponseWriter, r *http.Request, drain func(ctx context.Context, userID, slug string) (models.Distribution, error)) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	slug := chi.URLParam(r, "slug")
	if !validSlug(w, slug) {
		return
	}
	d, err := drain(r.Context(), userID, slug)
	if err != nil {
		if d.ID != "" {
			respondJSON(w, http.StatusAccepted, d)
			return
		}
		h.respondServiceError(w, err, "unable to close pool")
		return
	}
	respondJSON(w, http.StatusOK, d)
}
