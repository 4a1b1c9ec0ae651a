package handlers

import (
	"net/http"

	"merit/internal/models"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListWallets(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	wallets, err := h.wallets.ListByUser(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err, "unable to load wallets")
		return
	}
	if wallets == nil {
		wallets = []models.Wallet{}
	}
	respondJSON(w, http.StatusOK, wallets)
}

// GetCommunityWallet reports the caller's balance and today's quota in one
// community. Membership is checked by the route middleware.
func (h *Handler) GetCommunityWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	communityID := chi.URLParam(r, "communityId")
	balance, err := h.wallets.GetBalance(r.Context(), userID, communityID)
	if err != nil {
		h.respondServiceError(w, err, "unable to load wallet")
		return
	}
	record, err := h.quota.Record(r.Context(), nil, userID, communityID)
	if err != nil {
		h.respondServiceError(w, err, "unable to load quota")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"communityId": communityID,
		"balance":     balance,
		"quota":       record,
	})
}
