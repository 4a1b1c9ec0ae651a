package handlers

import (
	"encoding/json"
	"net/http"

	"merit/internal/services"

	"github.com/go-chi/chi/v5"
)

type withdrawRequest struct {
	Amount json.Number `json:"amount"`
}

func (h *Handler) WithdrawFromPublication(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if !validSlug(w, slug) {
		return
	}
	h.withdraw(w, r, services.TargetPublication, slug)
}

func (h *Handler) WithdrawFromTransaction(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if !validUID(w, uid) {
		return
	}
	h.withdraw(w, r, services.TargetComment, uid)
}

// withdraw takes everything available when the body has no amount.
func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request, targetType services.TargetType, targetID string) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req withdrawRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	points, err := parsePoints(req.Amount, true)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	result, err := h.withdrawals.Withdraw(r.Context(), services.WithdrawRequest{
		UserID:     userID,
		TargetType: targetType,
		TargetID:   targetID,
		Amount:     points,
	})
	if err != nil {
		if result.Transaction.UID != "" {
			// recorded, but some pool payouts are still pending
			respondJSON(w, http.StatusAccepted, result)
			return
		}
		h.respondServiceError(w, err, "withdrawal_failed")
		return
	}
	respondJSON(w, http.StatusCreated, result)
}
