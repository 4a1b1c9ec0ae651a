package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"merit/internal/db"
	"merit/internal/middleware"
	"merit/internal/models"
	"merit/internal/uri"
	"merit/internal/validator"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// domainErrors maps service errors to a status and a stable message.
var domainErrors = []struct {
	err     error
	status  int
	message string
}{
	{models.ErrNotAuthorized, http.StatusForbidden, models.ErrNotAuthorized.Error()},
	{models.ErrInsufficientFunds, http.StatusBadRequest, "insufficient_funds"},
	{models.ErrQuotaExceeded, http.StatusBadRequest, "quota_exceeded"},
	{models.ErrCommentRequired, http.StatusBadRequest, "comment_required"},
	{models.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{models.ErrSelfVote, http.StatusBadRequest, "self_vote"},
	{models.ErrTargetNotFound, http.StatusNotFound, "target_not_found"},
	{models.ErrUnsupportedTarget, http.StatusBadRequest, "unsupported_target"},
	{models.ErrPoolNotFound, http.StatusNotFound, "pool_not_found"},
	{models.ErrPoolExists, http.StatusConflict, "pool_exists"},
	{models.ErrContractPercentOutOfRange, http.StatusBadRequest, "contract_percent_out_of_range"},
	{models.ErrInvestingDisabled, http.StatusBadRequest, "investing_disabled"},
	{models.ErrNothingToWithdraw, http.StatusBadRequest, "nothing_to_withdraw"},
	{uri.ErrMalformedURI, http.StatusBadRequest, "malformed_uri"},
	{uri.ErrURITypeMismatch, http.StatusBadRequest, "uri_type_mismatch"},
	{db.ErrRetryLimit, http.StatusConflict, "concurrent_update"},
}

// respondServiceError writes the mapped error, or a 500 with fallback.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error, fallback string) {
	for _, known := range domainErrors {
		if errors.Is(err, known.err) {
			respondError(w, known.status, known.message)
			return
		}
	}
	if models.IsInvalid(err) {
		respondError(w, http.StatusBadRequest, "invalid_transaction")
		return
	}
	h.log.Error().Err(err).Msg(fallback)
	respondError(w, http.StatusInternalServerError, fallback)
}

// callerID returns the authenticated telegram user id or writes a 401.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok || validator.ValidateTelegramID(userID) != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return userID, true
}
