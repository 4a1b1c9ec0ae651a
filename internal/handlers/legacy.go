package handlers

import (
	"encoding/json"
	"net/http"

	"merit/internal/legacy"
	"merit/internal/models"
	"merit/internal/services"
	"merit/internal/store"
)

// ListLegacyTransactions serves GET /transaction in the flat legacy shape.
// Exactly one selector is used, checked in order: forPublicationSlug,
// forTransactionId, my (votes the caller gave), updates (votes the caller
// received).
func (h *Handler) ListLegacyTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	positive := query.Has("positive")
	sort := store.SortRecent
	if query.Get("sort") == string(store.SortVoted) {
		sort = store.SortVoted
	}

	var txs []models.Transaction
	var err error
	switch {
	case query.Get("forPublicationSlug") != "":
		slug := query.Get("forPublicationSlug")
		if !validSlug(w, slug) {
			return
		}
		txs, err = h.ledger.FindForPublication(r.Context(), slug, positive, sort)
	case query.Get("forTransactionId") != "":
		uid := query.Get("forTransactionId")
		if !validUID(w, uid) {
			return
		}
		txs, err = h.ledger.FindForTransaction(r.Context(), uid, positive, sort)
	case query.Has("my"):
		txs, err = h.ledger.FindByInitiator(r.Context(), userID, positive, sort)
	case query.Has("updates"):
		txs, err = h.ledger.FindBySubject(r.Context(), userID, positive, sort)
	default:
		respondError(w, http.StatusBadRequest, "missing_selector")
		return
	}
	if err != nil {
		h.respondServiceError(w, err, "unable to load transactions")
		return
	}
	old, err := legacy.NewToOldAll(txs)
	if err != nil {
		h.respondServiceError(w, err, "unable to map transactions")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"transactions": old})
}

type legacyVoteRequest struct {
	AmountPoints       json.Number `json:"amountPoints"`
	Comment            string      `json:"comment"`
	DirectionPlus      bool        `json:"directionPlus"`
	ForPublicationSlug string      `json:"forPublicationSlug"`
	ForTransactionID   string      `json:"forTransactionId"`
	InPublicationSlug  string      `json:"inPublicationSlug"`
}

// CreateLegacyTransaction serves POST /transaction. The vote is funded by the
// split resolver like any other vote; the response is the stored vote in the
// legacy shape.
func (h *Handler) CreateLegacyTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req legacyVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	points, err := parsePoints(req.AmountPoints, false)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	comment, ok := normalizedComment(w, req.Comment)
	if !ok {
		return
	}

	vote := services.VoteRequest{
		UserID:   userID,
		Amount:   points,
		Downvote: !req.DirectionPlus,
		Comment:  comment,
	}
	switch {
	case req.ForPublicationSlug != "" && req.ForTransactionID != "":
		respondError(w, http.StatusBadRequest, "ambiguous_target")
		return
	case req.ForPublicationSlug != "":
		if !validSlug(w, req.ForPublicationSlug) {
			return
		}
		vote.TargetType, vote.TargetID = services.TargetPublication, req.ForPublicationSlug
	case req.ForTransactionID != "":
		if !validUID(w, req.ForTransactionID) {
			return
		}
		vote.TargetType, vote.TargetID = services.TargetVote, req.ForTransactionID
	default:
		respondError(w, http.StatusBadRequest, "missing_target")
		return
	}

	result, err := h.votes.Vote(r.Context(), vote)
	if err != nil {
		h.respondServiceError(w, err, "vote_failed")
		return
	}
	old, err := legacy.NewToOld(result.Transaction)
	if err != nil {
		h.respondServiceError(w, err, "unable to map transaction")
		return
	}
	if req.InPublicationSlug != "" && old.InPublicationSlug == "" {
		old.InPublicationSlug = req.InPublicationSlug
	}
	respondJSON(w, http.StatusCreated, old)
}
