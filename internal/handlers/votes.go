package handlers

import (
	"encoding/json"
	"net/http"

	"merit/internal/services"
)

type voteRequest struct {
	TargetType   string      `json:"targetType"`
	TargetID     string      `json:"targetId"`
	Amount       json.Number `json:"amount"`
	QuotaAmount  json.Number `json:"quotaAmount"`
	WalletAmount json.Number `json:"walletAmount"`
	Direction    string      `json:"direction"`
	Comment      string      `json:"comment"`
}

func (h *Handler) CreateVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req voteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	vote := services.VoteRequest{UserID: userID, TargetType: services.TargetType(req.TargetType), TargetID: req.TargetID}
	switch vote.TargetType {
	case services.TargetPublication:
		if !validSlug(w, req.TargetID) {
			return
		}
	case services.TargetVote, services.TargetComment:
		if !validUID(w, req.TargetID) {
			return
		}
	default:
		respondError(w, http.StatusBadRequest, "unsupported_target")
		return
	}
	switch req.Direction {
	case "", "up":
	case "down":
		vote.Downvote = true
	default:
		respondError(w, http.StatusBadRequest, "invalid_direction")
		return
	}

	var err error
	if vote.Amount, err = parsePoints(req.Amount, true); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	if vote.QuotaAmount, err = parsePoints(req.QuotaAmount, true); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	if vote.WalletAmount, err = parsePoints(req.WalletAmount, true); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	if vote.Comment, ok = normalizedComment(w, req.Comment); !ok {
		return
	}

	result, err := h.votes.Vote(r.Context(), vote)
	if err != nil {
		h.respondServiceError(w, err, "vote_failed")
		return
	}
	respondJSON(w, http.StatusCreated, result)
}
