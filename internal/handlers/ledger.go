package handlers

import (
	"net/http"

	"merit/internal/amount"
	"merit/internal/uri"
)

// SelfCheck compares the stored counters of a target with a fold over its
// vote transactions.
func (h *Handler) SelfCheck(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	target, err := uri.Parse(r.URL.Query().Get("target"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_target")
		return
	}
	if !target.Is(uri.KindAsset, uri.DomainPublication) && !target.Is(uri.KindAgreement, uri.DomainTransaction) {
		respondError(w, http.StatusBadRequest, "invalid_target")
		return
	}
	stored, err := h.ledger.GetMetrics(r.Context(), target.String())
	if err != nil {
		h.respondServiceError(w, err, "unable to self_check")
		return
	}
	folded, err := h.ledger.FoldMetrics(r.Context(), target.String())
	if err != nil {
		h.respondServiceError(w, err, "unable to self_check")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"target":     target.String(),
		"stored":     stored.Metrics,
		"folded":     folded,
		"withdrawn":  stored.Withdrawn,
		"available":  stored.Available(),
		"difference": amount.Format(stored.Sum - folded.Sum),
		"consistent": stored.Metrics == folded,
	})
}

func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	h.stream.Serve(w, r, userID)
}
