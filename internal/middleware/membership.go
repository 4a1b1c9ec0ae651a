package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type MembershipChecker interface {
	IsMember(ctx context.Context, userID, communityID string) (bool, error)
}

// RequireCommunityMember lets the request through only when the caller belongs
// to the community named by the route parameter.
func RequireCommunityMember(members MembershipChecker, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			communityID := chi.URLParam(r, param)
			if communityID == "" {
				http.Error(w, "missing community", http.StatusBadRequest)
				return
			}
			member, err := members.IsMember(r.Context(), userID, communityID)
			if err != nil {
				http.Error(w, "unable to verify membership", http.StatusInternalServerError)
				return
			}
			if !member {
				http.Error(w, "not chat member", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
