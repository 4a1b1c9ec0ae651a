package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"merit/internal/db"
	"merit/internal/models"
	"merit/internal/services"
)

func TestCreateVote(t *testing.T) {
	var got services.VoteRequest
	h := newTestHandler(testDeps{votes: stubVoter{
		voteFn: func(_ context.Context, req services.VoteRequest) (services.VoteResult, error) {
			got = req
			return services.VoteResult{
				Transaction:    voteFixture(10),
				Split:          services.Split{Quota: 4, Wallet: 6, Total: 10},
				Balance:        14,
				RemainingToday: 0,
			}, nil
		},
	}})
	body := `{"targetType":"publication","targetId":"post-1","quotaAmount":4,"walletAmount":6,"direction":"up"}`
	rr := serve(t, h, http.MethodPost, "/votes", body, "111")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.QuotaAmount != 4 || got.WalletAmount != 6 || got.Amount != 0 || got.Downvote {
		t.Fatalf("unexpected vote request %+v", got)
	}
	var result struct {
		Split   services.Split `json:"split"`
		Balance int64          `json:"balance"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if result.Balance != 14 || result.Split.Wallet != 6 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCreateVoteDownOnComment(t *testing.T) {
	var got services.VoteRequest
	h := newTestHandler(testDeps{votes: stubVoter{
		voteFn: func(_ context.Context, req services.VoteRequest) (services.VoteResult, error) {
			got = req
			return services.VoteResult{}, nil
		},
	}})
	body := `{"targetType":"comment","targetId":"abc-1","amount":5,"direction":"down","comment":"off topic"}`
	if rr := serve(t, h, http.MethodPost, "/votes", body, "111"); rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if !got.Downvote || got.TargetType != services.TargetComment || got.Amount != 5 || got.Comment != "off topic" {
		t.Fatalf("unexpected vote request %+v", got)
	}
}

func TestCreateVoteRejectsBeforeService(t *testing.T) {
	h := newTestHandler(testDeps{votes: stubVoter{
		voteFn: func(context.Context, services.VoteRequest) (services.VoteResult, error) {
			t.Fatalf("vote should not be called")
			return services.VoteResult{}, nil
		},
	}})
	bodies := map[string]string{
		"unknown target":   `{"targetType":"user","targetId":"1","amount":1}`,
		"bad slug":         `{"targetType":"publication","targetId":"../x","amount":1}`,
		"bad direction":    `{"targetType":"publication","targetId":"post-1","amount":1,"direction":"sideways"}`,
		"negative":         `{"targetType":"publication","targetId":"post-1","amount":-1}`,
		"negative wallet":  `{"targetType":"publication","targetId":"post-1","walletAmount":-2}`,
		"fractional quota": `{"targetType":"publication","targetId":"post-1","quotaAmount":0.5}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			if rr := serve(t, h, http.MethodPost, "/votes", body, "111"); rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestCreateVoteMapsServiceErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{models.ErrInsufficientFunds, http.StatusBadRequest},
		{models.ErrQuotaExceeded, http.StatusBadRequest},
		{models.ErrCommentRequired, http.StatusBadRequest},
		{models.ErrSelfVote, http.StatusBadRequest},
		{models.ErrNotAuthorized, http.StatusForbidden},
		{models.ErrTargetNotFound, http.StatusNotFound},
		{db.ErrRetryLimit, http.StatusConflict},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := newTestHandler(testDeps{votes: stubVoter{
				voteFn: func(context.Context, services.VoteRequest) (services.VoteResult, error) {
					return services.VoteResult{}, tt.err
				},
			}})
			rr := serve(t, h, http.MethodPost, "/votes", `{"targetType":"publication","targetId":"post-1","amount":1}`, "111")
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rr.Code)
			}
		})
	}
}

func TestCreateVoteRejectsNonTelegramCaller(t *testing.T) {
	h := newTestHandler(testDeps{})
	if rr := serve(t, h, http.MethodPost, "/votes", `{}`, "not-a-telegram-id"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
