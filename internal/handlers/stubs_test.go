package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"merit/internal/auth"
	"merit/internal/config"
	"merit/internal/models"
	"merit/internal/services"
	"merit/internal/store"

	"github.com/rs/zerolog"
)

type stubVoter struct {
	voteFn func(ctx context.Context, req services.VoteRequest) (services.VoteResult, error)
}

func (s stubVoter) Vote(ctx context.Context, req services.VoteRequest) (services.VoteResult, error) {
	if s.voteFn == nil {
		return services.VoteResult{}, nil
	}
	return s.voteFn(ctx, req)
}

type stubWithdrawer struct {
	withdrawFn func(ctx context.Context, req services.WithdrawRequest) (services.WithdrawResult, error)
}

func (s stubWithdrawer) Withdraw(ctx context.Context, req services.WithdrawRequest) (services.WithdrawResult, error) {
	if s.withdrawFn == nil {
		return services.WithdrawResult{}, nil
	}
	return s.withdrawFn(ctx, req)
}

type stubInvestments struct {
	enablePoolFn func(ctx context.Context, userID, slug string, contractPercent int64) (models.InvestmentPool, error)
	investFn     func(ctx context.Context, userID, slug string, amount int64) (models.InvestmentPool, error)
	breakdownFn  func(ctx context.Context, slug string) (models.PoolBreakdown, error)
	closeFn      func(ctx context.Context, userID, slug string) (models.Distribution, error)
	returnFn     func(ctx context.Context, userID, slug string) (models.Distribution, error)
	earningsFn   func(ctx context.Context, investorID string) ([]models.EarningsEntry, error)
}

func (s stubInvestments) EnablePool(ctx context.Context, userID, slug string, contractPercent int64) (models.InvestmentPool, error) {
	if s.enablePoolFn == nil {
		return models.InvestmentPool{}, nil
	}
	return s.enablePoolFn(ctx, userID, slug, contractPercent)
}

func (s stubInvestments) Invest(ctx context.Context, userID, slug string, amount int64) (models.InvestmentPool, error) {
	if s.investFn == nil {
		return models.InvestmentPool{}, nil
	}
	return s.investFn(ctx, userID, slug, amount)
}

func (s stubInvestments) Breakdown(ctx context.Context, slug string) (models.PoolBreakdown, error) {
	if s.breakdownFn == nil {
		return models.PoolBreakdown{}, nil
	}
	return s.breakdownFn(ctx, slug)
}

func (s stubInvestments) ClosePool(ctx context.Context, userID, slug string) (models.Distribution, error) {
	if s.closeFn == nil {
		return models.Distribution{}, nil
	}
	return s.closeFn(ctx, userID, slug)
}

func (s stubInvestments) ReturnPool(ctx context.Context, userID, slug string) (models.Distribution, error) {
	if s.returnFn == nil {
		return models.Distribution{}, nil
	}
	return s.returnFn(ctx, userID, slug)
}

func (s stubInvestments) Earnings(ctx context.Context, investorID string) ([]models.EarningsEntry, error) {
	if s.earningsFn == nil {
		return nil, nil
	}
	return s.earningsFn(ctx, investorID)
}

type stubLedger struct {
	forPublicationFn func(ctx context.Context, slug string, positiveOnly bool, sort store.Sort) ([]models.Transaction, error)
	forTransactionFn func(ctx context.Context, uid string, positiveOnly bool, sort store.Sort) ([]models.Transaction, error)
	byInitiatorFn    func(ctx context.Context, userID string, positiveOnly bool, sort store.Sort) ([]models.Transaction, error)
	bySubjectFn      func(ctx context.Context, userID string, positiveOnly bool, sort store.Sort) ([]models.Transaction, error)
	getMetricsFn     func(ctx context.Context, targetURI string) (store.TargetMetrics, error)
	foldMetricsFn    func(ctx context.Context, targetURI string) (models.Metrics, error)
}

func (s stubLedger) FindForPublication(ctx context.Context, slug string, positiveOnly bool, sort store.Sort) ([]models.Transaction, error) {
	if s.forPublicationFn == nil {
		return nil, nil
	}
	return s.forPublicationFn(ctx, slug, positiveOnly, sort)
}

func (s stubLedger) FindForTransaction(ctx context.Context, uid string, positiveOnly bool, sort store.Sort) ([]models.Transaction, error) {
	if s.forTransactionFn == nil {
		return nil, nil
	}
	return s.forTransactionFn(ctx, uid, positiveOnly, sort)
}

func (s stubLedger) FindByInitiator(ctx context.Context, userID string, positiveOnly bool, sort store.Sort) ([]models.Transaction, error) {
	if s.byInitiatorFn == nil {
		return nil, nil
	}
	return s.byInitiatorFn(ctx, userID, positiveOnly, sort)
}

func (s stubLedger) FindBySubject(ctx context.Context, userID string, positiveOnly bool, sort store.Sort) ([]models.Transaction, error) {
	if s.bySubjectFn == nil {
		return nil, nil
	}
	return s.bySubjectFn(ctx, userID, positiveOnly, sort)
}

func (s stubLedger) GetMetrics(ctx context.Context, targetURI string) (store.TargetMetrics, error) {
	if s.getMetricsFn == nil {
		return store.TargetMetrics{}, nil
	}
	return s.getMetricsFn(ctx, targetURI)
}

func (s stubLedger) FoldMetrics(ctx context.Context, targetURI string) (models.Metrics, error) {
	if s.foldMetricsFn == nil {
		return models.Metrics{}, nil
	}
	return s.foldMetricsFn(ctx, targetURI)
}

type stubWallets struct {
	getBalanceFn func(ctx context.Context, userID, communityID string) (int64, error)
	listByUserFn func(ctx context.Context, userID string) ([]models.Wallet, error)
}

func (s stubWallets) GetBalance(ctx context.Context, userID, communityID string) (int64, error) {
	if s.getBalanceFn == nil {
		return 0, nil
	}
	return s.getBalanceFn(ctx, userID, communityID)
}

func (s stubWallets) ListByUser(ctx context.Context, userID string) ([]models.Wallet, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID)
}

type stubQuota struct {
	recordFn func(ctx context.Context, q store.Getter, userID, communityID string) (models.QuotaRecord, error)
}

func (s stubQuota) Record(ctx context.Context, q store.Getter, userID, communityID string) (models.QuotaRecord, error) {
	if s.recordFn == nil {
		return models.QuotaRecord{UserID: userID, CommunityID: communityID}, nil
	}
	return s.recordFn(ctx, q, userID, communityID)
}

type stubMembers struct {
	isMemberFn func(ctx context.Context, userID, communityID string) (bool, error)
}

func (s stubMembers) IsMember(ctx context.Context, userID, communityID string) (bool, error) {
	if s.isMemberFn == nil {
		return true, nil
	}
	return s.isMemberFn(ctx, userID, communityID)
}

type stubAudit struct {
	listFn func(ctx context.Context, entityType, entityID string, limit int) ([]store.AuditEntry, error)
}

func (s stubAudit) ListForEntity(ctx context.Context, entityType, entityID string, limit int) ([]store.AuditEntry, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, entityType, entityID, limit)
}

type stubStream struct {
	serveFn func(w http.ResponseWriter, r *http.Request, userID string)
}

func (s stubStream) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	if s.serveFn != nil {
		s.serveFn(w, r, userID)
	}
}

// testDeps defaults every dependency to a permissive stub.
type testDeps struct {
	votes       stubVoter
	withdrawals stubWithdrawer
	investments stubInvestments
	ledger      stubLedger
	wallets     stubWallets
	quota       stubQuota
	members     stubMembers
	audit       stubAudit
	stream      stubStream
}

func newTestHandler(deps testDeps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	return New(cfg, deps.votes, deps.withdrawals, deps.investments, deps.ledger, deps.wallets, deps.quota, deps.members, deps.audit, deps.stream, zerolog.Nop())
}

// serve sends a request through the full router, authenticated as userID
// unless userID is empty.
func serve(t *testing.T, h *Handler, method, target, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		token, err := auth.GenerateToken("secret", userID, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}
