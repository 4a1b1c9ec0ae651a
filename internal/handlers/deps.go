package handlers

import (
	"context"
	"net/http"

	"merit/internal/models"
	"merit/internal/services"
	"merit/internal/store"
)

type Voter interface {
	Vote(ctx context.Context, req services.VoteRequest) (services.VoteResult, error)
}

type Withdrawer interface {
	Withdraw(ctx context.Context, req services.WithdrawRequest) (services.WithdrawResult, error)
}

type Investments interface {
	EnablePool(ctx context.Context, userID, slug string, contractPercent int64) (models.InvestmentPool, error)
	Invest(ctx context.Context, userID, slug string, amount int64) (models.InvestmentPool, error)
	Breakdown(ctx context.Context, slug string) (models.PoolBreakdown, error)
	ClosePool(ctx context.Context, userID, slug string) (models.Distribution, error)
	ReturnPool(ctx context.Context, userID, slug string) (models.Distribution, error)
	Earnings(ctx context.Context, investorID string) ([]models.EarningsEntry, error)
}

type LedgerReader interface {
	FindForPublication(ctx context.Context, slug string, positiveOnly bool, sort store.Sort) ([]models.Transaction, error)
	FindForTransaction(ctx context.Context, uid string, positiveOnly bool, sort store.Sort) ([]models.Transaction, error)
	FindByInitiator(ctx context.Context, userID string, positiveOnly bool, sort store.Sort) ([]models.Transaction, error)
	FindBySubject(ctx context.Context, userID string, positiveOnly bool, sort store.Sort) ([]models.Transaction, error)
	GetMetrics(ctx context.Context, targetURI string) (store.TargetMetrics, error)
	FoldMetrics(ctx context.Context, targetURI string) (models.Metrics, error)
}

type WalletReader interface {
	GetBalance(ctx context.Context, userID, communityID string) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]models.Wallet, error)
}

type QuotaReader interface {
	Record(ctx context.Context, q store.Getter, userID, communityID string) (models.QuotaRecord, error)
}

type AuditReader interface {
	ListForEntity(ctx context.Context, entityType, entityID string, limit int) ([]store.AuditEntry, error)
}

type MembershipChecker interface {
	IsMember(ctx context.Context, userID, communityID string) (bool, error)
}

// BalanceStream upgrades a request to a balance update subscription.
type BalanceStream interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string)
}
