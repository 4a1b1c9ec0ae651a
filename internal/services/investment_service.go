package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"merit/internal/db"
	"merit/internal/metrics"
	"merit/internal/models"
	"merit/internal/store"
	"merit/internal/uri"
	"merit/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

type InvestmentStore interface {
	GetPool(ctx context.Context, slug string) (models.InvestmentPool, error)
	GetPoolForUpdate(ctx context.Context, tx store.Getter, slug string) (models.InvestmentPool, error)
	CreatePool(ctx context.Context, tx store.Execer, pool models.InvestmentPool) error
	Contribute(ctx context.Context, tx store.Execer, slug, investorID string, amount int64, at time.Time) error
	ListInvestors(ctx context.Context, slug string) ([]models.InvestmentRecord, error)
	ListInvestorsTx(ctx context.Context, tx store.Selecter, slug string) ([]models.InvestmentRecord, error)
	DecreaseBalance(ctx context.Context, tx store.Execer, slug string, amount int64) error
	CreateDistribution(ctx context.Context, tx store.Execer, d models.Distribution) error
	GetDistribution(ctx context.Context, id string) (models.Distribution, error)
	ListUnfinishedDistributions(ctx context.Context) ([]string, error)
	MarkPayoutPaid(ctx context.Context, tx store.Execer, distributionID, userID string, role models.PayoutRole) (bool, error)
	AddEarnings(ctx context.Context, tx store.Execer, e models.EarningsEntry) error
	ListEarnings(ctx context.Context, investorID string) ([]models.EarningsEntry, error)
}

// InvestmentService runs per-publication investment pools. A distribution is
// planned and persisted under the pool lock, then each payout is paid in its
// own wallet transaction so an interrupted run can be resumed. Every wallet
// movement it makes is recorded as a reward row in the ledger.
type InvestmentService struct {
	txRunner     db.TxRunner
	pools        InvestmentStore
	wallets      WalletStore
	locks        LockStore
	ledger       LedgerStore
	communities  CommunityReader
	publications PublicationReader
	members      MembershipChecker
	audit        AuditStore
	hub          BalanceHub
	log          zerolog.Logger
}

func NewInvestmentService(txRunner db.TxRunner, pools InvestmentStore, wallets WalletStore, locks LockStore, ledger LedgerStore, communities CommunityReader, publications PublicationReader, members MembershipChecker, audit AuditStore, hub BalanceHub, log zerolog.Logger) *InvestmentService {
	return &InvestmentService{
		txRunner:     txRunner,
		pools:        pools,
		wallets:      wallets,
		locks:        locks,
		ledger:       ledger,
		communities:  communities,
		publications: publications,
		members:      members,
		audit:        audit,
		hub:          hub,
		log:          log,
	}
}

// EnablePool opens investing on the author's publication with a contract
// percent inside the community bounds. The percent cannot change afterwards.
func (s *InvestmentService) EnablePool(ctx context.Context, userID, slug string, contractPercent int64) (models.InvestmentPool, error) {
	pub, err := s.publications.Get(ctx, slug)
	if err != nil {
		return models.InvestmentPool{}, notFound(err)
	}
	if pub.AuthorID != userID {
		return models.InvestmentPool{}, models.ErrNotAuthorized
	}
	community, err := s.communities.Get(ctx, pub.CommunityID)
	if err != nil {
		return models.InvestmentPool{}, err
	}
	if !community.InvestingEnabled {
		return models.InvestmentPool{}, models.ErrInvestingDisabled
	}
	if contractPercent < community.InvestorShareMin || contractPercent > community.InvestorShareMax {
		return models.InvestmentPool{}, fmt.Errorf("%w: %d not in [%d, %d]", models.ErrContractPercentOutOfRange,
			contractPercent, community.InvestorShareMin, community.InvestorShareMax)
	}
	pool := models.InvestmentPool{
		PublicationSlug: slug,
		CommunityID:     pub.CommunityID,
		AuthorID:        pub.AuthorID,
		ContractPercent: contractPercent,
		CreatedAt:       utcNow(),
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.pools.CreatePool(ctx, tx, pool); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, userID, "pool_enable", "publication", slug, map[string]int64{"contractPercent": contractPercent})
	})
	if err != nil {
		return models.InvestmentPool{}, err
	}
	return pool, nil
}

// Invest moves amount from the investor's community wallet into the pool.
func (s *InvestmentService) Invest(ctx context.Context, userID, slug string, amount int64) (models.InvestmentPool, error) {
	if amount <= 0 {
		return models.InvestmentPool{}, models.ErrInvalidAmount
	}
	pool, err := s.pools.GetPool(ctx, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return models.InvestmentPool{}, models.ErrPoolNotFound
	}
	if err != nil {
		return models.InvestmentPool{}, err
	}
	member, err := s.members.IsMember(ctx, userID, pool.CommunityID)
	if err != nil {
		return models.InvestmentPool{}, err
	}
	if !member {
		return models.InvestmentPool{}, models.ErrNotAuthorized
	}
	community, err := s.communities.Get(ctx, pool.CommunityID)
	if err != nil {
		return models.InvestmentPool{}, err
	}

	var balance int64
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.locks.LockWallet(ctx, tx, userID, pool.CommunityID); err != nil {
			return err
		}
		if err := s.locks.LockPool(ctx, tx, slug); err != nil {
			return err
		}
		wallet, err := s.wallets.GetForUpdate(ctx, tx, userID, pool.CommunityID)
		if err != nil {
			return err
		}
		if err := s.wallets.Debit(ctx, tx, userID, pool.CommunityID, amount); err != nil {
			return err
		}
		if err := s.pools.Contribute(ctx, tx, slug, userID, amount, utcNow()); err != nil {
			return err
		}
		row := rewardTransaction(userID, pool.AuthorID, slug, community, -amount, models.RewardReasonInvestment, "")
		if err := s.ledger.Append(ctx, tx, row); err != nil {
			return err
		}
		if pool, err = s.pools.GetPoolForUpdate(ctx, tx, slug); err != nil {
			return err
		}
		balance = wallet.Balance - amount
		return s.audit.Log(ctx, tx, userID, "invest", "publication", slug, map[string]int64{"amount": amount})
	})
	if err != nil {
		return models.InvestmentPool{}, err
	}
	s.hub.BroadcastBalance(userID, websocket.BalanceUpdate{CommunityID: pool.CommunityID, Balance: balance, Reason: "invest"})
	return pool, nil
}

// Breakdown reports the pool with each investor's derived share.
func (s *InvestmentService) Breakdown(ctx context.Context, slug string) (models.PoolBreakdown, error) {
	pool, err := s.pools.GetPool(ctx, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PoolBreakdown{}, models.ErrPoolNotFound
	}
	if err != nil {
		return models.PoolBreakdown{}, err
	}
	investors, err := s.pools.ListInvestors(ctx, slug)
	if err != nil {
		return models.PoolBreakdown{}, err
	}
	return models.PoolBreakdown{
		PublicationSlug: slug,
		ContractPercent: pool.ContractPercent,
		PoolBalance:     pool.PoolBalance,
		PoolTotal:       pool.PoolTotal,
		Investors:       SharePercents(investors, pool.PoolTotal),
	}, nil
}

// Distribute pays gross out of the pool for reason. Shortfall is reported on
// the returned distribution and not paid by anyone.
func (s *InvestmentService) Distribute(ctx context.Context, slug string, gross int64, reason models.DistributionReason) (models.Distribution, error) {
	if !reason.Valid() {
		return models.Distribution{}, fmt.Errorf("unknown distribution reason %q", reason)
	}
	if gross <= 0 {
		return models.Distribution{}, models.ErrInvalidAmount
	}
	return s.distribute(ctx, slug, gross, reason)
}

// ClosePool distributes the whole remaining balance under the contract split.
func (s *InvestmentService) ClosePool(ctx context.Context, userID, slug string) (models.Distribution, error) {
	return s.drain(ctx, userID, slug, models.ReasonClose)
}

// ReturnPool hands the remaining balance back to investors pro rata.
func (s *InvestmentService) ReturnPool(ctx context.Context, userID, slug string) (models.Distribution, error) {
	return s.drain(ctx, userID, slug, models.ReasonPoolReturn)
}

func (s *InvestmentService) drain(ctx context.Context, userID, slug string, reason models.DistributionReason) (models.Distribution, error) {
	pool, err := s.pools.GetPool(ctx, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Distribution{}, models.ErrPoolNotFound
	}
	if err != nil {
		return models.Distribution{}, err
	}
	if pool.AuthorID != userID {
		return models.Distribution{}, models.ErrNotAuthorized
	}
	return s.distribute(ctx, slug, 0, reason)
}

// distribute plans and pays. gross 0 means the whole balance.
func (s *InvestmentService) distribute(ctx context.Context, slug string, gross int64, reason models.DistributionReason) (models.Distribution, error) {
	var plan models.Distribution
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var ok bool
		var err error
		plan, ok, err = s.Plan(ctx, tx, slug, gross, reason)
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrNothingToWithdraw
		}
		return nil
	})
	if err != nil {
		return models.Distribution{}, err
	}
	return s.Pay(ctx, plan)
}

// Plan locks the pool, computes payouts from that snapshot, lowers the pool
// balance and persists the plan, all inside tx. It reports false when the
// publication has no pool or the pool is empty; nothing is written then.
// gross 0 plans the whole balance.
func (s *InvestmentService) Plan(ctx context.Context, tx *sqlx.Tx, slug string, gross int64, reason models.DistributionReason) (models.Distribution, bool, error) {
	if err := s.locks.LockPool(ctx, tx, slug); err != nil {
		return models.Distribution{}, false, err
	}
	pool, err := s.pools.GetPoolForUpdate(ctx, tx, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Distribution{}, false, nil
	}
	if err != nil {
		return models.Distribution{}, false, err
	}
	if pool.PoolBalance == 0 {
		return models.Distribution{}, false, nil
	}
	if gross == 0 {
		gross = pool.PoolBalance
	}
	investors, err := s.pools.ListInvestorsTx(ctx, tx, slug)
	if err != nil {
		return models.Distribution{}, false, err
	}

	plan := PlanPayouts(pool, investors, gross, reason)
	plan.ID = uuid.NewString()
	plan.CreatedAt = utcNow()
	if err := s.pools.DecreaseBalance(ctx, tx, slug, plan.Distributed); err != nil {
		return models.Distribution{}, false, err
	}
	if err := s.pools.CreateDistribution(ctx, tx, plan); err != nil {
		return models.Distribution{}, false, err
	}
	if err := s.audit.Log(ctx, tx, "", "distribute", "publication", slug, plan); err != nil {
		return models.Distribution{}, false, err
	}
	metrics.DistributionsTotal.WithLabelValues(string(reason)).Inc()
	if plan.Shortfall > 0 {
		s.log.Warn().
			Str("publication", slug).
			Str("distribution_id", plan.ID).
			Int64("gross", gross).
			Int64("shortfall", plan.Shortfall).
			Msg("distribution capped at pool balance")
	}
	return plan, true, nil
}

// Pay credits every unpaid payout of d, each in its own transaction. A payout
// already marked paid is skipped, so Pay can run again after a crash. It
// returns d with PaidAt set on the payouts that are settled.
func (s *InvestmentService) Pay(ctx context.Context, d models.Distribution) (models.Distribution, error) {
	community, err := s.communities.Get(ctx, d.CommunityID)
	if err != nil {
		return d, err
	}
	var errs []error
	for i := range d.Payouts {
		p := &d.Payouts[i]
		if p.PaidAt != nil {
			continue
		}
		balance, paid, err := s.payOne(ctx, d, community, *p)
		if err != nil {
			metrics.PayoutsTotal.WithLabelValues("failed").Inc()
			s.log.Error().Err(err).Str("distribution_id", d.ID).Str("user_id", p.UserID).Msg("payout failed")
			errs = append(errs, fmt.Errorf("payout to %s: %w", p.UserID, err))
			continue
		}
		now := utcNow()
		p.PaidAt = &now
		if !paid {
			metrics.PayoutsTotal.WithLabelValues("skipped").Inc()
			continue
		}
		metrics.PayoutsTotal.WithLabelValues("paid").Inc()
		s.hub.BroadcastBalance(p.UserID, websocket.BalanceUpdate{CommunityID: d.CommunityID, Balance: balance, Reason: string(d.Reason)})
	}
	return d, errors.Join(errs...)
}

func (s *InvestmentService) payOne(ctx context.Context, d models.Distribution, community models.Community, p models.Payout) (int64, bool, error) {
	var balance int64
	var paid bool
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.locks.LockWallet(ctx, tx, p.UserID, d.CommunityID); err != nil {
			return err
		}
		claimed, err := s.pools.MarkPayoutPaid(ctx, tx, d.ID, p.UserID, p.Role)
		if err != nil || !claimed {
			paid = false
			return err
		}
		wallet, err := s.wallets.GetForUpdate(ctx, tx, p.UserID, d.CommunityID)
		if err != nil {
			return err
		}
		if err := s.wallets.Credit(ctx, tx, p.UserID, d.CommunityID, p.Amount); err != nil {
			return err
		}
		row := rewardTransaction(p.UserID, p.UserID, d.PublicationSlug, community, p.Amount, string(d.Reason), d.ID)
		if err := s.ledger.Append(ctx, tx, row); err != nil {
			return err
		}
		if p.Role == models.RoleInvestor {
			if err := s.pools.AddEarnings(ctx, tx, models.EarningsEntry{
				ID:              uuid.NewString(),
				DistributionID:  d.ID,
				PublicationSlug: d.PublicationSlug,
				InvestorID:      p.UserID,
				Amount:          p.Amount,
				Reason:          d.Reason,
				CreatedAt:       utcNow(),
			}); err != nil {
				return err
			}
		}
		balance = wallet.Balance + p.Amount
		paid = true
		return nil
	})
	return balance, paid, err
}

// ResumeDistribution pays what an interrupted distribution left unpaid.
func (s *InvestmentService) ResumeDistribution(ctx context.Context, id string) (models.Distribution, error) {
	d, err := s.pools.GetDistribution(ctx, id)
	if err != nil {
		return models.Distribution{}, err
	}
	return s.Pay(ctx, d)
}

// Earnings lists what an investor received from pools, newest first.
func (s *InvestmentService) Earnings(ctx context.Context, investorID string) ([]models.EarningsEntry, error) {
	return s.pools.ListEarnings(ctx, investorID)
}

// ResumeAll finishes every distribution with unpaid payouts.
func (s *InvestmentService) ResumeAll(ctx context.Context) (int, error) {
	ids, err := s.pools.ListUnfinishedDistributions(ctx)
	if err != nil {
		return 0, err
	}
	var errs []error
	for _, id := range ids {
		if _, err := s.ResumeDistribution(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return len(ids), errors.Join(errs...)
}

// rewardTransaction records a pool movement on userID's wallet. value is
// negative for a contribution and positive for a payout.
func rewardTransaction(userID, subjectID, slug string, community models.Community, value int64, reason, distributionID string) models.Transaction {
	meta := &models.RewardMeta{RewardReason: reason, DistributionID: distributionID}
	meta.Amounts = models.Amounts{
		Personal:                    value,
		Total:                       value,
		CurrencyOfCommunityTgChatID: community.TgChatID,
	}
	return models.Transaction{
		UID:                 uuid.NewString(),
		DomainName:          models.TransactionDomain,
		Type:                models.TypeReward,
		FocusAssetURI:       uri.Publication(slug),
		InitiatorsActorURIs: []uri.URI{uri.User(userID)},
		SubjectsActorURIs:   []uri.URI{uri.User(subjectID)},
		SpacesActorURIs:     []uri.URI{uri.Community(community.ID)},
		Value:               value,
		Meta:                meta,
		CreatedAt:           utcNow(),
	}
}
