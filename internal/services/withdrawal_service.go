package services

import (
	"context"

	"merit/internal/db"
	"merit/internal/metrics"
	"merit/internal/models"
	"merit/internal/uri"
	"merit/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// Distributor plans and pays investment pool distributions.
type Distributor interface {
	Plan(ctx context.Context, tx *sqlx.Tx, slug string, gross int64, reason models.DistributionReason) (models.Distribution, bool, error)
	Pay(ctx context.Context, d models.Distribution) (models.Distribution, error)
}

type WithdrawalService struct {
	txRunner    db.TxRunner
	wallets     WalletStore
	locks       LockStore
	ledger      LedgerStore
	communities CommunityReader
	targets     targetResolver
	pools       Distributor
	audit       AuditStore
	hub         BalanceHub
	log         zerolog.Logger
}

func NewWithdrawalService(txRunner db.TxRunner, wallets WalletStore, locks LockStore, ledger LedgerStore, communities CommunityReader, publications PublicationReader, pools Distributor, audit AuditStore, hub BalanceHub, log zerolog.Logger) *WithdrawalService {
	return &WithdrawalService{
		txRunner:    txRunner,
		wallets:     wallets,
		locks:       locks,
		ledger:      ledger,
		communities: communities,
		targets:     targetResolver{publications: publications, ledger: ledger},
		pools:       pools,
		audit:       audit,
		hub:         hub,
		log:         log,
	}
}

// WithdrawRequest takes Amount merits (all that is available when zero) out
// of a publication or comment the user authored.
type WithdrawRequest struct {
	UserID     string
	TargetType TargetType
	TargetID   string
	Amount     int64
}

type WithdrawResult struct {
	Transaction  models.Transaction   `json:"transaction"`
	Balance      int64                `json:"balance"`
	Distribution *models.Distribution `json:"distribution,omitempty"`
}

// Withdraw records the withdrawal and credits its value to the author. When the
// publication runs an investment pool, the pool also pays out the same amount
// under its contract split, capped at the pool balance. Both movements land in
// the ledger, so wallets plus pools plus available merits stay constant.
func (s *WithdrawalService) Withdraw(ctx context.Context, req WithdrawRequest) (WithdrawResult, error) {
	if req.Amount < 0 {
		return WithdrawResult{}, models.ErrInvalidAmount
	}
	tgt, err := s.targets.resolve(ctx, req.TargetType, req.TargetID)
	if err != nil {
		return WithdrawResult{}, err
	}
	if tgt.authorID != req.UserID {
		return WithdrawResult{}, models.ErrNotAuthorized
	}
	community, err := s.communities.Get(ctx, tgt.communityID)
	if err != nil {
		return WithdrawResult{}, err
	}

	var result WithdrawResult
	var plan models.Distribution
	var pooled bool
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		pooled = false
		if err := s.locks.LockWallet(ctx, tx, req.UserID, tgt.communityID); err != nil {
			return err
		}
		stored, err := s.ledger.GetMetricsForUpdate(ctx, tx, tgt.uri.String())
		if err != nil {
			return err
		}
		available := stored.Available()
		amount := req.Amount
		if amount == 0 {
			amount = available
		}
		if amount == 0 {
			return models.ErrNothingToWithdraw
		}
		if amount > available {
			return models.ErrInsufficientFunds
		}

		t := s.withdrawalTransaction(req.UserID, tgt, community, amount)
		if err := s.ledger.Append(ctx, tx, t); err != nil {
			return err
		}
		result = WithdrawResult{Transaction: t}

		if tgt.isPublication() {
			plan, pooled, err = s.pools.Plan(ctx, tx, tgt.uri.ID, amount, models.ReasonWithdrawal)
			if err != nil {
				return err
			}
		}
		wallet, err := s.wallets.GetForUpdate(ctx, tx, req.UserID, tgt.communityID)
		if err != nil {
			return err
		}
		if err := s.wallets.Credit(ctx, tx, req.UserID, tgt.communityID, amount); err != nil {
			return err
		}
		result.Balance = wallet.Balance + amount
		return s.audit.Log(ctx, tx, req.UserID, "withdraw", tgt.uri.Domain, tgt.uri.ID, map[string]any{
			"amount": amount,
			"pooled": pooled,
		})
	})
	if err != nil {
		metrics.WithdrawalsTotal.WithLabelValues("rejected").Inc()
		return WithdrawResult{}, err
	}

	s.hub.BroadcastBalance(req.UserID, websocket.BalanceUpdate{CommunityID: tgt.communityID, Balance: result.Balance, Reason: "withdrawal"})
	if pooled {
		paid, err := s.pools.Pay(ctx, plan)
		result.Distribution = &paid
		if err != nil {
			// the withdrawal is committed; unpaid payouts are resumable
			s.log.Error().Err(err).Str("distribution_id", plan.ID).Msg("withdrawal payouts incomplete")
			metrics.WithdrawalsTotal.WithLabelValues("partial").Inc()
			return result, err
		}
		for _, p := range paid.Payouts {
			if p.Role == models.RoleAuthor {
				result.Balance += p.Amount
			}
		}
	}
	metrics.WithdrawalsTotal.WithLabelValues("completed").Inc()
	s.log.Info().
		Str("user_id", req.UserID).
		Str("target", tgt.uri.String()).
		Int64("amount", result.Transaction.Value).
		Bool("pooled", pooled).
		Msg("withdrawal applied")
	return result, nil
}

func (s *WithdrawalService) withdrawalTransaction(userID string, tgt target, community models.Community, amount int64) models.Transaction {
	typ := models.TypeWithdrawalFromPublication
	if !tgt.isPublication() {
		typ = models.TypeWithdrawalFromTransaction
	}
	meta := &models.WithdrawalMeta{}
	meta.Amounts = models.Amounts{
		Personal:                    amount,
		Total:                       amount,
		CurrencyOfCommunityTgChatID: community.TgChatID,
	}
	return models.Transaction{
		UID:                 uuid.NewString(),
		DomainName:          models.TransactionDomain,
		Type:                typ,
		FocusAssetURI:       tgt.uri,
		InitiatorsActorURIs: []uri.URI{uri.User(userID)},
		SubjectsActorURIs:   []uri.URI{uri.User(userID)},
		SpacesActorURIs:     []uri.URI{uri.Community(tgt.communityID)},
		Value:               amount,
		Meta:                meta,
		CreatedAt:           utcNow(),
	}
}
