package services

import (
	"context"
	"errors"
	"strings"

	"merit/internal/db"
	"merit/internal/metrics"
	"merit/internal/models"
	"merit/internal/uri"
	"merit/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

type VoteService struct {
	txRunner    db.TxRunner
	wallets     WalletStore
	locks       LockStore
	ledger      LedgerStore
	quota       QuotaManager
	communities CommunityReader
	members     MembershipChecker
	targets     targetResolver
	hub         BalanceHub
	log         zerolog.Logger
}

func NewVoteService(txRunner db.TxRunner, wallets WalletStore, locks LockStore, ledger LedgerStore, quota QuotaManager, communities CommunityReader, publications PublicationReader, members MembershipChecker, hub BalanceHub, log zerolog.Logger) *VoteService {
	return &VoteService{
		txRunner:    txRunner,
		wallets:     wallets,
		locks:       locks,
		ledger:      ledger,
		quota:       quota,
		communities: communities,
		members:     members,
		targets:     targetResolver{publications: publications, ledger: ledger},
		hub:         hub,
		log:         log,
	}
}

// VoteRequest is a vote as the API receives it. QuotaAmount and WalletAmount
// are the caller's proposed split; only their sum is used, and only when
// Amount is zero. The resolver decides the actual split.
type VoteRequest struct {
	UserID       string
	TargetType   TargetType
	TargetID     string
	Amount       int64
	QuotaAmount  int64
	WalletAmount int64
	Downvote     bool
	Comment      string
}

// SignedAmount is the requested total, negative for downvotes.
func (r VoteRequest) SignedAmount() (int64, error) {
	if r.Amount < 0 || r.QuotaAmount < 0 || r.WalletAmount < 0 {
		return 0, models.ErrInvalidAmount
	}
	magnitude := r.Amount
	if magnitude == 0 {
		magnitude = r.QuotaAmount + r.WalletAmount
	}
	if magnitude == 0 {
		return 0, models.ErrInvalidAmount
	}
	if r.Downvote {
		return -magnitude, nil
	}
	return magnitude, nil
}

type VoteResult struct {
	Transaction    models.Transaction `json:"transaction"`
	Split          Split              `json:"split"`
	Balance        int64              `json:"balance"`
	RemainingToday int64              `json:"remainingToday"`
}

// Vote funds and records one vote. Quota consumption, the wallet debit and
// the ledger append commit together under the (user, community) lock, or not
// at all.
func (s *VoteService) Vote(ctx context.Context, req VoteRequest) (VoteResult, error) {
	amount, err := req.SignedAmount()
	if err != nil {
		return VoteResult{}, s.reject(amount, err)
	}
	if amount < 0 && strings.TrimSpace(req.Comment) == "" {
		return VoteResult{}, s.reject(amount, models.ErrCommentRequired)
	}

	tgt, err := s.targets.resolve(ctx, req.TargetType, req.TargetID)
	if err != nil {
		return VoteResult{}, s.reject(amount, err)
	}
	member, err := s.members.IsMember(ctx, req.UserID, tgt.communityID)
	if err != nil {
		return VoteResult{}, err
	}
	if !member {
		return VoteResult{}, s.reject(amount, models.ErrNotAuthorized)
	}
	if tgt.authorID == req.UserID {
		return VoteResult{}, s.reject(amount, models.ErrSelfVote)
	}
	community, err := s.communities.Get(ctx, tgt.communityID)
	if err != nil {
		return VoteResult{}, err
	}

	var result VoteResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.locks.LockWallet(ctx, tx, req.UserID, tgt.communityID); err != nil {
			return err
		}
		wallet, err := s.wallets.GetForUpdate(ctx, tx, req.UserID, tgt.communityID)
		if err != nil {
			return err
		}
		remaining, err := s.quota.RemainingToday(ctx, tx, req.UserID, tgt.communityID)
		if err != nil {
			return err
		}
		split, err := Resolve(amount, remaining, wallet.Balance, req.Comment)
		if err != nil {
			return err
		}
		if err := s.quota.Consume(ctx, tx, req.UserID, tgt.communityID, split.Quota); err != nil {
			return err
		}
		if err := s.wallets.Debit(ctx, tx, req.UserID, tgt.communityID, split.Wallet); err != nil {
			return err
		}

		t := s.voteTransaction(req, tgt, community, split)
		if err := s.ledger.Append(ctx, tx, t); err != nil {
			return err
		}
		result = VoteResult{
			Transaction:    t,
			Split:          split,
			Balance:        wallet.Balance - split.Wallet,
			RemainingToday: remaining - split.Quota,
		}
		return nil
	})
	if err != nil {
		return VoteResult{}, s.reject(amount, err)
	}

	metrics.VotesTotal.WithLabelValues(direction(amount), "applied").Inc()
	metrics.MeritSpentTotal.WithLabelValues("quota").Add(float64(result.Split.Quota))
	metrics.MeritSpentTotal.WithLabelValues("wallet").Add(float64(result.Split.Wallet))
	remaining := result.RemainingToday
	s.hub.BroadcastBalance(req.UserID, websocket.BalanceUpdate{
		CommunityID:    tgt.communityID,
		Balance:        result.Balance,
		RemainingToday: &remaining,
		Reason:         "vote",
	})
	s.log.Info().
		Str("user_id", req.UserID).
		Str("community_id", tgt.communityID).
		Str("transaction_uid", result.Transaction.UID).
		Int64("amount", amount).
		Int64("quota", result.Split.Quota).
		Int64("wallet", result.Split.Wallet).
		Msg("vote applied")
	return result, nil
}

func (s *VoteService) voteTransaction(req VoteRequest, tgt target, community models.Community, split Split) models.Transaction {
	typ := models.TypeForPublication
	meta := &models.VoteMeta{}
	if !tgt.isPublication() {
		typ = models.TypeForTransaction
		meta.ParentPublicationURI = tgt.publication
	}
	meta.Amounts = split.Amounts(community.TgChatID)
	meta.Comment = strings.TrimSpace(req.Comment)

	t := models.Transaction{
		UID:                 uuid.NewString(),
		DomainName:          models.TransactionDomain,
		Type:                typ,
		FocusAssetURI:       tgt.uri,
		InitiatorsActorURIs: []uri.URI{uri.User(req.UserID)},
		SpacesActorURIs:     []uri.URI{uri.Community(tgt.communityID)},
		Value:               split.Total,
		Meta:                meta,
		CreatedAt:           utcNow(),
	}
	if tgt.authorID != "" {
		t.SubjectsActorURIs = []uri.URI{uri.User(tgt.authorID)}
	}
	return t
}

func (s *VoteService) reject(amount int64, err error) error {
	status := "failed"
	switch {
	case errors.Is(err, models.ErrInsufficientFunds), errors.Is(err, models.ErrQuotaExceeded):
		status = "insufficient"
	case errors.Is(err, models.ErrNotAuthorized), errors.Is(err, models.ErrSelfVote):
		status = "forbidden"
	case errors.Is(err, models.ErrCommentRequired), errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrTargetNotFound), errors.Is(err, models.ErrUnsupportedTarget):
		status = "invalid"
	}
	metrics.VotesTotal.WithLabelValues(direction(amount), status).Inc()
	return err
}

func direction(amount int64) string {
	if amount < 0 {
		return "down"
	}
	return "up"
}
