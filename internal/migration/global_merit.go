package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"merit/internal/db"
	"merit/internal/models"
	"merit/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

const GlobalMeritName = "migrate-to-global-merit"

type WalletStore interface {
	GetBalance(ctx context.Context, userID, communityID string) (int64, error)
	GetForUpdate(ctx context.Context, tx store.Getter, userID, communityID string) (models.Wallet, error)
	Credit(ctx context.Context, tx store.Execer, userID, communityID string, amount int64) error
	ListUsersInCommunities(ctx context.Context, communityIDs []string) ([]string, error)
	ListEligible(ctx context.Context, userID string, communityIDs []string) ([]models.Wallet, error)
	ListEligibleForMerge(ctx context.Context, tx store.Selecter, userID string, communityIDs []string) ([]models.Wallet, error)
	MarkMigrated(ctx context.Context, tx store.Execer, userID, communityID string, expectedBalance int64) (bool, error)
}

type CommunityLister interface {
	ListByTypeTags(ctx context.Context, tags []string) ([]models.Community, error)
}

type LockStore interface {
	LockWallet(ctx context.Context, tx store.Execer, userID, communityID string) error
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data any) error
}

// ErrBalanceChanged is returned when a source wallet moved between the sum
// and the flag update.
var ErrBalanceChanged = errors.New("source wallet balance changed during merge")

type GlobalMeritReport struct {
	DryRun              bool        `json:"dryRun"`
	PriorityCommunities []string    `json:"priorityCommunities"`
	UsersProcessed      int         `json:"usersProcessed"`
	UsersSkipped        int         `json:"usersSkipped"`
	TotalBalanceBefore  int64       `json:"totalBalanceBefore"`
	TotalBalanceAfter   int64       `json:"totalBalanceAfter"`
	Errors              []UserError `json:"errors"`
}

// UserError is a failed merge. It reports the record id as userId.
type UserError struct {
	RecordError
}

func (e UserError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		UserID string `json:"userId"`
		Error  string `json:"error"`
	}{e.RecordID, e.Err.Error()})
}

// GlobalMerit merges each user's priority-community wallets into their
// global wallet.
type GlobalMerit struct {
	txRunner    db.TxRunner
	wallets     WalletStore
	communities CommunityLister
	locks       LockStore
	audit       AuditStore
	log         zerolog.Logger
}

func NewGlobalMerit(txRunner db.TxRunner, wallets WalletStore, communities CommunityLister, locks LockStore, audit AuditStore, log zerolog.Logger) *GlobalMerit {
	return &GlobalMerit{
		txRunner:    txRunner,
		wallets:     wallets,
		communities: communities,
		locks:       locks,
		audit:       audit,
		log:         log,
	}
}

// totals accumulates balances of users that merged (or would merge).
type totals struct {
	mu     sync.Mutex
	before int64
	after  int64
}

func (t *totals) add(before, after int64) {
	t.mu.Lock()
	t.before += before
	t.after += after
	t.mu.Unlock()
}

// Run resolves the priority communities from their type tags and merges
// every user holding a wallet in them. Users are disjoint, so they are
// processed by opts.Workers goroutines.
func (m *GlobalMerit) Run(ctx context.Context, priorityTags []string, opts Options) (GlobalMeritReport, error) {
	communities, err := m.communities.ListByTypeTags(ctx, priorityTags)
	if err != nil {
		return GlobalMeritReport{}, fmt.Errorf("list priority communities: %w", err)
	}
	ids := make([]string, 0, len(communities))
	for _, c := range communities {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)

	report := GlobalMeritReport{DryRun: opts.DryRun, PriorityCommunities: ids, Errors: []UserError{}}
	if len(ids) == 0 {
		m.log.Warn().Strs("tags", priorityTags).Msg("no priority communities found")
		return report, nil
	}
	users, err := m.wallets.ListUsersInCommunities(ctx, ids)
	if err != nil {
		return report, fmt.Errorf("list users: %w", err)
	}

	batch := NewBatch(GlobalMeritName, opts.DryRun, m.log)
	batchLog := batch.Logger()
	batchLog.Info().Int("users", len(users)).Strs("communities", ids).Msg("merging priority wallets")
	var sums totals
	merge := m.mergeUser
	if opts.DryRun {
		merge = m.previewUser
	}
	err = batch.Each(ctx, users, opts.Workers, func(ctx context.Context, userID string) (Outcome, error) {
		return merge(ctx, userID, ids, &sums)
	})
	summary := batch.Finish()

	report.UsersProcessed = summary.Processed
	report.UsersSkipped = summary.Skipped
	for _, e := range summary.Errors {
		report.Errors = append(report.Errors, UserError{e})
	}
	report.TotalBalanceBefore = sums.before
	report.TotalBalanceAfter = sums.after
	return report, err
}

func (m *GlobalMerit) mergeUser(ctx context.Context, userID string, communityIDs []string, sums *totals) (Outcome, error) {
	var outcome Outcome
	var before, after int64
	err := m.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		outcome, before, after = Skipped, 0, 0
		if err := m.locks.LockWallet(ctx, tx, userID, models.GlobalCommunityID); err != nil {
			return err
		}
		for _, id := range communityIDs {
			if err := m.locks.LockWallet(ctx, tx, userID, id); err != nil {
				return err
			}
		}
		sources, err := m.wallets.ListEligibleForMerge(ctx, tx, userID, communityIDs)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			return nil
		}
		global, err := m.wallets.GetForUpdate(ctx, tx, userID, models.GlobalCommunityID)
		if err != nil {
			return err
		}
		sum := sumBalances(sources)
		if err := m.wallets.Credit(ctx, tx, userID, models.GlobalCommunityID, sum); err != nil {
			return err
		}
		for _, w := range sources {
			ok, err := m.wallets.MarkMigrated(ctx, tx, userID, w.CommunityID, w.Balance)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", ErrBalanceChanged, w.CommunityID)
			}
		}
		merged, err := m.wallets.GetForUpdate(ctx, tx, userID, models.GlobalCommunityID)
		if err != nil {
			return err
		}
		outcome = Processed
		before = global.Balance + sum
		after = merged.Balance
		return m.audit.Log(ctx, tx, "", "merge_to_global", "user", userID, map[string]any{
			"communities": walletCommunities(sources),
			"amount":      sum,
		})
	})
	if err != nil {
		return Skipped, err
	}
	if outcome == Processed {
		sums.add(before, after)
		m.log.Debug().Str("user_id", userID).Int64("global_balance", after).Msg("user merged")
	}
	return outcome, nil
}

// previewUser computes the same aggregates as mergeUser without writing.
func (m *GlobalMerit) previewUser(ctx context.Context, userID string, communityIDs []string, sums *totals) (Outcome, error) {
	sources, err := m.wallets.ListEligible(ctx, userID, communityIDs)
	if err != nil {
		return Skipped, err
	}
	if len(sources) == 0 {
		return Skipped, nil
	}
	global, err := m.wallets.GetBalance(ctx, userID, models.GlobalCommunityID)
	if err != nil {
		return Skipped, err
	}
	sum := sumBalances(sources)
	sums.add(global+sum, global+sum)
	m.log.Debug().Str("user_id", userID).Int64("amount", sum).Msg("user would merge")
	return Processed, nil
}

func sumBalances(wallets []models.Wallet) int64 {
	var sum int64
	for _, w := range wallets {
		sum += w.Balance
	}
	return sum
}

func walletCommunities(wallets []models.Wallet) []string {
	ids := make([]string, len(wallets))
	for i, w := range wallets {
		ids[i] = w.CommunityID
	}
	return ids
}
