package services

import (
	"context"
	"testing"

	"merit/internal/models"
	"merit/internal/store"
	"merit/internal/uri"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type withdrawalFixture struct {
	*investmentFixture
	votes *VoteService
	svc   *WithdrawalService
}

func newWithdrawalFixture() *withdrawalFixture {
	inv := newInvestmentFixture()
	communities := stubCommunities{
		"c1": {ID: "c1", TgChatID: "-100", DailyEmission: 10, InvestingEnabled: true, InvestorShareMin: 10, InvestorShareMax: 50},
	}
	publications := stubPublications{
		"post-1": {Slug: "post-1", CommunityID: "c1", AuthorID: "author"},
		"post-2": {Slug: "post-2", CommunityID: "c1", AuthorID: "author"},
	}
	return &withdrawalFixture{
		investmentFixture: inv,
		votes: NewVoteService(inv.bank, inv.bank, noopLocks{}, inv.bank, memQuota{bank: inv.bank, daily: 10},
			communities, publications, stubMembers{}, inv.hub, zerolog.Nop()),
		svc: NewWithdrawalService(inv.bank, inv.bank, noopLocks{}, inv.bank, communities, publications,
			inv.svc, inv.audit, inv.hub, zerolog.Nop()),
	}
}

func (f *withdrawalFixture) earn(slug string, sum int64) {
	target := uri.Publication(slug).String()
	f.bank.metrics[target] = store.TargetMetrics{TargetURI: target, Metrics: models.Metrics{Plus: sum, Sum: sum}}
}

func TestWithdrawWithoutPoolCreditsAuthor(t *testing.T) {
	f := newWithdrawalFixture()
	f.earn("post-2", 40)

	res, err := f.svc.Withdraw(context.Background(), WithdrawRequest{
		UserID: "author", TargetType: TargetPublication, TargetID: "post-2",
	})
	require.NoError(t, err)
	assert.Nil(t, res.Distribution)
	assert.Equal(t, int64(40), res.Balance)
	assert.Equal(t, int64(40), f.bank.balance("author", "c1"))

	tx := res.Transaction
	assert.Equal(t, models.TypeWithdrawalFromPublication, tx.Type)
	assert.Equal(t, int64(40), tx.Value)
	assert.Equal(t, uri.User("author"), tx.Initiator())
	require.NoError(t, tx.Validate())

	m := f.bank.metrics[uri.Publication("post-2").String()]
	assert.Equal(t, int64(40), m.Withdrawn)
	assert.Zero(t, m.Available())
	assert.Equal(t, int64(40), m.Sum)
	assert.Contains(t, f.audit.actions, "withdraw")
	require.Len(t, f.hub.updates["author"], 1)
}

func TestWithdrawThroughPoolSplitsByContract(t *testing.T) {
	f := newWithdrawalFixture()
	f.seed(t)
	f.earn("post-1", 100)

	res, err := f.svc.Withdraw(context.Background(), WithdrawRequest{
		UserID: "author", TargetType: TargetPublication, TargetID: "post-1", Amount: 100,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Distribution)
	assert.Equal(t, int64(30), res.Distribution.InvestorShare)
	assert.Equal(t, int64(100+70), res.Balance)
	assert.Equal(t, int64(100+70), f.bank.balance("author", "c1"))
	assert.Equal(t, int64(18), f.bank.balance("a", "c1"))
	assert.Equal(t, int64(22), f.bank.balance("b", "c1"))
	assert.Zero(t, f.pools.pools["post-1"].PoolBalance)
}

// holdings is every merit in the fixture: wallets, pool balances and what
// authors can still withdraw.
func (f *withdrawalFixture) holdings() int64 {
	var total int64
	for _, b := range f.bank.wallets {
		total += b
	}
	for _, p := range f.pools.pools {
		total += p.PoolBalance
	}
	for _, m := range f.bank.metrics {
		total += m.Available()
	}
	return total
}

func TestWithdrawThroughPoolConservesMerits(t *testing.T) {
	tests := []struct {
		name       string
		earned     int64
		amount     int64
		author     int64
		poolAfter  int64
		shortfall  int64
		investorsA int64
	}{
		{"pool covers the withdrawal", 100, 100, 100 + 70, 0, 0, 18},
		{"partial withdrawal", 100, 40, 40 + 28, 60, 0, 7},
		{"pool smaller than the withdrawal", 150, 0, 150 + 70, 0, 50, 18},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWithdrawalFixture()
			f.seed(t)
			f.earn("post-1", tt.earned)
			before := f.holdings()

			res, err := f.svc.Withdraw(context.Background(), WithdrawRequest{
				UserID: "author", TargetType: TargetPublication, TargetID: "post-1", Amount: tt.amount,
			})
			require.NoError(t, err)
			require.NotNil(t, res.Distribution)

			assert.Equal(t, before, f.holdings())
			assert.Equal(t, tt.author, f.bank.balance("author", "c1"))
			assert.Equal(t, tt.author, res.Balance)
			assert.Equal(t, tt.investorsA, f.bank.balance("a", "c1"))
			assert.Equal(t, tt.poolAfter, f.pools.pools["post-1"].PoolBalance)
			assert.Equal(t, tt.shortfall, res.Distribution.Shortfall)
		})
	}
}

func TestWithdrawThroughPoolIsFullyLedgered(t *testing.T) {
	f := newWithdrawalFixture()
	f.seed(t)
	ctx := context.Background()

	_, err := f.votes.Vote(ctx, VoteRequest{UserID: "b", TargetType: TargetPublication, TargetID: "post-1", Amount: 12})
	require.NoError(t, err)
	res, err := f.svc.Withdraw(ctx, WithdrawRequest{UserID: "author", TargetType: TargetPublication, TargetID: "post-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.Transaction.Value)
	_, err = f.investmentFixture.svc.ClosePool(ctx, "author", "post-1")
	require.NoError(t, err)

	opening := map[string]int64{"a": 60, "b": 50}
	deltas := walletDeltas(f.bank.ledger)
	for _, user := range []string{"a", "b", "author"} {
		assert.Equal(t, f.bank.balance(user, "c1"), opening[user]+deltas[user], user)
	}
	assert.Zero(t, f.pools.pools["post-1"].PoolBalance)
}

func TestWithdrawFromComment(t *testing.T) {
	f := newWithdrawalFixture()
	ctx := context.Background()

	comment, err := f.votes.Vote(ctx, VoteRequest{
		UserID: "commenter", TargetType: TargetPublication, TargetID: "post-1", Amount: 2, Comment: "nice",
	})
	require.NoError(t, err)
	_, err = f.votes.Vote(ctx, VoteRequest{
		UserID: "voter", TargetType: TargetComment, TargetID: comment.Transaction.UID, Amount: 5,
	})
	require.NoError(t, err)

	_, err = f.svc.Withdraw(ctx, WithdrawRequest{UserID: "author", TargetType: TargetComment, TargetID: comment.Transaction.UID})
	assert.ErrorIs(t, err, models.ErrNotAuthorized)

	res, err := f.svc.Withdraw(ctx, WithdrawRequest{UserID: "commenter", TargetType: TargetComment, TargetID: comment.Transaction.UID, Amount: 3})
	require.NoError(t, err)
	assert.Equal(t, models.TypeWithdrawalFromTransaction, res.Transaction.Type)
	assert.Equal(t, int64(3), f.bank.balance("commenter", "c1"))

	_, err = f.svc.Withdraw(ctx, WithdrawRequest{UserID: "commenter", TargetType: TargetComment, TargetID: comment.Transaction.UID, Amount: 3})
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
}

func TestWithdrawRejects(t *testing.T) {
	tests := []struct {
		name string
		req  WithdrawRequest
		err  error
	}{
		{"not the author", WithdrawRequest{UserID: "a", TargetType: TargetPublication, TargetID: "post-2", Amount: 1}, models.ErrNotAuthorized},
		{"more than available", WithdrawRequest{UserID: "author", TargetType: TargetPublication, TargetID: "post-2", Amount: 41}, models.ErrInsufficientFunds},
		{"negative amount", WithdrawRequest{UserID: "author", TargetType: TargetPublication, TargetID: "post-2", Amount: -1}, models.ErrInvalidAmount},
		{"unknown publication", WithdrawRequest{UserID: "author", TargetType: TargetPublication, TargetID: "ghost"}, models.ErrTargetNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWithdrawalFixture()
			f.earn("post-2", 40)
			_, err := f.svc.Withdraw(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.err)
			assert.Zero(t, f.bank.balance("author", "c1"))
			assert.Empty(t, f.bank.ledger)
		})
	}

	f := newWithdrawalFixture()
	_, err := f.svc.Withdraw(context.Background(), WithdrawRequest{UserID: "author", TargetType: TargetPublication, TargetID: "post-2"})
	assert.ErrorIs(t, err, models.ErrNothingToWithdraw)
}
