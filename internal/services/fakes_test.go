package services

import (
	"context"
	"database/sql"
	"maps"
	"sync"
	"time"

	"merit/internal/amount"
	"merit/internal/models"
	"merit/internal/store"
	"merit/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

// memBank is an in-memory wallet and ledger store. Its WithTx serializes
// callers and restores the previous state when fn fails, standing in for a
// serializable Postgres transaction.
type memBank struct {
	mu       sync.Mutex
	wallets  map[[2]string]int64
	ledger   []models.Transaction
	metrics  map[string]store.TargetMetrics
	appendFn func(t models.Transaction) error
}

func newMemBank() *memBank {
	return &memBank{
		wallets: map[[2]string]int64{},
		metrics: map[string]store.TargetMetrics{},
	}
}

func (b *memBank) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	wallets := maps.Clone(b.wallets)
	metrics := maps.Clone(b.metrics)
	n := len(b.ledger)
	if err := fn(nil); err != nil {
		b.wallets, b.metrics, b.ledger = wallets, metrics, b.ledger[:n]
		return err
	}
	return nil
}

func (b *memBank) balance(userID, communityID string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.wallets[[2]string{userID, communityID}]
}

func (b *memBank) GetForUpdate(_ context.Context, _ store.Getter, userID, communityID string) (models.Wallet, error) {
	return models.Wallet{UserID: userID, CommunityID: communityID, Balance: b.wallets[[2]string{userID, communityID}]}, nil
}

func (b *memBank) Credit(_ context.Context, _ store.Execer, userID, communityID string, amount int64) error {
	if amount < 0 {
		return models.ErrInvalidAmount
	}
	b.wallets[[2]string{userID, communityID}] += amount
	return nil
}

func (b *memBank) Debit(_ context.Context, _ store.Execer, userID, communityID string, amount int64) error {
	key := [2]string{userID, communityID}
	if amount > b.wallets[key] {
		return models.ErrInsufficientFunds
	}
	b.wallets[key] -= amount
	return nil
}

func (b *memBank) Append(_ context.Context, _ store.Execer, t models.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if b.appendFn != nil {
		if err := b.appendFn(t); err != nil {
			return err
		}
	}
	b.ledger = append(b.ledger, t)
	target := t.FocusAssetURI.String()
	m := b.metrics[target]
	m.TargetURI = target
	switch {
	case t.Type.IsVote():
		m.Metrics = m.Metrics.Apply(t.Value)
	case t.Type == models.TypeWithdrawalFromPublication || t.Type == models.TypeWithdrawalFromTransaction:
		m.Withdrawn += t.Value
	}
	b.metrics[target] = m
	return nil
}

func (b *memBank) GetByUID(_ context.Context, uid string) (models.Transaction, error) {
	for _, t := range b.ledger {
		if t.UID == uid {
			return t, nil
		}
	}
	return models.Transaction{}, sql.ErrNoRows
}

func (b *memBank) GetMetricsForUpdate(_ context.Context, _ store.Getter, targetURI string) (store.TargetMetrics, error) {
	m := b.metrics[targetURI]
	m.TargetURI = targetURI
	return m, nil
}

// freeSpent sums the quota-funded part of a user's votes, like the ledger query.
func (b *memBank) freeSpent(userID, communityID string) int64 {
	var spent int64
	for _, t := range b.ledger {
		if t.Initiator().ID == userID && t.Space().ID == communityID {
			spent += t.Amounts().Free
		}
	}
	return spent
}

// walletDeltas folds ledger rows into each initiator's net wallet movement.
// Votes spend their wallet-funded part; every other row carries its own sign.
func walletDeltas(ledger []models.Transaction) map[string]int64 {
	out := map[string]int64{}
	for _, t := range ledger {
		user := t.Initiator().ID
		if t.Type.IsVote() {
			out[user] -= amount.Abs(t.Amounts().Personal)
			continue
		}
		out[user] += t.Value
	}
	return out
}

// memQuota derives remaining quota from the bank's ledger.
type memQuota struct {
	bank  *memBank
	daily int64
}

func (q memQuota) RemainingToday(_ context.Context, _ store.Getter, userID, communityID string) (int64, error) {
	return max(q.daily-q.bank.freeSpent(userID, communityID), 0), nil
}

func (q memQuota) Consume(ctx context.Context, g store.Getter, userID, communityID string, amount int64) error {
	remaining, _ := q.RemainingToday(ctx, g, userID, communityID)
	if amount > remaining {
		return models.ErrQuotaExceeded
	}
	return nil
}

type noopLocks struct{}

func (noopLocks) LockWallet(context.Context, store.Execer, string, string) error { return nil }
func (noopLocks) LockPool(context.Context, store.Execer, string) error           { return nil }

type stubCommunities map[string]models.Community

func (s stubCommunities) Get(_ context.Context, id string) (models.Community, error) {
	c, ok := s[id]
	if !ok {
		return models.Community{}, sql.ErrNoRows
	}
	return c, nil
}

type stubPublications map[string]models.Publication

func (s stubPublications) Get(_ context.Context, slug string) (models.Publication, error) {
	p, ok := s[slug]
	if !ok {
		return models.Publication{}, sql.ErrNoRows
	}
	return p, nil
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

type stubAuditStore struct {
	mu      sync.Mutex
	actions []string
}

func (s *stubAuditStore) Log(_ context.Context, _ store.Execer, _, action, _, _ string, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	return nil
}

type recordingHub struct {
	mu      sync.Mutex
	updates map[string][]websocket.BalanceUpdate
}

func (h *recordingHub) BroadcastBalance(userID string, update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.updates == nil {
		h.updates = map[string][]websocket.BalanceUpdate{}
	}
	h.updates[userID] = append(h.updates[userID], update)
}

var fixedTime = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
