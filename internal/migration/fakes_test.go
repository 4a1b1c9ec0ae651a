package migration

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"merit/internal/models"
	"merit/internal/store"

	"github.com/jmoiron/sqlx"
)

// memStore holds wallets and communities in memory. WithTx serializes callers
// and restores the previous state when fn fails.
type memStore struct {
	mu          sync.Mutex
	wallets     map[[2]string]models.Wallet
	communities map[string]models.Community
	creditErr   map[string]error
	audits      []string
}

func newMemStore() *memStore {
	return &memStore{
		wallets:     map[[2]string]models.Wallet{},
		communities: map[string]models.Community{},
		creditErr:   map[string]error{},
	}
}

func (s *memStore) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallets := maps.Clone(s.wallets)
	communities := maps.Clone(s.communities)
	audits := len(s.audits)
	if err := fn(nil); err != nil {
		s.wallets, s.communities, s.audits = wallets, communities, s.audits[:audits]
		return err
	}
	return nil
}

func (s *memStore) setWallet(userID, communityID string, balance int64) {
	s.wallets[[2]string{userID, communityID}] = models.Wallet{UserID: userID, CommunityID: communityID, Balance: balance}
}

func (s *memStore) wallet(userID, communityID string) models.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallets[[2]string{userID, communityID}]
}

func (s *memStore) GetBalance(_ context.Context, userID, communityID string) (int64, error) {
	return s.wallet(userID, communityID).Balance, nil
}

func (s *memStore) GetForUpdate(_ context.Context, _ store.Getter, userID, communityID string) (models.Wallet, error) {
	w := s.wallets[[2]string{userID, communityID}]
	w.UserID, w.CommunityID = userID, communityID
	return w, nil
}

func (s *memStore) Credit(_ context.Context, _ store.Execer, userID, communityID string, amount int64) error {
	if err := s.creditErr[userID]; err != nil {
		return err
	}
	key := [2]string{userID, communityID}
	w := s.wallets[key]
	w.UserID, w.CommunityID = userID, communityID
	w.Balance += amount
	s.wallets[key] = w
	return nil
}

func (s *memStore) ListUsersInCommunities(_ context.Context, communityIDs []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	for key := range s.wallets {
		for _, id := range communityIDs {
			if key[1] == id {
				seen[key[0]] = true
			}
		}
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

func (s *memStore) eligible(userID string, communityIDs []string) []models.Wallet {
	var out []models.Wallet
	for _, id := range communityIDs {
		w, ok := s.wallets[[2]string{userID, id}]
		if ok && !w.MigratedToGlobal {
			out = append(out, w)
		}
	}
	return out
}

func (s *memStore) ListEligible(_ context.Context, userID string, communityIDs []string) ([]models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eligible(userID, communityIDs), nil
}

func (s *memStore) ListEligibleForMerge(_ context.Context, _ store.Selecter, userID string, communityIDs []string) ([]models.Wallet, error) {
	return s.eligible(userID, communityIDs), nil
}

func (s *memStore) MarkMigrated(_ context.Context, _ store.Execer, userID, communityID string, expectedBalance int64) (bool, error) {
	key := [2]string{userID, communityID}
	w, ok := s.wallets[key]
	if !ok || w.MigratedToGlobal || w.Balance != expectedBalance {
		return false, nil
	}
	w.Balance = 0
	w.MigratedToGlobal = true
	at := fixedTime
	w.MigratedAt = &at
	s.wallets[key] = w
	return true, nil
}

func (s *memStore) ListByTypeTags(_ context.Context, tags []string) ([]models.Community, error) {
	var out []models.Community
	for _, c := range s.communities {
		for _, tag := range tags {
			if c.TypeTag != nil && *c.TypeTag == tag {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (s *memStore) ListByVotingRestriction(_ context.Context, restriction models.VotingRestriction) ([]models.Community, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Community
	for _, c := range s.communities {
		if c.VotingRestriction == restriction {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) UpdateVotingRestriction(_ context.Context, _ store.Execer, communityID string, from, to models.VotingRestriction) (bool, error) {
	c, ok := s.communities[communityID]
	if !ok || c.VotingRestriction != from {
		return false, nil
	}
	c.VotingRestriction = to
	s.communities[communityID] = c
	return true, nil
}

func (s *memStore) Log(_ context.Context, _ store.Execer, _, action, _, entityID string, _ any) error {
	s.audits = append(s.audits, action+":"+entityID)
	return nil
}

type noopLocks struct{}

func (noopLocks) LockWallet(context.Context, store.Execer, string, string) error { return nil }

type recordingCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *recordingCache) Invalidate(communityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, communityID)
}

var fixedTime = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func community(id, tag string, restriction models.VotingRestriction) models.Community {
	c := models.Community{ID: id, VotingRestriction: restriction}
	if tag != "" {
		c.TypeTag = &tag
	}
	return c
}
