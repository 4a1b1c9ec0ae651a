package store

import "context"

// LockStore takes transaction-scoped advisory locks. A lock is released when
// the surrounding transaction commits or rolls back.
type LockStore struct{}

func NewLockStore() *LockStore {
	return &LockStore{}
}

func (s *LockStore) Lock(ctx context.Context, tx Execer, key string) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return err
}

// LockWallet serializes every writer of one (user, community) wallet and its quota.
func (s *LockStore) LockWallet(ctx context.Context, tx Execer, userID, communityID string) error {
	return s.Lock(ctx, tx, WalletLockKey(userID, communityID))
}

func (s *LockStore) LockPool(ctx context.Context, tx Execer, publicationSlug string) error {
	return s.Lock(ctx, tx, "pool:"+publicationSlug)
}

func WalletLockKey(userID, communityID string) string {
	return "wallet:" + userID + ":" + communityID
}
