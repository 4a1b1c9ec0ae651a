package store

import (
	"context"
	"database/sql"
	"errors"

	"merit/internal/models"

	"github.com/lib/pq"
)

type WalletStore struct {
	db DB
}

func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

const walletColumns = `user_id, community_id, balance, last_updated, migrated_to_global, migrated_at`

// GetBalance returns 0 for a wallet that was never credited.
func (s *WalletStore) GetBalance(ctx context.Context, userID, communityID string) (int64, error) {
	var balance int64
	err := s.db.GetContext(ctx, &balance, `
		SELECT COALESCE((
			SELECT balance FROM wallets WHERE user_id = $1 AND community_id = $2
		), 0)
	`, userID, communityID)
	return balance, err
}

// GetForUpdate locks the wallet row. An absent wallet is returned zeroed.
func (s *WalletStore) GetForUpdate(ctx context.Context, tx Getter, userID, communityID string) (models.Wallet, error) {
	var row models.Wallet
	err := tx.GetContext(ctx, &row, `
		SELECT `+walletColumns+`
		FROM wallets
		WHERE user_id = $1 AND community_id = $2
		FOR UPDATE
	`, userID, communityID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Wallet{UserID: userID, CommunityID: communityID}, nil
	}
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

// Credit adds amount, creating the wallet on first credit.
func (s *WalletStore) Credit(ctx context.Context, tx Execer, userID, communityID string, amount int64) error {
	if amount < 0 {
		return models.ErrInvalidAmount
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, community_id, balance, last_updated)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, community_id)
		DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, last_updated = NOW()
	`, userID, communityID, amount)
	return err
}

// Debit subtracts amount only while the balance covers it.
func (s *WalletStore) Debit(ctx context.Context, tx Execer, userID, communityID string, amount int64) error {
	if amount < 0 {
		return models.ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance - $3, last_updated = NOW()
		WHERE user_id = $1 AND community_id = $2 AND balance >= $3
	`, userID, communityID, amount)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrInsufficientFunds
	}
	return nil
}

func (s *WalletStore) ListByUser(ctx context.Context, userID string) ([]models.Wallet, error) {
	var rows []models.Wallet
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+walletColumns+`
		FROM wallets
		WHERE user_id = $1
		ORDER BY community_id
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListUsersInCommunities returns every user holding a wallet in any of the
// given communities, migrated or not.
func (s *WalletStore) ListUsersInCommunities(ctx context.Context, communityIDs []string) ([]string, error) {
	var users []string
	err := s.db.SelectContext(ctx, &users, `
		SELECT DISTINCT user_id
		FROM wallets
		WHERE community_id = ANY($1)
		ORDER BY user_id
	`, pq.Array(communityIDs))
	if err != nil {
		return nil, err
	}
	return users, nil
}

// ListEligibleForMerge locks the user's wallets in the given communities
// that have not been merged into the global wallet yet.
func (s *WalletStore) ListEligibleForMerge(ctx context.Context, tx Selecter, userID string, communityIDs []string) ([]models.Wallet, error) {
	var rows []models.Wallet
	err := tx.SelectContext(ctx, &rows, `
		SELECT `+walletColumns+`
		FROM wallets
		WHERE user_id = $1 AND community_id = ANY($2) AND migrated_to_global = FALSE
		ORDER BY community_id
		FOR UPDATE
	`, userID, pq.Array(communityIDs))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListEligible is the unlocked read used by dry runs.
func (s *WalletStore) ListEligible(ctx context.Context, userID string, communityIDs []string) ([]models.Wallet, error) {
	var rows []models.Wallet
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+walletColumns+`
		FROM wallets
		WHERE user_id = $1 AND community_id = ANY($2) AND migrated_to_global = FALSE
		ORDER BY community_id
	`, userID, pq.Array(communityIDs))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkMigrated zeroes a source wallet and flags it, provided it still holds
// the balance that was summed. It reports whether the row was updated.
func (s *WalletStore) MarkMigrated(ctx context.Context, tx Execer, userID, communityID string, expectedBalance int64) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = 0, migrated_to_global = TRUE, migrated_at = NOW(), last_updated = NOW()
		WHERE user_id = $1 AND community_id = $2 AND migrated_to_global = FALSE AND balance = $3
	`, userID, communityID, expectedBalance)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
