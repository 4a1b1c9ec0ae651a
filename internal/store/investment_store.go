package store

import (
	"context"
	"time"

	"merit/internal/models"
)

// InvestmentStore holds per-publication pools, investor records and the
// persisted distribution plans that make payouts resumable.
type InvestmentStore struct {
	db DB
}

const poolColumns = `publication_slug, community_id, author_id, contract_percent, pool_balance, pool_total, created_at`

func NewInvestmentStore(db DB) *InvestmentStore {
	return &InvestmentStore{db: db}
}

func (s *InvestmentStore) GetPool(ctx context.Context, slug string) (models.InvestmentPool, error) {
	var row models.InvestmentPool
	err := s.db.GetContext(ctx, &row, `SELECT `+poolColumns+` FROM investment_pools WHERE publication_slug = $1`, slug)
	if err != nil {
		return models.InvestmentPool{}, err
	}
	return row, nil
}

func (s *InvestmentStore) GetPoolForUpdate(ctx context.Context, tx Getter, slug string) (models.InvestmentPool, error) {
	var row models.InvestmentPool
	err := tx.GetContext(ctx, &row, `
		SELECT `+poolColumns+`
		FROM investment_pools
		WHERE publication_slug = $1
		FOR UPDATE
	`, slug)
	if err != nil {
		return models.InvestmentPool{}, err
	}
	return row, nil
}

// CreatePool fixes the contract percent for the life of the pool.
func (s *InvestmentStore) CreatePool(ctx context.Context, tx Execer, pool models.InvestmentPool) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO investment_pools (publication_slug, community_id, author_id, contract_percent, pool_balance, pool_total)
		VALUES ($1, $2, $3, $4, 0, 0)
		ON CONFLICT (publication_slug) DO NOTHING
	`, pool.PublicationSlug, pool.CommunityID, pool.AuthorID, pool.ContractPercent)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrPoolExists
	}
	return nil
}

// Contribute adds amount to the pool sums and the investor's record.
func (s *InvestmentStore) Contribute(ctx context.Context, tx Execer, slug, investorID string, amount int64, at time.Time) error {
	if amount <= 0 {
		return models.ErrInvalidAmount
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE investment_pools
		SET pool_balance = pool_balance + $2, pool_total = pool_total + $2
		WHERE publication_slug = $1
	`, slug, amount)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrPoolNotFound
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO investments (publication_slug, investor_id, amount, first_invest_date, last_invest_date)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (publication_slug, investor_id) DO UPDATE
		SET amount = investments.amount + EXCLUDED.amount,
		    last_invest_date = EXCLUDED.last_invest_date
	`, slug, investorID, amount, at)
	return err
}

func (s *InvestmentStore) ListInvestors(ctx context.Context, slug string) ([]models.InvestmentRecord, error) {
	return listInvestors(ctx, s.db, slug)
}

// ListInvestorsTx reads investors inside the transaction holding the pool lock.
func (s *InvestmentStore) ListInvestorsTx(ctx context.Context, tx Selecter, slug string) ([]models.InvestmentRecord, error) {
	return listInvestors(ctx, tx, slug)
}

func listInvestors(ctx context.Context, q Selecter, slug string) ([]models.InvestmentRecord, error) {
	var rows []models.InvestmentRecord
	err := q.SelectContext(ctx, &rows, `
		SELECT publication_slug, investor_id, amount, first_invest_date, last_invest_date
		FROM investments
		WHERE publication_slug = $1
		ORDER BY first_invest_date, investor_id
	`, slug)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DecreaseBalance never takes the pool below zero.
func (s *InvestmentStore) DecreaseBalance(ctx context.Context, tx Execer, slug string, amount int64) error {
	if amount == 0 {
		return nil
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE investment_pools
		SET pool_balance = pool_balance - $2
		WHERE publication_slug = $1 AND pool_balance >= $2
	`, slug, amount)
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

// CreateDistribution persists the plan and its unpaid payouts.
func (s *InvestmentStore) CreateDistribution(ctx context.Context, tx Execer, d models.Distribution) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO investment_distributions (id, publication_slug, community_id, reason, gross_amount,
		                                      distributed, shortfall, investor_share, author_share, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, d.ID, d.PublicationSlug, d.CommunityID, string(d.Reason), d.GrossAmount,
		d.Distributed, d.Shortfall, d.InvestorShare, d.AuthorShare, d.CreatedAt)
	if err != nil {
		return err
	}
	for _, p := range d.Payouts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO investment_payouts (distribution_id, user_id, role, amount)
			VALUES ($1, $2, $3, $4)
		`, d.ID, p.UserID, string(p.Role), p.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (s *InvestmentStore) GetDistribution(ctx context.Context, id string) (models.Distribution, error) {
	var d models.Distribution
	err := s.db.GetContext(ctx, &d, `
		SELECT id, publication_slug, community_id, reason, gross_amount, distributed, shortfall,
		       investor_share, author_share, created_at
		FROM investment_distributions
		WHERE id = $1
	`, id)
	if err != nil {
		return models.Distribution{}, err
	}
	if err := s.db.SelectContext(ctx, &d.Payouts, `
		SELECT distribution_id, user_id, role, amount, paid_at
		FROM investment_payouts
		WHERE distribution_id = $1
		ORDER BY role DESC, user_id
	`, id); err != nil {
		return models.Distribution{}, err
	}
	return d, nil
}

// ListUnfinishedDistributions returns ids of plans that still have unpaid payouts.
func (s *InvestmentStore) ListUnfinishedDistributions(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT d.id
		FROM investment_distributions d
		JOIN investment_payouts p ON p.distribution_id = d.id
		WHERE p.paid_at IS NULL
		ORDER BY d.id
	`)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkPayoutPaid claims one payout. It reports false if it was already paid.
func (s *InvestmentStore) MarkPayoutPaid(ctx context.Context, tx Execer, distributionID, userID string, role models.PayoutRole) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE investment_payouts
		SET paid_at = NOW()
		WHERE distribution_id = $1 AND user_id = $2 AND role = $3 AND paid_at IS NULL
	`, distributionID, userID, string(role))
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *InvestmentStore) AddEarnings(ctx context.Context, tx Execer, e models.EarningsEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO investment_earnings (id, distribution_id, publication_slug, investor_id, amount, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.DistributionID, e.PublicationSlug, e.InvestorID, e.Amount, string(e.Reason), e.CreatedAt)
	return err
}

func (s *InvestmentStore) ListEarnings(ctx context.Context, investorID string) ([]models.EarningsEntry, error) {
	var rows []models.EarningsEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, distribution_id, publication_slug, investor_id, amount, reason, created_at
		FROM investment_earnings
		WHERE investor_id = $1
		ORDER BY created_at DESC
	`, investorID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
