package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DistributionReason string

const (
	ReasonWithdrawal DistributionReason = "withdrawal"
	ReasonPoolReturn DistributionReason = "pool_return"
	ReasonClose      DistributionReason = "close"
)

func (r DistributionReason) Valid() bool {
	return r == ReasonWithdrawal || r == ReasonPoolReturn || r == ReasonClose
}

type InvestmentPool struct {
	PublicationSlug string    `db:"publication_slug" json:"publicationSlug"`
	CommunityID     string    `db:"community_id" json:"communityId"`
	AuthorID        string    `db:"author_id" json:"authorId"`
	ContractPercent int64     `db:"contract_percent" json:"contractPercent"`
	PoolBalance     int64     `db:"pool_balance" json:"poolBalance"`
	PoolTotal       int64     `db:"pool_total" json:"poolTotal"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

type InvestmentRecord struct {
	PublicationSlug string    `db:"publication_slug" json:"-"`
	InvestorID      string    `db:"investor_id" json:"investorId"`
	Amount          int64     `db:"amount" json:"amount"`
	FirstInvestDate time.Time `db:"first_invest_date" json:"firstInvestDate"`
	LastInvestDate  time.Time `db:"last_invest_date" json:"lastInvestDate"`
}

// InvestorShare is an InvestmentRecord with its derived pool share.
type InvestorShare struct {
	InvestmentRecord
	SharePercent decimal.Decimal `json:"sharePercent"`
}

type PoolBreakdown struct {
	PublicationSlug string          `json:"publicationSlug"`
	ContractPercent int64           `json:"contractPercent"`
	PoolBalance     int64           `json:"poolBalance"`
	PoolTotal       int64           `json:"poolTotal"`
	Investors       []InvestorShare `json:"investors"`
}

type EarningsEntry struct {
	ID              string             `db:"id" json:"id"`
	DistributionID  string             `db:"distribution_id" json:"distributionId"`
	PublicationSlug string             `db:"publication_slug" json:"publicationSlug"`
	InvestorID      string             `db:"investor_id" json:"investorId"`
	Amount          int64              `db:"amount" json:"amount"`
	Reason          DistributionReason `db:"reason" json:"reason"`
	CreatedAt       time.Time          `db:"created_at" json:"createdAt"`
}

type PayoutRole string

const (
	RoleInvestor PayoutRole = "investor"
	RoleAuthor   PayoutRole = "author"
)

type Payout struct {
	DistributionID string     `db:"distribution_id" json:"distributionId"`
	UserID         string     `db:"user_id" json:"userId"`
	Role           PayoutRole `db:"role" json:"role"`
	Amount         int64      `db:"amount" json:"amount"`
	PaidAt         *time.Time `db:"paid_at" json:"paidAt,omitempty"`
}

type Distribution struct {
	ID              string             `db:"id" json:"id"`
	PublicationSlug string             `db:"publication_slug" json:"publicationSlug"`
	CommunityID     string             `db:"community_id" json:"communityId"`
	Reason          DistributionReason `db:"reason" json:"reason"`
	GrossAmount     int64              `db:"gross_amount" json:"grossAmount"`
	Distributed     int64              `db:"distributed" json:"distributed"`
	Shortfall       int64              `db:"shortfall" json:"shortfall"`
	InvestorShare   int64              `db:"investor_share" json:"investorShare"`
	AuthorShare     int64              `db:"author_share" json:"authorShare"`
	CreatedAt       time.Time          `db:"created_at" json:"createdAt"`
	Payouts         []Payout           `db:"-" json:"payouts"`
}
