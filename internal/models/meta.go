package models

import (
	"encoding/json"
	"fmt"

	"merit/internal/uri"
)

// Amounts is the funding breakdown of a transaction. Free is the
// quota-sourced portion and is never negative; Personal is the
// wallet-sourced portion and carries the direction sign, as does Total.
type Amounts struct {
	Personal                    int64  `json:"personal"`
	Free                        int64  `json:"free"`
	Total                       int64  `json:"total"`
	CurrencyOfCommunityTgChatID string `json:"currencyOfCommunityTgChatId"`
}

// Metrics aggregates votes received by a target. Minus is a magnitude.
type Metrics struct {
	Plus  int64 `json:"plus" db:"plus"`
	Minus int64 `json:"minus" db:"minus"`
	Sum   int64 `json:"sum" db:"sum"`
}

func (m Metrics) Apply(value int64) Metrics {
	switch {
	case value > 0:
		m.Plus += value
	case value < 0:
		m.Minus += -value
	}
	m.Sum = m.Plus - m.Minus
	return m
}

func (m Metrics) Consistent() bool {
	return m.Plus >= 0 && m.Minus >= 0 && m.Sum == m.Plus-m.Minus
}

// MetaBase holds the fields every transaction type carries.
type MetaBase struct {
	Amounts Amounts `json:"amounts"`
	Metrics Metrics `json:"metrics"`
	Comment string  `json:"comment,omitempty"`
}

func (b *MetaBase) Base() *MetaBase { return b }

// Meta is the per-type payload of a Transaction. The concrete type is fixed
// by Transaction.Type: VoteMeta, WithdrawalMeta, ExchangeMeta or RewardMeta.
type Meta interface {
	Base() *MetaBase
	accepts(t TransactionType) bool
}

// VoteMeta backs forPublication and forTransaction. ParentPublicationURI is
// set on votes for another transaction and names the publication it sits under.
type VoteMeta struct {
	MetaBase
	ParentPublicationURI uri.URI `json:"parentPublicationUri"`
}

func (*VoteMeta) accepts(t TransactionType) bool {
	return t == TypeForPublication || t == TypeForTransaction
}

type WithdrawalMeta struct {
	MetaBase
}

func (*WithdrawalMeta) accepts(t TransactionType) bool {
	return t == TypeWithdrawalFromPublication || t == TypeWithdrawalFromTransaction
}

type ExchangeMeta struct {
	MetaBase
	ExchangeTransactionURI uri.URI `json:"exchangeTransactionUri"`
}

func (*ExchangeMeta) accepts(t TransactionType) bool {
	return t == TypeExchange
}

// RewardMeta backs wallet movements outside voting. RewardReason is
// RewardReasonInvestment for a contribution into a pool, otherwise the reason
// of the distribution that paid it; DistributionID names that distribution.
type RewardMeta struct {
	MetaBase
	RewardReason   string `json:"rewardReason,omitempty"`
	DistributionID string `json:"distributionId,omitempty"`
}

const RewardReasonInvestment = "investment"

func (*RewardMeta) accepts(t TransactionType) bool {
	return t == TypeReward
}

// NewMeta returns an empty payload of the type t requires.
func NewMeta(t TransactionType) (Meta, error) {
	switch t {
	case TypeForPublication, TypeForTransaction:
		return &VoteMeta{}, nil
	case TypeWithdrawalFromPublication, TypeWithdrawalFromTransaction:
		return &WithdrawalMeta{}, nil
	case TypeExchange:
		return &ExchangeMeta{}, nil
	case TypeReward:
		return &RewardMeta{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, t)
	}
}

func DecodeMeta(t TransactionType, raw []byte) (Meta, error) {
	meta, err := NewMeta(t)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return meta, nil
	}
	if err := json.Unmarshal(raw, meta); err != nil {
		return nil, fmt.Errorf("decode %s meta: %w", t, err)
	}
	return meta, nil
}
