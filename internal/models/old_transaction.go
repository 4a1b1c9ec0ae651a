package models

import "time"

// OldTransaction is the flat document shape legacy clients read from
// GET /transaction. Amounts are magnitudes; DirectionPlus carries the sign.
type OldTransaction struct {
	ID                          string    `json:"_id"`
	Reason                      string    `json:"reason"`
	Amount                      int64     `json:"amount"`
	AmountFree                  int64     `json:"amountFree"`
	AmountTotal                 int64     `json:"amountTotal"`
	DirectionPlus               bool      `json:"directionPlus"`
	Plus                        int64     `json:"plus"`
	Minus                       int64     `json:"minus"`
	Sum                         int64     `json:"sum"`
	Comment                     string    `json:"comment,omitempty"`
	CurrencyOfCommunityTgChatID string    `json:"currencyOfCommunityTgChatId"`
	FromUserTgID                string    `json:"fromUserTgId"`
	ToUserTgID                  string    `json:"toUserTgId,omitempty"`
	InSpaceSlug                 string    `json:"inSpaceSlug,omitempty"`
	ForPublicationSlug          string    `json:"forPublicationSlug,omitempty"`
	ForTransactionID            string    `json:"forTransactionId,omitempty"`
	InPublicationSlug           string    `json:"inPublicationSlug,omitempty"`
	ExchangeTransactionID       string    `json:"exchangeTransactionId,omitempty"`
	RewardReason                string    `json:"rewardReason,omitempty"`
	Ts                          time.Time `json:"ts"`
}
