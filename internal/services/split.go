package services

import (
	"strings"

	"merit/internal/amount"
	"merit/internal/models"
)

// Split is how a vote is funded. Quota and Wallet are magnitudes; Total
// carries the vote direction.
type Split struct {
	Quota  int64 `json:"quota"`
	Wallet int64 `json:"wallet"`
	Total  int64 `json:"total"`
}

func (s Split) Amounts(currency string) models.Amounts {
	return models.Amounts{
		Personal:                    amount.Sign(s.Total) * s.Wallet,
		Free:                        s.Quota,
		Total:                       s.Total,
		CurrencyOfCommunityTgChatID: currency,
	}
}

// Resolve funds a signed vote amount. Upvotes draw quota first and the rest
// from the wallet; downvotes draw from the wallet only and need a comment.
// Nothing is partially funded: either the whole amount is covered or an error
// is returned.
func Resolve(value, remainingToday, walletBalance int64, comment string) (Split, error) {
	switch amount.Sign(value) {
	case 0:
		return Split{}, models.ErrInvalidAmount
	case -1:
		if strings.TrimSpace(comment) == "" {
			return Split{}, models.ErrCommentRequired
		}
		if amount.Abs(value) > walletBalance {
			return Split{}, models.ErrInsufficientFunds
		}
		return Split{Wallet: amount.Abs(value), Total: value}, nil
	}
	quota := min(value, max(remainingToday, 0))
	wallet := value - quota
	if wallet > walletBalance {
		return Split{}, models.ErrInsufficientFunds
	}
	return Split{Quota: quota, Wallet: wallet, Total: value}, nil
}
