package services

import (
	"sort"

	"merit/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SharePercents derives each investor's share of the pool total. The
// percentages are rounded to four places, so they add up to 100 within
// rounding whenever the pool has contributions.
func SharePercents(investors []models.InvestmentRecord, poolTotal int64) []models.InvestorShare {
	out := make([]models.InvestorShare, 0, len(investors))
	total := decimal.NewFromInt(poolTotal)
	for _, inv := range investors {
		share := decimal.Zero
		if poolTotal > 0 {
			share = decimal.NewFromInt(inv.Amount).Div(total).Mul(hundred).Round(4)
		}
		out = append(out, models.InvestorShare{InvestmentRecord: inv, SharePercent: share})
	}
	return out
}

// InvestorCut is the part of amount routed to investors at contractPercent,
// rounded down so the author never receives less than the contract grants.
func InvestorCut(amount, contractPercent int64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(contractPercent)).
		Div(hundred).
		Floor().
		IntPart()
}

// AllocateProportional splits amount across investors in proportion to what
// they contributed. Units left by flooring go to the largest remainders,
// ties broken by listing order, so the parts always sum to amount.
func AllocateProportional(amount int64, investors []models.InvestmentRecord) []int64 {
	parts := make([]int64, len(investors))
	var total int64
	for _, inv := range investors {
		total += inv.Amount
	}
	if amount <= 0 || total <= 0 {
		return parts
	}

	type rem struct {
		idx int
		r   decimal.Decimal
	}
	rems := make([]rem, 0, len(investors))
	whole := decimal.NewFromInt(amount)
	denom := decimal.NewFromInt(total)
	var assigned int64
	for i, inv := range investors {
		q, r := whole.Mul(decimal.NewFromInt(inv.Amount)).QuoRem(denom, 0)
		parts[i] = q.IntPart()
		assigned += parts[i]
		rems = append(rems, rem{idx: i, r: r})
	}
	sort.SliceStable(rems, func(a, b int) bool {
		return rems[a].r.GreaterThan(rems[b].r)
	})
	for i := int64(0); i < amount-assigned; i++ {
		parts[rems[i%int64(len(rems))].idx]++
	}
	return parts
}

// PlanPayouts computes a distribution of gross out of a pool holding
// poolBalance. The pool never pays more than it holds; the uncovered rest is
// the shortfall, which nobody is paid. A pool return hands everything back to
// investors; other reasons split by the contract percent.
func PlanPayouts(pool models.InvestmentPool, investors []models.InvestmentRecord, gross int64, reason models.DistributionReason) models.Distribution {
	distributed := min(gross, pool.PoolBalance)
	investorShare := InvestorCut(distributed, pool.ContractPercent)
	if reason == models.ReasonPoolReturn {
		investorShare = distributed
	}
	d := models.Distribution{
		PublicationSlug: pool.PublicationSlug,
		CommunityID:     pool.CommunityID,
		Reason:          reason,
		GrossAmount:     gross,
		Distributed:     distributed,
		Shortfall:       gross - distributed,
	}

	parts := AllocateProportional(investorShare, investors)
	for i, inv := range investors {
		d.InvestorShare += parts[i]
		if parts[i] > 0 {
			d.Payouts = append(d.Payouts, models.Payout{UserID: inv.InvestorID, Role: models.RoleInvestor, Amount: parts[i]})
		}
	}
	d.AuthorShare = distributed - d.InvestorShare
	if d.AuthorShare > 0 {
		d.Payouts = append(d.Payouts, models.Payout{UserID: pool.AuthorID, Role: models.RoleAuthor, Amount: d.AuthorShare})
	}
	return d
}
