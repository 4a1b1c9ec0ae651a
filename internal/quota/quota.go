// Package quota derives the daily free allowance of a (user, community)
// pair from the quota-funded part of the ledger since the last reset.
package quota

import (
	"context"
	"fmt"
	"time"

	"merit/internal/models"
	"merit/internal/store"
)

type CommunitySource interface {
	Get(ctx context.Context, communityID string) (models.Community, error)
}

type UsageSource interface {
	FreeSpentSince(ctx context.Context, q store.Getter, userID, communityID string, since time.Time) (int64, error)
}

type Manager struct {
	communities CommunitySource
	usage       UsageSource
	loc         *time.Location
	now         func() time.Time
}

func NewManager(communities CommunitySource, usage UsageSource, loc *time.Location) *Manager {
	if loc == nil {
		loc = time.UTC
	}
	return &Manager{communities: communities, usage: usage, loc: loc, now: time.Now}
}

// Boundary returns the start of the quota day containing now and the next
// reset, both at midnight in loc.
func Boundary(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Record computes the quota state. q may be a transaction holding the
// wallet lock, or nil to read from the pool.
func (m *Manager) Record(ctx context.Context, q store.Getter, userID, communityID string) (models.QuotaRecord, error) {
	community, err := m.communities.Get(ctx, communityID)
	if err != nil {
		return models.QuotaRecord{}, fmt.Errorf("load community %s: %w", communityID, err)
	}
	start, next := Boundary(m.now(), m.loc)
	spent, err := m.usage.FreeSpentSince(ctx, q, userID, communityID, start)
	if err != nil {
		return models.QuotaRecord{}, err
	}
	return models.QuotaRecord{
		UserID:         userID,
		CommunityID:    communityID,
		DailyQuota:     community.DailyEmission,
		RemainingToday: clamp(community.DailyEmission-spent, 0, community.DailyEmission),
		ResetsAt:       next,
	}, nil
}

func (m *Manager) RemainingToday(ctx context.Context, q store.Getter, userID, communityID string) (int64, error) {
	rec, err := m.Record(ctx, q, userID, communityID)
	if err != nil {
		return 0, err
	}
	return rec.RemainingToday, nil
}

// Consume admits amount against today's allowance. The consumption itself is
// the free_amount of the ledger row appended in the same transaction, so
// callers must hold the wallet lock from this check until that append.
func (m *Manager) Consume(ctx context.Context, q store.Getter, userID, communityID string, amount int64) error {
	if amount < 0 {
		return models.ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}
	remaining, err := m.RemainingToday(ctx, q, userID, communityID)
	if err != nil {
		return err
	}
	if amount > remaining {
		return fmt.Errorf("%w: requested %d, remaining %d", models.ErrQuotaExceeded, amount, remaining)
	}
	return nil
}

func clamp(v, lo, hi int64) int64 {
	if hi < lo {
		hi = lo
	}
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
