package migration

import (
	"context"
	"fmt"

	"merit/internal/db"
	"merit/internal/models"
	"merit/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

const VotingRestrictionsName = "migrate-voting-restrictions"

// Renames applied by the forward run. Rollback applies the inverse map, which
// also moves communities that were already "any" or "not-same-team" before
// the forward run.
var (
	restrictionRenames = []Rename{
		{From: models.VotingNotOwn, To: models.VotingAny},
		{From: models.VotingNotSameGroup, To: models.VotingNotSameTeam},
	}
	restrictionRollback = []Rename{
		{From: models.VotingAny, To: models.VotingNotOwn},
		{From: models.VotingNotSameTeam, To: models.VotingNotSameGroup},
	}
)

type Rename struct {
	From models.VotingRestriction `json:"from"`
	To   models.VotingRestriction `json:"to"`
}

type RestrictionStore interface {
	ListByVotingRestriction(ctx context.Context, restriction models.VotingRestriction) ([]models.Community, error)
	UpdateVotingRestriction(ctx context.Context, tx store.Execer, communityID string, from, to models.VotingRestriction) (bool, error)
}

// CacheInvalidator drops a community from an in-process cache. It only
// reaches caches in the same process, so it is nil when the migration runs
// outside the server.
type CacheInvalidator interface {
	Invalidate(communityID string)
}

type RenameCount struct {
	Rename
	Communities int `json:"communities"`
}

type VotingRestrictionsReport struct {
	Summary
	Rollback bool          `json:"rollback"`
	Renames  []RenameCount `json:"renames"`
}

type VotingRestrictions struct {
	txRunner    db.TxRunner
	communities RestrictionStore
	cache       CacheInvalidator
	audit       AuditStore
	log         zerolog.Logger
}

func NewVotingRestrictions(txRunner db.TxRunner, communities RestrictionStore, cache CacheInvalidator, audit AuditStore, log zerolog.Logger) *VotingRestrictions {
	return &VotingRestrictions{
		txRunner:    txRunner,
		communities: communities,
		cache:       cache,
		audit:       audit,
		log:         log,
	}
}

// Run renames voting restrictions across all communities, or reverts them
// with opts.Rollback. Each community is updated only if it still holds the
// old value, so a second run finds nothing to do.
func (v *VotingRestrictions) Run(ctx context.Context, opts Options) (VotingRestrictionsReport, error) {
	renames := restrictionRenames
	if opts.Rollback {
		renames = restrictionRollback
	}
	batch := NewBatch(VotingRestrictionsName, opts.DryRun, v.log)
	report := VotingRestrictionsReport{Rollback: opts.Rollback}

	for _, r := range renames {
		communities, err := v.communities.ListByVotingRestriction(ctx, r.From)
		if err != nil {
			report.Summary = batch.Finish()
			return report, fmt.Errorf("list communities with %s: %w", r.From, err)
		}
		ids := make([]string, len(communities))
		for i, c := range communities {
			ids[i] = c.ID
		}
		count := RenameCount{Rename: r}
		err = batch.Each(ctx, ids, 1, func(ctx context.Context, id string) (Outcome, error) {
			outcome, err := v.rename(ctx, id, r, opts.DryRun)
			if err == nil && outcome == Processed {
				count.Communities++
			}
			return outcome, err
		})
		report.Renames = append(report.Renames, count)
		if err != nil {
			report.Summary = batch.Finish()
			return report, err
		}
	}
	report.Summary = batch.Finish()
	return report, nil
}

func (v *VotingRestrictions) rename(ctx context.Context, communityID string, r Rename, dryRun bool) (Outcome, error) {
	if dryRun {
		return Processed, nil
	}
	var updated bool
	err := v.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		updated, err = v.communities.UpdateVotingRestriction(ctx, tx, communityID, r.From, r.To)
		if err != nil || !updated {
			return err
		}
		return v.audit.Log(ctx, tx, "", "voting_restriction_rename", "community", communityID, r)
	})
	if err != nil {
		return Skipped, err
	}
	if !updated {
		return Skipped, nil
	}
	if v.cache != nil {
		v.cache.Invalidate(communityID)
	}
	return Processed, nil
}
