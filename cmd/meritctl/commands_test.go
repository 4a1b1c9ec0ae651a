package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"merit/internal/config"
	"merit/internal/migration"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGlobalMerit struct {
	tags []string
	opts migration.Options
}

func (s *stubGlobalMerit) Run(_ context.Context, tags []string, opts migration.Options) (migration.GlobalMeritReport, error) {
	s.tags, s.opts = tags, opts
	return migration.GlobalMeritReport{
		DryRun:             opts.DryRun,
		UsersProcessed:     2,
		TotalBalanceBefore: 13,
		TotalBalanceAfter:  13,
		Errors:             []migration.UserError{{RecordError: migration.RecordError{RecordID: "u3", Err: errors.New("boom")}}},
	}, nil
}

type stubVotingRestrictions struct {
	opts migration.Options
}

func (s *stubVotingRestrictions) Run(_ context.Context, opts migration.Options) (migration.VotingRestrictionsReport, error) {
	s.opts = opts
	return migration.VotingRestrictionsReport{
		Summary:  migration.Summary{Migration: migration.VotingRestrictionsName, Processed: 1},
		Rollback: opts.Rollback,
	}, nil
}

func testApp(gm *stubGlobalMerit, vr *stubVotingRestrictions) (opener, *bool) {
	closed := false
	return func(context.Context) (*app, error) {
		return &app{
			cfg: config.Config{
				PriorityCommunityTags: []string{"support"},
				MigrationWorkers:      4,
			},
			log:                zerolog.New(io.Discard),
			globalMerit:        gm,
			votingRestrictions: vr,
			close:              func() error { closed = true; return nil },
		}, nil
	}, &closed
}

func execute(t *testing.T, open opener, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(open, &out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	return &out, cmd.ExecuteContext(context.Background())
}

func TestGlobalMeritCommandPrintsSummary(t *testing.T) {
	gm := &stubGlobalMerit{}
	open, closed := testApp(gm, &stubVotingRestrictions{})

	out, err := execute(t, open, "migrate-to-global-merit", "--dry-run")
	require.NoError(t, err)
	assert.True(t, *closed)
	assert.Equal(t, []string{"support"}, gm.tags)
	assert.True(t, gm.opts.DryRun)
	assert.Equal(t, 4, gm.opts.Workers)

	var report map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, float64(2), report["usersProcessed"])
	assert.Equal(t, float64(13), report["totalBalanceAfter"])
	errs := report["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "u3", errs[0].(map[string]any)["userId"])
}

func TestGlobalMeritCommandWorkersFlag(t *testing.T) {
	gm := &stubGlobalMerit{}
	open, _ := testApp(gm, &stubVotingRestrictions{})

	_, err := execute(t, open, "migrate-to-global-merit", "--workers", "9")
	require.NoError(t, err)
	assert.False(t, gm.opts.DryRun)
	assert.Equal(t, 9, gm.opts.Workers)
}

func TestVotingRestrictionsCommandRollback(t *testing.T) {
	vr := &stubVotingRestrictions{}
	open, _ := testApp(&stubGlobalMerit{}, vr)

	out, err := execute(t, open, "migrate-voting-restrictions", "--rollback", "--dry-run")
	require.NoError(t, err)
	assert.True(t, vr.opts.Rollback)
	assert.True(t, vr.opts.DryRun)
	assert.Contains(t, out.String(), `"rollback": true`)
}

func TestVotingRestrictionsCommandNotesServerCacheTTL(t *testing.T) {
	var logs bytes.Buffer
	open := func(context.Context) (*app, error) {
		return &app{
			cfg:                config.Config{CommunityCacheTTL: 5 * time.Minute},
			log:                zerolog.New(&logs),
			votingRestrictions: &stubVotingRestrictions{},
			close:              func() error { return nil },
		}, nil
	}

	_, err := execute(t, open, "migrate-voting-restrictions")
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "community cache expires")
	assert.Contains(t, logs.String(), "community_cache_ttl")

	logs.Reset()
	_, err = execute(t, open, "migrate-voting-restrictions", "--dry-run")
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), "community cache expires")
}

func TestSetupFailureReturnsError(t *testing.T) {
	open := func(context.Context) (*app, error) {
		return nil, errors.New("connection refused")
	}
	out, err := execute(t, open, "migrate-to-global-merit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup")
	assert.Zero(t, out.Len())
}
