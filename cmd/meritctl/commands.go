package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"merit/internal/config"
	"merit/internal/migration"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type globalMeritRunner interface {
	Run(ctx context.Context, priorityTags []string, opts migration.Options) (migration.GlobalMeritReport, error)
}

type votingRestrictionsRunner interface {
	Run(ctx context.Context, opts migration.Options) (migration.VotingRestrictionsReport, error)
}

type app struct {
	cfg                config.Config
	log                zerolog.Logger
	globalMerit        globalMeritRunner
	votingRestrictions votingRestrictionsRunner
	close              func() error
}

type opener func(ctx context.Context) (*app, error)

func newRootCmd(open opener, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "meritctl",
		Short:        "Maintenance jobs for the merit ledger",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.AddCommand(newGlobalMeritCmd(open), newVotingRestrictionsCmd(open))
	return root
}

func newGlobalMeritCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate-to-global-merit",
		Short: "Merge priority community wallets into each user's global wallet",
		Long: `Sums every wallet a user holds in the priority communities, credits the
total to the global wallet and zeroes the sources. Wallets already merged are
skipped, so the job can be re-run after a partial failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			workers, _ := cmd.Flags().GetInt("workers")

			a, err := open(cmd.Context())
			if err != nil {
				return fmt.Errorf("setup: %w", err)
			}
			defer a.close()

			if workers <= 0 {
				workers = a.cfg.MigrationWorkers
			}
			report, err := a.globalMerit.Run(cmd.Context(), a.cfg.PriorityCommunityTags, migration.Options{DryRun: dryRun, Workers: workers})
			if err != nil {
				return err
			}
			a.log.Info().
				Int("processed", report.UsersProcessed).
				Int("skipped", report.UsersSkipped).
				Int("errors", len(report.Errors)).
				Msg("global merit migration finished")
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().Bool("dry-run", false, "Compute totals without writing")
	cmd.Flags().Int("workers", 0, "Users merged in parallel (defaults to MIGRATION_WORKERS)")
	return cmd
}

func newVotingRestrictionsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate-voting-restrictions",
		Short: "Rename legacy community voting restrictions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			rollback, _ := cmd.Flags().GetBool("rollback")

			a, err := open(cmd.Context())
			if err != nil {
				return fmt.Errorf("setup: %w", err)
			}
			defer a.close()

			report, err := a.votingRestrictions.Run(cmd.Context(), migration.Options{DryRun: dryRun, Rollback: rollback})
			if err != nil {
				return err
			}
			a.log.Info().
				Int("processed", report.Processed).
				Bool("rollback", rollback).
				Msg("voting restriction migration finished")
			if !dryRun && report.Processed > 0 {
				// server processes keep their cached copy until it expires
				a.log.Info().
					Dur("community_cache_ttl", a.cfg.CommunityCacheTTL).
					Msg("running servers apply the new restrictions after their community cache expires")
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().Bool("dry-run", false, "List the renames without writing")
	cmd.Flags().Bool("rollback", false, "Apply the inverse renames")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
