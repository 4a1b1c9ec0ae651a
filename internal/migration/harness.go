// Package migration runs one-off batch jobs over stored records. A batch
// isolates failures per record: an error is collected and the batch moves
// on, so a re-run only has the failed records left to do.
package migration

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"merit/internal/logger"
	"merit/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	DryRun   bool
	Rollback bool
	Workers  int
}

// RecordError is a failure of a single record. It does not abort the batch.
type RecordError struct {
	RecordID string
	Err      error
}

func (e RecordError) Error() string {
	return e.RecordID + ": " + e.Err.Error()
}

func (e RecordError) Unwrap() error {
	return e.Err
}

func (e RecordError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RecordID string `json:"recordId"`
		Error    string `json:"error"`
	}{e.RecordID, e.Err.Error()})
}

type Outcome int

const (
	Processed Outcome = iota
	Skipped
)

// Summary is the common part of every migration report.
type Summary struct {
	Migration  string        `json:"migration"`
	DryRun     bool          `json:"dryRun"`
	Processed  int           `json:"processed"`
	Skipped    int           `json:"skipped"`
	Errors     []RecordError `json:"errors"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
}

// Batch applies a function to a list of record ids and tallies the outcomes.
type Batch struct {
	name   string
	dryRun bool
	log    zerolog.Logger

	mu      sync.Mutex
	summary Summary
}

func NewBatch(name string, dryRun bool, log zerolog.Logger) *Batch {
	return &Batch{
		name:   name,
		dryRun: dryRun,
		log:    logger.WithMigration(log, name, dryRun),
		summary: Summary{
			Migration: name,
			DryRun:    dryRun,
			Errors:    []RecordError{},
			StartedAt: time.Now().UTC(),
		},
	}
}

func (b *Batch) Logger() zerolog.Logger {
	return b.log
}

// Each runs fn for every id with at most workers in flight. Record errors are
// collected; only cancellation of ctx stops the batch early.
func (b *Batch) Each(ctx context.Context, ids []string, workers int, fn func(ctx context.Context, id string) (Outcome, error)) error {
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			outcome, err := fn(gctx, id)
			b.record(id, outcome, err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (b *Batch) record(id string, outcome Outcome, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case err != nil:
		b.summary.Errors = append(b.summary.Errors, RecordError{RecordID: id, Err: err})
		metrics.MigrationRecords.WithLabelValues(b.name, "failed").Inc()
		b.log.Error().Err(err).Str("record_id", id).Msg("record failed")
	case outcome == Skipped:
		b.summary.Skipped++
		metrics.MigrationRecords.WithLabelValues(b.name, "skipped").Inc()
	default:
		b.summary.Processed++
		metrics.MigrationRecords.WithLabelValues(b.name, "processed").Inc()
	}
}

// Finish stamps the end time and returns the tallies.
func (b *Batch) Finish() Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summary.FinishedAt = time.Now().UTC()
	b.log.Info().
		Int("processed", b.summary.Processed).
		Int("skipped", b.summary.Skipped).
		Int("failed", len(b.summary.Errors)).
		Msg("migration finished")
	s := b.summary
	s.Errors = append([]RecordError{}, b.summary.Errors...)
	return s
}
