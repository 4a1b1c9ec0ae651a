package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"merit/internal/models"
	"merit/internal/uri"

	"github.com/lib/pq"
)

// LedgerStore appends transactions and keeps the per-target vote metrics in
// target_metrics, which must always equal FoldMetrics over the ledger.
type LedgerStore struct {
	db DB
}

type Sort string

const (
	SortRecent Sort = "recent"
	SortVoted  Sort = "voted"
)

// TargetMetrics are the stored counters of a publication or transaction.
type TargetMetrics struct {
	TargetURI string `db:"target_uri" json:"targetUri"`
	models.Metrics
	Withdrawn int64 `db:"withdrawn" json:"withdrawn"`
}

// Available is what the target's author may still withdraw.
func (m TargetMetrics) Available() int64 {
	if avail := m.Sum - m.Withdrawn; avail > 0 {
		return avail
	}
	return 0
}

type LedgerFilter struct {
	FocusURI     string
	InitiatorID  string
	SubjectID    string
	Types        []models.TransactionType
	PositiveOnly bool
	Sort         Sort
	Limit        int
}

type transactionRow struct {
	UID           string         `db:"uid"`
	DomainName    string         `db:"domain_name"`
	Type          string         `db:"type"`
	FocusAssetURI string         `db:"focus_asset_uri"`
	Initiators    pq.StringArray `db:"initiators"`
	Subjects      pq.StringArray `db:"subjects"`
	Spaces        pq.StringArray `db:"spaces"`
	Value         int64          `db:"value"`
	Meta          []byte         `db:"meta"`
	CreatedAt     time.Time      `db:"created_at"`
	Plus          int64          `db:"plus"`
	Minus         int64          `db:"minus"`
	Sum           int64          `db:"sum"`
}

const transactionSelect = `
	SELECT t.uid, t.domain_name, t.type, t.focus_asset_uri, t.initiators, t.subjects, t.spaces,
	       t.value, t.meta, t.created_at,
	       COALESCE(m.plus, 0) AS plus, COALESCE(m.minus, 0) AS minus, COALESCE(m.sum, 0) AS sum
	FROM transactions t
	LEFT JOIN target_metrics m ON m.target_uri = 'agreement.transaction://' || t.uid
`

const defaultLimit = 200

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// Append inserts t and folds it into its target's counters. Votes move
// plus/minus/sum, withdrawals move withdrawn.
func (s *LedgerStore) Append(ctx context.Context, tx Execer, t models.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	meta, err := json.Marshal(t.Meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (uid, domain_name, type, focus_asset_uri, initiators, subjects, spaces,
		                          initiator_id, subject_id, community_id, value, free_amount, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		t.UID, t.DomainName, string(t.Type), t.FocusAssetURI.String(),
		pq.Array(uri.Strings(t.InitiatorsActorURIs)),
		pq.Array(uri.Strings(t.SubjectsActorURIs)),
		pq.Array(uri.Strings(t.SpacesActorURIs)),
		t.Initiator().ID, t.Subject().ID, t.Space().ID,
		t.Value, t.Amounts().Free, meta, t.CreatedAt,
	)
	if err != nil {
		return err
	}

	target := t.FocusAssetURI.String()
	switch {
	case t.Type.IsVote():
		delta := models.Metrics{}.Apply(t.Value)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO target_metrics (target_uri, plus, minus, sum, withdrawn, updated_at)
			VALUES ($1, $2, $3, $4, 0, NOW())
			ON CONFLICT (target_uri) DO UPDATE
			SET plus = target_metrics.plus + EXCLUDED.plus,
			    minus = target_metrics.minus + EXCLUDED.minus,
			    sum = target_metrics.sum + EXCLUDED.sum,
			    updated_at = NOW()
		`, target, delta.Plus, delta.Minus, delta.Sum)
	case t.Type == models.TypeWithdrawalFromPublication || t.Type == models.TypeWithdrawalFromTransaction:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO target_metrics (target_uri, plus, minus, sum, withdrawn, updated_at)
			VALUES ($1, 0, 0, 0, $2, NOW())
			ON CONFLICT (target_uri) DO UPDATE
			SET withdrawn = target_metrics.withdrawn + EXCLUDED.withdrawn,
			    updated_at = NOW()
		`, target, t.Value)
	}
	return err
}

func (s *LedgerStore) GetByUID(ctx context.Context, uid string) (models.Transaction, error) {
	var row transactionRow
	if err := s.db.GetContext(ctx, &row, transactionSelect+` WHERE t.uid = $1`, uid); err != nil {
		return models.Transaction{}, err
	}
	return row.toModel()
}

func (s *LedgerStore) FindForPublication(ctx context.Context, slug string, positiveOnly bool, sort Sort) ([]models.Transaction, error) {
	return s.Find(ctx, LedgerFilter{
		FocusURI:     uri.Publication(slug).String(),
		Types:        models.VoteTypes,
		PositiveOnly: positiveOnly,
		Sort:         sort,
	})
}

func (s *LedgerStore) FindForTransaction(ctx context.Context, uid string, positiveOnly bool, sort Sort) ([]models.Transaction, error) {
	return s.Find(ctx, LedgerFilter{
		FocusURI:     uri.Transaction(uid).String(),
		Types:        models.VoteTypes,
		PositiveOnly: positiveOnly,
		Sort:         sort,
	})
}

func (s *LedgerStore) FindByInitiator(ctx context.Context, userID string, positiveOnly bool, sort Sort) ([]models.Transaction, error) {
	return s.Find(ctx, LedgerFilter{InitiatorID: userID, PositiveOnly: positiveOnly, Sort: sort})
}

func (s *LedgerStore) FindBySubject(ctx context.Context, userID string, positiveOnly bool, sort Sort) ([]models.Transaction, error) {
	return s.Find(ctx, LedgerFilter{SubjectID: userID, PositiveOnly: positiveOnly, Sort: sort})
}

func (s *LedgerStore) Find(ctx context.Context, f LedgerFilter) ([]models.Transaction, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+itoa(len(args))))
	}
	if f.FocusURI != "" {
		add("t.focus_asset_uri = ?", f.FocusURI)
	}
	if f.InitiatorID != "" {
		add("t.initiator_id = ?", f.InitiatorID)
	}
	if f.SubjectID != "" {
		add("t.subject_id = ?", f.SubjectID)
	}
	if len(f.Types) > 0 {
		add("t.type = ANY(?)", pq.Array(typeStrings(f.Types)))
	}
	if f.PositiveOnly {
		conds = append(conds, "t.value > 0")
	}

	query := transactionSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if f.Sort == SortVoted {
		query += " ORDER BY COALESCE(m.sum, 0) DESC, t.created_at DESC"
	} else {
		query += " ORDER BY t.created_at DESC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	args = append(args, limit)
	query += " LIMIT $" + itoa(len(args))

	var rows []transactionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]models.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// GetMetrics returns zero counters for a target nobody voted on.
func (s *LedgerStore) GetMetrics(ctx context.Context, targetURI string) (TargetMetrics, error) {
	return getMetrics(ctx, s.db, targetURI, "")
}

func (s *LedgerStore) GetMetricsForUpdate(ctx context.Context, tx Getter, targetURI string) (TargetMetrics, error) {
	return getMetrics(ctx, tx, targetURI, " FOR UPDATE")
}

func getMetrics(ctx context.Context, q Getter, targetURI, suffix string) (TargetMetrics, error) {
	var row TargetMetrics
	err := q.GetContext(ctx, &row, `
		SELECT target_uri, plus, minus, sum, withdrawn
		FROM target_metrics
		WHERE target_uri = $1`+suffix, targetURI)
	if errors.Is(err, sql.ErrNoRows) {
		return TargetMetrics{TargetURI: targetURI}, nil
	}
	if err != nil {
		return TargetMetrics{}, err
	}
	return row, nil
}

// FoldMetrics re-derives a target's vote counters from the ledger rows.
func (s *LedgerStore) FoldMetrics(ctx context.Context, targetURI string) (models.Metrics, error) {
	var m models.Metrics
	err := s.db.GetContext(ctx, &m, `
		SELECT COALESCE(SUM(CASE WHEN value > 0 THEN value ELSE 0 END), 0) AS plus,
		       COALESCE(SUM(CASE WHEN value < 0 THEN -value ELSE 0 END), 0) AS minus,
		       COALESCE(SUM(value), 0) AS sum
		FROM transactions
		WHERE focus_asset_uri = $1 AND type = ANY($2)
	`, targetURI, pq.Array(typeStrings(models.VoteTypes)))
	return m, err
}

// FreeSpentSince sums the quota-funded part of the user's votes in a
// community since the given boundary.
func (s *LedgerStore) FreeSpentSince(ctx context.Context, q Getter, userID, communityID string, since time.Time) (int64, error) {
	if q == nil {
		q = s.db
	}
	var spent int64
	err := q.GetContext(ctx, &spent, `
		SELECT COALESCE(SUM(free_amount), 0)
		FROM transactions
		WHERE initiator_id = $1 AND community_id = $2 AND created_at >= $3
	`, userID, communityID, since)
	return spent, err
}

func (r transactionRow) toModel() (models.Transaction, error) {
	focus, err := uri.Parse(r.FocusAssetURI)
	if err != nil {
		return models.Transaction{}, err
	}
	t := models.Transaction{
		UID:           r.UID,
		DomainName:    r.DomainName,
		Type:          models.TransactionType(r.Type),
		FocusAssetURI: focus,
		Value:         r.Value,
		CreatedAt:     r.CreatedAt,
	}
	if t.InitiatorsActorURIs, err = uri.ParseAll(r.Initiators); err != nil {
		return models.Transaction{}, err
	}
	if t.SubjectsActorURIs, err = uri.ParseAll(r.Subjects); err != nil {
		return models.Transaction{}, err
	}
	if t.SpacesActorURIs, err = uri.ParseAll(r.Spaces); err != nil {
		return models.Transaction{}, err
	}
	if t.Meta, err = models.DecodeMeta(t.Type, r.Meta); err != nil {
		return models.Transaction{}, err
	}
	t.Meta.Base().Metrics = models.Metrics{Plus: r.Plus, Minus: r.Minus, Sum: r.Sum}
	return t, nil
}

func typeStrings(types []models.TransactionType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}
