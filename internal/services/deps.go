package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"merit/internal/models"
	"merit/internal/store"
	"merit/internal/uri"
	"merit/internal/websocket"
)

type WalletStore interface {
	GetForUpdate(ctx context.Context, tx store.Getter, userID, communityID string) (models.Wallet, error)
	Credit(ctx context.Context, tx store.Execer, userID, communityID string, amount int64) error
	Debit(ctx context.Context, tx store.Execer, userID, communityID string, amount int64) error
}

type LockStore interface {
	LockWallet(ctx context.Context, tx store.Execer, userID, communityID string) error
	LockPool(ctx context.Context, tx store.Execer, publicationSlug string) error
}

type LedgerStore interface {
	Append(ctx context.Context, tx store.Execer, t models.Transaction) error
	GetByUID(ctx context.Context, uid string) (models.Transaction, error)
	GetMetricsForUpdate(ctx context.Context, tx store.Getter, targetURI string) (store.TargetMetrics, error)
}

type QuotaManager interface {
	RemainingToday(ctx context.Context, q store.Getter, userID, communityID string) (int64, error)
	Consume(ctx context.Context, q store.Getter, userID, communityID string, amount int64) error
}

type CommunityReader interface {
	Get(ctx context.Context, communityID string) (models.Community, error)
}

type PublicationReader interface {
	Get(ctx context.Context, slug string) (models.Publication, error)
}

type MembershipChecker interface {
	IsMember(ctx context.Context, userID, communityID string) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data any) error
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

type TargetType string

const (
	TargetPublication TargetType = "publication"
	TargetVote        TargetType = "vote"
	TargetComment     TargetType = "comment"
)

// target is what a vote or withdrawal points at.
type target struct {
	uri         uri.URI
	communityID string
	authorID    string
	// publication the target lives under; the target itself for publications
	publication uri.URI
}

func (t target) isPublication() bool {
	return t.uri.Is(uri.KindAsset, uri.DomainPublication)
}

type targetResolver struct {
	publications PublicationReader
	ledger       LedgerStore
}

// resolve maps a publication slug or a transaction uid to its owner and
// community. Votes and comments are both ledger transactions.
func (r targetResolver) resolve(ctx context.Context, kind TargetType, id string) (target, error) {
	switch kind {
	case TargetPublication:
		pub, err := r.publications.Get(ctx, id)
		if err != nil {
			return target{}, notFound(err)
		}
		u := uri.Publication(pub.Slug)
		return target{uri: u, communityID: pub.CommunityID, authorID: pub.AuthorID, publication: u}, nil
	case TargetVote, TargetComment:
		parent, err := r.ledger.GetByUID(ctx, id)
		if err != nil {
			return target{}, notFound(err)
		}
		t := target{
			uri:         parent.URI(),
			communityID: parent.Space().ID,
			authorID:    parent.Initiator().ID,
		}
		switch {
		case parent.FocusAssetURI.Is(uri.KindAsset, uri.DomainPublication):
			t.publication = parent.FocusAssetURI
		default:
			if meta, ok := parent.Meta.(*models.VoteMeta); ok {
				t.publication = meta.ParentPublicationURI
			}
		}
		if t.communityID == "" {
			return target{}, fmt.Errorf("%w: transaction %s has no community", models.ErrUnsupportedTarget, id)
		}
		return t, nil
	default:
		return target{}, fmt.Errorf("%w: %q", models.ErrUnsupportedTarget, kind)
	}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrTargetNotFound
	}
	return err
}

func utcNow() time.Time {
	return time.Now().UTC()
}
