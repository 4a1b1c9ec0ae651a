package store

import (
	"context"
	"time"

	"merit/internal/models"

	"github.com/lib/pq"
	"github.com/patrickmn/go-cache"
)

type CommunityStore struct {
	db DB
}

const communityColumns = `id, tg_chat_id, name, type_tag, currency_singular, currency_plural, daily_emission,
	investing_enabled, investor_share_min, investor_share_max, voting_restriction, created_at`

func NewCommunityStore(db DB) *CommunityStore {
	return &CommunityStore{db: db}
}

func (s *CommunityStore) Get(ctx context.Context, communityID string) (models.Community, error) {
	var row models.Community
	err := s.db.GetContext(ctx, &row, `SELECT `+communityColumns+` FROM communities WHERE id = $1`, communityID)
	if err != nil {
		return models.Community{}, err
	}
	return row, nil
}

// ListByTypeTags returns the communities carrying any of the given type tags.
func (s *CommunityStore) ListByTypeTags(ctx context.Context, tags []string) ([]models.Community, error) {
	var rows []models.Community
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+communityColumns+`
		FROM communities
		WHERE type_tag = ANY($1)
		ORDER BY id
	`, pq.Array(tags))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *CommunityStore) ListByVotingRestriction(ctx context.Context, restriction models.VotingRestriction) ([]models.Community, error) {
	var rows []models.Community
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+communityColumns+`
		FROM communities
		WHERE voting_restriction = $1
		ORDER BY id
	`, string(restriction))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateVotingRestriction swaps from for to. It reports false when the
// community no longer holds from.
func (s *CommunityStore) UpdateVotingRestriction(ctx context.Context, tx Execer, communityID string, from, to models.VotingRestriction) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE communities
		SET voting_restriction = $3
		WHERE id = $1 AND voting_restriction = $2
	`, communityID, string(from), string(to))
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

type communityGetter interface {
	Get(ctx context.Context, communityID string) (models.Community, error)
}

// CommunityCache keeps community settings in memory for the given TTL.
// Quota and investment checks read them on every request.
type CommunityCache struct {
	source communityGetter
	cache  *cache.Cache
}

func NewCommunityCache(source communityGetter, ttl time.Duration) *CommunityCache {
	return &CommunityCache{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
	}
}

func (c *CommunityCache) Get(ctx context.Context, communityID string) (models.Community, error) {
	if v, ok := c.cache.Get(communityID); ok {
		return v.(models.Community), nil
	}
	community, err := c.source.Get(ctx, communityID)
	if err != nil {
		return models.Community{}, err
	}
	c.cache.SetDefault(communityID, community)
	return community, nil
}

func (c *CommunityCache) Invalidate(communityID string) {
	c.cache.Delete(communityID)
}
