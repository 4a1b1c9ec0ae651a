package store

import (
	"context"

	"merit/internal/models"
)

type PublicationStore struct {
	db DB
}

func NewPublicationStore(db DB) *PublicationStore {
	return &PublicationStore{db: db}
}

func (s *PublicationStore) Get(ctx context.Context, slug string) (models.Publication, error) {
	var row models.Publication
	err := s.db.GetContext(ctx, &row, `
		SELECT slug, community_id, author_id, created_at
		FROM publications
		WHERE slug = $1
	`, slug)
	if err != nil {
		return models.Publication{}, err
	}
	return row, nil
}
