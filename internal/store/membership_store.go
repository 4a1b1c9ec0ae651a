package store

import "context"

type MembershipStore struct {
	db DB
}

func NewMembershipStore(db DB) *MembershipStore {
	return &MembershipStore{db: db}
}

func (s *MembershipStore) IsMember(ctx context.Context, userID, communityID string) (bool, error) {
	var ok bool
	err := s.db.GetContext(ctx, &ok, `
		SELECT EXISTS (
			SELECT 1 FROM community_members WHERE user_id = $1 AND community_id = $2
		)
	`, userID, communityID)
	return ok, err
}
