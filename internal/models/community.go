package models

import "time"

type VotingRestriction string

const (
	VotingAny          VotingRestriction = "any"
	VotingNotSameTeam  VotingRestriction = "not-same-team"
	VotingNotOwn       VotingRestriction = "not-own"
	VotingNotSameGroup VotingRestriction = "not-same-group"
)

// Type tags of communities merged into the global wallet.
const (
	TagMarathonOfGood = "marathon-of-good"
	TagFutureVision   = "future-vision"
	TagTeamProjects   = "team-projects"
	TagSupport        = "support"
)

type Community struct {
	ID                string            `db:"id" json:"id"`
	TgChatID          string            `db:"tg_chat_id" json:"tgChatId"`
	Name              string            `db:"name" json:"name"`
	TypeTag           *string           `db:"type_tag" json:"typeTag,omitempty"`
	CurrencySingular  string            `db:"currency_singular" json:"currencySingular"`
	CurrencyPlural    string            `db:"currency_plural" json:"currencyPlural"`
	DailyEmission     int64             `db:"daily_emission" json:"dailyEmission"`
	InvestingEnabled  bool              `db:"investing_enabled" json:"investingEnabled"`
	InvestorShareMin  int64             `db:"investor_share_min" json:"investorShareMin"`
	InvestorShareMax  int64             `db:"investor_share_max" json:"investorShareMax"`
	VotingRestriction VotingRestriction `db:"voting_restriction" json:"votingRestriction"`
	CreatedAt         time.Time         `db:"created_at" json:"createdAt"`
}

type Publication struct {
	Slug        string    `db:"slug" json:"slug"`
	CommunityID string    `db:"community_id" json:"communityId"`
	AuthorID    string    `db:"author_id" json:"authorId"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}
