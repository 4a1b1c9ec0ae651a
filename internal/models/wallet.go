package models

import "time"

// GlobalCommunityID names the platform-wide wallet.
const GlobalCommunityID = "__global__"

type Wallet struct {
	UserID           string     `db:"user_id" json:"userId"`
	CommunityID      string     `db:"community_id" json:"communityId"`
	Balance          int64      `db:"balance" json:"balance"`
	LastUpdated      time.Time  `db:"last_updated" json:"lastUpdated"`
	MigratedToGlobal bool       `db:"migrated_to_global" json:"migratedToGlobal"`
	MigratedAt       *time.Time `db:"migrated_at" json:"migratedAt,omitempty"`
}

// QuotaRecord is derived per (user, community, day) and never stored.
type QuotaRecord struct {
	UserID         string    `json:"userId"`
	CommunityID    string    `json:"communityId"`
	DailyQuota     int64     `json:"dailyQuota"`
	RemainingToday int64     `json:"remainingToday"`
	ResetsAt       time.Time `json:"resetsAt"`
}
