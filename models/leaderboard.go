package models

import (
	"time"
)

// LeaderboardType selects the scoring window: global = all-time XP,
// weekly = points within the current ISO week, monthly = points within the
// current calendar month.
type LeaderboardType string

const (
	LeaderboardGlobal  LeaderboardType = "global"
	LeaderboardWeekly  LeaderboardType = "weekly"
	LeaderboardMonthly LeaderboardType = "monthly"
)

// Valid reports whether t names a known leaderboard.
func (t LeaderboardType) Valid() bool {
	switch t {
	case LeaderboardGlobal, LeaderboardWeekly, LeaderboardMonthly:
		return true
	}
	return false
}

// LeaderboardEntry is one ranked row. Ranks are 1-based positional ranks
// over (score desc, user_id asc) — the same ordering the out-of-snapshot
// fallback uses, so the two paths always agree.
type LeaderboardEntry struct {
	UserID            string `json:"user_id"`
	Username          string `json:"username,omitempty"`
	Score             int64  `json:"score"`
	Rank              int    `json:"rank"`
	Level             int    `json:"level,omitempty"`
	AchievementsCount int64  `json:"achievements_count,omitempty"`
}

// LeaderboardSnapshot is one materialized ranking. Rebuilds replace the row
// wholesale (single upsert) so readers never observe a partially written
// ranking.
type LeaderboardSnapshot struct {
	ID          string             `gorm:"primaryKey;type:uuid" json:"id"`
	Type        LeaderboardType    `gorm:"uniqueIndex;type:varchar(16);not null" json:"type"`
	Entries     []LeaderboardEntry `gorm:"serializer:json" json:"entries"`
	LastUpdated time.Time          `json:"last_updated"`
}

// MirroredUser is a local copy of user-service display data, refreshed by the
// profile sync worker so leaderboard pages render usernames without a
// cross-service call.
type MirroredUser struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"uniqueIndex;not null" json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
