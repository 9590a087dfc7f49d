package models

import (
	"time"

	"gorm.io/datatypes"
)

type ChallengeType string

const (
	ChallengeDaily        ChallengeType = "daily"
	ChallengeWeekly       ChallengeType = "weekly"
	ChallengeMonthly      ChallengeType = "monthly"
	ChallengeSpecialEvent ChallengeType = "special_event"
	ChallengeMilestone    ChallengeType = "milestone"
	ChallengeCommunity    ChallengeType = "community"
)

type ChallengeCategory string

const (
	ChallengeCatLearning   ChallengeCategory = "learning"
	ChallengeCatStreak     ChallengeCategory = "streak"
	ChallengeCatActivity   ChallengeCategory = "activity"
	ChallengeCatSocial     ChallengeCategory = "social"
	ChallengeCatSkills     ChallengeCategory = "skill_building"
	ChallengeCatCareerDev  ChallengeCategory = "career_development"
)

type ChallengeDifficulty string

const (
	DifficultyBeginner     ChallengeDifficulty = "beginner"
	DifficultyIntermediate ChallengeDifficulty = "intermediate"
	DifficultyAdvanced     ChallengeDifficulty = "advanced"
	DifficultyExpert       ChallengeDifficulty = "expert"
)

type ChallengeStatus string

const (
	StatusUpcoming  ChallengeStatus = "upcoming"
	StatusActive    ChallengeStatus = "active"
	StatusCompleted ChallengeStatus = "completed"
	StatusExpired   ChallengeStatus = "expired"
	StatusPaused    ChallengeStatus = "paused"
)

// RequirementType is the closed set of ways a challenge requirement is
// measured against incoming activities.
type RequirementType string

const (
	ReqActivityCount  RequirementType = "activity_count"  // +1 per qualifying activity
	ReqPointsEarned   RequirementType = "points_earned"   // accumulates awarded points
	ReqStreakDays     RequirementType = "streak_days"     // tracks the profile's current streak
	ReqSkillCategory  RequirementType = "skill_category"  // +1 when metadata skill matches Qualifier
	ReqCompletionRate RequirementType = "completion_rate" // +1 when completion_rate >= MinRate
)

// ChallengeRequirement is one leg of a challenge's requirement set.
type ChallengeRequirement struct {
	Type            RequirementType `json:"type"`
	TargetValue     int64           `json:"target_value"`
	MeasurementUnit string          `json:"measurement_unit"`
	Qualifier       string          `json:"qualifier,omitempty"` // skill category for skill_category
	MinRate         float64         `json:"min_rate,omitempty"`  // floor for completion_rate (default 0.8)
}

// Challenge is a catalog entry for a time-boxed, multi-requirement goal.
type Challenge struct {
	ID               string `gorm:"primaryKey;type:uuid" json:"id"`
	Code             string `gorm:"uniqueIndex;not null" json:"code"`
	Title            string `gorm:"not null" json:"title"`
	Description      string `json:"description"`
	ShortDescription string `json:"short_description,omitempty"`

	ChallengeType ChallengeType       `gorm:"type:varchar(16);index" json:"challenge_type"`
	Category      ChallengeCategory   `gorm:"type:varchar(24);index" json:"category"`
	Difficulty    ChallengeDifficulty `gorm:"type:varchar(16)" json:"difficulty"`

	Requirements []ChallengeRequirement `gorm:"serializer:json" json:"requirements"`

	RewardPoints int64  `json:"reward_points"`
	RewardTitle  string `json:"reward_title,omitempty"`

	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	DurationDays int       `json:"duration_days"`

	MaxParticipants     int             `json:"max_participants"` // 0 = unlimited
	CurrentParticipants int             `gorm:"default:0" json:"current_participants"`
	Status              ChallengeStatus `gorm:"type:varchar(16);index" json:"status"`

	IsPublic             bool     `gorm:"default:true" json:"is_public"`
	IsFeatured           bool     `gorm:"default:false" json:"is_featured"`
	RequiredLevel        int      `gorm:"default:1" json:"required_level"`
	RequiredAchievements []string `gorm:"serializer:json" json:"required_achievements,omitempty"`

	BannerURL string `gorm:"type:text" json:"banner_url,omitempty"`

	Timestamps
}

// UserChallenge is one user's participation in a challenge. CurrentProgress
// maps requirement type → accumulated value since join; StartValue holds the
// baseline metric snapshot captured at join time. MilestonesReached only
// grows, and the Active→Completed transition is one-way.
type UserChallenge struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string `gorm:"not null;uniqueIndex:idx_user_challenge" json:"user_id"`
	ChallengeID string `gorm:"not null;uniqueIndex:idx_user_challenge" json:"challenge_id"`

	Status      ChallengeStatus `gorm:"type:varchar(16);index" json:"status"`
	JoinedAt    time.Time       `gorm:"autoCreateTime" json:"joined_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`

	CurrentProgress    datatypes.JSONMap `gorm:"type:jsonb" json:"current_progress"`
	ProgressPercentage float64           `json:"progress_percentage"`
	MilestonesReached  []int             `gorm:"serializer:json" json:"milestones_reached"`

	StartValue   datatypes.JSONMap `gorm:"type:jsonb" json:"start_value"`
	PointsEarned int64             `json:"points_earned"`

	Timestamps
}

// Milestone thresholds, in crossing order.
var ChallengeMilestones = []int{25, 50, 75, 100}
