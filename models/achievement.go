package models

import (
	"time"
)

// AchievementCategory groups catalog entries for browsing.
type AchievementCategory string

const (
	CategoryLearning  AchievementCategory = "learning"
	CategoryCareer    AchievementCategory = "career"
	CategoryMilestone AchievementCategory = "milestone"
	CategorySpecial   AchievementCategory = "special"
	CategorySocial    AchievementCategory = "social"
)

// CriteriaKind is the closed set of unlock rule kinds. Evaluation switches
// exhaustively over these; adding a kind is a compile-time decision.
type CriteriaKind string

const (
	CriteriaActivityCount CriteriaKind = "activity_count" // qualifier: optional activity kind
	CriteriaStreak        CriteriaKind = "streak"
	CriteriaLevel         CriteriaKind = "level"
	CriteriaPoints        CriteriaKind = "points" // qualifier: optional skill category
	CriteriaCompletion    CriteriaKind = "completion"
	CriteriaTimeActive    CriteriaKind = "time_active"
	CriteriaSpecial       CriteriaKind = "special"
)

// Completion-criteria qualifiers.
const (
	CompletionProfile    = "profile_completion"     // threshold is a percentage
	CompletionCareerPath = "career_path_completion" // threshold is a percentage
	CompletionCourses    = "courses"
	CompletionGoals      = "goals"
)

// Special-criteria qualifiers: named predicates over the activity log.
const (
	SpecialEarlyBird          = "early_bird"           // N activities before 08:00
	SpecialNightOwl           = "night_owl"            // N activities at/after 22:00
	SpecialWeekendWarrior     = "weekend_warrior"      // N activities on weekend days
	SpecialPerfectionist      = "perfectionist"        // N activities with completion_rate >= 0.95
	SpecialConsistencyMaster  = "consistency_master"   // N consecutive calendar days with activity
	SpecialFirstDayCompletion = "first_day_completion" // N activities on the account's first day
)

// UnlockCriteria is the rule attached to a catalog entry. Qualifier narrows
// the kind (activity kind, skill category, completion field or special
// predicate); kinds that need no qualifier leave it empty.
type UnlockCriteria struct {
	Kind      CriteriaKind `json:"kind" gorm:"column:criteria_kind;type:varchar(24);not null"`
	Threshold int64        `json:"threshold" gorm:"column:criteria_threshold;not null"`
	Qualifier string       `json:"qualifier,omitempty" gorm:"column:criteria_qualifier;type:varchar(48)"`
}

// Achievement is a catalog entry, created by administrators and read-only at
// evaluation time. UnlockCount/UnlockPercentage are denormalized statistics
// recomputed by a maintenance job — never read-path truth.
type Achievement struct {
	ID           string              `gorm:"primaryKey;type:uuid" json:"id"`
	Code         string              `gorm:"uniqueIndex;not null" json:"code"` // e.g. "streak-warrior"
	Name         string              `gorm:"not null" json:"name"`
	Description  string              `json:"description"`
	Category     AchievementCategory `gorm:"type:varchar(16);index" json:"category"`
	PointsReward int64               `json:"points_reward"`
	IconURL      string              `gorm:"type:text" json:"icon_url,omitempty"`
	Rarity       string              `gorm:"type:varchar(16);default:'common'" json:"rarity"` // common, uncommon, rare, epic, legendary

	UnlockCriteria UnlockCriteria `gorm:"embedded" json:"unlock_criteria"`

	UnlockCount      int64   `gorm:"default:0" json:"unlock_count"`
	UnlockPercentage float64 `gorm:"default:0" json:"unlock_percentage"`

	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// UserAchievement is an unlock record. The composite unique index is the
// idempotence guard: at most one row per (user, achievement), enforced at the
// point of write so concurrent evaluations cannot double-unlock.
type UserAchievement struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string    `gorm:"not null;uniqueIndex:idx_user_achievement" json:"user_id"`
	AchievementID string    `gorm:"not null;uniqueIndex:idx_user_achievement" json:"achievement_id"`
	PointsEarned  int64     `json:"points_earned"`
	UnlockedAt    time.Time `gorm:"autoCreateTime" json:"unlocked_at"`
}

// DefaultAchievements is the starter catalog, installed idempotently by code.
var DefaultAchievements = []Achievement{
	{
		Code: "first-steps", Name: "First Steps",
		Description: "Complete your first activity",
		Category:    CategoryMilestone, PointsReward: 25, Rarity: "common",
		UnlockCriteria: UnlockCriteria{Kind: CriteriaActivityCount, Threshold: 1},
	},
	{
		Code: "getting-busy", Name: "Getting Busy",
		Description: "Complete 25 activities",
		Category:    CategoryMilestone, PointsReward: 100, Rarity: "uncommon",
		UnlockCriteria: UnlockCriteria{Kind: CriteriaActivityCount, Threshold: 25},
	},
	{
		Code: "course-collector", Name: "Course Collector",
		Description: "Complete 10 courses",
		Category:    CategoryLearning, PointsReward: 200, Rarity: "rare",
		UnlockCriteria: UnlockCriteria{Kind: CriteriaActivityCount, Threshold: 10, Qualifier: string(ActivityCourseCompletion)},
	},
	{
		Code: "week-streak", Name: "Week Streak",
		Description: "Stay active 7 days in a row",
		Category:    CategoryMilestone, PointsReward: 75, Rarity: "common",
		UnlockCriteria: UnlockCriteria{Kind: CriteriaStreak, Threshold: 7},
	},
	{
		Code: "streak-warrior", Name: "Streak Warrior",
		Description: "Stay active 30 days in a row",
		Category:    CategoryMilestone, PointsReward: 500, Rarity: "epic",
		UnlockCriteria: UnlockCriteria{Kind: CriteriaStreak, Threshold: 30},
	},
	{
		Code: "level-10", Name: "Double Digits",
		Description: "Reach level 10",
		Category:    CategoryMilestone, PointsReward: 150, Rarity: "uncommon",
		UnlockCriteria: UnlockCriteria{Kind: CriteriaLevel, Threshold: 10},
	},
	{
		Code: "xp-5000", Name: "Point Hoarder",
		Description: "Accumulate 5,000 XP",
		Category:    CategoryMilestone, PointsReward: 250, Rarity: "rare",
		UnlockCriteria: UnlockCriteria{Kind: CriteriaPoints, Threshold: 5000},
	},
	{
		Code: "tech-specialist", Name: "Tech Specialist",
		Description: "Earn 1,000 technical skill points",
		Category:    CategoryLearning, PointsReward: 200, Rarity: "rare",
		UnlockCriteria: UnlockCriteria{Kind: CriteriaPoints, Threshold: 1000, Qualifier: SkillTechnical},
	},
	{
		Code: "profile-pro", Name: "Profile Pro",
		Description: "Reach 100% profile completeness",
		Category:    CategoryCareer, PointsReward: 100, Rarity: "common",
		UnlockCriteria: UnlockCriteria{Kind: CriteriaCompletion, Threshold: 100, Qualifier: CompletionProfile},
	},
	{
		Code: "pathfinder", Name: "Pathfinder",
		Description: "Complete half of your career path",
		Category:    CategoryCareer, PointsReward: 300, Rarity: "rare",
		UnlockCriteria: UnlockCriteria{Kind: CriteriaCompletion, Threshold: 50, Qualifier: CompletionCareerPath},
	},
	{
		Code: "one-month-in", Name: "One Month In",
		Description: "Keep your account active for 30 days",
		Category:    CategoryMilestone, PointsReward: 100, Rarity: "common",
		UnlockCriteria: UnlockCriteria{Kind: CriteriaTimeActive, Threshold: 30},
	},
	{
		Code: "early-bird", Name: "Early Bird",
		Description: "Complete 5 activities before 8 AM",
		Category:    CategorySpecial, PointsReward: 150, Rarity: "uncommon",
		UnlockCriteria: UnlockCriteria{Kind: CriteriaSpecial, Threshold: 5, Qualifier: SpecialEarlyBird},
	},
	{
		Code: "night-owl", Name: "Night Owl",
		Description: "Complete 5 activities after 10 PM",
		Category:    CategorySpecial, PointsReward: 150, Rarity: "uncommon",
		UnlockCriteria: UnlockCriteria{Kind: CriteriaSpecial, Threshold: 5, Qualifier: SpecialNightOwl},
	},
	{
		Code: "weekend-warrior", Name: "Weekend Warrior",
		Description: "Complete 10 activities on weekends",
		Category:    CategorySpecial, PointsReward: 200, Rarity: "rare",
		UnlockCriteria: UnlockCriteria{Kind: CriteriaSpecial, Threshold: 10, Qualifier: SpecialWeekendWarrior},
	},
	{
		Code: "perfectionist", Name: "Perfectionist",
		Description: "Finish 10 activities with a 95%+ completion rate",
		Category:    CategorySpecial, PointsReward: 300, Rarity: "epic",
		UnlockCriteria: UnlockCriteria{Kind: CriteriaSpecial, Threshold: 10, Qualifier: SpecialPerfectionist},
	},
}
