package models

import (
	"time"

	"gorm.io/gorm"
)

// SkillPoints tracks per-category experience. Categories are a closed set so
// new ones are a compile-time decision.
type SkillPoints struct {
	Technical     int64 `json:"technical" gorm:"default:0"`
	SoftSkills    int64 `json:"soft_skills" gorm:"default:0"`
	Leadership    int64 `json:"leadership" gorm:"default:0"`
	Communication int64 `json:"communication" gorm:"default:0"`
}

// Skill category names as they appear in activity metadata and criteria qualifiers.
const (
	SkillTechnical     = "technical"
	SkillSoftSkills    = "soft_skills"
	SkillLeadership    = "leadership"
	SkillCommunication = "communication"
)

// Get returns the points for a named category; ok is false for unknown names.
func (sp *SkillPoints) Get(category string) (int64, bool) {
	switch category {
	case SkillTechnical:
		return sp.Technical, true
	case SkillSoftSkills:
		return sp.SoftSkills, true
	case SkillLeadership:
		return sp.Leadership, true
	case SkillCommunication:
		return sp.Communication, true
	}
	return 0, false
}

// Add credits points to a named category; unknown names are ignored.
func (sp *SkillPoints) Add(category string, points int64) bool {
	switch category {
	case SkillTechnical:
		sp.Technical += points
	case SkillSoftSkills:
		sp.SoftSkills += points
	case SkillLeadership:
		sp.Leadership += points
	case SkillCommunication:
		sp.Communication += points
	default:
		return false
	}
	return true
}

// UserProfile is the per-user gamification aggregate. It is created lazily on
// first activity and mutated only through the profile service, which guards
// every write with the Version stamp (compare-and-swap with bounded retry).
type UserProfile struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID   string `gorm:"uniqueIndex;not null" json:"user_id"` // links to the user service
	Username string `json:"username"`

	// Points & level. CurrentLevel/XPToNextLevel are derivable from TotalXP;
	// they are stored for query convenience and self-healed on read.
	TotalXP       int64 `json:"total_xp" gorm:"default:0"`
	CurrentLevel  int   `json:"current_level" gorm:"default:1"`
	XPToNextLevel int64 `json:"xp_to_next_level" gorm:"default:1000"`

	SkillPoints SkillPoints `json:"skill_points" gorm:"embedded;embeddedPrefix:skill_"`

	// Streak system
	CurrentStreak  int        `json:"current_streak" gorm:"default:0"`
	LongestStreak  int        `json:"longest_streak" gorm:"default:0"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`

	// Must equal the count of the user's UserAchievement records.
	TotalAchievements int64 `json:"total_achievements" gorm:"default:0"`

	// Activity counters; weekly/monthly reset on rollover boundaries.
	TotalActivities   int64 `json:"total_activities" gorm:"default:0"`
	WeeklyActivities  int64 `json:"weekly_activities" gorm:"default:0"`
	MonthlyActivities int64 `json:"monthly_activities" gorm:"default:0"`

	// Progress mirrors fed by the profile/career services via profile_update
	// activities; consumed by completion-criteria achievements.
	ProfileCompleteness  float64 `json:"profile_completeness" gorm:"default:0"`
	CareerPathCompletion float64 `json:"career_path_completion" gorm:"default:0"`
	CoursesCompleted     int64   `json:"courses_completed" gorm:"default:0"`
	GoalsCompleted       int64   `json:"goals_completed" gorm:"default:0"`

	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	// Version guards against lost updates from concurrent awards.
	Version int64 `json:"-" gorm:"not null;default:0"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
