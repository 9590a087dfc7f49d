package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityKind enumerates the activities the platform reports to us.
type ActivityKind string

const (
	ActivityCourseCompletion   ActivityKind = "course_completion"
	ActivitySkillAssessment    ActivityKind = "skill_assessment"
	ActivityProfileCompletion  ActivityKind = "profile_completion"
	ActivityDailyLogin         ActivityKind = "daily_login"
	ActivityCareerPathProgress ActivityKind = "career_path_progress"
	ActivityResumeUpdate       ActivityKind = "resume_update"
	// ActivityAchievementUnlock records the point grants made by the engine
	// itself (achievement rewards, challenge completion rewards). It never
	// re-triggers achievement evaluation.
	ActivityAchievementUnlock ActivityKind = "achievement_unlock"
)

// Valid reports whether k is a known activity kind.
func (k ActivityKind) Valid() bool {
	switch k {
	case ActivityCourseCompletion, ActivitySkillAssessment, ActivityProfileCompletion,
		ActivityDailyLogin, ActivityCareerPathProgress, ActivityResumeUpdate,
		ActivityAchievementUnlock:
		return true
	}
	return false
}

// ActivityRecord is the append-only activity log. Records are never mutated;
// leaderboard windows and achievement counts derive from them.
type ActivityRecord struct {
	ID           string            `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string            `gorm:"index;not null" json:"user_id"`
	ActivityKind ActivityKind      `gorm:"index;not null;type:varchar(32)" json:"activity_type"`
	PointsEarned int64             `json:"points_earned"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	Timestamp    time.Time         `gorm:"index;autoCreateTime" json:"timestamp"`
}
