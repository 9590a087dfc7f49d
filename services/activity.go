package services

import (
	"fmt"
	"log"
	"time"

	"career-gamification-service/models"

	"gorm.io/datatypes"
)

// ActivityService is the award pipeline: every reported activity flows
// through RecordActivity, which computes points, updates the profile under
// optimistic locking, appends the log record in the same transaction, and
// then fans out to achievements, challenges and notifications.
type ActivityService struct {
	Profiles     *ProfileService
	Achievements *AchievementService
	Challenges   *ChallengeManager
	Notifier     *NotificationClient
	Config       PointsConfig
}

func NewActivityService(profiles *ProfileService, achievements *AchievementService, challenges *ChallengeManager, notifier *NotificationClient, cfg PointsConfig) *ActivityService {
	return &ActivityService{
		Profiles:     profiles,
		Achievements: achievements,
		Challenges:   challenges,
		Notifier:     notifier,
		Config:       cfg,
	}
}

// AwardResult is what one recorded activity produced.
type AwardResult struct {
	Profile      *models.UserProfile    `json:"profile"`
	Record       *models.ActivityRecord `json:"activity"`
	PointsEarned int64                  `json:"points_earned"`
	StreakBonus  int64                  `json:"streak_bonus,omitempty"`
	LeveledUp    bool                   `json:"leveled_up"`
	NewLevel     int                    `json:"new_level,omitempty"`

	UnlockedAchievements []models.Achievement `json:"unlocked_achievements,omitempty"`
	CompletedChallenges  []string             `json:"completed_challenges,omitempty"`
}

// RecordActivity is the public entry point for platform-reported activities.
// achievement_unlock is reserved for internal reward grants and rejected here.
func (s *ActivityService) RecordActivity(userID string, kind models.ActivityKind, metadata map[string]interface{}) (*AwardResult, error) {
	if kind == models.ActivityAchievementUnlock {
		return nil, models.Precondition("activity type achievement_unlock is reserved")
	}
	if !kind.Valid() {
		return nil, models.Precondition(fmt.Sprintf("unknown activity type %q", kind))
	}
	return s.record(userID, kind, metadata)
}

func (s *ActivityService) record(userID string, kind models.ActivityKind, metadata map[string]interface{}) (*AwardResult, error) {
	now := time.Now().UTC()

	points := s.Config.CalculatePoints(kind, metadata)

	result := &AwardResult{}
	streakMilestone := 0
	record := &models.ActivityRecord{
		ActivityKind: kind,
		Metadata:     datatypes.JSONMap(metadata),
	}

	prof, err := s.Profiles.AwardAndRecord(userID, func(p *models.UserProfile) error {
		oldLevel := p.CurrentLevel

		total := points
		if kind == models.ActivityDailyLogin {
			streakMilestone = 0
			if UpdateStreak(p, now) {
				switch p.CurrentStreak {
				case 7, 30, 100:
					streakMilestone = p.CurrentStreak
				}
			}
			result.StreakBonus = s.Config.StreakBonus(p.CurrentStreak)
			total += result.StreakBonus
		}

		p.TotalXP += total
		if skill, ok := metaString(metadata, "skill_category"); ok {
			p.SkillPoints.Add(skill, total)
		}

		p.TotalActivities++
		p.WeeklyActivities++
		p.MonthlyActivities++
		s.applyProgressMirrors(p, kind, metadata)

		// Level fields are recomputed by the profile service after this
		// closure; compute here too so the level-up check sees the new value.
		newLevel, _ := s.Config.LevelOf(p.TotalXP)
		if newLevel > oldLevel {
			p.LastLevelUpAt = &now
			result.LeveledUp = true
			result.NewLevel = newLevel
		}

		result.PointsEarned = total
		record.PointsEarned = total
		return nil
	}, record)
	if err != nil {
		return nil, err
	}

	result.Profile = prof
	result.Record = record

	// Post-award fanout. Failures here never fail the recorded activity:
	// the award is already committed.
	s.fanout(userID, kind, result)
	if result.LeveledUp && s.Notifier != nil {
		s.Notifier.LevelUp(userID, result.NewLevel)
	}
	if streakMilestone > 0 && s.Notifier != nil {
		s.Notifier.StreakMilestone(userID, streakMilestone)
	}

	log.Printf("🎮 Activity %s for %s → +%d XP (level %d, streak %d)",
		kind, userID, result.PointsEarned, prof.CurrentLevel, prof.CurrentStreak)
	return result, nil
}

func (s *ActivityService) fanout(userID string, kind models.ActivityKind, result *AwardResult) {
	if s.Achievements != nil {
		unlocked, err := s.Achievements.CheckAndUnlock(userID)
		if err != nil {
			log.Printf("⚠️ Achievement evaluation failed for %s: %v", userID, err)
		} else {
			result.UnlockedAchievements = unlocked
		}
	}

	if s.Challenges != nil {
		completed, err := s.Challenges.ProgressFanout(userID, kind, result.PointsEarned, result.Record.Metadata)
		if err != nil {
			log.Printf("⚠️ Challenge progress failed for %s: %v", userID, err)
		} else {
			result.CompletedChallenges = completed
		}
	}
}

// applyProgressMirrors copies platform progress metrics carried in activity
// metadata onto the profile, where completion criteria read them.
func (s *ActivityService) applyProgressMirrors(p *models.UserProfile, kind models.ActivityKind, metadata map[string]interface{}) {
	switch kind {
	case models.ActivityCourseCompletion:
		p.CoursesCompleted++
	case models.ActivityProfileCompletion:
		if v, ok := metaFloat(metadata, "completeness"); ok {
			p.ProfileCompleteness = clampPercent(v)
		}
	case models.ActivityCareerPathProgress:
		if v, ok := metaFloat(metadata, "path_completion"); ok {
			p.CareerPathCompletion = clampPercent(v)
		}
	}
	if metaBool(metadata, "goal_completed") {
		p.GoalsCompleted++
	}
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
