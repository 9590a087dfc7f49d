package services

import (
	"fmt"
	"log"
	"time"

	"career-gamification-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxMutateAttempts bounds the optimistic-lock retry loop per call.
const maxMutateAttempts = 5

type ProfileService struct {
	DB     *gorm.DB
	Config PointsConfig
	Cache  *CacheManager
}

func NewProfileService(db *gorm.DB, cfg PointsConfig, cache *CacheManager) *ProfileService {
	return &ProfileService{DB: db, Config: cfg, Cache: cache}
}

// EnsureProfile makes sure a profile row exists for userID (idempotent, safe
// under concurrent first-activity races: INSERT ON CONFLICT DO NOTHING, then
// refetch whichever row won).
func (s *ProfileService) EnsureProfile(userID string) (*models.UserProfile, error) {
	fresh := models.UserProfile{
		ID:            uuid.NewString(),
		UserID:        userID,
		CurrentLevel:  1,
		XPToNextLevel: s.Config.LevelThreshold,
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&fresh).Error; err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}

	var prof models.UserProfile
	if err := s.DB.Where("user_id = ?", userID).First(&prof).Error; err != nil {
		return nil, fmt.Errorf("ensure profile refetch: %w", err)
	}
	return &prof, nil
}

// GetProfile returns the profile, creating it lazily. Stored level fields are
// recomputed from TotalXP on read; a drifted row is healed in place so the
// level function stays the single source of truth.
func (s *ProfileService) GetProfile(userID string) (*models.UserProfile, error) {
	if s.Cache != nil {
		var cached models.UserProfile
		if s.Cache.GetJSON(profileCacheKey(userID), &cached) {
			return &cached, nil
		}
	}

	prof, err := s.EnsureProfile(userID)
	if err != nil {
		return nil, err
	}

	level, toNext := s.Config.LevelOf(prof.TotalXP)
	if level != prof.CurrentLevel || toNext != prof.XPToNextLevel {
		prof, err = s.Mutate(userID, func(p *models.UserProfile) error {
			p.CurrentLevel, p.XPToNextLevel = s.Config.LevelOf(p.TotalXP)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if s.Cache != nil {
		s.Cache.SetJSON(profileCacheKey(userID), prof, 2*time.Minute)
	}
	return prof, nil
}

// Mutate applies fn to the current profile row and persists it with a
// compare-and-swap on Version. Lost races reload and retry up to
// maxMutateAttempts; after that the caller gets models.ErrConflict.
func (s *ProfileService) Mutate(userID string, fn func(*models.UserProfile) error) (*models.UserProfile, error) {
	return s.mutateWithRecord(userID, fn, nil)
}

// AwardAndRecord applies fn and appends an activity record in the same
// transaction, so a profile update and its log entry commit or roll back
// together. The record's PointsEarned may be set inside fn; the final value
// is read after fn returns.
func (s *ProfileService) AwardAndRecord(userID string, fn func(*models.UserProfile) error, record *models.ActivityRecord) (*models.UserProfile, error) {
	return s.mutateWithRecord(userID, fn, record)
}

func (s *ProfileService) mutateWithRecord(userID string, fn func(*models.UserProfile) error, record *models.ActivityRecord) (*models.UserProfile, error) {
	var result *models.UserProfile

	for attempt := 0; attempt < maxMutateAttempts; attempt++ {
		prof, err := s.EnsureProfile(userID)
		if err != nil {
			return nil, err
		}
		expectedVersion := prof.Version

		// Rollover first, so an increment made by fn lands in the new window
		// instead of being zeroed with the old one.
		s.rollCounters(prof)
		if err := fn(prof); err != nil {
			return nil, err
		}
		prof.CurrentLevel, prof.XPToNextLevel = s.Config.LevelOf(prof.TotalXP)
		prof.Version = expectedVersion + 1

		swapped := false
		err = s.DB.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.UserProfile{}).
				Where("user_id = ? AND version = ?", userID, expectedVersion).
				Select("*").Omit("id", "user_id", "created_at").
				Updates(prof)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil // lost the race, retry outside the tx
			}
			swapped = true
			if record != nil {
				if record.ID == "" {
					record.ID = uuid.NewString()
				}
				record.UserID = userID
				if err := tx.Create(record).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("profile update: %w", err)
		}
		if swapped {
			result = prof
			break
		}
	}

	if result == nil {
		log.Printf("⚠️ Profile update for %s lost %d optimistic-lock races", userID, maxMutateAttempts)
		return nil, models.ErrConflict
	}

	if s.Cache != nil {
		s.Cache.Delete(profileCacheKey(userID))
	}
	return result, nil
}

// InvalidateCache drops the cached profile so the next read hits the database.
func (s *ProfileService) InvalidateCache(userID string) {
	if s.Cache != nil {
		s.Cache.Delete(profileCacheKey(userID))
	}
}

// rollCounters resets the weekly/monthly activity counters when the profile's
// last update falls outside the current ISO week / calendar month.
func (s *ProfileService) rollCounters(p *models.UserProfile) {
	now := time.Now().UTC()
	last := p.UpdatedAt.UTC()

	ly, lw := last.ISOWeek()
	ny, nw := now.ISOWeek()
	if ly != ny || lw != nw {
		p.WeeklyActivities = 0
	}
	if last.Year() != now.Year() || last.Month() != now.Month() {
		p.MonthlyActivities = 0
	}
}

// UpdateStreak applies the daily-login streak transition to p in place and
// returns whether the streak changed. Day diffs are calendar days in UTC:
// same day is a no-op, one day increments, anything else resets to 1.
func UpdateStreak(p *models.UserProfile, now time.Time) bool {
	now = now.UTC()
	if p.LastActivityAt == nil {
		p.CurrentStreak = 1
		p.LongestStreak = max(p.LongestStreak, 1)
		p.LastActivityAt = &now
		return true
	}

	prev := p.LastActivityAt.UTC()
	prevDay := time.Date(prev.Year(), prev.Month(), prev.Day(), 0, 0, 0, 0, time.UTC)
	nowDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	diff := int(nowDay.Sub(prevDay).Hours() / 24)

	switch {
	case diff == 0:
		p.LastActivityAt = &now
		return false
	case diff == 1:
		p.CurrentStreak++
	default:
		p.CurrentStreak = 1
	}
	p.LongestStreak = max(p.LongestStreak, p.CurrentStreak)
	p.LastActivityAt = &now
	return true
}

// Stats aggregates engine-wide numbers for the admin stats endpoint.
func (s *ProfileService) Stats() (map[string]interface{}, error) {
	var (
		totalProfiles    int64
		totalActivities  int64
		totalUnlocks     int64
		activeChallenges int64
	)
	if err := s.DB.Model(&models.UserProfile{}).Count(&totalProfiles).Error; err != nil {
		return nil, err
	}
	s.DB.Model(&models.ActivityRecord{}).Count(&totalActivities)
	s.DB.Model(&models.UserAchievement{}).Count(&totalUnlocks)
	s.DB.Model(&models.Challenge{}).Where("status = ?", models.StatusActive).Count(&activeChallenges)

	var avgLevel float64
	s.DB.Model(&models.UserProfile{}).Select("COALESCE(AVG(current_level), 0)").Scan(&avgLevel)

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var activitiesToday, activeUsersToday int64
	s.DB.Model(&models.ActivityRecord{}).Where("timestamp >= ?", midnight).Count(&activitiesToday)
	s.DB.Model(&models.ActivityRecord{}).Where("timestamp >= ?", midnight).
		Distinct("user_id").Count(&activeUsersToday)

	return map[string]interface{}{
		"total_profiles":     totalProfiles,
		"total_activities":   totalActivities,
		"total_unlocks":      totalUnlocks,
		"active_challenges":  activeChallenges,
		"average_level":      avgLevel,
		"activities_today":   activitiesToday,
		"active_users_today": activeUsersToday,
		"generated_at":       now,
	}, nil
}

// ActivityHistory returns the user's activity log, newest first, paginated.
func (s *ProfileService) ActivityHistory(userID string, page, size int) ([]models.ActivityRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	var total int64
	if err := s.DB.Model(&models.ActivityRecord{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.ActivityRecord
	err := s.DB.Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(size).Offset((page - 1) * size).
		Find(&records).Error
	return records, total, err
}

func profileCacheKey(userID string) string {
	return "gamification:profile:" + userID
}
