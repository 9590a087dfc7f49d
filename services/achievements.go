package services

import (
	"fmt"
	"log"
	"time"

	"career-gamification-service/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AchievementService evaluates unlock criteria and grants rewards. Unlocks
// are idempotent: the composite unique index on (user_id, achievement_id) is
// the guard, and the reward is paid only when this process inserted the row.
type AchievementService struct {
	DB       *gorm.DB
	Profiles *ProfileService
	Notifier *NotificationClient
}

func NewAchievementService(db *gorm.DB, profiles *ProfileService, notifier *NotificationClient) *AchievementService {
	return &AchievementService{DB: db, Profiles: profiles, Notifier: notifier}
}

// SeedDefaults installs the starter catalog. Existing codes are left alone,
// so redeploys never clobber admin edits.
func (s *AchievementService) SeedDefaults() error {
	for _, a := range models.DefaultAchievements {
		a.ID = uuid.NewString()
		a.IsActive = true
		if err := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(&a).Error; err != nil {
			return fmt.Errorf("seed achievement %s: %w", a.Code, err)
		}
	}
	return nil
}

// Create validates and stores an admin-defined catalog entry.
func (s *AchievementService) Create(a *models.Achievement) error {
	if a.Name == "" {
		return models.Precondition("achievement name is required")
	}
	if a.UnlockCriteria.Threshold <= 0 {
		return models.Precondition("criteria threshold must be positive")
	}
	switch a.UnlockCriteria.Kind {
	case models.CriteriaActivityCount, models.CriteriaStreak, models.CriteriaLevel,
		models.CriteriaPoints, models.CriteriaCompletion, models.CriteriaTimeActive,
		models.CriteriaSpecial:
	default:
		return models.Precondition(fmt.Sprintf("unknown criteria kind %q", a.UnlockCriteria.Kind))
	}

	a.ID = uuid.NewString()
	if a.Code == "" {
		a.Code = slug.Make(a.Name)
	}
	a.IsActive = true
	if a.Rarity == "" {
		a.Rarity = "common"
	}
	if err := s.DB.Create(a).Error; err != nil {
		return fmt.Errorf("create achievement: %w", err)
	}
	log.Printf("✅ Achievement created: %s (%s)", a.Code, a.UnlockCriteria.Kind)
	return nil
}

// SetIconURL stores the uploaded icon location on the catalog entry.
func (s *AchievementService) SetIconURL(id, iconURL string) error {
	res := s.DB.Model(&models.Achievement{}).Where("id = ?", id).Update("icon_url", iconURL)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// List returns active catalog entries, optionally filtered by category.
func (s *AchievementService) List(category, rarity string) ([]models.Achievement, error) {
	q := s.DB.Where("is_active = ?", true)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if rarity != "" {
		q = q.Where("rarity = ?", rarity)
	}
	var achievements []models.Achievement
	err := q.Order("created_at ASC").Find(&achievements).Error
	return achievements, err
}

// Get returns one catalog entry by id or code.
func (s *AchievementService) Get(idOrCode string) (*models.Achievement, error) {
	var a models.Achievement
	err := s.DB.Where("id = ? OR code = ?", idOrCode, idOrCode).First(&a).Error
	if err == gorm.ErrRecordNotFound {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UserAchievements returns the user's unlocks joined with catalog entries.
func (s *AchievementService) UserAchievements(userID string) ([]map[string]interface{}, error) {
	var unlocks []models.UserAchievement
	if err := s.DB.Where("user_id = ?", userID).Order("unlocked_at DESC").Find(&unlocks).Error; err != nil {
		return nil, err
	}
	if len(unlocks) == 0 {
		return []map[string]interface{}{}, nil
	}

	ids := make([]string, 0, len(unlocks))
	for _, u := range unlocks {
		ids = append(ids, u.AchievementID)
	}
	var catalog []models.Achievement
	if err := s.DB.Where("id IN ?", ids).Find(&catalog).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.Achievement, len(catalog))
	for _, a := range catalog {
		byID[a.ID] = a
	}

	out := make([]map[string]interface{}, 0, len(unlocks))
	for _, u := range unlocks {
		out = append(out, map[string]interface{}{
			"achievement":   byID[u.AchievementID],
			"points_earned": u.PointsEarned,
			"unlocked_at":   u.UnlockedAt,
		})
	}
	return out, nil
}

// CheckAndUnlock evaluates every still-locked active achievement against the
// user's current state and unlocks those whose criteria are met. Returns the
// newly unlocked entries.
func (s *AchievementService) CheckAndUnlock(userID string) ([]models.Achievement, error) {
	prof, err := s.Profiles.GetProfile(userID)
	if err != nil {
		return nil, err
	}

	locked, err := s.lockedAchievements(userID)
	if err != nil {
		return nil, err
	}
	if len(locked) == 0 {
		return nil, nil
	}

	facts, err := s.loadActivityFacts(userID, prof)
	if err != nil {
		return nil, err
	}

	var unlocked []models.Achievement
	for _, a := range locked {
		met, err := s.criterionMet(prof, facts, a.UnlockCriteria)
		if err != nil {
			log.Printf("⚠️ Criteria check %s for %s failed: %v", a.Code, userID, err)
			continue
		}
		if !met {
			continue
		}
		granted, err := s.unlock(userID, a)
		if err != nil {
			log.Printf("⚠️ Unlock %s for %s failed: %v", a.Code, userID, err)
			continue
		}
		if granted {
			unlocked = append(unlocked, a)
		}
	}
	return unlocked, nil
}

// unlock inserts the unlock row and, only if this call won the insert, pays
// the reward and bumps the profile counter. Returns whether this call granted.
func (s *AchievementService) unlock(userID string, a models.Achievement) (bool, error) {
	row := models.UserAchievement{
		ID:            uuid.NewString(),
		UserID:        userID,
		AchievementID: a.ID,
		PointsEarned:  a.PointsReward,
	}
	res := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil // another evaluation got there first
	}

	record := &models.ActivityRecord{
		ActivityKind: models.ActivityAchievementUnlock,
		PointsEarned: a.PointsReward,
		Metadata: map[string]interface{}{
			"achievement_id":   a.ID,
			"achievement_code": a.Code,
		},
	}
	_, err := s.Profiles.AwardAndRecord(userID, func(p *models.UserProfile) error {
		p.TotalXP += a.PointsReward
		p.TotalAchievements++
		return nil
	}, record)
	if err != nil {
		// The unlock row stands; the stats job reconciles the counter.
		return true, fmt.Errorf("reward grant: %w", err)
	}

	if s.Notifier != nil {
		s.Notifier.AchievementUnlocked(userID, a.Code, a.Name, a.PointsReward)
	}
	log.Printf("🏆 Achievement %s unlocked by %s (+%d XP)", a.Code, userID, a.PointsReward)
	return true, nil
}

func (s *AchievementService) lockedAchievements(userID string) ([]models.Achievement, error) {
	var locked []models.Achievement
	err := s.DB.
		Where("is_active = ?", true).
		Where("id NOT IN (?)", s.DB.Model(&models.UserAchievement{}).
			Select("achievement_id").Where("user_id = ?", userID)).
		Find(&locked).Error
	return locked, err
}

// activityFacts caches per-user log aggregates so one evaluation pass loads
// the log once regardless of how many special criteria exist.
type activityFacts struct {
	records   []models.ActivityRecord
	loaded    bool
	profile   *models.UserProfile
	firstDay  time.Time
	countKind map[models.ActivityKind]int64
}

func (s *AchievementService) loadActivityFacts(userID string, prof *models.UserProfile) (*activityFacts, error) {
	f := &activityFacts{profile: prof}
	f.firstDay = prof.CreatedAt.UTC().Truncate(24 * time.Hour)
	return f, nil
}

func (f *activityFacts) ensure(db *gorm.DB, userID string) error {
	if f.loaded {
		return nil
	}
	err := db.Where("user_id = ? AND activity_kind <> ?", userID, models.ActivityAchievementUnlock).
		Order("timestamp ASC").
		Find(&f.records).Error
	if err != nil {
		return err
	}
	f.countKind = make(map[models.ActivityKind]int64)
	for _, r := range f.records {
		f.countKind[r.ActivityKind]++
	}
	f.loaded = true
	return nil
}

func (s *AchievementService) criterionMet(prof *models.UserProfile, facts *activityFacts, c models.UnlockCriteria) (bool, error) {
	switch c.Kind {
	case models.CriteriaActivityCount:
		if c.Qualifier == "" {
			return prof.TotalActivities >= c.Threshold, nil
		}
		if err := facts.ensure(s.DB, prof.UserID); err != nil {
			return false, err
		}
		return facts.countKind[models.ActivityKind(c.Qualifier)] >= c.Threshold, nil

	case models.CriteriaStreak:
		// Current streak: a broken run has to be rebuilt before it counts.
		return int64(prof.CurrentStreak) >= c.Threshold, nil

	case models.CriteriaLevel:
		return int64(prof.CurrentLevel) >= c.Threshold, nil

	case models.CriteriaPoints:
		if c.Qualifier == "" {
			return prof.TotalXP >= c.Threshold, nil
		}
		pts, ok := prof.SkillPoints.Get(c.Qualifier)
		if !ok {
			return false, fmt.Errorf("unknown skill category %q", c.Qualifier)
		}
		return pts >= c.Threshold, nil

	case models.CriteriaCompletion:
		switch c.Qualifier {
		case models.CompletionProfile:
			return prof.ProfileCompleteness >= float64(c.Threshold), nil
		case models.CompletionCareerPath:
			return prof.CareerPathCompletion >= float64(c.Threshold), nil
		case models.CompletionCourses:
			return prof.CoursesCompleted >= c.Threshold, nil
		case models.CompletionGoals:
			return prof.GoalsCompleted >= c.Threshold, nil
		}
		return false, fmt.Errorf("unknown completion qualifier %q", c.Qualifier)

	case models.CriteriaTimeActive:
		days := int64(time.Since(prof.CreatedAt).Hours() / 24)
		return days >= c.Threshold, nil

	case models.CriteriaSpecial:
		if err := facts.ensure(s.DB, prof.UserID); err != nil {
			return false, err
		}
		return specialCount(facts, c.Qualifier) >= c.Threshold, nil
	}
	return false, fmt.Errorf("unknown criteria kind %q", c.Kind)
}

// specialCount evaluates the named log predicate over the user's activities.
func specialCount(facts *activityFacts, qualifier string) int64 {
	var n int64
	switch qualifier {
	case models.SpecialEarlyBird:
		for _, r := range facts.records {
			if r.Timestamp.UTC().Hour() < 8 {
				n++
			}
		}
	case models.SpecialNightOwl:
		for _, r := range facts.records {
			if r.Timestamp.UTC().Hour() >= 22 {
				n++
			}
		}
	case models.SpecialWeekendWarrior:
		for _, r := range facts.records {
			wd := r.Timestamp.UTC().Weekday()
			if wd == time.Saturday || wd == time.Sunday {
				n++
			}
		}
	case models.SpecialPerfectionist:
		for _, r := range facts.records {
			if rate, ok := metaFloat(r.Metadata, "completion_rate"); ok && rate >= 0.95 {
				n++
			}
		}
	case models.SpecialConsistencyMaster:
		n = int64(longestDailyRun(facts.records))
	case models.SpecialFirstDayCompletion:
		for _, r := range facts.records {
			if r.Timestamp.UTC().Truncate(24 * time.Hour).Equal(facts.firstDay) {
				n++
			}
		}
	}
	return n
}

// longestDailyRun returns the longest run of consecutive calendar days (UTC)
// with at least one activity. Records must be in ascending timestamp order.
func longestDailyRun(records []models.ActivityRecord) int {
	longest, run := 0, 0
	var prev time.Time
	for _, r := range records {
		day := r.Timestamp.UTC().Truncate(24 * time.Hour)
		switch {
		case run == 0:
			run = 1
		case day.Equal(prev):
			// same day, run unchanged
		case day.Sub(prev) == 24*time.Hour:
			run++
		default:
			run = 1
		}
		if run > longest {
			longest = run
		}
		prev = day
	}
	return longest
}

// AchievementProgress is a locked achievement with how close the user is.
type AchievementProgress struct {
	Achievement models.Achievement `json:"achievement"`
	Current     int64              `json:"current"`
	Target      int64              `json:"target"`
	Percentage  float64            `json:"percentage"`
}

// Progress reports per-achievement completion for everything still locked.
func (s *AchievementService) Progress(userID string) ([]AchievementProgress, error) {
	prof, err := s.Profiles.GetProfile(userID)
	if err != nil {
		return nil, err
	}
	locked, err := s.lockedAchievements(userID)
	if err != nil {
		return nil, err
	}
	facts, err := s.loadActivityFacts(userID, prof)
	if err != nil {
		return nil, err
	}

	out := make([]AchievementProgress, 0, len(locked))
	for _, a := range locked {
		current, err := s.criterionValue(prof, facts, a.UnlockCriteria)
		if err != nil {
			continue
		}
		target := a.UnlockCriteria.Threshold
		pct := 0.0
		if target > 0 {
			pct = clampPercent(float64(current) / float64(target) * 100)
		}
		out = append(out, AchievementProgress{Achievement: a, Current: current, Target: target, Percentage: pct})
	}
	return out, nil
}

// Suggestions returns the locked achievements nearest to unlocking.
func (s *AchievementService) Suggestions(userID string, limit int) ([]AchievementProgress, error) {
	if limit < 1 || limit > 20 {
		limit = 3
	}
	progress, err := s.Progress(userID)
	if err != nil {
		return nil, err
	}
	// Selection sort by percentage desc; lists are catalog-sized.
	for i := 0; i < len(progress) && i < limit; i++ {
		best := i
		for j := i + 1; j < len(progress); j++ {
			if progress[j].Percentage > progress[best].Percentage {
				best = j
			}
		}
		progress[i], progress[best] = progress[best], progress[i]
	}
	if len(progress) > limit {
		progress = progress[:limit]
	}
	return progress, nil
}

// criterionValue returns the current metric the criteria compares against.
func (s *AchievementService) criterionValue(prof *models.UserProfile, facts *activityFacts, c models.UnlockCriteria) (int64, error) {
	switch c.Kind {
	case models.CriteriaActivityCount:
		if c.Qualifier == "" {
			return prof.TotalActivities, nil
		}
		if err := facts.ensure(s.DB, prof.UserID); err != nil {
			return 0, err
		}
		return facts.countKind[models.ActivityKind(c.Qualifier)], nil
	case models.CriteriaStreak:
		return int64(prof.CurrentStreak), nil
	case models.CriteriaLevel:
		return int64(prof.CurrentLevel), nil
	case models.CriteriaPoints:
		if c.Qualifier == "" {
			return prof.TotalXP, nil
		}
		pts, ok := prof.SkillPoints.Get(c.Qualifier)
		if !ok {
			return 0, fmt.Errorf("unknown skill category %q", c.Qualifier)
		}
		return pts, nil
	case models.CriteriaCompletion:
		switch c.Qualifier {
		case models.CompletionProfile:
			return int64(prof.ProfileCompleteness), nil
		case models.CompletionCareerPath:
			return int64(prof.CareerPathCompletion), nil
		case models.CompletionCourses:
			return prof.CoursesCompleted, nil
		case models.CompletionGoals:
			return prof.GoalsCompleted, nil
		}
		return 0, fmt.Errorf("unknown completion qualifier %q", c.Qualifier)
	case models.CriteriaTimeActive:
		return int64(time.Since(prof.CreatedAt).Hours() / 24), nil
	case models.CriteriaSpecial:
		if err := facts.ensure(s.DB, prof.UserID); err != nil {
			return 0, err
		}
		return specialCount(facts, c.Qualifier), nil
	}
	return 0, fmt.Errorf("unknown criteria kind %q", c.Kind)
}

// RecalculateStats refreshes the denormalized unlock_count/unlock_percentage
// columns and heals drifted total_achievements profile counters. Run daily.
func (s *AchievementService) RecalculateStats() error {
	var totalProfiles int64
	if err := s.DB.Model(&models.UserProfile{}).Count(&totalProfiles).Error; err != nil {
		return err
	}

	var achievements []models.Achievement
	if err := s.DB.Find(&achievements).Error; err != nil {
		return err
	}
	for _, a := range achievements {
		var unlocks int64
		if err := s.DB.Model(&models.UserAchievement{}).
			Where("achievement_id = ?", a.ID).Count(&unlocks).Error; err != nil {
			return err
		}
		pct := 0.0
		if totalProfiles > 0 {
			pct = float64(unlocks) / float64(totalProfiles) * 100
		}
		if err := s.DB.Model(&models.Achievement{}).Where("id = ?", a.ID).
			Updates(map[string]interface{}{
				"unlock_count":      unlocks,
				"unlock_percentage": pct,
			}).Error; err != nil {
			return err
		}
	}

	// Heal total_achievements where a reward grant failed after the unlock
	// row was inserted.
	type drift struct {
		UserID string
		N      int64
	}
	var drifts []drift
	err := s.DB.Model(&models.UserAchievement{}).
		Select("user_id, COUNT(*) as n").
		Group("user_id").
		Scan(&drifts).Error
	if err != nil {
		return err
	}
	for _, d := range drifts {
		n := d.N
		_, err := s.Profiles.Mutate(d.UserID, func(p *models.UserProfile) error {
			p.TotalAchievements = n
			return nil
		})
		if err != nil && err != models.ErrConflict {
			log.Printf("⚠️ Achievement counter heal for %s failed: %v", d.UserID, err)
		}
	}

	log.Printf("✅ Achievement stats recalculated (%d entries, %d profiles)", len(achievements), totalProfiles)
	return nil
}
