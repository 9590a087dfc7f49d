package services

import (
	"fmt"
	"log"
	"math"
	"time"

	"career-gamification-service/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChallengeManager owns the challenge catalog and per-user participations.
// Progress flows in through ProgressFanout on every recorded activity;
// completion is a one-way transition paid exactly once.
type ChallengeManager struct {
	DB       *gorm.DB
	Profiles *ProfileService
	Notifier *NotificationClient
}

func NewChallengeManager(db *gorm.DB, profiles *ProfileService, notifier *NotificationClient) *ChallengeManager {
	return &ChallengeManager{DB: db, Profiles: profiles, Notifier: notifier}
}

// Create validates and stores a new catalog entry. The code is slugged from
// the title; the status is derived from the date window.
func (m *ChallengeManager) Create(ch *models.Challenge) error {
	if ch.Title == "" {
		return models.Precondition("challenge title is required")
	}
	if len(ch.Requirements) == 0 {
		return models.Precondition("challenge needs at least one requirement")
	}
	for i, r := range ch.Requirements {
		if r.TargetValue <= 0 {
			return models.Precondition(fmt.Sprintf("requirement %d needs a positive target", i))
		}
		if r.Type == models.ReqCompletionRate && r.MinRate == 0 {
			ch.Requirements[i].MinRate = 0.8
		}
	}

	now := time.Now().UTC()
	if ch.StartDate.IsZero() {
		ch.StartDate = now
	}
	if ch.EndDate.IsZero() {
		days := ch.DurationDays
		if days <= 0 {
			days = 7
		}
		ch.EndDate = ch.StartDate.AddDate(0, 0, days)
	}
	if !ch.EndDate.After(ch.StartDate) {
		return models.Precondition("challenge end date must be after start date")
	}

	ch.ID = uuid.NewString()
	if ch.Code == "" {
		ch.Code = slug.Make(ch.Title)
	}
	ch.Status = statusForWindow(ch.StartDate, ch.EndDate, now)

	if err := m.DB.Create(ch).Error; err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	log.Printf("✅ Challenge created: %s (%s, %s)", ch.Code, ch.ChallengeType, ch.Status)
	return nil
}

func statusForWindow(start, end, now time.Time) models.ChallengeStatus {
	switch {
	case now.Before(start):
		return models.StatusUpcoming
	case now.After(end):
		return models.StatusExpired
	default:
		return models.StatusActive
	}
}

// SetBannerURL stores the uploaded banner location on the catalog entry.
func (m *ChallengeManager) SetBannerURL(id, bannerURL string) error {
	res := m.DB.Model(&models.Challenge{}).Where("id = ?", id).Update("banner_url", bannerURL)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Get returns one challenge by id or code.
func (m *ChallengeManager) Get(idOrCode string) (*models.Challenge, error) {
	var ch models.Challenge
	err := m.DB.Where("id = ? OR code = ?", idOrCode, idOrCode).First(&ch).Error
	if err == gorm.ErrRecordNotFound {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// ChallengeFilters narrows ListActive.
type ChallengeFilters struct {
	Type       models.ChallengeType
	Category   models.ChallengeCategory
	Difficulty models.ChallengeDifficulty
	Featured   bool
}

// ListActive returns public active challenges matching the filters.
func (m *ChallengeManager) ListActive(f ChallengeFilters) ([]models.Challenge, error) {
	q := m.DB.Where("status = ? AND is_public = ?", models.StatusActive, true)
	if f.Type != "" {
		q = q.Where("challenge_type = ?", f.Type)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Difficulty != "" {
		q = q.Where("difficulty = ?", f.Difficulty)
	}
	if f.Featured {
		q = q.Where("is_featured = ?", true)
	}
	var challenges []models.Challenge
	err := q.Order("is_featured DESC, end_date ASC").Find(&challenges).Error
	return challenges, err
}

// Join enrolls the user after the gating checks: the challenge must be
// active, the user must meet the level and achievement requirements, and
// capacity must remain. The participant counter increments only when this
// call inserted the participation row.
func (m *ChallengeManager) Join(userID, challengeID string) (*models.UserChallenge, error) {
	ch, err := m.Get(challengeID)
	if err != nil {
		return nil, err
	}
	if ch.Status != models.StatusActive {
		return nil, models.Precondition(fmt.Sprintf("challenge is %s, not active", ch.Status))
	}

	prof, err := m.Profiles.GetProfile(userID)
	if err != nil {
		return nil, err
	}
	if prof.CurrentLevel < ch.RequiredLevel {
		return nil, models.Precondition(fmt.Sprintf("requires level %d, you are level %d", ch.RequiredLevel, prof.CurrentLevel))
	}
	if len(ch.RequiredAchievements) > 0 {
		missing, err := m.missingAchievements(userID, ch.RequiredAchievements)
		if err != nil {
			return nil, err
		}
		if len(missing) > 0 {
			return nil, models.Precondition(fmt.Sprintf("missing required achievements: %v", missing))
		}
	}
	if ch.MaxParticipants > 0 && ch.CurrentParticipants >= ch.MaxParticipants {
		return nil, models.Precondition("challenge is full")
	}

	uc := models.UserChallenge{
		ID:                uuid.NewString(),
		UserID:            userID,
		ChallengeID:       ch.ID,
		Status:            models.StatusActive,
		CurrentProgress:   datatypes.JSONMap{},
		MilestonesReached: []int{},
		StartValue: datatypes.JSONMap{
			"total_xp":       prof.TotalXP,
			"current_streak": prof.CurrentStreak,
		},
	}

	err = m.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "challenge_id"}},
			DoNothing: true,
		}).Create(&uc)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrAlreadyJoined
		}

		// Capacity is re-checked inside the update so concurrent joins cannot
		// overshoot MaxParticipants.
		q := tx.Model(&models.Challenge{}).Where("id = ?", ch.ID)
		if ch.MaxParticipants > 0 {
			q = q.Where("current_participants < ?", ch.MaxParticipants)
		}
		res = q.UpdateColumn("current_participants", gorm.Expr("current_participants + 1"))
		if res.Error != nil {
			return res.Error
		}
		if ch.MaxParticipants > 0 && res.RowsAffected == 0 {
			return models.Precondition("challenge is full")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.Notifier != nil {
		m.Notifier.ChallengeJoined(userID, ch.Code, ch.Title)
	}
	log.Printf("🎮 %s joined challenge %s", userID, ch.Code)
	return &uc, nil
}

func (m *ChallengeManager) missingAchievements(userID string, codes []string) ([]string, error) {
	var owned []string
	err := m.DB.Model(&models.UserAchievement{}).
		Joins("JOIN achievements ON achievements.id = user_achievements.achievement_id").
		Where("user_achievements.user_id = ? AND achievements.code IN ?", userID, codes).
		Pluck("achievements.code", &owned).Error
	if err != nil {
		return nil, err
	}
	ownedSet := make(map[string]bool, len(owned))
	for _, c := range owned {
		ownedSet[c] = true
	}
	var missing []string
	for _, c := range codes {
		if !ownedSet[c] {
			missing = append(missing, c)
		}
	}
	return missing, nil
}

// ProgressFanout advances every active participation of userID after an
// activity. Returns the codes of challenges completed by this activity.
func (m *ChallengeManager) ProgressFanout(userID string, kind models.ActivityKind, points int64, metadata map[string]interface{}) ([]string, error) {
	var participations []models.UserChallenge
	err := m.DB.Where("user_id = ? AND status = ?", userID, models.StatusActive).Find(&participations).Error
	if err != nil {
		return nil, err
	}
	if len(participations) == 0 {
		return nil, nil
	}

	prof, err := m.Profiles.GetProfile(userID)
	if err != nil {
		return nil, err
	}

	var completed []string
	for i := range participations {
		uc := &participations[i]
		ch, err := m.Get(uc.ChallengeID)
		if err != nil {
			log.Printf("⚠️ Challenge %s missing for participation %s", uc.ChallengeID, uc.ID)
			continue
		}
		if ch.Status != models.StatusActive {
			continue
		}
		done, err := m.updateParticipation(uc, ch, prof, kind, points, metadata)
		if err != nil {
			log.Printf("⚠️ Challenge progress %s for %s failed: %v", ch.Code, userID, err)
			continue
		}
		if done {
			completed = append(completed, ch.Code)
		}
	}
	return completed, nil
}

// updateParticipation applies one activity to one participation: advance the
// per-requirement counters, recompute the percentage, record newly crossed
// milestones, and complete when the mean hits 100.
func (m *ChallengeManager) updateParticipation(uc *models.UserChallenge, ch *models.Challenge, prof *models.UserProfile, kind models.ActivityKind, points int64, metadata map[string]interface{}) (bool, error) {
	if uc.CurrentProgress == nil {
		uc.CurrentProgress = datatypes.JSONMap{}
	}

	for _, req := range ch.Requirements {
		key := string(req.Type)
		switch req.Type {
		case models.ReqActivityCount:
			uc.CurrentProgress[key] = progressValue(uc.CurrentProgress, key) + 1
		case models.ReqPointsEarned:
			uc.CurrentProgress[key] = progressValue(uc.CurrentProgress, key) + float64(points)
		case models.ReqStreakDays:
			// Absolute: the profile streak is the metric, not a delta.
			uc.CurrentProgress[key] = float64(prof.CurrentStreak)
		case models.ReqSkillCategory:
			if skill, ok := metaString(metadata, "skill_category"); ok && skill == req.Qualifier {
				uc.CurrentProgress[key] = progressValue(uc.CurrentProgress, key) + 1
			}
		case models.ReqCompletionRate:
			minRate := req.MinRate
			if minRate == 0 {
				minRate = 0.8
			}
			if rate, ok := metaFloat(metadata, "completion_rate"); ok && rate >= minRate {
				uc.CurrentProgress[key] = progressValue(uc.CurrentProgress, key) + 1
			}
		}
	}

	return m.persistProgress(uc, ch)
}

// ApplyProgress merges externally reported increments into the participation
// (the manual progress endpoint). Keys are requirement types; values add to
// the accumulated counters, except streak_days which is absolute.
func (m *ChallengeManager) ApplyProgress(userID, challengeID string, increments map[string]float64) (*models.UserChallenge, bool, error) {
	ch, err := m.Get(challengeID)
	if err != nil {
		return nil, false, err
	}

	var uc models.UserChallenge
	err = m.DB.Where("user_id = ? AND challenge_id = ?", userID, ch.ID).First(&uc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, models.ErrNotFound
	}
	if err != nil {
		return nil, false, err
	}
	if uc.Status != models.StatusActive {
		return nil, false, models.Precondition(fmt.Sprintf("participation is %s, not active", uc.Status))
	}
	if uc.CurrentProgress == nil {
		uc.CurrentProgress = datatypes.JSONMap{}
	}

	for _, req := range ch.Requirements {
		key := string(req.Type)
		delta, ok := increments[key]
		if !ok {
			continue
		}
		if req.Type == models.ReqStreakDays {
			uc.CurrentProgress[key] = delta
		} else {
			uc.CurrentProgress[key] = progressValue(uc.CurrentProgress, key) + delta
		}
	}

	done, err := m.persistProgress(&uc, ch)
	return &uc, done, err
}

// persistProgress recomputes the percentage and milestones for uc, saves it,
// and handles the one-way completion transition with its reward.
func (m *ChallengeManager) persistProgress(uc *models.UserChallenge, ch *models.Challenge) (bool, error) {
	uc.ProgressPercentage = challengePercentage(ch.Requirements, uc.CurrentProgress)

	var newMilestones []int
	for _, ms := range models.ChallengeMilestones {
		if uc.ProgressPercentage >= float64(ms) && !containsInt(uc.MilestonesReached, ms) {
			uc.MilestonesReached = append(uc.MilestonesReached, ms)
			newMilestones = append(newMilestones, ms)
		}
	}

	if uc.ProgressPercentage >= 100 {
		now := time.Now().UTC()
		// One-way transition: the status guard in the WHERE clause makes the
		// reward payable at most once even under concurrent fanouts.
		res := m.DB.Model(&models.UserChallenge{}).
			Where("id = ? AND status = ?", uc.ID, models.StatusActive).
			Select("status", "completed_at", "current_progress", "progress_percentage", "milestones_reached", "points_earned").
			Updates(models.UserChallenge{
				Status:             models.StatusCompleted,
				CompletedAt:        &now,
				CurrentProgress:    uc.CurrentProgress,
				ProgressPercentage: uc.ProgressPercentage,
				MilestonesReached:  uc.MilestonesReached,
				PointsEarned:       ch.RewardPoints,
			})
		if res.Error != nil {
			return false, res.Error
		}
		if res.RowsAffected == 0 {
			return false, nil // someone else completed it first
		}
		uc.Status = models.StatusCompleted
		uc.CompletedAt = &now
		uc.PointsEarned = ch.RewardPoints

		if err := m.payReward(uc.UserID, ch); err != nil {
			log.Printf("⚠️ Challenge reward for %s/%s failed: %v", uc.UserID, ch.Code, err)
		}
		if m.Notifier != nil {
			m.Notifier.ChallengeCompleted(uc.UserID, ch.Code, ch.Title, ch.RewardPoints)
		}
		log.Printf("🏆 Challenge %s completed by %s (+%d XP)", ch.Code, uc.UserID, ch.RewardPoints)
		return true, nil
	}

	err := m.DB.Model(&models.UserChallenge{}).
		Where("id = ? AND status = ?", uc.ID, models.StatusActive).
		Select("current_progress", "progress_percentage", "milestones_reached").
		Updates(models.UserChallenge{
			CurrentProgress:    uc.CurrentProgress,
			ProgressPercentage: uc.ProgressPercentage,
			MilestonesReached:  uc.MilestonesReached,
		}).Error
	if err != nil {
		return false, err
	}

	if len(newMilestones) > 0 && m.Notifier != nil {
		m.Notifier.ChallengeMilestone(uc.UserID, ch.Code, newMilestones[len(newMilestones)-1])
	}
	return false, nil
}

func (m *ChallengeManager) payReward(userID string, ch *models.Challenge) error {
	if ch.RewardPoints <= 0 {
		return nil
	}
	record := &models.ActivityRecord{
		ActivityKind: models.ActivityAchievementUnlock,
		PointsEarned: ch.RewardPoints,
		Metadata: map[string]interface{}{
			"challenge_id":   ch.ID,
			"challenge_code": ch.Code,
			"reward_title":   ch.RewardTitle,
		},
	}
	_, err := m.Profiles.AwardAndRecord(userID, func(p *models.UserProfile) error {
		p.TotalXP += ch.RewardPoints
		return nil
	}, record)
	return err
}

// progressValue reads a numeric progress entry; JSON round-trips store float64.
func progressValue(m datatypes.JSONMap, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// challengePercentage is the unweighted mean of per-requirement percentages,
// each capped at 100 so one overshot leg cannot mask an unmet one.
func challengePercentage(reqs []models.ChallengeRequirement, progress datatypes.JSONMap) float64 {
	if len(reqs) == 0 {
		return 0
	}
	var sum float64
	for _, req := range reqs {
		if req.TargetValue <= 0 {
			continue
		}
		cur := progressValue(progress, string(req.Type))
		sum += math.Min(100, cur/float64(req.TargetValue)*100)
	}
	return sum / float64(len(reqs))
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// UserChallenges lists the user's participations with their challenges.
func (m *ChallengeManager) UserChallenges(userID string, status models.ChallengeStatus) ([]map[string]interface{}, error) {
	q := m.DB.Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var participations []models.UserChallenge
	if err := q.Order("joined_at DESC").Find(&participations).Error; err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, 0, len(participations))
	for _, uc := range participations {
		ch, err := m.Get(uc.ChallengeID)
		if err != nil {
			continue
		}
		out = append(out, map[string]interface{}{
			"challenge":     ch,
			"participation": uc,
		})
	}
	return out, nil
}

// SweepStatuses rolls catalog entries across their date boundaries and
// expires stale participations. Run hourly.
func (m *ChallengeManager) SweepStatuses() error {
	now := time.Now().UTC()

	res := m.DB.Model(&models.Challenge{}).
		Where("status = ? AND start_date <= ?", models.StatusUpcoming, now).
		Update("status", models.StatusActive)
	if res.Error != nil {
		return res.Error
	}
	activated := res.RowsAffected

	res = m.DB.Model(&models.Challenge{}).
		Where("status = ? AND end_date < ?", models.StatusActive, now).
		Update("status", models.StatusExpired)
	if res.Error != nil {
		return res.Error
	}
	expired := res.RowsAffected

	// Participations in expired challenges that never completed.
	res = m.DB.Model(&models.UserChallenge{}).
		Where("status = ? AND challenge_id IN (?)", models.StatusActive,
			m.DB.Model(&models.Challenge{}).Select("id").Where("status = ?", models.StatusExpired)).
		Update("status", models.StatusExpired)
	if res.Error != nil {
		return res.Error
	}

	if activated > 0 || expired > 0 || res.RowsAffected > 0 {
		log.Printf("✅ Challenge sweep: %d activated, %d expired, %d participations closed",
			activated, expired, res.RowsAffected)
	}
	return nil
}

// Statistics aggregates participation numbers for one challenge.
func (m *ChallengeManager) Statistics(challengeID string) (map[string]interface{}, error) {
	ch, err := m.Get(challengeID)
	if err != nil {
		return nil, err
	}

	var total, completed int64
	m.DB.Model(&models.UserChallenge{}).Where("challenge_id = ?", ch.ID).Count(&total)
	m.DB.Model(&models.UserChallenge{}).Where("challenge_id = ? AND status = ?", ch.ID, models.StatusCompleted).Count(&completed)

	var avgProgress float64
	m.DB.Model(&models.UserChallenge{}).Where("challenge_id = ?", ch.ID).
		Select("COALESCE(AVG(progress_percentage), 0)").Scan(&avgProgress)

	completionRate := 0.0
	if total > 0 {
		completionRate = float64(completed) / float64(total) * 100
	}

	return map[string]interface{}{
		"challenge_id":     ch.ID,
		"code":             ch.Code,
		"participants":     total,
		"completed":        completed,
		"completion_rate":  completionRate,
		"average_progress": avgProgress,
		"status":           ch.Status,
	}, nil
}
