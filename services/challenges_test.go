package services

import (
	"testing"
	"time"

	"career-gamification-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChallenges(t *testing.T) (*ChallengeManager, *ProfileService) {
	t.Helper()
	db, profiles := newTestProfiles(t)
	return NewChallengeManager(db, profiles, nil), profiles
}

func activeChallenge(reqs ...models.ChallengeRequirement) *models.Challenge {
	return &models.Challenge{
		Title:         "Learning Sprint",
		ChallengeType: models.ChallengeWeekly,
		Category:      models.ChallengeCatLearning,
		Difficulty:    models.DifficultyBeginner,
		Requirements:  reqs,
		RewardPoints:  200,
		StartDate:     time.Now().UTC().Add(-time.Hour),
		EndDate:       time.Now().UTC().Add(6 * 24 * time.Hour),
	}
}

func TestCreateChallengeDerivesCodeAndStatus(t *testing.T) {
	mgr, _ := newTestChallenges(t)

	ch := activeChallenge(models.ChallengeRequirement{Type: models.ReqActivityCount, TargetValue: 5})
	require.NoError(t, mgr.Create(ch))
	assert.Equal(t, "learning-sprint", ch.Code)
	assert.Equal(t, models.StatusActive, ch.Status)

	future := activeChallenge(models.ChallengeRequirement{Type: models.ReqActivityCount, TargetValue: 5})
	future.Title = "Next Week"
	future.StartDate = time.Now().UTC().Add(48 * time.Hour)
	future.EndDate = time.Now().UTC().Add(96 * time.Hour)
	require.NoError(t, mgr.Create(future))
	assert.Equal(t, models.StatusUpcoming, future.Status)
}

func TestCreateChallengeValidation(t *testing.T) {
	mgr, _ := newTestChallenges(t)
	var precondition *models.PreconditionError

	err := mgr.Create(&models.Challenge{Title: "No Requirements"})
	assert.ErrorAs(t, err, &precondition)

	err = mgr.Create(&models.Challenge{
		Title:        "Bad Target",
		Requirements: []models.ChallengeRequirement{{Type: models.ReqActivityCount, TargetValue: 0}},
	})
	assert.ErrorAs(t, err, &precondition)
}

func TestJoinGating(t *testing.T) {
	mgr, profiles := newTestChallenges(t)
	var precondition *models.PreconditionError

	ch := activeChallenge(models.ChallengeRequirement{Type: models.ReqActivityCount, TargetValue: 5})
	ch.RequiredLevel = 5
	require.NoError(t, mgr.Create(ch))

	// Fresh profile is level 1.
	_, err := mgr.Join("user-1", ch.ID)
	assert.ErrorAs(t, err, &precondition)

	_, err = profiles.Mutate("user-1", func(p *models.UserProfile) error {
		p.TotalXP = 5000 // level 6
		return nil
	})
	require.NoError(t, err)

	uc, err := mgr.Join("user-1", ch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, uc.Status)

	// Joining twice is a conflict.
	_, err = mgr.Join("user-1", ch.ID)
	assert.ErrorIs(t, err, models.ErrAlreadyJoined)

	// Unknown challenge.
	_, err = mgr.Join("user-1", "no-such-challenge")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestJoinCapacity(t *testing.T) {
	mgr, _ := newTestChallenges(t)
	var precondition *models.PreconditionError

	ch := activeChallenge(models.ChallengeRequirement{Type: models.ReqActivityCount, TargetValue: 5})
	ch.MaxParticipants = 1
	require.NoError(t, mgr.Create(ch))

	_, err := mgr.Join("user-1", ch.ID)
	require.NoError(t, err)

	_, err = mgr.Join("user-2", ch.ID)
	assert.ErrorAs(t, err, &precondition)

	updated, err := mgr.Get(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CurrentParticipants)
}

func TestJoinRequiredAchievements(t *testing.T) {
	mgr, _ := newTestChallenges(t)
	var precondition *models.PreconditionError

	ch := activeChallenge(models.ChallengeRequirement{Type: models.ReqActivityCount, TargetValue: 5})
	ch.RequiredAchievements = []string{"first-steps"}
	require.NoError(t, mgr.Create(ch))

	_, err := mgr.Join("user-1", ch.ID)
	assert.ErrorAs(t, err, &precondition)
}

func TestProgressTwoRequirements(t *testing.T) {
	mgr, _ := newTestChallenges(t)

	// 5 activities + 40 points. Each activity is worth 10 points, so after 4
	// activities the points leg is done (capped at 100) while the count leg
	// is at 80: mean 90. The fifth completes it.
	ch := activeChallenge(
		models.ChallengeRequirement{Type: models.ReqActivityCount, TargetValue: 5},
		models.ChallengeRequirement{Type: models.ReqPointsEarned, TargetValue: 40},
	)
	require.NoError(t, mgr.Create(ch))

	_, err := mgr.Join("user-1", ch.ID)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		completed, err := mgr.ProgressFanout("user-1", models.ActivityResumeUpdate, 10, nil)
		require.NoError(t, err)
		assert.Empty(t, completed)
	}

	var uc models.UserChallenge
	require.NoError(t, mgr.DB.Where("user_id = ? AND challenge_id = ?", "user-1", ch.ID).First(&uc).Error)
	assert.InDelta(t, 90.0, uc.ProgressPercentage, 1e-9)
	assert.ElementsMatch(t, []int{25, 50, 75}, uc.MilestonesReached)
	assert.Equal(t, models.StatusActive, uc.Status)

	completed, err := mgr.ProgressFanout("user-1", models.ActivityResumeUpdate, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{ch.Code}, completed)

	require.NoError(t, mgr.DB.Where("user_id = ? AND challenge_id = ?", "user-1", ch.ID).First(&uc).Error)
	assert.Equal(t, models.StatusCompleted, uc.Status)
	assert.NotNil(t, uc.CompletedAt)
	assert.ElementsMatch(t, []int{25, 50, 75, 100}, uc.MilestonesReached)
	assert.Equal(t, int64(200), uc.PointsEarned)
}

func TestCompletionRewardPaidOnce(t *testing.T) {
	mgr, profiles := newTestChallenges(t)

	ch := activeChallenge(models.ChallengeRequirement{Type: models.ReqActivityCount, TargetValue: 1})
	require.NoError(t, mgr.Create(ch))

	_, err := mgr.Join("user-1", ch.ID)
	require.NoError(t, err)

	completed, err := mgr.ProgressFanout("user-1", models.ActivityResumeUpdate, 10, nil)
	require.NoError(t, err)
	require.Len(t, completed, 1)

	// Further activity must not touch the completed participation or pay again.
	completed, err = mgr.ProgressFanout("user-1", models.ActivityResumeUpdate, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, completed)

	prof, err := profiles.GetProfile("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), prof.TotalXP)

	var rewards int64
	require.NoError(t, mgr.DB.Model(&models.ActivityRecord{}).
		Where("user_id = ? AND activity_kind = ?", "user-1", models.ActivityAchievementUnlock).
		Count(&rewards).Error)
	assert.Equal(t, int64(1), rewards)
}

func TestSkillCategoryAndCompletionRateRequirements(t *testing.T) {
	mgr, _ := newTestChallenges(t)

	ch := activeChallenge(
		models.ChallengeRequirement{Type: models.ReqSkillCategory, TargetValue: 2, Qualifier: "technical"},
		models.ChallengeRequirement{Type: models.ReqCompletionRate, TargetValue: 2, MinRate: 0.9},
	)
	require.NoError(t, mgr.Create(ch))

	_, err := mgr.Join("user-1", ch.ID)
	require.NoError(t, err)

	// Wrong skill and low rate: nothing moves.
	_, err = mgr.ProgressFanout("user-1", models.ActivityCourseCompletion, 50, map[string]interface{}{
		"skill_category":  "leadership",
		"completion_rate": 0.5,
	})
	require.NoError(t, err)

	var uc models.UserChallenge
	require.NoError(t, mgr.DB.Where("user_id = ?", "user-1").First(&uc).Error)
	assert.InDelta(t, 0.0, uc.ProgressPercentage, 1e-9)

	// Matching skill and qualifying rate: both legs advance.
	_, err = mgr.ProgressFanout("user-1", models.ActivityCourseCompletion, 50, map[string]interface{}{
		"skill_category":  "technical",
		"completion_rate": 0.95,
	})
	require.NoError(t, err)

	require.NoError(t, mgr.DB.Where("user_id = ?", "user-1").First(&uc).Error)
	assert.InDelta(t, 50.0, uc.ProgressPercentage, 1e-9)
}

func TestStreakRequirementIsAbsolute(t *testing.T) {
	mgr, profiles := newTestChallenges(t)

	ch := activeChallenge(models.ChallengeRequirement{Type: models.ReqStreakDays, TargetValue: 4})
	require.NoError(t, mgr.Create(ch))

	_, err := profiles.Mutate("user-1", func(p *models.UserProfile) error {
		p.CurrentStreak = 2
		return nil
	})
	require.NoError(t, err)

	_, err = mgr.Join("user-1", ch.ID)
	require.NoError(t, err)

	_, err = mgr.ProgressFanout("user-1", models.ActivityDailyLogin, 5, nil)
	require.NoError(t, err)

	var uc models.UserChallenge
	require.NoError(t, mgr.DB.Where("user_id = ?", "user-1").First(&uc).Error)
	assert.InDelta(t, 50.0, uc.ProgressPercentage, 1e-9) // streak 2 of 4
}

func TestSweepStatuses(t *testing.T) {
	mgr, _ := newTestChallenges(t)

	past := activeChallenge(models.ChallengeRequirement{Type: models.ReqActivityCount, TargetValue: 5})
	past.Title = "Over Already"
	require.NoError(t, mgr.Create(past))
	// Force the window into the past after creation.
	require.NoError(t, mgr.DB.Model(&models.Challenge{}).Where("id = ?", past.ID).
		Update("end_date", time.Now().UTC().Add(-time.Hour)).Error)

	_, err := mgr.Join("user-1", past.ID)
	require.NoError(t, err)

	upcoming := activeChallenge(models.ChallengeRequirement{Type: models.ReqActivityCount, TargetValue: 5})
	upcoming.Title = "Starts Soon"
	upcoming.StartDate = time.Now().UTC().Add(time.Hour)
	upcoming.EndDate = time.Now().UTC().Add(48 * time.Hour)
	require.NoError(t, mgr.Create(upcoming))
	// Pull the start into the past so the sweep activates it.
	require.NoError(t, mgr.DB.Model(&models.Challenge{}).Where("id = ?", upcoming.ID).
		Update("start_date", time.Now().UTC().Add(-time.Minute)).Error)

	require.NoError(t, mgr.SweepStatuses())

	got, err := mgr.Get(past.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, got.Status)

	got, err = mgr.Get(upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)

	var uc models.UserChallenge
	require.NoError(t, mgr.DB.Where("user_id = ?", "user-1").First(&uc).Error)
	assert.Equal(t, models.StatusExpired, uc.Status)
}

func TestChallengeStatistics(t *testing.T) {
	mgr, _ := newTestChallenges(t)

	ch := activeChallenge(models.ChallengeRequirement{Type: models.ReqActivityCount, TargetValue: 1})
	require.NoError(t, mgr.Create(ch))

	_, err := mgr.Join("user-1", ch.ID)
	require.NoError(t, err)
	_, err = mgr.Join("user-2", ch.ID)
	require.NoError(t, err)

	_, err = mgr.ProgressFanout("user-1", models.ActivityResumeUpdate, 10, nil)
	require.NoError(t, err)

	stats, err := mgr.Statistics(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats["participants"])
	assert.Equal(t, int64(1), stats["completed"])
	assert.InDelta(t, 50.0, stats["completion_rate"].(float64), 1e-9)
}
