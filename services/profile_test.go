package services

import (
	"testing"
	"time"

	"career-gamification-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureProfileIdempotent(t *testing.T) {
	_, profiles := newTestProfiles(t)

	p1, err := profiles.EnsureProfile("user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", p1.UserID)
	assert.Equal(t, 1, p1.CurrentLevel)
	assert.Equal(t, int64(1000), p1.XPToNextLevel)

	p2, err := profiles.EnsureProfile("user-1")
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)
}

func TestGetProfileSelfHealsLevel(t *testing.T) {
	db, profiles := newTestProfiles(t)

	p, err := profiles.EnsureProfile("user-1")
	require.NoError(t, err)

	// Corrupt the stored level fields directly.
	require.NoError(t, db.Model(&models.UserProfile{}).
		Where("user_id = ?", "user-1").
		Updates(map[string]interface{}{
			"total_xp":         2500,
			"current_level":    1,
			"xp_to_next_level": 1000,
			"version":          p.Version,
		}).Error)

	healed, err := profiles.GetProfile("user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, healed.CurrentLevel)
	assert.Equal(t, int64(500), healed.XPToNextLevel)
}

func TestMutateAppliesAndBumpsVersion(t *testing.T) {
	_, profiles := newTestProfiles(t)

	_, err := profiles.EnsureProfile("user-1")
	require.NoError(t, err)

	p, err := profiles.Mutate("user-1", func(p *models.UserProfile) error {
		p.TotalXP += 300
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(300), p.TotalXP)
	assert.Equal(t, int64(1), p.Version)

	p, err = profiles.Mutate("user-1", func(p *models.UserProfile) error {
		p.TotalXP += 900
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1200), p.TotalXP)
	assert.Equal(t, 2, p.CurrentLevel)
	assert.Equal(t, int64(2), p.Version)
}

func TestMutateRetriesOnVersionConflict(t *testing.T) {
	db, profiles := newTestProfiles(t)

	_, err := profiles.EnsureProfile("user-1")
	require.NoError(t, err)

	// The first attempt loses to an out-of-band writer; the retry must see
	// the bumped state and still apply its own change on top.
	interfered := false
	p, err := profiles.Mutate("user-1", func(p *models.UserProfile) error {
		if !interfered {
			interfered = true
			require.NoError(t, db.Model(&models.UserProfile{}).
				Where("user_id = ?", "user-1").
				Updates(map[string]interface{}{
					"total_xp": 100,
					"version":  p.Version + 1,
				}).Error)
		}
		p.TotalXP += 50
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(150), p.TotalXP, "both the interfering write and ours must survive")
	assert.Equal(t, int64(2), p.Version)
}

func TestMutateGivesUpAfterMaxAttempts(t *testing.T) {
	db, profiles := newTestProfiles(t)

	_, err := profiles.EnsureProfile("user-1")
	require.NoError(t, err)

	// Interfere on every attempt so the CAS can never win.
	_, err = profiles.Mutate("user-1", func(p *models.UserProfile) error {
		require.NoError(t, db.Model(&models.UserProfile{}).
			Where("user_id = ?", "user-1").
			Update("version", p.Version+1).Error)
		p.TotalXP += 50
		return nil
	})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestCountersRollBeforeTheTriggeringIncrement(t *testing.T) {
	db, profiles := newTestProfiles(t)

	_, err := profiles.EnsureProfile("user-1")
	require.NoError(t, err)

	// Last write 40 days ago: both the ISO week and the month have rolled.
	past := time.Now().UTC().AddDate(0, 0, -40)
	require.NoError(t, db.Model(&models.UserProfile{}).
		Where("user_id = ?", "user-1").
		UpdateColumns(map[string]interface{}{
			"weekly_activities":  9,
			"monthly_activities": 22,
			"updated_at":         past,
		}).Error)

	// The first activity of the new window must survive the reset.
	p, err := profiles.Mutate("user-1", func(p *models.UserProfile) error {
		p.WeeklyActivities++
		p.MonthlyActivities++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.WeeklyActivities)
	assert.Equal(t, int64(1), p.MonthlyActivities)
}

func TestAwardAndRecordCommitsTogether(t *testing.T) {
	db, profiles := newTestProfiles(t)

	record := &models.ActivityRecord{
		ActivityKind: models.ActivityCourseCompletion,
		PointsEarned: 50,
	}
	p, err := profiles.AwardAndRecord("user-1", func(p *models.UserProfile) error {
		p.TotalXP += 50
		p.TotalActivities++
		return nil
	}, record)
	require.NoError(t, err)
	assert.Equal(t, int64(50), p.TotalXP)

	var count int64
	require.NoError(t, db.Model(&models.ActivityRecord{}).
		Where("user_id = ?", "user-1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.NotEmpty(t, record.ID)
}

func TestUpdateStreakTransitions(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, 8, d, 12, 0, 0, 0, time.UTC)
	}

	p := &models.UserProfile{}

	// First ever activity starts the streak.
	assert.True(t, UpdateStreak(p, day(1)))
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, 1, p.LongestStreak)

	// Same calendar day is a no-op for the counter.
	assert.False(t, UpdateStreak(p, day(1).Add(5*time.Hour)))
	assert.Equal(t, 1, p.CurrentStreak)

	// Next day increments.
	assert.True(t, UpdateStreak(p, day(2)))
	assert.Equal(t, 2, p.CurrentStreak)
	assert.True(t, UpdateStreak(p, day(3)))
	assert.Equal(t, 3, p.CurrentStreak)
	assert.Equal(t, 3, p.LongestStreak)

	// A gap resets to 1, longest survives.
	assert.True(t, UpdateStreak(p, day(7)))
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, 3, p.LongestStreak)
}

func TestUpdateStreakAcrossMidnight(t *testing.T) {
	p := &models.UserProfile{}

	// 23:50 then 00:10 the next day is still consecutive.
	UpdateStreak(p, time.Date(2026, 8, 1, 23, 50, 0, 0, time.UTC))
	UpdateStreak(p, time.Date(2026, 8, 2, 0, 10, 0, 0, time.UTC))
	assert.Equal(t, 2, p.CurrentStreak)
}

func TestActivityHistoryPagination(t *testing.T) {
	db, profiles := newTestProfiles(t)

	for i := 0; i < 5; i++ {
		record := &models.ActivityRecord{
			ActivityKind: models.ActivityDailyLogin,
			PointsEarned: 5,
			Timestamp:    time.Date(2026, 8, 1+i, 9, 0, 0, 0, time.UTC),
		}
		_, err := profiles.AwardAndRecord("user-1", func(p *models.UserProfile) error {
			p.TotalXP += 5
			return nil
		}, record)
		require.NoError(t, err)
	}
	_ = db

	records, total, err := profiles.ActivityHistory("user-1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, records, 2)
	// Newest first.
	assert.True(t, records[0].Timestamp.After(records[1].Timestamp))

	records, _, err = profiles.ActivityHistory("user-1", 3, 2)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
