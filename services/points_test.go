package services

import (
	"testing"

	"career-gamification-service/models"

	"github.com/stretchr/testify/assert"
)

func TestCalculatePointsBase(t *testing.T) {
	cfg := DefaultPointsConfig()

	assert.Equal(t, int64(50), cfg.CalculatePoints(models.ActivityCourseCompletion, nil))
	assert.Equal(t, int64(25), cfg.CalculatePoints(models.ActivitySkillAssessment, nil))
	assert.Equal(t, int64(5), cfg.CalculatePoints(models.ActivityDailyLogin, nil))
	assert.Equal(t, int64(10), cfg.CalculatePoints(models.ActivityResumeUpdate, nil))

	// Unknown kinds fall back to the default.
	assert.Equal(t, int64(25), cfg.CalculatePoints(models.ActivityKind("mystery"), nil))
}

func TestCalculatePointsMultipliers(t *testing.T) {
	cfg := DefaultPointsConfig()

	// 50 * 1.0 * 1.0 * 1.5 = 75
	got := cfg.CalculatePoints(models.ActivityCourseCompletion, map[string]interface{}{
		"completion_rate":       1.0,
		"difficulty":            "easy",
		"first_time_completion": true,
	})
	assert.Equal(t, int64(75), got)

	// 50 * 1.0 * 2.0 * 1.5 = 150
	got = cfg.CalculatePoints(models.ActivityCourseCompletion, map[string]interface{}{
		"completion_rate":       1.0,
		"difficulty":            "expert",
		"first_time_completion": true,
	})
	assert.Equal(t, int64(150), got)

	// Partial completion floors at 0.5: 50 * 0.5 = 25 regardless of how low.
	got = cfg.CalculatePoints(models.ActivityCourseCompletion, map[string]interface{}{
		"completion_rate": 0.1,
	})
	assert.Equal(t, int64(25), got)

	// Fractional results floor: 50 * 0.7 * 1.2 = 42.0
	got = cfg.CalculatePoints(models.ActivityCourseCompletion, map[string]interface{}{
		"completion_rate": 0.7,
		"difficulty":      "medium",
	})
	assert.Equal(t, int64(42), got)

	// Unknown difficulty names contribute no multiplier.
	got = cfg.CalculatePoints(models.ActivityCourseCompletion, map[string]interface{}{
		"difficulty": "nightmare",
	})
	assert.Equal(t, int64(50), got)
}

func TestLevelOf(t *testing.T) {
	cfg := DefaultPointsConfig()

	level, toNext := cfg.LevelOf(0)
	assert.Equal(t, 1, level)
	assert.Equal(t, int64(1000), toNext)

	level, toNext = cfg.LevelOf(999)
	assert.Equal(t, 1, level)
	assert.Equal(t, int64(1), toNext)

	level, toNext = cfg.LevelOf(1000)
	assert.Equal(t, 2, level)
	assert.Equal(t, int64(1000), toNext)

	level, toNext = cfg.LevelOf(2500)
	assert.Equal(t, 3, level)
	assert.Equal(t, int64(500), toNext)

	// Cap at MaxLevel with zero remaining.
	level, toNext = cfg.LevelOf(1000 * 1000)
	assert.Equal(t, 100, level)
	assert.Equal(t, int64(0), toNext)

	// Negative XP is clamped to the first level.
	level, toNext = cfg.LevelOf(-50)
	assert.Equal(t, 1, level)
	assert.Equal(t, int64(1000), toNext)
}

func TestLevelOfMonotonic(t *testing.T) {
	cfg := DefaultPointsConfig()

	prevLevel := 0
	for xp := int64(0); xp <= 150000; xp += 777 {
		level, _ := cfg.LevelOf(xp)
		assert.GreaterOrEqual(t, level, prevLevel, "level dropped at xp=%d", xp)
		prevLevel = level
	}
}

func TestStreakBonusTiers(t *testing.T) {
	cfg := DefaultPointsConfig() // bonus B = 10

	assert.Equal(t, int64(0), cfg.StreakBonus(0))
	assert.Equal(t, int64(0), cfg.StreakBonus(1))
	assert.Equal(t, int64(10), cfg.StreakBonus(2))
	assert.Equal(t, int64(10), cfg.StreakBonus(7))
	assert.Equal(t, int64(15), cfg.StreakBonus(8))
	assert.Equal(t, int64(15), cfg.StreakBonus(30))
	assert.Equal(t, int64(20), cfg.StreakBonus(31))
	assert.Equal(t, int64(20), cfg.StreakBonus(100))
	assert.Equal(t, int64(25), cfg.StreakBonus(101))
	assert.Equal(t, int64(25), cfg.StreakBonus(500))
}

func TestMetadataAccessors(t *testing.T) {
	m := map[string]interface{}{
		"rate":  0.9,
		"count": 3, // native int, as Go callers hand in
		"name":  "technical",
		"flag":  true,
		"empty": "",
	}

	v, ok := metaFloat(m, "rate")
	assert.True(t, ok)
	assert.InDelta(t, 0.9, v, 1e-9)

	v, ok = metaFloat(m, "count")
	assert.True(t, ok)
	assert.InDelta(t, 3, v, 1e-9)

	_, ok = metaFloat(m, "name")
	assert.False(t, ok)

	s, ok := metaString(m, "name")
	assert.True(t, ok)
	assert.Equal(t, "technical", s)

	_, ok = metaString(m, "empty")
	assert.False(t, ok)

	assert.True(t, metaBool(m, "flag"))
	assert.False(t, metaBool(m, "missing"))
	assert.False(t, metaBool(nil, "flag"))
}
