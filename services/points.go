package services

import (
	"math"
	"os"
	"strconv"
	"strings"

	"career-gamification-service/models"
)

// PointsConfig holds the gamification tunables (overridable via env).
type PointsConfig struct {
	BasePoints       map[models.ActivityKind]int64
	DefaultPoints    int64 // unknown activity kinds fall back here
	LevelThreshold   int64 // XP band width per level
	MaxLevel         int
	DailyStreakBonus int64 // flat bonus B; tiers scale it up
}

// DefaultPointsConfig returns the stock point table and level curve.
func DefaultPointsConfig() PointsConfig {
	return PointsConfig{
		BasePoints: map[models.ActivityKind]int64{
			models.ActivityCourseCompletion:   50,
			models.ActivitySkillAssessment:    25,
			models.ActivityProfileCompletion:  20,
			models.ActivityDailyLogin:         5,
			models.ActivityCareerPathProgress: 15,
			models.ActivityResumeUpdate:       10,
		},
		DefaultPoints:    25,
		LevelThreshold:   1000,
		MaxLevel:         100,
		DailyStreakBonus: 10,
	}
}

// PointsConfigFromEnv starts from the defaults and applies env overrides.
func PointsConfigFromEnv() PointsConfig {
	cfg := DefaultPointsConfig()
	if v := envInt64("LEVEL_UP_THRESHOLD"); v > 0 {
		cfg.LevelThreshold = v
	}
	if v := envInt64("MAX_LEVEL"); v > 0 {
		cfg.MaxLevel = int(v)
	}
	if v := envInt64("DAILY_STREAK_BONUS"); v > 0 {
		cfg.DailyStreakBonus = v
	}
	for kind := range cfg.BasePoints {
		key := "POINTS_" + strings.ToUpper(string(kind))
		if v := envInt64(key); v > 0 {
			cfg.BasePoints[kind] = v
		}
	}
	return cfg
}

func envInt64(key string) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Difficulty multipliers applied to base points.
var difficultyMultipliers = map[string]float64{
	"easy":   1.0,
	"medium": 1.2,
	"hard":   1.5,
	"expert": 2.0,
}

// CalculatePoints is pure: base points for the activity kind times all
// applicable metadata multipliers, floored.
//
// Multipliers compose multiplicatively and independently:
//   - completion_rate: max(0.5, rate) — partial credit never drops below 50%
//   - difficulty: easy 1.0, medium 1.2, hard 1.5, expert 2.0
//   - first_time_completion: 1.5
func (c PointsConfig) CalculatePoints(kind models.ActivityKind, metadata map[string]interface{}) int64 {
	base, ok := c.BasePoints[kind]
	if !ok {
		base = c.DefaultPoints
	}

	multiplier := 1.0
	if rate, ok := metaFloat(metadata, "completion_rate"); ok {
		multiplier *= math.Max(0.5, rate)
	}
	if difficulty, ok := metaString(metadata, "difficulty"); ok {
		if m, known := difficultyMultipliers[strings.ToLower(difficulty)]; known {
			multiplier *= m
		}
	}
	if metaBool(metadata, "first_time_completion") {
		multiplier *= 1.5
	}

	return int64(math.Floor(float64(base) * multiplier))
}

// LevelOf maps cumulative XP to (level, XP needed for next level). Levels are
// uniform bands of LevelThreshold XP, capped at MaxLevel. Pure and
// idempotent: the stored level fields are only ever a cache of this function.
func (c PointsConfig) LevelOf(totalXP int64) (int, int64) {
	if totalXP <= 0 {
		return 1, c.LevelThreshold
	}
	level := int(totalXP/c.LevelThreshold) + 1
	if level >= c.MaxLevel {
		return c.MaxLevel, 0
	}
	return level, int64(level)*c.LevelThreshold - totalXP
}

// StreakBonus is a non-decreasing step function of streak length.
func (c PointsConfig) StreakBonus(streak int) int64 {
	b := float64(c.DailyStreakBonus)
	switch {
	case streak <= 1:
		return 0
	case streak <= 7:
		return int64(b)
	case streak <= 30:
		return int64(b * 1.5)
	case streak <= 100:
		return int64(b * 2.0)
	default:
		return int64(b * 2.5)
	}
}

// Metadata accessors. JSON-decoded maps carry float64 for numbers, but callers
// sometimes hand us native ints/bools, so both shapes are accepted.

func metaFloat(m map[string]interface{}, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func metaString(m map[string]interface{}, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok && s != ""
}

func metaBool(m map[string]interface{}, key string) bool {
	if m == nil {
		return false
	}
	b, ok := m[key].(bool)
	return ok && b
}
