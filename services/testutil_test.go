package services

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"career-gamification-service/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int64

// newTestDB opens an isolated in-memory database per test. The shared cache
// name keeps the database alive across pooled connections.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.UserProfile{},
		&models.ActivityRecord{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.Challenge{},
		&models.UserChallenge{},
		&models.LeaderboardSnapshot{},
		&models.MirroredUser{},
	))
	return db
}

func newTestProfiles(t *testing.T) (*gorm.DB, *ProfileService) {
	t.Helper()
	db := newTestDB(t)
	return db, NewProfileService(db, DefaultPointsConfig(), nil)
}

func nowMinusDays(d int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -d)
}

func ts(year, month, day, hour int) time.Time {
	return time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC)
}
