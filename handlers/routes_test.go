// handlers/routes_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"career-gamification-service/models"
	"career-gamification-service/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int64

type testEnv struct {
	app        *fiber.App
	db         *gorm.DB
	challenges *services.ChallengeManager
}

func newTestApp(t *testing.T) *testEnv {
	t.Helper()

	name := fmt.Sprintf("file:handlerdb%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
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

	cfg := services.DefaultPointsConfig()
	profiles := services.NewProfileService(db, cfg, nil)
	achievements := services.NewAchievementService(db, profiles, nil)
	challenges := services.NewChallengeManager(db, profiles, nil)
	leaderboards := services.NewLeaderboardService(db, nil)
	activity := services.NewActivityService(profiles, achievements, challenges, nil, cfg)

	app := fiber.New()
	SetupGamificationRoutes(app, activity, profiles)
	SetupAchievementRoutes(app, achievements)
	SetupChallengeRoutes(app, challenges)
	SetupLeaderboardRoutes(app, leaderboards)

	return &testEnv{app: app, db: db, challenges: challenges}
}

func doJSON(t *testing.T, app *fiber.App, method, path, userID string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func TestRecordActivityEndpoint(t *testing.T) {
	env := newTestApp(t)

	resp, body := doJSON(t, env.app, "POST", "/api/v1/activities", "user-1", map[string]interface{}{
		"activity_type": "course_completion",
		"metadata": map[string]interface{}{
			"first_time_completion": true,
		},
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.InDelta(t, 75, body["points_earned"].(float64), 1e-9)
}

func TestRecordActivityUnknownKindIs422(t *testing.T) {
	env := newTestApp(t)

	resp, _ := doJSON(t, env.app, "POST", "/api/v1/activities", "user-1", map[string]interface{}{
		"activity_type": "made_up",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRecordActivityRequiresUserContext(t *testing.T) {
	env := newTestApp(t)

	resp, _ := doJSON(t, env.app, "POST", "/api/v1/activities", "", map[string]interface{}{
		"activity_type": "daily_login",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestProfileEndpointCreatesLazily(t *testing.T) {
	env := newTestApp(t)

	resp, body := doJSON(t, env.app, "GET", "/api/v1/profile", "user-1", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "user-1", body["user_id"])
	assert.InDelta(t, 1, body["current_level"].(float64), 1e-9)
}

func TestChallengeJoinConflictIs409(t *testing.T) {
	env := newTestApp(t)

	ch := &models.Challenge{
		Title:        "Sprint",
		Requirements: []models.ChallengeRequirement{{Type: models.ReqActivityCount, TargetValue: 3}},
		StartDate:    time.Now().UTC().Add(-time.Hour),
		EndDate:      time.Now().UTC().Add(24 * time.Hour),
	}
	require.NoError(t, env.challenges.Create(ch))

	resp, _ := doJSON(t, env.app, "POST", "/api/v1/challenges/"+ch.ID+"/join", "user-1", nil)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, env.app, "POST", "/api/v1/challenges/"+ch.ID+"/join", "user-1", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestChallengeJoinLevelGateIs422(t *testing.T) {
	env := newTestApp(t)

	ch := &models.Challenge{
		Title:         "Elite Sprint",
		Requirements:  []models.ChallengeRequirement{{Type: models.ReqActivityCount, TargetValue: 3}},
		RequiredLevel: 10,
		StartDate:     time.Now().UTC().Add(-time.Hour),
		EndDate:       time.Now().UTC().Add(24 * time.Hour),
	}
	require.NoError(t, env.challenges.Create(ch))

	resp, _ := doJSON(t, env.app, "POST", "/api/v1/challenges/"+ch.ID+"/join", "user-1", nil)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestChallengeManualProgressCompletes(t *testing.T) {
	env := newTestApp(t)

	ch := &models.Challenge{
		Title:        "Sprint",
		Requirements: []models.ChallengeRequirement{{Type: models.ReqActivityCount, TargetValue: 2}},
		StartDate:    time.Now().UTC().Add(-time.Hour),
		EndDate:      time.Now().UTC().Add(24 * time.Hour),
	}
	require.NoError(t, env.challenges.Create(ch))

	resp, _ := doJSON(t, env.app, "POST", "/api/v1/challenges/"+ch.ID+"/join", "user-1", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, env.app, "POST", "/api/v1/challenges/"+ch.ID+"/progress", "user-1", map[string]interface{}{
		"increments": map[string]float64{string(models.ReqActivityCount): 1},
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["completed"])

	resp, body = doJSON(t, env.app, "POST", "/api/v1/challenges/"+ch.ID+"/progress", "user-1", map[string]interface{}{
		"increments": map[string]float64{string(models.ReqActivityCount): 1},
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["completed"])
}

func TestUnknownChallengeIs404(t *testing.T) {
	env := newTestApp(t)

	resp, _ := doJSON(t, env.app, "GET", "/api/v1/challenges/nope", "user-1", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestUnknownLeaderboardTypeIs404(t *testing.T) {
	env := newTestApp(t)

	resp, _ := doJSON(t, env.app, "GET", "/api/v1/leaderboards/daily", "user-1", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestLeaderboardEndpoint(t *testing.T) {
	env := newTestApp(t)

	// One recorded activity gives the board something to rank.
	resp, _ := doJSON(t, env.app, "POST", "/api/v1/activities", "user-1", map[string]interface{}{
		"activity_type": "course_completion",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, env.app, "GET", "/api/v1/leaderboards/global", "user-1", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	entries := body["entries"].([]interface{})
	require.Len(t, entries, 1)
	first := entries[0].(map[string]interface{})
	assert.Equal(t, "user-1", first["user_id"])
	assert.InDelta(t, 1, first["rank"].(float64), 1e-9)
}

func TestAdminRoutesRequireRole(t *testing.T) {
	env := newTestApp(t)

	req := httptest.NewRequest("GET", "/api/v1/admin/stats", nil)
	req.Header.Set("X-User-ID", "user-1")
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", "/api/v1/admin/stats", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("X-User-Roles", "admin")
	resp, err = env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
