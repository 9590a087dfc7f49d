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

// snapshotSize caps how many rows a rebuilt ranking carries. Users below the
// cutoff still get a position via the fallback count query.
const snapshotSize = 100

// LeaderboardService materializes rankings as whole-snapshot rows. Rebuilds
// replace the snapshot in a single upsert; ordering is always score desc then
// user_id asc, in both the snapshot and the fallback position query.
type LeaderboardService struct {
	DB    *gorm.DB
	Cache *CacheManager
}

func NewLeaderboardService(db *gorm.DB, cache *CacheManager) *LeaderboardService {
	return &LeaderboardService{DB: db, Cache: cache}
}

type scoreRow struct {
	UserID string
	Score  int64
}

// RebuildAll refreshes every leaderboard. Used by the scheduler.
func (s *LeaderboardService) RebuildAll() {
	for _, t := range []models.LeaderboardType{models.LeaderboardGlobal, models.LeaderboardWeekly, models.LeaderboardMonthly} {
		if err := s.Rebuild(t); err != nil {
			log.Printf("❌ Leaderboard rebuild %s failed: %v", t, err)
		}
	}
}

// Rebuild recomputes one ranking from scratch and swaps it in.
func (s *LeaderboardService) Rebuild(t models.LeaderboardType) error {
	rows, err := s.topScores(t)
	if err != nil {
		return err
	}

	entries, err := s.decorate(rows)
	if err != nil {
		return err
	}

	snap := models.LeaderboardSnapshot{
		ID:          uuid.NewString(),
		Type:        t,
		Entries:     entries,
		LastUpdated: time.Now().UTC(),
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"entries", "last_updated"}),
	}).Create(&snap).Error; err != nil {
		return fmt.Errorf("store %s snapshot: %w", t, err)
	}

	if s.Cache != nil {
		s.Cache.Delete(leaderboardCacheKey(t))
	}
	log.Printf("✅ Leaderboard %s rebuilt (%d entries)", t, len(entries))
	return nil
}

func (s *LeaderboardService) topScores(t models.LeaderboardType) ([]scoreRow, error) {
	var rows []scoreRow
	var err error
	switch t {
	case models.LeaderboardGlobal:
		err = s.DB.Model(&models.UserProfile{}).
			Select("user_id, total_xp AS score").
			Order("total_xp DESC, user_id ASC").
			Limit(snapshotSize).
			Scan(&rows).Error
	case models.LeaderboardWeekly, models.LeaderboardMonthly:
		err = s.DB.Model(&models.ActivityRecord{}).
			Select("user_id, SUM(points_earned) AS score").
			Where("timestamp >= ?", windowStart(t, time.Now().UTC())).
			Group("user_id").
			Order("score DESC, user_id ASC").
			Limit(snapshotSize).
			Scan(&rows).Error
	default:
		return nil, models.ErrNotFound
	}
	return rows, err
}

// decorate attaches display data and positional ranks to raw score rows.
func (s *LeaderboardService) decorate(rows []scoreRow) ([]models.LeaderboardEntry, error) {
	if len(rows) == 0 {
		return []models.LeaderboardEntry{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}

	var profiles []models.UserProfile
	if err := s.DB.Where("user_id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	profileByID := make(map[string]models.UserProfile, len(profiles))
	for _, p := range profiles {
		profileByID[p.UserID] = p
	}

	var mirrored []models.MirroredUser
	if err := s.DB.Where("user_id IN ?", ids).Find(&mirrored).Error; err != nil {
		return nil, err
	}
	nameByID := make(map[string]string, len(mirrored))
	for _, u := range mirrored {
		nameByID[u.UserID] = u.Username
	}

	entries := make([]models.LeaderboardEntry, 0, len(rows))
	for i, r := range rows {
		p := profileByID[r.UserID]
		name := nameByID[r.UserID]
		if name == "" {
			name = p.Username
		}
		entries = append(entries, models.LeaderboardEntry{
			UserID:            r.UserID,
			Username:          name,
			Score:             r.Score,
			Rank:              i + 1,
			Level:             p.CurrentLevel,
			AchievementsCount: p.TotalAchievements,
		})
	}
	return entries, nil
}

// Get returns one page of the snapshot plus its freshness stamp.
func (s *LeaderboardService) Get(t models.LeaderboardType, page, size int) ([]models.LeaderboardEntry, time.Time, error) {
	if !t.Valid() {
		return nil, time.Time{}, models.ErrNotFound
	}
	if page < 1 {
		page = 1
	}
	if size < 1 || size > snapshotSize {
		size = 20
	}

	snap, err := s.snapshot(t)
	if err != nil {
		return nil, time.Time{}, err
	}

	start := (page - 1) * size
	if start >= len(snap.Entries) {
		return []models.LeaderboardEntry{}, snap.LastUpdated, nil
	}
	end := start + size
	if end > len(snap.Entries) {
		end = len(snap.Entries)
	}
	return snap.Entries[start:end], snap.LastUpdated, nil
}

func (s *LeaderboardService) snapshot(t models.LeaderboardType) (*models.LeaderboardSnapshot, error) {
	if s.Cache != nil {
		var cached models.LeaderboardSnapshot
		if s.Cache.GetJSON(leaderboardCacheKey(t), &cached) {
			return &cached, nil
		}
	}

	var snap models.LeaderboardSnapshot
	err := s.DB.Where("type = ?", t).First(&snap).Error
	if err == gorm.ErrRecordNotFound {
		// First read before any rebuild: build it now.
		if err := s.Rebuild(t); err != nil {
			return nil, err
		}
		if err := s.DB.Where("type = ?", t).First(&snap).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		s.Cache.SetJSON(leaderboardCacheKey(t), &snap, 5*time.Minute)
	}
	return &snap, nil
}

// UserPosition returns the user's entry for the given board. Users inside
// the snapshot get the snapshot row; everyone else gets a rank computed with
// the same ordering: 1 + count of users strictly ahead.
func (s *LeaderboardService) UserPosition(t models.LeaderboardType, userID string) (*models.LeaderboardEntry, error) {
	snap, err := s.snapshot(t)
	if err != nil {
		return nil, err
	}
	for _, e := range snap.Entries {
		if e.UserID == userID {
			entry := e
			return &entry, nil
		}
	}

	score, err := s.userScore(t, userID)
	if err != nil {
		return nil, err
	}

	var ahead int64
	switch t {
	case models.LeaderboardGlobal:
		err = s.DB.Model(&models.UserProfile{}).
			Where("total_xp > ? OR (total_xp = ? AND user_id < ?)", score, score, userID).
			Count(&ahead).Error
	default:
		start := windowStart(t, time.Now().UTC())
		sub := s.DB.Model(&models.ActivityRecord{}).
			Select("user_id").
			Where("timestamp >= ?", start).
			Group("user_id").
			Having("SUM(points_earned) > ? OR (SUM(points_earned) = ? AND user_id < ?)", score, score, userID)
		err = s.DB.Table("(?) AS ahead", sub).Count(&ahead).Error
	}
	if err != nil {
		return nil, err
	}

	var prof models.UserProfile
	if err := s.DB.Where("user_id = ?", userID).First(&prof).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.ErrNotFound
		}
		return nil, err
	}

	return &models.LeaderboardEntry{
		UserID:            userID,
		Username:          prof.Username,
		Score:             score,
		Rank:              int(ahead) + 1,
		Level:             prof.CurrentLevel,
		AchievementsCount: prof.TotalAchievements,
	}, nil
}

func (s *LeaderboardService) userScore(t models.LeaderboardType, userID string) (int64, error) {
	if t == models.LeaderboardGlobal {
		var prof models.UserProfile
		err := s.DB.Where("user_id = ?", userID).First(&prof).Error
		if err == gorm.ErrRecordNotFound {
			return 0, models.ErrNotFound
		}
		return prof.TotalXP, err
	}

	var score int64
	err := s.DB.Model(&models.ActivityRecord{}).
		Select("COALESCE(SUM(points_earned), 0)").
		Where("user_id = ? AND timestamp >= ?", userID, windowStart(t, time.Now().UTC())).
		Scan(&score).Error
	return score, err
}

// Nearby returns the snapshot slice around the user's rank (±n).
func (s *LeaderboardService) Nearby(t models.LeaderboardType, userID string, n int) ([]models.LeaderboardEntry, error) {
	if n < 1 || n > 25 {
		n = 5
	}
	snap, err := s.snapshot(t)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, e := range snap.Entries {
		if e.UserID == userID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, models.ErrNotFound
	}

	lo := idx - n
	if lo < 0 {
		lo = 0
	}
	hi := idx + n + 1
	if hi > len(snap.Entries) {
		hi = len(snap.Entries)
	}
	return snap.Entries[lo:hi], nil
}

// windowStart returns the UTC start of the scoring window: Monday 00:00 of
// the current ISO week, or the first of the current month.
func windowStart(t models.LeaderboardType, now time.Time) time.Time {
	now = now.UTC()
	switch t {
	case models.LeaderboardWeekly:
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday belongs to the week that started last Monday
		}
		monday := now.AddDate(0, 0, -(weekday - 1))
		return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
	case models.LeaderboardMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Time{}
}

func leaderboardCacheKey(t models.LeaderboardType) string {
	return "gamification:leaderboard:" + string(t)
}
