// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartSchedulers wires the periodic maintenance jobs:
//   - leaderboard rebuilds every 15 minutes
//   - challenge status sweep every hour
//   - achievement statistics recalculation once a day
//
// The returned scheduler is already started; shut it down on exit.
func StartSchedulers(leaderboards *LeaderboardService, challenges *ChallengeManager, achievements *AchievementService) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(15*time.Minute),
		gocron.NewTask(func() {
			leaderboards.RebuildAll()
		}),
	)
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			if err := challenges.SweepStatuses(); err != nil {
				log.Printf("[Scheduler] Challenge sweep failed: %v", err)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			if err := achievements.RecalculateStats(); err != nil {
				log.Printf("[Scheduler] Achievement stats failed: %v", err)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	log.Println("✅ Maintenance schedulers started")
	return sched, nil
}
