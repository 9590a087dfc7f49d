package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"career-gamification-service/utils"
)

// NotificationClient pushes gamification events to the notification service.
// Every send is fire-and-forget: notification outages never affect awards.
type NotificationClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewNotificationClient(baseURL, token string) *NotificationClient {
	if baseURL == "" {
		log.Println("⚠️ NOTIFICATION_SERVICE_URL not set, notifications disabled")
		return nil
	}
	return &NotificationClient{
		BaseURL: baseURL,
		Token:   token,
		Client:  utils.HTTPClient,
	}
}

func (c *NotificationClient) send(userID, event string, payload map[string]interface{}) {
	if c == nil {
		return
	}
	body := map[string]interface{}{
		"user_id": userID,
		"event":   event,
		"payload": payload,
	}
	go func() {
		jsonData, _ := json.Marshal(body)
		url := fmt.Sprintf("%s/api/v1/notifications/send", c.BaseURL)

		req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		if c.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.Token)
		}

		resp, err := c.Client.Do(req)
		if err != nil {
			log.Printf("⚠️ Notification %s for %s failed: %v", event, userID, err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			log.Printf("⚠️ Notification %s for %s returned %d", event, userID, resp.StatusCode)
		}
	}()
}

func (c *NotificationClient) LevelUp(userID string, newLevel int) {
	c.send(userID, "level_up", map[string]interface{}{
		"new_level": newLevel,
	})
}

func (c *NotificationClient) AchievementUnlocked(userID, code, name string, points int64) {
	c.send(userID, "achievement_unlocked", map[string]interface{}{
		"achievement_code": code,
		"achievement_name": name,
		"points_reward":    points,
	})
}

func (c *NotificationClient) ChallengeCompleted(userID, code, title string, points int64) {
	c.send(userID, "challenge_completed", map[string]interface{}{
		"challenge_code":  code,
		"challenge_title": title,
		"reward_points":   points,
	})
}

func (c *NotificationClient) ChallengeJoined(userID, code, title string) {
	c.send(userID, "challenge_joined", map[string]interface{}{
		"challenge_code":  code,
		"challenge_title": title,
	})
}

func (c *NotificationClient) StreakMilestone(userID string, streak int) {
	c.send(userID, "streak_milestone", map[string]interface{}{
		"streak_days": streak,
	})
}

func (c *NotificationClient) ChallengeMilestone(userID, code string, milestone int) {
	c.send(userID, "challenge_milestone", map[string]interface{}{
		"challenge_code": code,
		"milestone":      milestone,
	})
}
