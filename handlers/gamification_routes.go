// handlers/gamification_routes.go
package handlers

import (
	"strconv"

	"career-gamification-service/middleware"
	"career-gamification-service/models"
	"career-gamification-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGamificationRoutes(app *fiber.App, activityService *services.ActivityService, profileService *services.ProfileService) {
	secured := app.Group("/api/v1", middleware.UserContextMiddleware())

	// Record a platform activity for the authenticated user. The response
	// carries everything the activity produced: points, streak bonus,
	// level-up, unlocked achievements and completed challenges.
	secured.Post("/activities", func(c *fiber.Ctx) error {
		type Req struct {
			ActivityType string                 `json:"activity_type"`
			Metadata     map[string]interface{} `json:"metadata"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		userID := c.Locals("user_id").(string)

		result, err := activityService.RecordActivity(userID, models.ActivityKind(req.ActivityType), req.Metadata)
		if err != nil {
			return serviceError(c, err, "failed to record activity")
		}
		return c.Status(fiber.StatusCreated).JSON(result)
	})

	secured.Get("/profile", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		if c.QueryBool("fresh") {
			profileService.InvalidateCache(userID)
		}
		prof, err := profileService.GetProfile(userID)
		if err != nil {
			return serviceError(c, err, "failed to load profile")
		}
		return c.JSON(prof)
	})

	secured.Get("/profile/activities", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))

		records, total, err := profileService.ActivityHistory(userID, page, size)
		if err != nil {
			return serviceError(c, err, "failed to load activity history")
		}
		return c.JSON(fiber.Map{
			"activities":  records,
			"page":        page,
			"size":        size,
			"total_items": total,
		})
	})

	admin := app.Group("/api/v1/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	admin.Get("/stats", func(c *fiber.Ctx) error {
		stats, err := profileService.Stats()
		if err != nil {
			return serviceError(c, err, "failed to compute stats")
		}
		return c.JSON(stats)
	})
}
