// handlers/leaderboard_routes.go
package handlers

import (
	"strconv"

	"career-gamification-service/middleware"
	"career-gamification-service/models"
	"career-gamification-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(app *fiber.App, leaderboardService *services.LeaderboardService) {
	secured := app.Group("/api/v1/leaderboards", middleware.UserContextMiddleware())

	secured.Get("/:type", func(c *fiber.Ctx) error {
		boardType := models.LeaderboardType(c.Params("type"))
		if !boardType.Valid() {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "unknown leaderboard type",
			})
		}
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))

		entries, lastUpdated, err := leaderboardService.Get(boardType, page, size)
		if err != nil {
			return serviceError(c, err, "failed to load leaderboard")
		}
		return c.JSON(fiber.Map{
			"type":         boardType,
			"entries":      entries,
			"page":         page,
			"size":         size,
			"last_updated": lastUpdated,
		})
	})

	secured.Get("/:type/me", func(c *fiber.Ctx) error {
		boardType := models.LeaderboardType(c.Params("type"))
		if !boardType.Valid() {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "unknown leaderboard type",
			})
		}
		userID := c.Locals("user_id").(string)

		entry, err := leaderboardService.UserPosition(boardType, userID)
		if err != nil {
			return serviceError(c, err, "failed to compute position")
		}
		return c.JSON(entry)
	})

	secured.Get("/:type/me/nearby", func(c *fiber.Ctx) error {
		boardType := models.LeaderboardType(c.Params("type"))
		if !boardType.Valid() {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "unknown leaderboard type",
			})
		}
		userID := c.Locals("user_id").(string)
		n, _ := strconv.Atoi(c.Query("range", "5"))

		entries, err := leaderboardService.Nearby(boardType, userID, n)
		if err != nil {
			return serviceError(c, err, "failed to load nearby entries")
		}
		return c.JSON(entries)
	})

	admin := app.Group("/api/v1/admin/leaderboards", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	admin.Post("/rebuild-all", func(c *fiber.Ctx) error {
		leaderboardService.RebuildAll()
		return c.JSON(fiber.Map{"message": "leaderboards rebuilt"})
	})

	admin.Post("/rebuild/:type", func(c *fiber.Ctx) error {
		boardType := models.LeaderboardType(c.Params("type"))
		if !boardType.Valid() {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "unknown leaderboard type",
			})
		}
		if err := leaderboardService.Rebuild(boardType); err != nil {
			return serviceError(c, err, "failed to rebuild leaderboard")
		}
		return c.JSON(fiber.Map{"message": "leaderboard rebuilt", "type": boardType})
	})
}
