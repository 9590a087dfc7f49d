// handlers/achievement_routes.go
package handlers

import (
	"strconv"

	"career-gamification-service/middleware"
	"career-gamification-service/models"
	"career-gamification-service/services"
	"career-gamification-service/utils"

	"github.com/gofiber/fiber/v2"
)

func SetupAchievementRoutes(app *fiber.App, achievementService *services.AchievementService) {
	secured := app.Group("/api/v1/achievements", middleware.UserContextMiddleware())

	secured.Get("/", func(c *fiber.Ctx) error {
		achievements, err := achievementService.List(c.Query("category"), c.Query("rarity"))
		if err != nil {
			return serviceError(c, err, "failed to list achievements")
		}
		return c.JSON(achievements)
	})

	secured.Get("/unlocked", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		unlocked, err := achievementService.UserAchievements(userID)
		if err != nil {
			return serviceError(c, err, "failed to load unlocked achievements")
		}
		return c.JSON(unlocked)
	})

	secured.Get("/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		progress, err := achievementService.Progress(userID)
		if err != nil {
			return serviceError(c, err, "failed to compute achievement progress")
		}
		return c.JSON(progress)
	})

	secured.Get("/suggestions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit, _ := strconv.Atoi(c.Query("limit", "3"))
		suggestions, err := achievementService.Suggestions(userID, limit)
		if err != nil {
			return serviceError(c, err, "failed to compute suggestions")
		}
		return c.JSON(suggestions)
	})

	// Single entry after the static paths so /unlocked etc. are not shadowed.
	secured.Get("/:id", func(c *fiber.Ctx) error {
		a, err := achievementService.Get(c.Params("id"))
		if err != nil {
			return serviceError(c, err, "failed to load achievement")
		}
		return c.JSON(a)
	})

	admin := app.Group("/api/v1/admin/achievements", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	admin.Post("/", func(c *fiber.Ctx) error {
		var a models.Achievement
		if err := c.BodyParser(&a); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if err := achievementService.Create(&a); err != nil {
			return serviceError(c, err, "failed to create achievement")
		}
		return c.Status(fiber.StatusCreated).JSON(a)
	})

	// Icon upload goes straight to R2; only the resulting URL is stored.
	admin.Post("/:id/icon", func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("icon")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "icon file is required",
			})
		}

		iconURL, err := utils.UploadCatalogImage(fileHeader, "achievement-icons")
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to upload icon",
				"cause": err.Error(),
			})
		}
		if err := achievementService.SetIconURL(c.Params("id"), iconURL); err != nil {
			return serviceError(c, err, "failed to store icon URL")
		}
		return c.JSON(fiber.Map{"icon_url": iconURL})
	})

	admin.Post("/seed-defaults", func(c *fiber.Ctx) error {
		if err := achievementService.SeedDefaults(); err != nil {
			return serviceError(c, err, "failed to seed default achievements")
		}
		return c.JSON(fiber.Map{"message": "default achievements seeded"})
	})

	admin.Post("/recalculate-stats", func(c *fiber.Ctx) error {
		if err := achievementService.RecalculateStats(); err != nil {
			return serviceError(c, err, "failed to recalculate achievement stats")
		}
		return c.JSON(fiber.Map{"message": "achievement statistics recalculated"})
	})
}
