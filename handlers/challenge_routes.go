// handlers/challenge_routes.go
package handlers

import (
	"career-gamification-service/middleware"
	"career-gamification-service/models"
	"career-gamification-service/services"
	"career-gamification-service/utils"

	"github.com/gofiber/fiber/v2"
)

func SetupChallengeRoutes(app *fiber.App, challengeManager *services.ChallengeManager) {
	secured := app.Group("/api/v1/challenges", middleware.UserContextMiddleware())

	secured.Get("/", func(c *fiber.Ctx) error {
		filters := services.ChallengeFilters{
			Type:       models.ChallengeType(c.Query("type")),
			Category:   models.ChallengeCategory(c.Query("category")),
			Difficulty: models.ChallengeDifficulty(c.Query("difficulty")),
			Featured:   c.QueryBool("featured"),
		}
		challenges, err := challengeManager.ListActive(filters)
		if err != nil {
			return serviceError(c, err, "failed to list challenges")
		}
		return c.JSON(challenges)
	})

	secured.Get("/mine", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		status := models.ChallengeStatus(c.Query("status"))
		participations, err := challengeManager.UserChallenges(userID, status)
		if err != nil {
			return serviceError(c, err, "failed to load your challenges")
		}
		return c.JSON(participations)
	})

	secured.Get("/:id", func(c *fiber.Ctx) error {
		ch, err := challengeManager.Get(c.Params("id"))
		if err != nil {
			return serviceError(c, err, "failed to load challenge")
		}
		return c.JSON(ch)
	})

	secured.Post("/:id/join", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		uc, err := challengeManager.Join(userID, c.Params("id"))
		if err != nil {
			return serviceError(c, err, "failed to join challenge")
		}
		return c.Status(fiber.StatusCreated).JSON(uc)
	})

	// Manual progress report for requirement types the platform can't
	// derive from activities (e.g. externally tracked metrics).
	secured.Post("/:id/progress", func(c *fiber.Ctx) error {
		type Req struct {
			Increments map[string]float64 `json:"increments"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		userID := c.Locals("user_id").(string)

		uc, completed, err := challengeManager.ApplyProgress(userID, c.Params("id"), req.Increments)
		if err != nil {
			return serviceError(c, err, "failed to apply challenge progress")
		}
		return c.JSON(fiber.Map{
			"participation": uc,
			"completed":     completed,
		})
	})

	secured.Get("/:id/stats", func(c *fiber.Ctx) error {
		stats, err := challengeManager.Statistics(c.Params("id"))
		if err != nil {
			return serviceError(c, err, "failed to compute challenge stats")
		}
		return c.JSON(stats)
	})

	admin := app.Group("/api/v1/admin/challenges", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	admin.Post("/", func(c *fiber.Ctx) error {
		var ch models.Challenge
		if err := c.BodyParser(&ch); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if err := challengeManager.Create(&ch); err != nil {
			return serviceError(c, err, "failed to create challenge")
		}
		return c.Status(fiber.StatusCreated).JSON(ch)
	})

	admin.Post("/:id/banner", func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("banner")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "banner file is required",
			})
		}

		bannerURL, err := utils.UploadCatalogImage(fileHeader, "challenge-banners")
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to upload banner",
				"cause": err.Error(),
			})
		}
		if err := challengeManager.SetBannerURL(c.Params("id"), bannerURL); err != nil {
			return serviceError(c, err, "failed to store banner URL")
		}
		return c.JSON(fiber.Map{"banner_url": bannerURL})
	})

	admin.Post("/sweep", func(c *fiber.Ctx) error {
		if err := challengeManager.SweepStatuses(); err != nil {
			return serviceError(c, err, "failed to sweep challenge statuses")
		}
		return c.JSON(fiber.Map{"message": "challenge statuses swept"})
	})
}
