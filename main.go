package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"career-gamification-service/handlers"
	"career-gamification-service/middleware"
	"career-gamification-service/models"
	"career-gamification-service/services"
	"career-gamification-service/utils"
	"career-gamification-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB, enough for icon/banner uploads
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — /health stays open for probes
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.UserProfile{},
		&models.ActivityRecord{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.Challenge{},
		&models.UserChallenge{},
		&models.LeaderboardSnapshot{},
		&models.MirroredUser{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	cache := services.NewCacheManager(os.Getenv("REDIS_URL"))
	notifier := services.NewNotificationClient(
		os.Getenv("NOTIFICATION_SERVICE_URL"),
		os.Getenv("NOTIFICATION_SERVICE_TOKEN"),
	)

	pointsConfig := services.PointsConfigFromEnv()
	profileService := services.NewProfileService(db, pointsConfig, cache)
	achievementService := services.NewAchievementService(db, profileService, notifier)
	challengeManager := services.NewChallengeManager(db, profileService, notifier)
	leaderboardService := services.NewLeaderboardService(db, cache)
	activityService := services.NewActivityService(profileService, achievementService, challengeManager, notifier, pointsConfig)

	if err := achievementService.SeedDefaults(); err != nil {
		log.Fatal("failed to seed achievement catalog:", err)
	}

	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	if syncServiceURL == "" {
		log.Fatal("SYNC_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("GAMIFICATION_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("GAMIFICATION_SERVICE_TOKEN environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncWorker := workers.NewProfileSyncWorker(db, syncServiceURL, "/api/v1/public/profiles", serviceToken)
	syncWorker.Start(ctx)

	sched, err := services.StartSchedulers(leaderboardService, challengeManager, achievementService)
	if err != nil {
		log.Fatal("failed to start schedulers:", err)
	}

	handlers.SetupGamificationRoutes(app, activityService, profileService)
	handlers.SetupAchievementRoutes(app, achievementService)
	handlers.SetupChallengeRoutes(app, challengeManager)
	handlers.SetupLeaderboardRoutes(app, leaderboardService)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"cache":  cache.Enabled(),
		})
	})

	go func() {
		if err := app.Listen(":5003"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5003")
	log.Println("✅ Profile Sync Worker running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = sched.Shutdown()
	_ = app.Shutdown()
}
