package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam-platform/config"
	"exam-platform/database"
	"exam-platform/handlers"
	"exam-platform/mail"
	"exam-platform/realtime"
	"exam-platform/services"
	"exam-platform/utils"
	"exam-platform/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg := config.Load()
	if missing := cfg.Validate(); len(missing) > 0 {
		log.Fatalf("missing required environment variables: %v", missing)
	}

	utils.InitReporting(cfg.RollbarToken, cfg.AppEnv)
	defer utils.CloseReporting()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}

	archive, err := utils.NewStorage(cfg)
	if err != nil {
		log.Fatal("failed to initialize results archive:", err)
	}

	pricing, err := services.LoadAdPricing(cfg.AdPricingFile)
	if err != nil {
		log.Fatal("failed to load ad pricing:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub()
	mailer := mail.New(cfg.SendGridAPIKey, cfg.MailFrom)

	authService := services.NewAuthService(db, cfg.JWTSecret, cfg.JWTExpirationHours)
	questionService := services.NewQuestionService(db)
	roomService := services.NewRoomService(db, questionService)
	roomService.Archive = archive
	adService := services.NewAdService(db, pricing, mailer, hub)

	// Redis is optional: without it practice attempts are graded inline.
	var gradingWorker *workers.GradingWorker
	examService := services.NewExamService(db, questionService, nil)
	if cfg.RedisAddr != "" {
		rdb, err := workers.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Printf("⚠️  %v, grading inline", err)
		} else {
			defer rdb.Close()
			examService.Queue = workers.NewRedisGradingQueue(rdb, cfg.GradingQueueName)
			gradingWorker = workers.NewGradingWorker(rdb, cfg.GradingQueueName, examService)
		}
	}
	if gradingWorker != nil {
		go gradingWorker.Start(ctx)
	}
	go workers.PollPendingAttempts(ctx, db, examService, time.Minute, 2*time.Minute)

	sched, err := services.StartScheduler(roomService, adService, hub)
	if err != nil {
		log.Fatal("failed to start scheduler:", err)
	}

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "status": "ok"})
	})

	handlers.SetupAuthRoutes(app, authService)
	handlers.SetupQuestionRoutes(app, authService, questionService)
	handlers.SetupRoomRoutes(app, authService, roomService, hub)
	handlers.SetupExamRoutes(app, authService, examService)
	handlers.SetupAdRoutes(app, authService, adService)
	handlers.SetupAdminRoutes(app, handlers.AdminDeps{
		Auth:      authService,
		Questions: questionService,
		Ads:       adService,
	})
	handlers.SetupSocketRoutes(app, authService, hub, services.NewRoomEvents(roomService, hub))

	if cfg.R2AccountID == "" {
		app.Static("/archive", cfg.ArchiveDir)
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Printf("✅ CORS configured for origins: %s", cfg.AllowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := sched.Shutdown(); err != nil {
		log.Printf("[Scheduler] shutdown error: %v", err)
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
