package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"draft-submission-api/config"
	"draft-submission-api/controllers"
	"draft-submission-api/models"
	"draft-submission-api/routes"
	"draft-submission-api/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logFile, _ := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}

	// Initialize database
	config.InitDB()
	if err := models.Migrate(config.DB); err != nil {
		log.Fatal("Database migration failed:", err)
	}
	if err := models.SeedStates(config.DB); err != nil {
		log.Fatal("State seeding failed:", err)
	}

	settings := config.LoadSettings()

	// The checker registry is validated up front; a misconfigured checker
	// refuses startup instead of surprising the first submitter.
	registry, err := services.BuildRegistry(settings, settings.CheckerNames)
	if err != nil {
		log.Fatal("Checker registry build failed:", err)
	}

	// Wire the workflow services
	notifier := services.NewNotifier(nil, settings.BaseURL)
	poster := services.NewPoster(config.DB, settings, nil)
	pipeline := services.NewPipeline(config.DB, settings, registry, notifier, poster)
	queue := services.NewTaskQueue(config.DB)

	controllers.Setup(controllers.Deps{
		Settings:    settings,
		Submissions: services.NewSubmissionService(config.DB),
		Queue:       queue,
		Poster:      poster,
		Notifier:    notifier,
		Ballots:     services.NewBallotService(config.DB),
		DocStates:   services.NewDocStateService(config.DB),
		LastCall:    services.NewLastCallService(config.DB, settings),
		Events:      services.NewEventLog(config.DB),
	})

	// Background workers and sweeps run until shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go services.NewWorker(queue, pipeline, poster, settings).Run(ctx)
	go services.NewSweeper(config.DB, settings).Run(ctx)

	// Set Gin mode
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add logging middleware
	router.Use(gin.Logger())

	// Add recovery middleware
	router.Use(gin.Recovery())

	// Add security headers middleware
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Setup routes
	routes.SetupRoutes(router)

	// Create upload and repository directories if not exists
	if err := os.MkdirAll(settings.UploadPath, os.ModePerm); err != nil {
		log.Printf("Warning: Failed to create upload directory: %v", err)
	}
	if err := os.MkdirAll(settings.RepositoryPath, os.ModePerm); err != nil {
		log.Printf("Warning: Failed to create repository directory: %v", err)
	}

	// Start server
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	log.Printf("Checkers enabled: %v", settings.CheckerNames)

	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
