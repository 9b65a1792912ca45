package main

import (
	"context"
	"log"

	"draft-submission-api/config"
	"draft-submission-api/models"
	"draft-submission-api/services"

	"github.com/joho/godotenv"
)

// One-shot maintenance run for cron-style deployments: cancels stalled and
// aged submissions and expires last calls, then exits.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logFile, _ := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}

	config.InitDB()
	if err := models.Migrate(config.DB); err != nil {
		log.Fatal("Database migration failed:", err)
	}
	if err := models.SeedStates(config.DB); err != nil {
		log.Fatal("State seeding failed:", err)
	}

	settings := config.LoadSettings()
	services.NewSweeper(config.DB, settings).RunOnce(context.Background())
}
