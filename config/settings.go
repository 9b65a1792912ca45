package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings gathers the workflow tunables. Built once in main from the
// environment and passed to the services that need it, never read from
// ambient globals inside business logic.
type Settings struct {
	// Intake
	UploadPath     string
	RepositoryPath string
	MaxTxtBytes    int64
	MaxXMLBytes    int64
	MaxPDFBytes    int64
	MaxPSBytes     int64

	// Checker registry, in execution order.
	CheckerNames []string
	// External nits binary; empty disables the extnits checker.
	NitsBinary string

	// Submission lifecycle
	ValidationTimeout time.Duration
	MaxSubmissionAge  time.Duration

	// RequireConfirmation controls whether the stream sends submitter
	// confirmation emails before posting; when off, clean submissions with
	// no approval route post immediately.
	RequireConfirmation bool

	// Last call
	LastCallPeriod           time.Duration
	IndividualLastCallPeriod time.Duration

	// Document Poster collaborator calls
	RelocateTimeout time.Duration
	RelocateRetries int

	// Async workers
	WorkerCount   int
	PollInterval  time.Duration
	SweepInterval time.Duration

	// Base URL used in status-polling and confirmation links.
	BaseURL string
}

// LoadSettings reads the environment with production defaults.
func LoadSettings() Settings {
	s := Settings{
		UploadPath:               envString("UPLOAD_PATH", "./uploads"),
		RepositoryPath:           envString("REPOSITORY_PATH", "./repository"),
		MaxTxtBytes:              envInt64("MAX_TXT_BYTES", 6*1024*1024),
		MaxXMLBytes:              envInt64("MAX_XML_BYTES", 6*1024*1024),
		MaxPDFBytes:              envInt64("MAX_PDF_BYTES", 20*1024*1024),
		MaxPSBytes:               envInt64("MAX_PS_BYTES", 20*1024*1024),
		NitsBinary:               os.Getenv("NITS_BINARY"),
		RequireConfirmation:      os.Getenv("REQUIRE_CONFIRMATION") != "false",
		ValidationTimeout:        envDuration("VALIDATION_TIMEOUT", 20*time.Minute),
		MaxSubmissionAge:         envDuration("MAX_SUBMISSION_AGE", 14*24*time.Hour),
		LastCallPeriod:           envDuration("LAST_CALL_PERIOD", 14*24*time.Hour),
		IndividualLastCallPeriod: envDuration("INDIVIDUAL_LAST_CALL_PERIOD", 28*24*time.Hour),
		RelocateTimeout:          envDuration("RELOCATE_TIMEOUT", 30*time.Second),
		RelocateRetries:          envInt("RELOCATE_RETRIES", 3),
		WorkerCount:              envInt("WORKER_COUNT", 4),
		PollInterval:             envDuration("POLL_INTERVAL", 2*time.Second),
		SweepInterval:            envDuration("SWEEP_INTERVAL", 10*time.Minute),
		BaseURL:                  envString("BASE_URL", "http://localhost:8080"),
	}

	checkers := os.Getenv("SUBMISSION_CHECKERS")
	if checkers == "" {
		checkers = "textual,xmlwf"
	}
	for _, name := range strings.Split(checkers, ",") {
		if name = strings.TrimSpace(name); name != "" {
			s.CheckerNames = append(s.CheckerNames, name)
		}
	}

	return s
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil && v > 0 {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}
