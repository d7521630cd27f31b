package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mesikahq/clinical-warehouse/internal/audit"
	"github.com/mesikahq/clinical-warehouse/internal/auth"
	"github.com/mesikahq/clinical-warehouse/internal/cli"
	"github.com/mesikahq/clinical-warehouse/internal/config"
	"github.com/mesikahq/clinical-warehouse/internal/notes"
	"github.com/mesikahq/clinical-warehouse/internal/patient"
	"github.com/mesikahq/clinical-warehouse/internal/stats"
	"github.com/mesikahq/clinical-warehouse/internal/store"
)

func main() {
	// Flags allow scripted login for testing and automation
	username := flag.String("username", "", "Username for direct login")
	password := flag.String("password", "", "Password for direct login")
	flag.Parse()

	// Load .env file
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Error loading .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	dataStore := store.New(map[store.Dataset]string{
		store.DatasetCredentials: cfg.CredentialsPath(),
		store.DatasetPatients:    cfg.PatientsPath(),
		store.DatasetNotes:       cfg.NotesPath(),
	}, logger)

	auditService := audit.NewService(cfg.AuditLogPath())

	authService := auth.NewService(dataStore, auditService, auth.Config{
		LoginEvery: time.Duration(cfg.Security.LoginEvery),
		LoginBurst: cfg.Security.LoginBurst,
	}, logger)

	patientService := patient.NewService(dataStore, auditService, logger)
	noteService := notes.NewService(dataStore, auditService, logger)
	statsService := stats.NewService(patientService, auditService, cfg.Output.Dir, logger)

	app := cli.New(authService, patientService, noteService, statsService,
		auditService, logger, os.Stdin, os.Stdout)

	if err := app.Run(context.Background(), *username, *password); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
