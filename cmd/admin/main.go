package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesikahq/clinical-warehouse/internal/audit"
	"github.com/mesikahq/clinical-warehouse/internal/auth"
	"github.com/mesikahq/clinical-warehouse/internal/config"
	"github.com/mesikahq/clinical-warehouse/internal/store"
)

var credentialsHeader = []string{"username", "password", "role"}

// Provisions one credential row with a bcrypt-hashed password. The
// interactive application never mutates the credentials table; this is the
// only writer.
func main() {
	username := flag.String("username", "", "Username to provision")
	password := flag.String("password", "", "Password to hash and store")
	role := flag.String("role", "", "Role: admin, management, nurse or clinician")
	flag.Parse()

	if *username == "" || *password == "" || *role == "" {
		log.Fatal("Username, password, and role are required. Use -username, -password, and -role flags")
	}

	parsedRole, err := auth.ParseRole(*role)
	if err != nil {
		log.Fatalf("Invalid role: %v", err)
	}

	// Load .env file
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Error loading .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	dataStore := store.New(map[store.Dataset]string{
		store.DatasetCredentials: cfg.CredentialsPath(),
	}, logger)

	header := credentialsHeader
	_, rows, err := dataStore.Load(store.DatasetCredentials)
	if err != nil {
		// A missing table is fine on first provisioning; start empty.
		if !errors.Is(err, fs.ErrNotExist) {
			log.Fatalf("Failed to load credentials: %v", err)
		}
		rows = nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	updated := false
	for _, row := range rows {
		if row["username"] == *username {
			row["password"] = string(hash)
			row["role"] = string(parsedRole)
			updated = true
			break
		}
	}
	if !updated {
		rows = append(rows, store.Row{
			"username": *username,
			"password": string(hash),
			"role":     string(parsedRole),
		})
	}

	if err := dataStore.SaveAtomic(store.DatasetCredentials, header, rows); err != nil {
		log.Fatalf("Failed to save credentials: %v", err)
	}

	auditService := audit.NewService(cfg.AuditLogPath())
	auditService.Append(audit.Event{
		Type:   audit.EventModify,
		Actor:  "admin-cli",
		Action: "provision_credential",
		Detail: fmt.Sprintf("user %s role %s", *username, parsedRole),
	})

	if updated {
		fmt.Printf("Updated credential for %s (%s)\n", *username, parsedRole)
	} else {
		fmt.Printf("Created credential for %s (%s)\n", *username, parsedRole)
	}
}
