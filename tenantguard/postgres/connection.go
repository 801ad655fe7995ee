// File: connection.go
package postgres

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/TenantGuard/go-api/tenantguard/postgres/models"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	db      *gorm.DB
	connErr error
	once    sync.Once
)

// connect opens the database from POSTURE_POSTGRES_DSN (with .env fallback)
// and migrates the schema. Failures are recorded, not fatal, so callers can
// surface them as run-level errors.
func connect() {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		slog.Debug("No .env file loaded", "error", err)
	}

	dsn := os.Getenv("POSTURE_POSTGRES_DSN")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=password dbname=posture port=5432 sslmode=disable"
	}

	db, connErr = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if connErr != nil {
		connErr = fmt.Errorf("failed to connect to database: %w", connErr)
		slog.Error("Database connection failed", "error", connErr)
		return
	}

	connErr = db.AutoMigrate(
		&models.Tenant{},
		&models.AssessmentRun{},
		&models.Finding{},
		&models.RawSnapshot{},
		&models.InventoryItem{},
	)
	if connErr != nil {
		connErr = fmt.Errorf("failed to migrate database schema: %w", connErr)
		slog.Error("Database migration failed", "error", connErr)
		db = nil
	}
}

// GetDB returns the shared connection, opening it on first use. Returns nil
// when the connection could not be established; see GetConnectionError.
func GetDB() *gorm.DB {
	once.Do(connect)
	return db
}

// IsConnected reports whether the database connection is usable.
func IsConnected() bool {
	return GetDB() != nil
}

// GetConnectionError returns the error recorded while connecting, if any.
func GetConnectionError() error {
	once.Do(connect)
	return connErr
}
