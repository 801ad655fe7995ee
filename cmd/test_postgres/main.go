package main

import (
	"fmt"
	"log"

	"github.com/TenantGuard/go-api/tenantguard/postgres"
)

func main() {
	log.Println("Starting PostgreSQL connection test...")

	// Get database connection using the SDK's database code
	db := postgres.GetDB()

	// Check if connection was successful
	if db == nil {
		log.Fatalf("❌ Failed to establish database connection: %v", postgres.GetConnectionError())
	}

	// Try to execute a simple query
	var result int
	if err := db.Raw("SELECT 1").Scan(&result).Error; err != nil {
		log.Fatalf("❌ Failed to execute query: %v", err)
	}

	// Check if connection is marked as initialized
	if !postgres.IsConnected() {
		log.Fatalf("❌ Connection not marked as initialized")
	}

	// Success!
	fmt.Println("✅ PostgreSQL connection test successful!")
	fmt.Println("✅ Schema is migrated and the database is ready")
}
