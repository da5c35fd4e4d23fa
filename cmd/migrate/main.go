package main

import (
	"bank_system/internal/config" // Custom import path (Config)
	"bank_system/internal/db"     // Custom import path (Database)

	"github.com/sirupsen/logrus" // Logging
	"golang.org/x/crypto/bcrypt" // Password hashing cost
)

// Main entry point for migration and seeding
func main() {
	cfg := config.LoadConfig() // Load configuration
	cfg.SetupLogger()

	gdb, err := db.Connect(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("%v", err)
	}

	fixture, err := db.LoadFixture(cfg.SeedFile) // Embedded fixture unless SEED_FILE is set
	if err != nil {
		logrus.Fatalf("failed to load seed fixture: %v", err)
	}
	n, err := db.Seed(gdb, fixture, bcrypt.DefaultCost)
	if err != nil {
		logrus.Fatalf("failed to seed: %v", err)
	}
	logrus.WithField("users", n).Info("Seeding completed.")
}
