package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/organizer/sanctuary/internal/config"
	"github.com/organizer/sanctuary/internal/db"
	"github.com/organizer/sanctuary/internal/repository"
	"github.com/organizer/sanctuary/internal/seed"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return err
	}

	store := repository.New(database.DB)
	seedData, err := loadSeed()
	if err != nil {
		return err
	}
	if err := seed.Apply(cmd.Context(), store, newLogger(), seedData); err != nil {
		return err
	}

	fmt.Println("Migrations completed successfully")
	return nil
}

// loadSeed reads the starter AppConfig/keyword set from SEED_FILE if set,
// falling back to the set embedded in the binary.
func loadSeed() (*seed.Data, error) {
	path := os.Getenv("SEED_FILE")
	if path == "" {
		return seed.Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read SEED_FILE: %w", err)
	}
	return seed.Parse(raw)
}
