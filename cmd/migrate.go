package cmd

import (
	"context"
	"fmt"

	"github.com/modseek/modseek/pkg/config"
	"github.com/modseek/modseek/pkg/store"
	"github.com/urfave/cli/v3"
)

// MigrateCommand creates the migrate command
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "status",
				Usage: "Show migration status without applying anything",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runMigrate(c.String("config"), c.Bool("status"))
		},
	}
}

func runMigrate(configPath string, statusOnly bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()

	manager := store.NewMigrationManager(s.DB())
	if err := manager.EnsureMigrationsTable(); err != nil {
		return fmt.Errorf("ensuring migrations table: %w", err)
	}

	if statusOnly {
		return showMigrationStatus(manager)
	}

	pending, err := manager.GetPendingMigrations()
	if err != nil {
		return fmt.Errorf("getting pending migrations: %w", err)
	}
	if len(pending) == 0 {
		fmt.Println("Database is up to date.")
		return nil
	}

	for _, migration := range pending {
		fmt.Printf("Applying migration %03d: %s\n", migration.Version, migration.Name)
		if err := manager.ApplyMigration(migration); err != nil {
			return fmt.Errorf("applying migration %d: %w", migration.Version, err)
		}
	}

	fmt.Printf("Applied %d migration(s).\n", len(pending))
	return nil
}

func showMigrationStatus(manager *store.MigrationManager) error {
	available, err := manager.GetAvailableMigrations()
	if err != nil {
		return fmt.Errorf("getting available migrations: %w", err)
	}

	applied, err := manager.GetAppliedMigrations()
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}

	if len(available) == 0 {
		fmt.Println("No migrations found.")
		return nil
	}

	fmt.Println("Migration status:")
	for _, migration := range available {
		if appliedAt, ok := applied[migration.Version]; ok {
			fmt.Printf("  ✓ %03d %s (applied %s)\n", migration.Version, migration.Name, appliedAt.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Printf("  • %03d %s (pending)\n", migration.Version, migration.Name)
		}
	}
	return nil
}
