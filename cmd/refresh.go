package cmd

import (
	"context"
	"fmt"

	"github.com/modseek/modseek/pkg/catalog"
	"github.com/modseek/modseek/pkg/nexus"
	"github.com/urfave/cli/v3"
)

// RefreshCommand creates the refresh command
func RefreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Re-sync the game catalog into the store",
		Action: func(ctx context.Context, c *cli.Command) error {
			return refreshCatalog(ctx, c.String("config"))
		},
	}
}

func refreshCatalog(ctx context.Context, configPath string) error {
	cfg, s, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()

	client := nexus.NewClient(cfg)
	refresher := catalog.NewRefresher(client, s, 0)

	count, err := refresher.RefreshOnce(ctx)
	if err != nil {
		return fmt.Errorf("refreshing catalog: %w", err)
	}
	if count == 0 {
		fmt.Println("Catalog dump was empty, keeping existing targets.")
		return nil
	}

	fmt.Printf("Catalog refreshed: %d targets.\n", count)
	return nil
}
