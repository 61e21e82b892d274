package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/modseek/modseek/pkg/blocklist"
	"github.com/modseek/modseek/pkg/store"
	"github.com/urfave/cli/v3"
)

// BlockCommand creates the block command with its subcommands
func BlockCommand() *cli.Command {
	return &cli.Command{
		Name:  "block",
		Usage: "Manage the user and community block list",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Block a user or community id",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withBlocklist(ctx, c.String("config"), func(bl *blocklist.Blocklist) error {
						id, err := parseBlockID(c.Args().First())
						if err != nil {
							return err
						}
						if err := bl.Block(ctx, id); err != nil {
							return err
						}
						fmt.Printf("Blocked %d.\n", id)
						return nil
					})
				},
			},
			{
				Name:      "remove",
				Usage:     "Unblock a user or community id",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withBlocklist(ctx, c.String("config"), func(bl *blocklist.Blocklist) error {
						id, err := parseBlockID(c.Args().First())
						if err != nil {
							return err
						}
						if err := bl.Unblock(ctx, id); err != nil {
							return err
						}
						fmt.Printf("Unblocked %d.\n", id)
						return nil
					})
				},
			},
			{
				Name:  "list",
				Usage: "List blocked ids",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withBlocklist(ctx, c.String("config"), func(bl *blocklist.Blocklist) error {
						ids := bl.IDs()
						if len(ids) == 0 {
							fmt.Println("Nothing is blocked.")
							return nil
						}
						for _, id := range ids {
							fmt.Println(id)
						}
						return nil
					})
				},
			},
		},
	}
}

func withBlocklist(ctx context.Context, configPath string, fn func(*blocklist.Blocklist) error) error {
	cfg, s, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()

	bl := loadBlocklist(ctx, cfg.OwnerID, s)
	return fn(bl)
}

func loadBlocklist(ctx context.Context, ownerID int64, s *store.Store) *blocklist.Blocklist {
	bl := blocklist.New(s, ownerID)
	if err := bl.Load(ctx); err != nil {
		fmt.Printf("Warning: failed to load block list: %v\n", err)
	}
	return bl
}

func parseBlockID(arg string) (int64, error) {
	if arg == "" {
		return 0, fmt.Errorf("expected an id argument")
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a valid id", arg)
	}
	return id, nil
}
