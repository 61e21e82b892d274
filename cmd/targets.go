package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/modseek/modseek/pkg/store"
	"github.com/urfave/cli/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TargetsCommand creates the targets command
func TargetsCommand() *cli.Command {
	return &cli.Command{
		Name:  "targets",
		Usage: "List the search targets known to the catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "filter",
				Usage: "Only show targets whose name or path contains this string",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return listTargets(ctx, c.String("config"), c.String("filter"))
		},
	}
}

func listTargets(ctx context.Context, configPath, filter string) error {
	_, s, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			fmt.Printf("Warning: failed to close store: %v\n", err)
		}
	}()

	targets, err := s.Targets(ctx)
	if err != nil {
		return fmt.Errorf("listing targets: %w", err)
	}
	if len(targets) == 0 {
		fmt.Println("No targets in the catalog yet. Run 'modseek refresh' first.")
		return nil
	}

	filter = strings.ToLower(filter)
	shown := 0
	for _, target := range targets {
		name := displayName(target)
		if filter != "" &&
			!strings.Contains(strings.ToLower(name), filter) &&
			!strings.Contains(target.Path, filter) {
			continue
		}
		fmt.Printf("%6d  %-40s %s\n", target.ID, name, target.Path)
		shown++
	}

	fmt.Printf("\n%d target(s).\n", shown)
	return nil
}

// displayName falls back to a title-cased path for catalog entries that
// carry no display name.
func displayName(target store.Target) string {
	if target.Name != "" {
		return target.Name
	}
	return cases.Title(language.English).String(strings.ReplaceAll(target.Path, "_", " "))
}
