package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/modseek/modseek/pkg/engine"
	"github.com/modseek/modseek/pkg/nexus"
	"github.com/modseek/modseek/pkg/store"
	"github.com/urfave/cli/v3"
)

var (
	targetStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Margin(1, 0, 0, 0)

	modStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search targets for a mod from the command line",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "target",
				Usage: "Target path to search (e.g. skyrimspecialedition). Can be used multiple times",
			},
			&cli.BoolFlag{
				Name:  "adult",
				Usage: "Include adult-only results",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.Join(c.Args().Slice(), " ")
			return searchMods(ctx, c.String("config"), query, c.StringSlice("target"), c.Bool("adult"))
		},
	}
}

func searchMods(ctx context.Context, configPath, query string, paths []string, includeAdult bool) error {
	if strings.TrimSpace(query) == "" {
		return errors.New("expected a search query")
	}
	if len(paths) == 0 {
		return errors.New("expected at least one --target")
	}

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

	targets := make([]store.Target, 0, len(paths))
	for _, path := range paths {
		target, err := resolveTarget(ctx, s, client, path)
		if err != nil {
			return err
		}
		targets = append(targets, target)
	}

	results := engine.New(client).Run(ctx, []string{query}, targets, includeAdult)
	for _, result := range results {
		printResult(result)
	}
	return nil
}

// resolveTarget looks the path up in the catalog and falls back to scraping
// the target page, mirroring what the track command does in chat.
func resolveTarget(ctx context.Context, s *store.Store, client *nexus.Client, path string) (store.Target, error) {
	target, err := s.TargetByPath(ctx, path)
	if err == nil {
		return target, nil
	}
	if !errors.Is(err, store.ErrTargetUnknown) {
		return store.Target{}, err
	}

	id, name, err := client.ScrapeTarget(ctx, path)
	if err != nil {
		return store.Target{}, fmt.Errorf("unknown target %q (try 'modseek refresh')", path)
	}

	target = store.Target{ID: id, Path: strings.ToLower(path), Name: name}
	if err := s.UpsertTarget(ctx, target); err != nil {
		return store.Target{}, err
	}
	return target, nil
}

func printResult(result engine.QueryResult) {
	for _, hit := range result.Hits {
		fmt.Println(targetStyle.Render(hit.Target.Name))

		switch hit.Outcome {
		case engine.Failed:
			fmt.Println(metaStyle.Render(fmt.Sprintf("search failed: %v", hit.Err)))
		case engine.Empty:
			fmt.Println(metaStyle.Render("no results"))
		case engine.Success:
			mod := hit.Response.Results[0]
			fmt.Println(modStyle.Render(mod.Name))
			fmt.Println(urlStyle.Render(mod.PageURL()))
			fmt.Println(metaStyle.Render(fmt.Sprintf("%d downloads, %d endorsements, %d total match(es)",
				mod.Downloads, mod.Endorsements, hit.Response.Total)))
		}
	}
}
