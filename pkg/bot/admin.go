package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modseek/modseek/pkg/store"
)

// adminExtension carries the per-community configuration commands.
type adminExtension struct {
	bot *Bot
}

func (e *adminExtension) Name() string { return "admin" }

func (e *adminExtension) Commands() []Command {
	return []Command{
		{
			Name:      "prefix",
			Usage:     "prefix <prefix>",
			Help:      "Set this community's command prefix (at most 3 characters).",
			AdminOnly: true,
			Run:       e.runPrefix,
		},
		{
			Name:      "adultpolicy",
			Usage:     "adultpolicy <never|always|channel>",
			Help:      "Control whether searches include adult-only content.",
			AdminOnly: true,
			Run:       e.runAdultPolicy,
		},
		{
			Name:      "track",
			Aliases:   []string{"addtask"},
			Usage:     "track <target> [here]",
			Help:      "Add a search target, community-wide or for this channel only.",
			AdminOnly: true,
			Run:       e.runTrack,
		},
		{
			Name:      "untrack",
			Aliases:   []string{"deltask"},
			Usage:     "untrack <target> [here]",
			Help:      "Remove a search target from this community or channel.",
			AdminOnly: true,
			Run:       e.runUntrack,
		},
		{
			Name:    "tasks",
			Aliases: []string{"showtasks"},
			Usage:   "tasks",
			Help:    "Show the search targets configured for this scope.",
			Run:     e.runTasks,
		},
	}
}

func (e *adminExtension) runPrefix(ctx context.Context, inv *Invocation) error {
	prefix := inv.Args
	if err := e.bot.store.SetPrefix(ctx, inv.Event.CommunityID, prefix); err != nil {
		if errors.Is(err, store.ErrPrefixTooLong) {
			return fmt.Errorf("prefixes are 1 to %d characters", store.MaxPrefixLength)
		}
		return err
	}
	return inv.Reply(ctx, fmt.Sprintf("Prefix set to `%s`.", prefix))
}

func (e *adminExtension) runAdultPolicy(ctx context.Context, inv *Invocation) error {
	policy, err := store.ParseAdultPolicy(inv.Args)
	if err != nil {
		return err
	}
	if err := e.bot.store.SetAdultPolicy(ctx, inv.Event.CommunityID, policy); err != nil {
		return err
	}
	return inv.Reply(ctx, fmt.Sprintf("Adult content policy set to `%s`.", policy))
}

func (e *adminExtension) runTrack(ctx context.Context, inv *Invocation) error {
	path, subchannelID, err := e.parseScope(inv)
	if err != nil {
		return err
	}

	target, err := e.resolveTarget(ctx, path)
	if err != nil {
		return err
	}

	if err := e.bot.store.AddTask(ctx, inv.Event.CommunityID, subchannelID, target.ID); err != nil {
		if errors.Is(err, store.ErrTooManyTasks) {
			return fmt.Errorf("at most %d search targets per scope", store.MaxTasksPerScope)
		}
		return err
	}
	return inv.Reply(ctx, fmt.Sprintf("Now searching **%s** %s.", target.Name, scopeLabel(subchannelID)))
}

func (e *adminExtension) runUntrack(ctx context.Context, inv *Invocation) error {
	path, subchannelID, err := e.parseScope(inv)
	if err != nil {
		return err
	}

	target, err := e.bot.store.TargetByPath(ctx, path)
	if err != nil {
		if errors.Is(err, store.ErrTargetUnknown) {
			return fmt.Errorf("unknown target `%s`", path)
		}
		return err
	}

	if err := e.bot.store.RemoveTask(ctx, inv.Event.CommunityID, subchannelID, target.ID); err != nil {
		return err
	}
	return inv.Reply(ctx, fmt.Sprintf("No longer searching **%s** %s.", target.Name, scopeLabel(subchannelID)))
}

func (e *adminExtension) runTasks(ctx context.Context, inv *Invocation) error {
	var lines []string

	community, err := e.bot.store.TasksForScope(ctx, inv.Event.CommunityID, 0)
	if err != nil {
		return err
	}
	lines = append(lines, fmt.Sprintf("Community targets: %s", targetList(community)))

	channel, err := e.bot.store.TasksForScope(ctx, inv.Event.CommunityID, inv.Event.ChannelID)
	if err != nil {
		return err
	}
	lines = append(lines, fmt.Sprintf("This channel searches: %s", targetList(channel)))

	return inv.Reply(ctx, strings.Join(lines, "\n"))
}

// parseScope splits "path [here]" arguments.
func (e *adminExtension) parseScope(inv *Invocation) (string, int64, error) {
	fields := strings.Fields(inv.Args)
	switch len(fields) {
	case 1:
		return fields[0], 0, nil
	case 2:
		if fields[1] != "here" {
			return "", 0, fmt.Errorf("unexpected argument `%s` (did you mean `here`?)", fields[1])
		}
		return fields[0], inv.Event.ChannelID, nil
	default:
		return "", 0, errors.New("expected a target path")
	}
}

// resolveTarget finds a target in the catalog, falling back to scraping its
// page for games the bulk dump does not list.
func (e *adminExtension) resolveTarget(ctx context.Context, path string) (store.Target, error) {
	target, err := e.bot.store.TargetByPath(ctx, path)
	if err == nil {
		return target, nil
	}
	if !errors.Is(err, store.ErrTargetUnknown) {
		return store.Target{}, err
	}

	id, name, scrapeErr := e.bot.scraper.ScrapeTarget(ctx, path)
	if scrapeErr != nil {
		e.bot.logger.Debugf("scraping %s: %v", path, scrapeErr)
		return store.Target{}, fmt.Errorf("unknown target `%s`", path)
	}

	target = store.Target{ID: id, Path: strings.ToLower(path), Name: name}
	if err := e.bot.store.UpsertTarget(ctx, target); err != nil {
		return store.Target{}, err
	}
	return target, nil
}

func scopeLabel(subchannelID int64) string {
	if subchannelID != 0 {
		return "in this channel"
	}
	return "community-wide"
}

func targetList(targets []store.Target) string {
	if len(targets) == 0 {
		return "none"
	}
	names := make([]string, len(targets))
	for i, target := range targets {
		names[i] = fmt.Sprintf("**%s**", target.Name)
	}
	return strings.Join(names, ", ")
}
