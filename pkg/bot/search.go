package bot

import (
	"context"
	"errors"

	"github.com/modseek/modseek/pkg/dispatch"
	"github.com/modseek/modseek/pkg/engine"
	"github.com/modseek/modseek/pkg/query"
)

// searchExtension answers {braced} queries in free text and the explicit
// search command.
type searchExtension struct {
	bot *Bot
}

func (e *searchExtension) Name() string { return "modsearch" }

func (e *searchExtension) Commands() []Command {
	return []Command{{
		Name:    "nexus",
		Aliases: []string{"nexussearch", "modsearch"},
		Usage:   "nexus <query>[, <query>...]",
		Help:    "Search the configured targets for one or more queries.",
		Run:     e.runSearchCommand,
	}}
}

// HandleMessage picks search queries out of ordinary messages. A message
// without queries, or in a scope without configured targets, is ignored
// silently.
func (e *searchExtension) HandleMessage(ctx context.Context, inv *Invocation) {
	queries := query.Extract(inv.Event.Content)
	if len(queries) == 0 {
		return
	}
	e.search(ctx, inv, queries, false)
}

func (e *searchExtension) runSearchCommand(ctx context.Context, inv *Invocation) error {
	queries := query.Extract("{" + inv.Args + "}")
	if len(queries) == 0 {
		return errors.New("invalid query")
	}
	e.search(ctx, inv, queries, true)
	return nil
}

func (e *searchExtension) search(ctx context.Context, inv *Invocation, queries []string, explicit bool) {
	bot := e.bot
	ev := inv.Event

	targets, err := bot.store.TasksForScope(ctx, ev.CommunityID, ev.ChannelID)
	if err != nil {
		bot.logger.Errorf("loading scope targets: %v", err)
		return
	}
	if len(targets) == 0 {
		if explicit {
			if err := inv.Reply(ctx, ":x: No search filters configured."); err != nil {
				bot.logger.Warnf("replying: %v", err)
			}
		}
		return
	}

	if !ev.Permissions.EmbedRichContent {
		if err := inv.Reply(ctx, ":x: Searching mods requires 'Embed Links' permission."); err != nil {
			bot.logger.Warnf("replying: %v", err)
		}
		return
	}

	includeAdult, hideThumbs := engine.ResolveAdult(inv.Community.AdultPolicy, ev.AdultChannel)
	err = bot.dispatcher.Run(ctx, dispatch.Request{
		ChannelID:    ev.ChannelID,
		Requester:    ev.Author,
		Permissions:  ev.Permissions,
		Queries:      queries,
		Targets:      targets,
		IncludeAdult: includeAdult,
		HideThumbs:   hideThumbs,
	})
	if err != nil {
		bot.logger.Errorf("search dispatch failed: %v", err)
	}
}
