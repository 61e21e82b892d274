// Package bot wires gateway events to the search pipeline and the
// administration commands. Functionality is grouped into extensions
// registered on a command registry.
package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/modseek/modseek/pkg/blocklist"
	"github.com/modseek/modseek/pkg/config"
	"github.com/modseek/modseek/pkg/dispatch"
	"github.com/modseek/modseek/pkg/gateway"
	"github.com/modseek/modseek/pkg/log"
	"github.com/modseek/modseek/pkg/store"
)

// Scraper resolves targets missing from the bulk catalog from their HTML
// page.
type Scraper interface {
	ScrapeTarget(ctx context.Context, path string) (int64, string, error)
}

// Bot handles gateway events.
type Bot struct {
	cfg        *config.Config
	store      *store.Store
	blocklist  *blocklist.Blocklist
	transport  dispatch.Transport
	dispatcher *dispatch.Dispatcher
	scraper    Scraper
	registry   *Registry
	logger     *log.Logger
}

// Invocation is one command call with its parsed arguments.
type Invocation struct {
	Event     gateway.MessageEvent
	Community store.Community
	Args      string

	bot *Bot
}

// Reply posts a plain text answer in the invoking channel.
func (inv *Invocation) Reply(ctx context.Context, text string) error {
	return inv.bot.transport.SendText(ctx, inv.Event.ChannelID, text)
}

// New creates the bot and registers the built-in extensions.
func New(cfg *config.Config, s *store.Store, bl *blocklist.Blocklist, transport dispatch.Transport, d *dispatch.Dispatcher, scraper Scraper) (*Bot, error) {
	b := &Bot{
		cfg:        cfg,
		store:      s,
		blocklist:  bl,
		transport:  transport,
		dispatcher: d,
		scraper:    scraper,
		registry:   NewRegistry(),
		logger:     log.ForService("bot"),
	}

	for _, ext := range []Extension{
		&searchExtension{bot: b},
		&adminExtension{bot: b},
		&ownerExtension{bot: b},
	} {
		if err := b.registry.Register(ext); err != nil {
			return nil, fmt.Errorf("registering extension %s: %w", ext.Name(), err)
		}
	}
	return b, nil
}

// Registry exposes the command registry, mainly for help output.
func (b *Bot) Registry() *Registry {
	return b.registry
}

// HandleMessage processes one incoming message: blocked senders are
// dropped, prefixed messages run commands and everything else goes to the
// message-hook extensions.
func (b *Bot) HandleMessage(ctx context.Context, ev gateway.MessageEvent) {
	if ev.Author.Bot || ev.CommunityID == 0 {
		return
	}
	if b.blocklist.Contains(ev.Author.ID) || b.blocklist.Contains(ev.CommunityID) {
		return
	}

	community, err := b.store.Community(ctx, ev.CommunityID)
	if err != nil {
		b.logger.Errorf("loading community %d: %v", ev.CommunityID, err)
		return
	}

	inv := &Invocation{Event: ev, Community: community, bot: b}
	if rest, ok := strings.CutPrefix(ev.Content, community.Prefix); ok {
		b.runCommand(ctx, inv, rest)
		return
	}

	for _, ext := range b.registry.Extensions() {
		if handler, ok := ext.(MessageHandler); ok {
			handler.HandleMessage(ctx, inv)
		}
	}
}

func (b *Bot) runCommand(ctx context.Context, inv *Invocation, line string) {
	name, args, _ := strings.Cut(strings.TrimSpace(line), " ")
	if name == "" {
		return
	}

	cmd, ok := b.registry.Command(name)
	if !ok {
		return
	}

	isOwner := inv.Event.Author.ID == b.cfg.OwnerID
	if cmd.OwnerOnly && !isOwner {
		return
	}
	if cmd.AdminOnly && !isOwner && !inv.Event.Permissions.ManageCommunity {
		if err := inv.Reply(ctx, ":x: You need community management permission for that."); err != nil {
			b.logger.Warnf("replying: %v", err)
		}
		return
	}

	inv.Args = strings.TrimSpace(args)
	if err := cmd.Run(ctx, inv); err != nil {
		b.logger.Warnf("command %s failed: %v", cmd.Name, err)
		if replyErr := inv.Reply(ctx, fmt.Sprintf(":x: %v.", err)); replyErr != nil {
			b.logger.Warnf("replying: %v", replyErr)
		}
	}
}

// HandleReady reconciles the stored communities with the ones the platform
// reports membership of; communities that dropped the bot while it was
// offline are pruned.
func (b *Bot) HandleReady(ctx context.Context, ev gateway.ReadyEvent) {
	for _, id := range ev.CommunityIDs {
		if err := b.store.EnsureCommunity(ctx, id); err != nil {
			b.logger.Errorf("ensuring community %d: %v", id, err)
			return
		}
	}
	if err := b.store.PruneCommunities(ctx, ev.CommunityIDs); err != nil {
		b.logger.Errorf("pruning communities: %v", err)
	}
	b.logger.Infof("ready in %d communities", len(ev.CommunityIDs))
}

// HandleCommunity tracks joins and leaves while connected.
func (b *Bot) HandleCommunity(ctx context.Context, ev gateway.CommunityEvent) {
	if ev.Joined {
		if b.blocklist.Contains(ev.CommunityID) {
			b.logger.Infof("ignoring blocked community %d", ev.CommunityID)
			return
		}
		if err := b.store.EnsureCommunity(ctx, ev.CommunityID); err != nil {
			b.logger.Errorf("ensuring community %d: %v", ev.CommunityID, err)
		}
		return
	}
	if err := b.store.DeleteCommunity(ctx, ev.CommunityID); err != nil {
		b.logger.Errorf("deleting community %d: %v", ev.CommunityID, err)
	}
}
