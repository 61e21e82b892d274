package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ownerExtension holds the commands reserved for the configured owner.
type ownerExtension struct {
	bot *Bot
}

func (e *ownerExtension) Name() string { return "owner" }

func (e *ownerExtension) Commands() []Command {
	return []Command{
		{
			Name:      "block",
			Usage:     "block <id>",
			Help:      "Block a user or community from using the bot.",
			OwnerOnly: true,
			Run:       e.runBlock,
		},
		{
			Name:      "unblock",
			Usage:     "unblock <id>",
			Help:      "Remove a user or community from the block list.",
			OwnerOnly: true,
			Run:       e.runUnblock,
		},
		{
			Name:      "blocked",
			Usage:     "blocked",
			Help:      "List all blocked ids.",
			OwnerOnly: true,
			Run:       e.runBlocked,
		},
	}
}

func (e *ownerExtension) runBlock(ctx context.Context, inv *Invocation) error {
	id, err := parseID(inv.Args)
	if err != nil {
		return err
	}
	if err := e.bot.blocklist.Block(ctx, id); err != nil {
		return err
	}
	return inv.Reply(ctx, fmt.Sprintf("Blocked `%d`.", id))
}

func (e *ownerExtension) runUnblock(ctx context.Context, inv *Invocation) error {
	id, err := parseID(inv.Args)
	if err != nil {
		return err
	}
	if err := e.bot.blocklist.Unblock(ctx, id); err != nil {
		return err
	}
	return inv.Reply(ctx, fmt.Sprintf("Unblocked `%d`.", id))
}

func (e *ownerExtension) runBlocked(ctx context.Context, inv *Invocation) error {
	ids := e.bot.blocklist.IDs()
	if len(ids) == 0 {
		return inv.Reply(ctx, "Nothing is blocked.")
	}

	formatted := make([]string, len(ids))
	for i, id := range ids {
		formatted[i] = fmt.Sprintf("`%d`", id)
	}
	return inv.Reply(ctx, "Blocked: "+strings.Join(formatted, ", "))
}

func parseID(arg string) (int64, error) {
	if arg == "" {
		return 0, errors.New("expected an id")
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("`%s` is not a valid id", arg)
	}
	return id, nil
}
