// Package dispatch runs one search invocation end to end: placeholder
// message, search fan-out, result edit and the reaction-driven cleanup
// window.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modseek/modseek/pkg/engine"
	"github.com/modseek/modseek/pkg/gateway"
	"github.com/modseek/modseek/pkg/log"
	"github.com/modseek/modseek/pkg/present"
	"github.com/modseek/modseek/pkg/store"
)

// TrashEmoji is the reaction offered for deleting results.
const TrashEmoji = "🗑️"

// DefaultReactionWait is how long the requester can react before the offer
// is withdrawn.
const DefaultReactionWait = 10 * time.Second

// Transport is the slice of the gateway the dispatcher talks through.
type Transport interface {
	SendBatch(ctx context.Context, channelID int64, batch *present.Batch) (int64, error)
	EditBatch(ctx context.Context, channelID, messageID int64, batch *present.Batch) error
	SendText(ctx context.Context, channelID int64, text string) error
	DeleteMessage(ctx context.Context, channelID, messageID int64) error
	AddReaction(ctx context.Context, channelID, messageID int64, emoji string) error
	RemoveOwnReaction(ctx context.Context, channelID, messageID int64, emoji string) error
	WaitForReaction(ctx context.Context, messageID, userID int64, emoji string, timeout time.Duration) bool
}

// Request is one search invocation.
type Request struct {
	ChannelID    int64
	Requester    gateway.User
	Permissions  gateway.Permissions
	Queries      []string
	Targets      []store.Target
	IncludeAdult bool
	HideThumbs   bool
}

// Dispatcher executes requests.
type Dispatcher struct {
	transport    Transport
	engine       *engine.Engine
	builder      *present.Builder
	logger       *log.Logger
	reactionWait time.Duration
}

func New(transport Transport, eng *engine.Engine, builder *present.Builder) *Dispatcher {
	return &Dispatcher{
		transport:    transport,
		engine:       eng,
		builder:      builder,
		logger:       log.ForService("dispatch"),
		reactionWait: DefaultReactionWait,
	}
}

// Run answers a request. Each batch gets a placeholder message first, which
// is edited into the results once its searches finish, so the requester sees
// progress on long fan-outs. After the last batch the requester may delete
// all result messages by reacting within the cleanup window.
func (d *Dispatcher) Run(ctx context.Context, req Request) error {
	chunks, err := d.builder.Chunk(req.Queries, len(req.Targets))
	if err != nil {
		if errors.Is(err, present.ErrTooManyQueries) {
			_, sendErr := d.transport.SendBatch(ctx, req.ChannelID, present.Rejection(err))
			return sendErr
		}
		return err
	}

	var messageIDs []int64
	for _, chunk := range chunks {
		messageID, err := d.transport.SendBatch(ctx, req.ChannelID, present.Placeholder())
		if err != nil {
			return fmt.Errorf("sending placeholder: %w", err)
		}
		messageIDs = append(messageIDs, messageID)

		start := time.Now()
		results := d.engine.Run(ctx, chunk, req.Targets, req.IncludeAdult)
		batch := d.builder.Build(ctx, results, req.HideThumbs)
		batch.Footer = present.Footer{
			Text:    fmt.Sprintf("Searched by @%s | Total time: %.2f s", req.Requester.Name, time.Since(start).Seconds()),
			IconURL: req.Requester.IconURL,
		}

		if err := d.transport.EditBatch(ctx, req.ChannelID, messageID, batch); err != nil {
			return fmt.Errorf("editing results in: %w", err)
		}
	}

	if req.Permissions.AddReactions && req.Permissions.ManageMessages {
		d.offerCleanup(ctx, req, messageIDs)
	}
	return nil
}

// offerCleanup reacts on the last result message and waits for the requester
// to confirm deletion of the whole invocation.
func (d *Dispatcher) offerCleanup(ctx context.Context, req Request, messageIDs []int64) {
	last := messageIDs[len(messageIDs)-1]
	if err := d.transport.AddReaction(ctx, req.ChannelID, last, TrashEmoji); err != nil {
		d.logger.Warnf("adding cleanup reaction: %v", err)
		return
	}

	if d.transport.WaitForReaction(ctx, last, req.Requester.ID, TrashEmoji, d.reactionWait) {
		for _, messageID := range messageIDs {
			if err := d.transport.DeleteMessage(ctx, req.ChannelID, messageID); err != nil {
				d.logger.Warnf("deleting result message %d: %v", messageID, err)
			}
		}
		return
	}

	if err := d.transport.RemoveOwnReaction(ctx, req.ChannelID, last, TrashEmoji); err != nil {
		d.logger.Warnf("removing cleanup reaction: %v", err)
	}
}
