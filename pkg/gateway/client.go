package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/modseek/modseek/pkg/log"
	"github.com/modseek/modseek/pkg/present"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	initialBackoff = time.Second
	maxBackoff     = time.Minute
)

// ErrDisconnected fails in-flight requests when the connection drops.
var ErrDisconnected = errors.New("gateway connection lost")

type frame struct {
	Op   string          `json:"op"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"d,omitempty"`
}

type reactionWaiter struct {
	messageID int64
	userID    int64
	emoji     string
	matched   chan struct{}
}

// Client is the websocket gateway connection. Run keeps it connected;
// the remaining methods are safe to call from any goroutine while Run is
// active.
type Client struct {
	url    string
	token  string
	logger *log.Logger

	onReady     func(ReadyEvent)
	onMessage   func(MessageEvent)
	onCommunity func(CommunityEvent)

	writeMu sync.Mutex
	conn    *websocket.Conn

	pendingMu sync.Mutex
	pending   map[string]chan json.RawMessage

	waitersMu sync.Mutex
	waiters   map[*reactionWaiter]struct{}

	userMu sync.RWMutex
	user   User
}

// NewClient creates an unconnected client. Handlers must be registered
// before calling Run.
func NewClient(url, token string) *Client {
	return &Client{
		url:     url,
		token:   token,
		logger:  log.ForService("gateway"),
		pending: make(map[string]chan json.RawMessage),
		waiters: make(map[*reactionWaiter]struct{}),
	}
}

// OnReady registers the handler for connection ready events.
func (c *Client) OnReady(handler func(ReadyEvent)) { c.onReady = handler }

// OnMessage registers the handler for incoming chat messages. Each message
// is handled on its own goroutine.
func (c *Client) OnMessage(handler func(MessageEvent)) { c.onMessage = handler }

// OnCommunity registers the handler for community join and leave events.
func (c *Client) OnCommunity(handler func(CommunityEvent)) { c.onCommunity = handler }

// User returns the bot's own account, known after the first ready event.
func (c *Client) User() User {
	c.userMu.RLock()
	defer c.userMu.RUnlock()
	return c.user
}

// Run connects and processes events until ctx is cancelled, reconnecting
// with exponential backoff on failures.
func (c *Client) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		if err := c.runOnce(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warnf("connection failed: %v", err)
		}
		c.failPending()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		// A connection that held for a while earns a fresh backoff.
		if time.Since(start) > time.Minute {
			backoff = initialBackoff
		}
		c.logger.Infof("reconnecting in %s", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dialing gateway: %w", err)
	}
	defer func() { _ = conn.Close() }()

	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()
	defer func() {
		c.writeMu.Lock()
		c.conn = nil
		c.writeMu.Unlock()
	}()

	identify, _ := json.Marshal(map[string]string{"token": c.token})
	if err := c.writeFrame(frame{Op: "identify", Data: identify}); err != nil {
		return fmt.Errorf("identifying: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go c.pingLoop(pingCtx, conn)

	// Close the socket when ctx ends so ReadMessage unblocks.
	go func() {
		<-pingCtx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading frame: %w", err)
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warnf("dropping malformed frame: %v", err)
			continue
		}
		c.handleFrame(f)
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) handleFrame(f frame) {
	switch f.Op {
	case "ready":
		var ev ReadyEvent
		if err := json.Unmarshal(f.Data, &ev); err != nil {
			c.logger.Errorf("decoding ready event: %v", err)
			return
		}
		c.userMu.Lock()
		c.user = ev.User
		c.userMu.Unlock()
		if c.onReady != nil {
			go c.onReady(ev)
		}

	case "message":
		var ev MessageEvent
		if err := json.Unmarshal(f.Data, &ev); err != nil {
			c.logger.Errorf("decoding message event: %v", err)
			return
		}
		if c.onMessage != nil {
			go c.onMessage(ev)
		}

	case "reaction":
		var ev ReactionEvent
		if err := json.Unmarshal(f.Data, &ev); err != nil {
			c.logger.Errorf("decoding reaction event: %v", err)
			return
		}
		c.dispatchReaction(ev)

	case "community":
		var ev CommunityEvent
		if err := json.Unmarshal(f.Data, &ev); err != nil {
			c.logger.Errorf("decoding community event: %v", err)
			return
		}
		if c.onCommunity != nil {
			go c.onCommunity(ev)
		}

	case "response":
		c.pendingMu.Lock()
		ch, ok := c.pending[f.ID]
		delete(c.pending, f.ID)
		c.pendingMu.Unlock()
		if ok {
			ch <- f.Data
		}

	default:
		c.logger.Debugf("ignoring frame op %q", f.Op)
	}
}

func (c *Client) writeFrame(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return ErrDisconnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(f)
}

// request sends an op frame and waits for the correlated response.
func (c *Client) request(ctx context.Context, op string, payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", op, err)
	}

	id := uuid.NewString()
	ch := make(chan json.RawMessage, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.writeFrame(frame{Op: op, ID: id, Data: data}); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrDisconnected
		}
		return resp, nil
	}
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

// SendBatch posts a result batch to a channel and returns the new message id.
func (c *Client) SendBatch(ctx context.Context, channelID int64, batch *present.Batch) (int64, error) {
	resp, err := c.request(ctx, "batch_send", map[string]any{
		"channel_id": channelID,
		"batch":      batch,
	})
	if err != nil {
		return 0, err
	}
	var result struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return 0, fmt.Errorf("decoding send response: %w", err)
	}
	return result.MessageID, nil
}

// EditBatch replaces the batch of an earlier message.
func (c *Client) EditBatch(ctx context.Context, channelID, messageID int64, batch *present.Batch) error {
	_, err := c.request(ctx, "batch_edit", map[string]any{
		"channel_id": channelID,
		"message_id": messageID,
		"batch":      batch,
	})
	return err
}

// SendText posts a plain text message.
func (c *Client) SendText(ctx context.Context, channelID int64, text string) error {
	_, err := c.request(ctx, "text_send", map[string]any{
		"channel_id": channelID,
		"content":    text,
	})
	return err
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	_, err := c.request(ctx, "message_delete", map[string]any{
		"channel_id": channelID,
		"message_id": messageID,
	})
	return err
}

// AddReaction adds the bot's reaction to a message.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID int64, emoji string) error {
	_, err := c.request(ctx, "reaction_add", map[string]any{
		"channel_id": channelID,
		"message_id": messageID,
		"emoji":      emoji,
	})
	return err
}

// RemoveOwnReaction removes the bot's reaction from a message.
func (c *Client) RemoveOwnReaction(ctx context.Context, channelID, messageID int64, emoji string) error {
	_, err := c.request(ctx, "reaction_remove", map[string]any{
		"channel_id": channelID,
		"message_id": messageID,
		"emoji":      emoji,
	})
	return err
}

// WaitForReaction blocks until userID reacts to messageID with emoji, or the
// timeout elapses. Reports whether the reaction arrived.
func (c *Client) WaitForReaction(ctx context.Context, messageID, userID int64, emoji string, timeout time.Duration) bool {
	waiter := &reactionWaiter{
		messageID: messageID,
		userID:    userID,
		emoji:     emoji,
		matched:   make(chan struct{}, 1),
	}
	c.waitersMu.Lock()
	c.waiters[waiter] = struct{}{}
	c.waitersMu.Unlock()
	defer func() {
		c.waitersMu.Lock()
		delete(c.waiters, waiter)
		c.waitersMu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return false
	case <-waiter.matched:
		return true
	}
}

func (c *Client) dispatchReaction(ev ReactionEvent) {
	c.waitersMu.Lock()
	defer c.waitersMu.Unlock()
	for waiter := range c.waiters {
		if waiter.messageID == ev.MessageID && waiter.userID == ev.UserID && waiter.emoji == ev.Emoji {
			select {
			case waiter.matched <- struct{}{}:
			default:
			}
		}
	}
}
