// Package gateway maintains the websocket connection to the chat platform.
// Incoming frames become typed events; outgoing actions are request frames
// correlated by id.
package gateway

import "github.com/modseek/modseek/pkg/present"

// User identifies a platform account.
type User struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Bot     bool   `json:"bot"`
	IconURL string `json:"icon_url"`
}

// Permissions are the bot's effective permissions in a channel.
type Permissions struct {
	EmbedRichContent bool `json:"embed_rich_content"`
	AddReactions     bool `json:"add_reactions"`
	ManageMessages   bool `json:"manage_messages"`
	ManageCommunity  bool `json:"manage_community"`
}

// ReadyEvent is sent once per connection after identifying.
type ReadyEvent struct {
	User         User    `json:"user"`
	CommunityIDs []int64 `json:"community_ids"`
}

// MessageEvent is an incoming chat message with its channel context.
type MessageEvent struct {
	ID           int64       `json:"id"`
	ChannelID    int64       `json:"channel_id"`
	CommunityID  int64       `json:"community_id"`
	Content      string      `json:"content"`
	Author       User        `json:"author"`
	AdultChannel bool        `json:"adult_channel"`
	Permissions  Permissions `json:"permissions"`
}

// ReactionEvent is an incoming reaction on a message.
type ReactionEvent struct {
	MessageID int64  `json:"message_id"`
	ChannelID int64  `json:"channel_id"`
	UserID    int64  `json:"user_id"`
	Emoji     string `json:"emoji"`
}

// CommunityEvent reports the bot joining or leaving a community.
type CommunityEvent struct {
	CommunityID int64 `json:"community_id"`
	Joined      bool  `json:"joined"`
}

// Batch payloads reuse the presentation shape directly.
type Batch = present.Batch
