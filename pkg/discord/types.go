package discord

// ThreadTypePublic is the Discord channel type for a public thread.
const ThreadTypePublic = 11

// Embed is a Discord rich embed.
type Embed struct {
	Title       string          `json:"title,omitempty"`
	URL         string          `json:"url,omitempty"`
	Description string          `json:"description,omitempty"`
	Color       int             `json:"color,omitempty"`
	Thumbnail   *EmbedThumbnail `json:"thumbnail,omitempty"`
	Fields      []EmbedField    `json:"fields,omitempty"`
	Footer      *EmbedFooter    `json:"footer,omitempty"`
}

type EmbedThumbnail struct {
	URL string `json:"url"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// CreateMessageRequest is the body for POST /channels/{id}/messages.
type CreateMessageRequest struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Message is the subset of Discord's message object the publisher needs.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

// CreateThreadRequest is the body for POST /channels/{id}/threads.
type CreateThreadRequest struct {
	Name                string `json:"name"`
	AutoArchiveDuration int    `json:"auto_archive_duration,omitempty"`
	Type                int    `json:"type"`
}

// Thread is the subset of Discord's channel object returned on thread
// creation.
type Thread struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
