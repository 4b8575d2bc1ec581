// Package models defines the conversation state document and supporting
// types shared across the vimbiso-chatserver modules.
package models

// ChannelType identifies the messaging channel a conversation arrived on.
type ChannelType string

// Supported channel types.
const (
	ChannelTypeWhatsApp ChannelType = "whatsapp"
	ChannelTypeSMS      ChannelType = "sms"
)

// Channel identifies one conversation endpoint (e.g. a phone number on
// WhatsApp). It is set once per session and never altered by generic state
// updates.
type Channel struct {
	Type       ChannelType `json:"type"`
	Identifier string      `json:"identifier"`
}

// MessageType identifies the kind of inbound message.
type MessageType string

// Supported inbound message types.
const (
	MessageTypeText        MessageType = "text"
	MessageTypeInteractive MessageType = "interactive"
)

// Message is the channel-agnostic inbound message extracted from a webhook
// payload. InteractiveID carries the selected button/row id for interactive
// replies; Body carries the text for text messages.
type Message struct {
	ID            string      `json:"id,omitempty"`
	Type          MessageType `json:"type"`
	Body          string      `json:"body,omitempty"`
	InteractiveID string      `json:"interactive_id,omitempty"`
}

// MenuItem is one selectable entry of an interactive menu.
type MenuItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}
