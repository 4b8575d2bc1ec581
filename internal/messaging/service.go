// Package messaging defines the channel-agnostic message delivery
// abstraction used by flow components.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vimbiso/vimbiso-chatserver/internal/models"
)

// Service is the capability injected into the state manager and used by
// components to talk to the user. Failures surface as errors the component
// must handle; the flow engine reports unhandled ones as activation failures.
type Service interface {
	// SendText sends a plain text message to the recipient.
	SendText(ctx context.Context, to string, body string) error

	// SendInteractive sends a menu with selectable items. Channels without
	// native menus degrade to a numbered text list.
	SendInteractive(ctx context.Context, to string, body string, items []models.MenuItem, buttonText string) error
}

// Sender is the minimal outbound transport (satisfied by the whatsapp and
// sms client wrappers).
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// SenderService implements Service over any Sender, rendering interactive
// menus as numbered text lists. Wire-level interactive payloads are a
// provider concern and deliberately out of scope here.
type SenderService struct {
	sender  Sender
	channel models.ChannelType
}

// NewSenderService wraps a transport for the given channel type.
func NewSenderService(sender Sender, channel models.ChannelType) *SenderService {
	return &SenderService{sender: sender, channel: channel}
}

// SendText sends a plain text message.
func (s *SenderService) SendText(ctx context.Context, to string, body string) error {
	slog.Debug("Messaging SendText", "channel", s.channel, "to", to, "body_length", len(body))
	if err := s.sender.SendMessage(ctx, to, body); err != nil {
		slog.Error("Messaging SendText failed", "channel", s.channel, "to", to, "error", err)
		return err
	}
	return nil
}

// SendInteractive sends a menu rendered as a numbered list. Users reply
// with the item number or the item id.
func (s *SenderService) SendInteractive(ctx context.Context, to string, body string, items []models.MenuItem, buttonText string) error {
	var b strings.Builder
	b.WriteString(body)
	if buttonText != "" {
		b.WriteString("\n\n")
		b.WriteString(buttonText)
	}
	for i, item := range items {
		b.WriteString(fmt.Sprintf("\n%d. %s", i+1, item.Title))
		if item.Description != "" {
			b.WriteString(" — ")
			b.WriteString(item.Description)
		}
	}
	slog.Debug("Messaging SendInteractive", "channel", s.channel, "to", to, "items", len(items))
	if err := s.sender.SendMessage(ctx, to, b.String()); err != nil {
		slog.Error("Messaging SendInteractive failed", "channel", s.channel, "to", to, "error", err)
		return err
	}
	return nil
}
