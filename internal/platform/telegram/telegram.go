// Package telegram is the messaging platform adapter (C10's event
// source and the engine's only outbound send path), adapted from the
// teacher's Telegram Bot API channel: webhook payloads are parsed into
// a minimal IncomingMessage, outgoing alerts are sent as HTML text.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/chatsla/sentinel/internal/notify"
)

// ChatKind mirrors store.ChatKind without importing internal/store,
// keeping this adapter usable independent of the persistence layer.
type ChatKind string

const (
	ChatPrivate    ChatKind = "private"
	ChatGroup      ChatKind = "group"
	ChatSupergroup ChatKind = "supergroup"
)

// ReplyTo identifies the message an inbound text is replying to, when
// present.
type ReplyTo struct {
	MessageID int64
}

// IncomingMessage is the normalized inbound event C10's pipeline
// consumes, matching spec.md §6's text_message shape.
type IncomingMessage struct {
	ChatID    int64
	ChatTitle string
	Kind      ChatKind
	MessageID int64
	FromID    int64
	Username  string
	FirstName string
	LastName  string
	Text      string
	ReplyTo   *ReplyTo
	At        time.Time
}

// Bot wraps the Telegram Bot API client for both inbound webhook
// parsing and outbound sends. It implements notify.TelegramSender.
type Bot struct {
	api *tgbotapi.BotAPI
}

func New(botToken string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	return &Bot{api: api}, nil
}

var _ notify.TelegramSender = (*Bot)(nil)

// ParseUpdate parses a raw Telegram webhook payload into an
// IncomingMessage. It returns (nil, nil) for updates C10 does not act
// on (non-text updates, messages in private chats).
func (b *Bot) ParseUpdate(payload []byte) (*IncomingMessage, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(payload, &update); err != nil {
		return nil, fmt.Errorf("telegram: parse webhook payload: %w", err)
	}

	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.Text == "" {
		return nil, nil
	}

	kind := chatKind(msg.Chat)
	if kind == ChatPrivate {
		// spec.md §4.10: ingress acts on groups/supergroups only.
		return nil, nil
	}

	out := &IncomingMessage{
		ChatID:    msg.Chat.ID,
		ChatTitle: msg.Chat.Title,
		Kind:      kind,
		MessageID: int64(msg.MessageID),
		Text:      msg.Text,
		At:        time.Unix(int64(msg.Date), 0),
	}
	if msg.From != nil {
		out.FromID = msg.From.ID
		out.Username = msg.From.UserName
		out.FirstName = msg.From.FirstName
		out.LastName = msg.From.LastName
	}
	if msg.ReplyToMessage != nil {
		out.ReplyTo = &ReplyTo{MessageID: int64(msg.ReplyToMessage.MessageID)}
	}
	return out, nil
}

func chatKind(c *tgbotapi.Chat) ChatKind {
	switch {
	case c == nil:
		return ChatPrivate
	case c.IsSuperGroup():
		return ChatSupergroup
	case c.IsGroup():
		return ChatGroup
	default:
		return ChatPrivate
	}
}

// SendToChat posts an HTML-formatted message in-chat, used for
// NotifyInChatOnBreach.
func (b *Bot) SendToChat(ctx context.Context, chatID int64, html string) error {
	return b.sendHTML(ctx, chatID, html)
}

// SendToUserID sends a direct message to a Telegram user ID. The
// Telegram Bot API can only message a user after that user has
// started a conversation with the bot; a failure here is logged and
// swallowed by the caller rather than retried indefinitely.
func (b *Bot) SendToUserID(ctx context.Context, userID int64, html string) error {
	return b.sendHTML(ctx, userID, html)
}

// SendToUsername resolves a bare @username to a chat by attempting a
// direct send; Telegram does not expose a username->ID lookup without
// the user having interacted with the bot, so this is best-effort.
func (b *Bot) SendToUsername(ctx context.Context, username, html string) error {
	username = strings.TrimPrefix(username, "@")
	if username == "" {
		return fmt.Errorf("telegram: empty username")
	}
	msg := tgbotapi.NewMessageToChannel("@"+username, stripHTML(html))
	_, err := b.api.Send(msg)
	if err != nil {
		slog.Warn("telegram: send to username failed", "username", username, "error", err)
		return fmt.Errorf("telegram: send to @%s: %w", username, err)
	}
	return nil
}

func (b *Bot) sendHTML(ctx context.Context, chatID int64, html string) error {
	msg := tgbotapi.NewMessage(chatID, html)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	if err != nil {
		return fmt.Errorf("telegram: send to chat %d: %w", chatID, err)
	}
	return nil
}

// stripHTML is a last-resort fallback for send paths (broadcast by
// channel username) that don't accept parseMode; Telegram just shows
// the raw tags otherwise, so plain text reads better than broken markup.
func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
