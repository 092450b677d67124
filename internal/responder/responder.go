// Package responder implements the responder identifier (C5): it
// decides whether an incoming message's author is an accountant
// (responder) for the given chat via four ordered rules, each
// expressed as a small predicate per spec.md §9's redesign note.
package responder

import (
	"context"
	"log/slog"
	"strings"

	"github.com/chatsla/sentinel/internal/store"
)

// Store is the subset of the persistence layer the identifier needs.
type Store interface {
	GetChat(ctx context.Context, id int64) (*store.Chat, error)
}

// Identifier evaluates the ordered accountant checks for a chat.
type Identifier struct {
	st Store
}

func New(st Store) *Identifier {
	return &Identifier{st: st}
}

// Identity is the author of an inbound message, as delivered by the
// platform adapter.
type Identity struct {
	UserID   int64
	Username string // optional, without leading "@"
}

// Result reports whether the identity resolved to an accountant, and
// which accountant ID (if any) to attribute the response to.
type Result struct {
	IsAccountant bool
	AccountantID string // empty if unresolved
}

// predicate is one ordered check: (chat, identity) -> matched accountant ID, or no match.
type predicate func(chat *store.Chat, id Identity) (string, bool)

// byTelegramID implements rule 0: userID in the chat's accountant ID set.
func byTelegramID(chat *store.Chat, id Identity) (string, bool) {
	if id.UserID == 0 {
		return "", false
	}
	for _, a := range chat.AccountantTelegramIDs {
		if a == id.UserID {
			return chatAssignedID(chat), true
		}
	}
	return "", false
}

// byAssignedTelegramID implements rule 1: userID matches the assigned
// accountant's telegram ID.
func byAssignedTelegramID(chat *store.Chat, id Identity) (string, bool) {
	if id.UserID == 0 || chat.AssignedAccountant == nil || chat.AssignedAccountant.TelegramID == nil {
		return "", false
	}
	if *chat.AssignedAccountant.TelegramID == id.UserID {
		return chat.AssignedAccountant.ID, true
	}
	return "", false
}

// byUsernameSet implements rule 2: folded username in the chat's
// accountant username set (fallback, fold-compared).
func byUsernameSet(chat *store.Chat, id Identity) (string, bool) {
	if id.Username == "" {
		return "", false
	}
	folded := fold(id.Username)
	for _, u := range chat.AccountantUsernames {
		if fold(u) == folded {
			return chatAssignedID(chat), true
		}
	}
	if chat.AccountantUsername != nil && fold(*chat.AccountantUsername) == folded {
		return chatAssignedID(chat), true
	}
	return "", false
}

// byAssignedUsername implements rule 3: folded username matches the
// assigned accountant's telegram username.
func byAssignedUsername(chat *store.Chat, id Identity) (string, bool) {
	if id.Username == "" || chat.AssignedAccountant == nil || chat.AssignedAccountant.TelegramUsername == nil {
		return "", false
	}
	if fold(*chat.AssignedAccountant.TelegramUsername) == fold(id.Username) {
		return chat.AssignedAccountant.ID, true
	}
	return "", false
}

func chatAssignedID(chat *store.Chat) string {
	if chat.AssignedAccountantID != nil {
		return *chat.AssignedAccountantID
	}
	return ""
}

// fold strips a leading "@" and lower-cases, per spec.md §4.5.
func fold(s string) string {
	s = strings.TrimPrefix(s, "@")
	return strings.ToLower(s)
}

var checks = []struct {
	name string
	fn   predicate
}{
	{"telegram_id_set", byTelegramID},
	{"assigned_telegram_id", byAssignedTelegramID},
	{"username_set", byUsernameSet},
	{"assigned_username", byAssignedUsername},
}

// IsAccountantForChat evaluates the four ordered rules, first match
// wins, logging each outcome. Store failure or an absent chat
// fail-closed: the caller treats the message as client-originated.
func (i *Identifier) IsAccountantForChat(ctx context.Context, chatID int64, id Identity) Result {
	chat, err := i.st.GetChat(ctx, chatID)
	if err != nil {
		slog.Warn("responder: store failure, failing closed", "chatID", chatID, "error", err)
		return Result{}
	}
	if chat == nil {
		return Result{}
	}

	for _, c := range checks {
		if accID, ok := c.fn(chat, id); ok {
			slog.Debug("responder: matched", "chatID", chatID, "rule", c.name, "userID", id.UserID, "username", id.Username)
			return Result{IsAccountant: true, AccountantID: accID}
		}
	}
	slog.Debug("responder: no match, treating as client", "chatID", chatID, "userID", id.UserID, "username", id.Username)
	return Result{}
}
