// Package notify resolves and delivers escalation alerts to their
// recipients. The resolver (internal/settings) hands back plain
// recipient identifiers; Router below classifies each one (an in-chat
// target, a Telegram user, a Telegram username) and, independent of
// the per-recipient fan-out, fires the ops-facing channels (PagerDuty,
// generic webhook) exactly once per alert.
package notify

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/chatsla/sentinel/internal/notify/format"
	"github.com/chatsla/sentinel/internal/store"
)

// AlertMessage is the channel-agnostic payload handed to a Dispatcher.
type AlertMessage struct {
	ChatID         int64
	ChatTitle      string
	RequestID      string
	AlertType      store.AlertType
	Level          int
	MinutesElapsed int
	RecipientTier  string
	AckToken       string
	InChat         bool
}

// Dispatcher sends a resolved Alert to one recipient over whichever
// notification channel applies to that recipient identifier.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipient string, alert AlertMessage) error
}

// TelegramSender is the subset of internal/platform/telegram's bot
// wrapper Router needs to deliver text alerts.
type TelegramSender interface {
	SendToChat(ctx context.Context, chatID int64, html string) error
	SendToUserID(ctx context.Context, userID int64, html string) error
	SendToUsername(ctx context.Context, username, html string) error
}

// OpsNotifier is implemented by the PagerDuty and webhook channels,
// both of which are fired once per alert rather than once per
// recipient.
type OpsNotifier interface {
	Notify(ctx context.Context, alert AlertMessage, summary string) error
}

// Router is the Dispatcher wired into the escalation worker. Telegram
// delivery happens once per resolved recipient (accountant, manager,
// or in-chat); the ops channels are deduplicated per (RequestID,
// Level) so a 5-recipient fan-out still pages on-call exactly once.
type Router struct {
	tg TelegramSender
	pd OpsNotifier // nil if PagerDuty is not configured
	wh OpsNotifier // nil if the webhook channel is not configured

	fired sync.Map // dedupe key -> struct{}
}

func NewRouter(tg TelegramSender, pd, wh OpsNotifier) *Router {
	return &Router{tg: tg, pd: pd, wh: wh}
}

func (r *Router) Dispatch(ctx context.Context, recipient string, alert AlertMessage) error {
	html := format.RenderAlertHTML(alertTemplateInput(alert))

	var sendErr error
	switch {
	case strings.HasPrefix(recipient, "chat:"):
		id, err := strconv.ParseInt(strings.TrimPrefix(recipient, "chat:"), 10, 64)
		if err != nil {
			sendErr = err
			break
		}
		sendErr = r.tg.SendToChat(ctx, id, html)
	case strings.HasPrefix(recipient, "tg:"):
		id, err := strconv.ParseInt(strings.TrimPrefix(recipient, "tg:"), 10, 64)
		if err != nil {
			sendErr = err
			break
		}
		sendErr = r.tg.SendToUserID(ctx, id, html)
	default:
		if id, err := strconv.ParseInt(recipient, 10, 64); err == nil {
			sendErr = r.tg.SendToUserID(ctx, id, html)
		} else {
			sendErr = r.tg.SendToUsername(ctx, recipient, html)
		}
	}

	r.fireOpsChannelsOnce(ctx, alert, format.RenderAlertPlain(alertTemplateInput(alert)))
	return sendErr
}

func (r *Router) fireOpsChannelsOnce(ctx context.Context, alert AlertMessage, summary string) {
	if alert.AlertType != store.AlertBreach {
		return
	}
	key := alert.RequestID + ":" + strconv.Itoa(alert.Level)
	if _, loaded := r.fired.LoadOrStore(key, struct{}{}); loaded {
		return
	}
	if r.pd != nil {
		if err := r.pd.Notify(ctx, alert, summary); err != nil {
			slog.Warn("notify: pagerduty dispatch failed", "requestID", alert.RequestID, "error", err)
		}
	}
	if r.wh != nil {
		if err := r.wh.Notify(ctx, alert, summary); err != nil {
			slog.Warn("notify: webhook dispatch failed", "requestID", alert.RequestID, "error", err)
		}
	}
}

func alertTemplateInput(a AlertMessage) format.AlertData {
	return format.AlertData{
		ChatTitle:      a.ChatTitle,
		RequestID:      a.RequestID,
		AlertType:      string(a.AlertType),
		Level:          a.Level,
		MinutesElapsed: a.MinutesElapsed,
		RecipientTier:  a.RecipientTier,
		AckToken:       a.AckToken,
	}
}
