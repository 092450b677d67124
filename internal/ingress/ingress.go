// Package ingress implements the ingress pipeline (C10): the single
// entry point for inbound platform events, gating by chat config and
// branching into the responder path (C5 + C6 + C8 stop) or the client
// path (C4 + C6 create + C8 start), per spec.md §4.10.
//
// Every step is wrapped so no panic or error crosses back into the
// platform adapter, which would otherwise retry the webhook delivery
// and double-process the message.
package ingress

import (
	"context"
	"log/slog"
	"time"

	"github.com/chatsla/sentinel/internal/classifier"
	"github.com/chatsla/sentinel/internal/lifecycle"
	"github.com/chatsla/sentinel/internal/metrics"
	"github.com/chatsla/sentinel/internal/platform/telegram"
	"github.com/chatsla/sentinel/internal/responder"
	"github.com/chatsla/sentinel/internal/settings"
	"github.com/chatsla/sentinel/internal/slatimer"
	"github.com/chatsla/sentinel/internal/store"
)

// Store is the subset of persistence the pipeline needs directly (the
// rest is reached through the C5/C6/C8 collaborators).
type Store interface {
	GetChat(ctx context.Context, id int64) (*store.Chat, error)
	CreateRequest(ctx context.Context, r *store.Request) error
}

// Pipeline wires C5 (responder), C4 (classifier), C6 (lifecycle), and
// C8 (timer service) into the single per-message entry point.
type Pipeline struct {
	st         Store
	identifier *responder.Identifier
	classify   *classifier.Client
	engine     *lifecycle.Engine
	timer      *slatimer.Service
	settings   *settings.Resolver
}

func New(st Store, identifier *responder.Identifier, classify *classifier.Client, engine *lifecycle.Engine, timer *slatimer.Service, settingsResolver *settings.Resolver) *Pipeline {
	return &Pipeline{st: st, identifier: identifier, classify: classify, engine: engine, timer: timer, settings: settingsResolver}
}

// HandleMessage runs the full §4.10 pipeline for one inbound text
// message. It never returns an error to the platform adapter; all
// failures are logged and swallowed so the adapter does not retry and
// double-process the delivery.
func (p *Pipeline) HandleMessage(ctx context.Context, msg *telegram.IncomingMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("ingress: recovered panic", "panic", r)
		}
	}()
	if msg == nil {
		return
	}
	if msg.Kind == telegram.ChatPrivate {
		// spec.md §4.10: groups/supergroups only.
		return
	}
	metrics.MessagesReceived.WithLabelValues(string(msg.Kind)).Inc()

	chat, err := p.st.GetChat(ctx, msg.ChatID)
	if err != nil {
		slog.Error("ingress: load chat failed", "chatID", msg.ChatID, "error", err)
		return
	}
	if chat == nil || chat.DeletedAt != nil || !chat.MonitoringEnabled {
		return
	}

	// Step 2: persist the raw message for observability. This build
	// logs it structurally rather than writing a ChatMessage row (no
	// such table exists in this engine's schema); failures here never
	// abort the pipeline.
	logRawMessage(msg)

	identity := responder.Identity{UserID: msg.FromID, Username: msg.Username}
	result := p.identifier.IsAccountantForChat(ctx, msg.ChatID, identity)

	if result.IsAccountant {
		p.handleResponderBranch(ctx, chat, msg, result)
		return
	}
	p.handleClientBranch(ctx, chat, msg)
}

func (p *Pipeline) handleResponderBranch(ctx context.Context, chat *store.Chat, msg *telegram.IncomingMessage, ident responder.Result) {
	target, err := p.engine.MatchTarget(ctx, msg.ChatID, replyToID(msg))
	if err != nil {
		slog.Error("ingress: match target failed", "chatID", msg.ChatID, "error", err)
		return
	}
	if target == nil {
		slog.Debug("ingress: responder message matched no claimable request", "chatID", msg.ChatID)
		return
	}

	threshold := p.settings.SLAThreshold(ctx, chat)
	respondedBy := ident.AccountantID
	if respondedBy == "" {
		respondedBy = msg.Username
	}

	res, err := p.timer.StopSlaTimer(ctx, target, msg.ChatID, msg.At, msg.MessageID, respondedBy, threshold, store.AuditContext{
		ChangedBy: respondedBy,
		Reason:    "responder reply",
	})
	if err != nil {
		slog.Error("ingress: stop sla timer failed", "requestID", target.ID, "error", err)
		return
	}
	if !res.Claimed {
		slog.Debug("ingress: race lost claiming request, another responder already answered", "requestID", target.ID)
		return
	}
	slog.Info("ingress: request claimed", "requestID", target.ID, "chatID", msg.ChatID, "breached", res.Breached)
}

func (p *Pipeline) handleClientBranch(ctx context.Context, chat *store.Chat, msg *telegram.IncomingMessage) {
	result, err := p.classify.Classify(ctx, msg.Text, nil)
	if err != nil {
		metrics.ClassifierErrors.Inc()
		slog.Warn("ingress: classification failed, dropping message", "chatID", msg.ChatID, "error", err)
		return
	}
	metrics.ClassificationsTotal.WithLabelValues(string(result.Classification)).Inc()

	switch result.Classification {
	case store.ClassificationSpam, store.ClassificationGratitude:
		slog.Debug("ingress: message classified, no request created", "chatID", msg.ChatID, "label", result.Classification)
		return
	case store.ClassificationRequest, store.ClassificationClarification:
		status := store.StatusPending
		if result.Classification == store.ClassificationClarification {
			status = store.StatusAnswered
		}
		req := &store.Request{
			ChatID:              msg.ChatID,
			MessageID:           msg.MessageID,
			MessageText:         msg.Text,
			ClientUsername:      usernamePtr(msg.Username),
			Classification:      result.Classification,
			ClassificationScore: result.Confidence,
			Status:              status,
			ReceivedAt:          msg.At,
		}
		if err := p.st.CreateRequest(ctx, req); err != nil {
			slog.Error("ingress: create request failed", "chatID", msg.ChatID, "error", err)
			return
		}
		metrics.RequestsCreated.WithLabelValues(string(status)).Inc()
		if status != store.StatusPending {
			return
		}
		threshold := p.settings.SLAThreshold(ctx, chat)
		gs := p.settings.Global(ctx)
		if err := p.timer.StartSlaTimer(ctx, req.ID, msg.ChatID, req.ReceivedAt, threshold, gs.SLAWarningPercent); err != nil {
			slog.Error("ingress: start sla timer failed", "requestID", req.ID, "error", err)
		}
	default:
		slog.Warn("ingress: unrecognized classification", "chatID", msg.ChatID, "label", result.Classification)
	}
}

func replyToID(msg *telegram.IncomingMessage) *int64 {
	if msg.ReplyTo == nil {
		return nil
	}
	id := msg.ReplyTo.MessageID
	return &id
}

func usernamePtr(u string) *string {
	if u == "" {
		return nil
	}
	return &u
}

func logRawMessage(msg *telegram.IncomingMessage) {
	slog.Debug("ingress: raw message",
		"chatID", msg.ChatID,
		"messageID", msg.MessageID,
		"fromID", msg.FromID,
		"username", msg.Username,
		"at", msg.At.Format(time.RFC3339),
	)
}
