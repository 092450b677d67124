// Package escalation: escalation.go implements the §4.9 handler body for
// both sla-timer job types (warn and breach). Dispatch fan-out to
// resolved recipients runs concurrently via golang.org/x/sync/errgroup,
// matching the teacher's use of errgroup-style fan-out elsewhere in the
// corpus's worker code.
package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/errgroup"

	"github.com/chatsla/sentinel/internal/jobqueue"
	"github.com/chatsla/sentinel/internal/metrics"
	"github.com/chatsla/sentinel/internal/notify"
	"github.com/chatsla/sentinel/internal/settings"
	"github.com/chatsla/sentinel/internal/slatimer"
	"github.com/chatsla/sentinel/internal/store"
	"github.com/chatsla/sentinel/internal/workinghours"
)

// Store is the subset of persistence the worker needs.
type Store interface {
	GetRequest(ctx context.Context, id string) (*store.Request, error)
	GetChat(ctx context.Context, id int64) (*store.Chat, error)
	InsertAlert(ctx context.Context, a *store.Alert) (bool, error)
	CurrentEscalationLevel(ctx context.Context, requestID string, alertType store.AlertType) (int, error)
	UpdateRequestRaw(ctx context.Context, id string, patch *store.RequestPatch, ac store.AuditContext) error
}

// Queue is the subset of jobqueue.Client the worker needs to re-arm or
// re-enqueue timers.
type Queue interface {
	Enqueue(ctx context.Context, queue, jobID, taskType string, payload []byte, opts jobqueue.EnqueueOptions) error
}

// Dispatcher sends a resolved Alert to one recipient over whichever
// notification channel applies to that recipient identifier.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipient string, alert notify.AlertMessage) error
}

// Worker handles TaskWarn and TaskTimer jobs from the sla-timer queue.
type Worker struct {
	st       Store
	q        Queue
	settings *settings.Resolver
	schedule slatimer.ScheduleResolver
	dispatch Dispatcher
}

func New(st Store, q Queue, settingsResolver *settings.Resolver, schedule slatimer.ScheduleResolver, dispatch Dispatcher) *Worker {
	return &Worker{st: st, q: q, settings: settingsResolver, schedule: schedule, dispatch: dispatch}
}

// HandleWarn processes a warn:<id> firing. Per spec.md §9's open
// question, slaWarningPercent=0 is re-checked here too (handler-side
// guard), not just at enqueue time.
func (w *Worker) HandleWarn(ctx context.Context, payload []byte) error {
	var p slatimer.TimerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("escalation: unmarshal warn payload: %w", err)
	}
	if w.settings.Global(ctx).SLAWarningPercent <= 0 {
		slog.Debug("escalation: warnings disabled, dropping warn job", "requestID", p.RequestID)
		return nil
	}
	return w.fire(ctx, p, store.AlertWarning)
}

// HandleBreach processes a timer:<id> firing.
func (w *Worker) HandleBreach(ctx context.Context, payload []byte) error {
	var p slatimer.TimerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("escalation: unmarshal breach payload: %w", err)
	}
	return w.fire(ctx, p, store.AlertBreach)
}

func (w *Worker) fire(ctx context.Context, p slatimer.TimerPayload, alertType store.AlertType) error {
	// Step 1: load the Request. Absent -> drop silently.
	req, err := w.st.GetRequest(ctx, p.RequestID)
	if err != nil {
		return fmt.Errorf("escalation: load request %s: %w", p.RequestID, err)
	}
	if req == nil {
		slog.Debug("escalation: request gone, dropping job", "requestID", p.RequestID)
		return nil
	}

	// Step 2: if already resolved, drop.
	if !isClaimable(req.Status) {
		slog.Debug("escalation: request no longer claimable, dropping", "requestID", req.ID, "status", req.Status)
		return nil
	}

	chat, err := w.st.GetChat(ctx, p.ChatID)
	if err != nil {
		return fmt.Errorf("escalation: load chat %d: %w", p.ChatID, err)
	}
	if chat == nil {
		return nil
	}

	sched, err := w.schedule.ResolveSchedule(ctx, p.ChatID)
	if err != nil {
		return fmt.Errorf("escalation: resolve schedule: %w", err)
	}

	// Step 3: recompute elapsed working minutes. If a schedule edit
	// means we're firing early, re-enqueue rather than act.
	elapsed := sched.WorkingMinutesBetween(req.ReceivedAt, time.Now())
	if elapsed < p.Threshold {
		return w.reenqueue(ctx, p, alertType, sched, req.ReceivedAt)
	}

	// Step 4: resolve recipients for level = currentEscalationLevel + 1.
	// Warning and breach alerts keep independent level sequences (the
	// unique index is (requestID, level, alertType)), so the lookup must
	// be scoped to this firing's alertType.
	currentLevel, err := w.st.CurrentEscalationLevel(ctx, req.ID, alertType)
	if err != nil {
		return fmt.Errorf("escalation: current level: %w", err)
	}
	level := currentLevel + 1

	recipients, tier := w.settings.RecipientsByLevel(ctx, chat.ManagerTelegramIDs, accountantStrings(chat), level)

	// Step 5: insert the Alert row, conditional on (requestID, level,
	// alertType) for idempotence under at-least-once delivery (step 8
	// of spec.md §4.9 / the dedup key named in §9).
	alert := &store.Alert{
		RequestID:      req.ID,
		AlertType:      alertType,
		Level:          level,
		MinutesElapsed: elapsed,
		AlertSentAt:    time.Now(),
		Recipients:     recipients,
		AckToken:       newAckToken(),
	}
	created, err := w.st.InsertAlert(ctx, alert)
	if err != nil {
		return fmt.Errorf("escalation: insert alert: %w", err)
	}
	if !created {
		// Already recorded by a prior delivery attempt: the retry is a
		// noop past this point, matching spec.md §4.9's idempotence
		// requirement.
		slog.Debug("escalation: alert already recorded, skipping re-dispatch", "requestID", req.ID, "level", level, "type", alertType)
		return nil
	}
	metrics.AlertsFired.WithLabelValues(string(alertType), strconv.Itoa(level)).Inc()

	clientTier := ""
	if chat.ClientTier != nil {
		clientTier = string(*chat.ClientTier)
	}
	gated := Gate(chat.EscalationGateExpr(), GateInput{
		ClientTier:     clientTier,
		MinutesElapsed: elapsed,
		Level:          level,
		AlertType:      string(alertType),
	})

	// Step 6: fan out dispatch, one concurrent Dispatch call per
	// recipient made directly from this handler (no alert-dispatch jobs
	// are enqueued), unless the per-chat CEL gate suppresses it. The
	// Alert/bookkeeping above still happened unconditionally.
	if gated {
		if err := w.dispatchAll(ctx, recipients, notify.AlertMessage{
			ChatID:         p.ChatID,
			ChatTitle:      chat.Title,
			RequestID:      req.ID,
			AlertType:      alertType,
			Level:          level,
			MinutesElapsed: elapsed,
			RecipientTier:  string(tier),
			AckToken:       alert.AckToken,
		}); err != nil {
			metrics.EscalationDispatchFailures.WithLabelValues("fanout").Inc()
			slog.Warn("escalation: dispatch fan-out had failures", "requestID", req.ID, "error", err)
		}
	} else {
		slog.Debug("escalation: CEL gate suppressed dispatch", "requestID", req.ID, "level", level)
	}

	// Step 7: for breaches, set Request.slaBreached via the audited
	// update.
	if alertType == store.AlertBreach {
		breached := true
		if err := w.st.UpdateRequestRaw(ctx, req.ID, &store.RequestPatch{SLABreached: &breached}, store.AuditContext{
			ChangedBy: "escalation-worker",
			Reason:    fmt.Sprintf("breach level %d", level),
		}); err != nil {
			return fmt.Errorf("escalation: mark breached: %w", err)
		}
		metrics.BreachesTotal.Inc()
	}

	// Step 8: re-arm the next escalation, working-time delayed, up to
	// the escalation cap.
	gs := w.settings.Global(ctx)
	if alertType == store.AlertBreach && level < gs.MaxEscalations {
		nextDelay := sched.AddWorkingMinutes(time.Now(), gs.EscalationIntervalMin).Sub(time.Now())
		payload, _ := json.Marshal(slatimer.TimerPayload{RequestID: req.ID, ChatID: p.ChatID, Threshold: p.Threshold, EnrolledAt: req.ReceivedAt})
		if err := w.q.Enqueue(ctx, jobqueue.QueueSLATimer, "timer:"+req.ID, slatimer.TaskTimer, payload, jobqueue.EnqueueOptions{
			DelayMillis: nextDelay.Milliseconds(),
			Attempts:    1,
		}); err != nil {
			return fmt.Errorf("escalation: re-arm next escalation: %w", err)
		}
	}

	// Step 9: in-chat notification.
	if chat.NotifyInChatOnBreach && alertType == store.AlertBreach {
		if err := w.dispatch.Dispatch(ctx, fmt.Sprintf("chat:%d", p.ChatID), notify.AlertMessage{
			ChatID:         p.ChatID,
			ChatTitle:      chat.Title,
			RequestID:      req.ID,
			AlertType:      alertType,
			Level:          level,
			MinutesElapsed: elapsed,
			InChat:         true,
		}); err != nil {
			slog.Warn("escalation: in-chat notify failed", "chatID", p.ChatID, "error", err)
		}
	}

	return nil
}

func (w *Worker) reenqueue(ctx context.Context, p slatimer.TimerPayload, alertType store.AlertType, sched *workinghours.Schedule, receivedAt time.Time) error {
	delay := sched.DelayUntilBreach(time.Now(), receivedAt, p.Threshold)
	taskType, jobID := slatimer.TaskTimer, "timer:"+p.RequestID
	if alertType == store.AlertWarning {
		taskType, jobID = slatimer.TaskWarn, "warn:"+p.RequestID
	}
	payload, _ := json.Marshal(p)
	return w.q.Enqueue(ctx, jobqueue.QueueSLATimer, jobID, taskType, payload, jobqueue.EnqueueOptions{
		DelayMillis: delay.Milliseconds(),
		Attempts:    1,
	})
}

func (w *Worker) dispatchAll(ctx context.Context, recipients []string, msg notify.AlertMessage) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range recipients {
		r := r
		g.Go(func() error {
			return w.dispatch.Dispatch(gctx, r, msg)
		})
	}
	return g.Wait()
}

func isClaimable(s store.RequestStatus) bool {
	switch s {
	case store.StatusPending, store.StatusInProgress, store.StatusWaitingClient, store.StatusTransferred, store.StatusEscalated:
		return true
	default:
		return false
	}
}

func accountantStrings(chat *store.Chat) []string {
	out := make([]string, 0, len(chat.AccountantTelegramIDs)+len(chat.AccountantUsernames))
	for _, id := range chat.AccountantTelegramIDs {
		out = append(out, fmt.Sprintf("tg:%d", id))
	}
	out = append(out, chat.AccountantUsernames...)
	return out
}

// newAckToken generates a short, human-shareable token an operator can
// quote back (e.g. in a chat reply or ticket) to acknowledge an Alert,
// distinct from the Request/Alert UUIDs used internally.
func newAckToken() string {
	return shortuuid.New()
}
