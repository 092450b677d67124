// Package slatimer implements the SLA timer service (C8): it enrols a
// request into the job queue at creation, schedules a warning at
// slaWarningPercent of the threshold, cancels both on answer, and
// supports the SPEC_FULL pause/resume extension for the waiting_client
// status (see SPEC_FULL.md §3, grounded on gotrs's TicketSLA pause
// model).
package slatimer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chatsla/sentinel/internal/jobqueue"
	"github.com/chatsla/sentinel/internal/lifecycle"
	"github.com/chatsla/sentinel/internal/store"
	"github.com/chatsla/sentinel/internal/workinghours"
)

// TaskTimer and TaskWarn are the asynq task types dispatched to the
// sla-timer queue; the escalation worker (C9) registers handlers for
// both.
const (
	TaskTimer = "sla:timer"
	TaskWarn  = "sla:warn"
)

// TimerPayload is the JSON body of both TaskTimer and TaskWarn jobs.
type TimerPayload struct {
	RequestID string    `json:"requestId"`
	ChatID    int64     `json:"chatId"`
	IsWarning bool      `json:"isWarning"`
	Threshold int       `json:"thresholdMinutes"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

// ScheduleResolver resolves the effective working-hours schedule for a
// chat, honoring spec.md §4.8's precedence: 24/7 flag, then active
// per-chat WorkingSchedule rows, then global, collapsing an
// all-day-every-day global row to 24/7.
type ScheduleResolver interface {
	ResolveSchedule(ctx context.Context, chatID int64) (*workinghours.Schedule, error)
}

// Queue is the subset of jobqueue.Client the timer service needs.
type Queue interface {
	Enqueue(ctx context.Context, queue, jobID, taskType string, payload []byte, opts jobqueue.EnqueueOptions) error
	Cancel(queue, jobID string) bool
}

// Store is the subset of persistence the timer service needs for stop.
type Store interface {
	GetRequest(ctx context.Context, id string) (*store.Request, error)
}

func timerJobID(requestID string) string { return "timer:" + requestID }
func warnJobID(requestID string) string  { return "warn:" + requestID }

// Service implements startSlaTimer/stopSlaTimer from spec.md §4.8.
type Service struct {
	q        Queue
	schedule ScheduleResolver
	engine   *lifecycle.Engine
	st       Store
}

func New(q Queue, schedule ScheduleResolver, engine *lifecycle.Engine, st Store) *Service {
	return &Service{q: q, schedule: schedule, engine: engine, st: st}
}

// StartSlaTimer enrols a fresh request into the queue: computes
// delayUntilBreach via the resolved schedule and enqueues timer:<id>,
// and if slaWarningPercent > 0, warn:<id> at the proportional delay.
// Re-enqueuing with the same job ID supersedes any prior instance.
func (s *Service) StartSlaTimer(ctx context.Context, requestID string, chatID int64, receivedAt time.Time, thresholdMinutes, slaWarningPercent int) error {
	sched, err := s.schedule.ResolveSchedule(ctx, chatID)
	if err != nil {
		return fmt.Errorf("slatimer: resolve schedule: %w", err)
	}

	now := time.Now()
	delay := sched.DelayUntilBreach(now, receivedAt, thresholdMinutes)

	payload, err := marshalPayload(TimerPayload{RequestID: requestID, ChatID: chatID, Threshold: thresholdMinutes, EnrolledAt: receivedAt})
	if err != nil {
		return err
	}
	if err := s.q.Enqueue(ctx, jobqueue.QueueSLATimer, timerJobID(requestID), TaskTimer, payload, jobqueue.EnqueueOptions{
		DelayMillis: delay.Milliseconds(),
		Attempts:    1, // idempotence per spec.md §4.9: duplicate delivery must be a noop, not a retry multiplier
	}); err != nil {
		return fmt.Errorf("slatimer: enqueue timer: %w", err)
	}

	if slaWarningPercent <= 0 {
		// spec.md §9 open question: the source only guarded the
		// enqueue side. This implementation also guards the handler
		// side explicitly (see internal/escalation).
		return nil
	}

	warnThresholdMinutes := thresholdMinutes * slaWarningPercent / 100
	warnDelay := sched.DelayUntilBreach(now, receivedAt, warnThresholdMinutes)
	warnPayload, err := marshalPayload(TimerPayload{RequestID: requestID, ChatID: chatID, IsWarning: true, Threshold: warnThresholdMinutes, EnrolledAt: receivedAt})
	if err != nil {
		return err
	}
	if err := s.q.Enqueue(ctx, jobqueue.QueueSLATimer, warnJobID(requestID), TaskWarn, warnPayload, jobqueue.EnqueueOptions{
		DelayMillis: warnDelay.Milliseconds(),
		Attempts:    1,
	}); err != nil {
		return fmt.Errorf("slatimer: enqueue warn: %w", err)
	}
	return nil
}

// StopResult is returned by StopSlaTimer.
type StopResult struct {
	Claimed        bool
	WorkingMinutes int
	Breached       bool
}

// StopSlaTimer cancels both timer:<id> and warn:<id>, computes
// responseTimeMinutes via the resolved schedule, and atomically claims
// the request. Claimed=false with a nil error means slaerr.RaceLost.
func (s *Service) StopSlaTimer(ctx context.Context, req *store.Request, chatID int64, responseAt time.Time, responseMessageID int64, respondedBy string, thresholdMinutes int, ac store.AuditContext) (*StopResult, error) {
	s.q.Cancel(jobqueue.QueueSLATimer, timerJobID(req.ID))
	s.q.Cancel(jobqueue.QueueSLATimer, warnJobID(req.ID))

	sched, err := s.schedule.ResolveSchedule(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("slatimer: resolve schedule: %w", err)
	}
	workingMinutes := sched.WorkingMinutesBetween(req.ReceivedAt, responseAt)

	ok, err := s.engine.ClaimResponse(ctx, req, responseAt, responseMessageID, respondedBy, workingMinutes, ac)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Debug("slatimer: race lost claiming request", "requestID", req.ID)
		return &StopResult{Claimed: false}, nil
	}
	return &StopResult{
		Claimed:        true,
		WorkingMinutes: workingMinutes,
		Breached:       workingMinutes >= thresholdMinutes,
	}, nil
}

// Pause cancels the live timer without answering the request (the
// SPEC_FULL waiting_client extension): the clock stops accumulating
// until Resume re-enrols a fresh timer computed from the remaining
// threshold.
func (s *Service) Pause(ctx context.Context, req *store.Request, chatID int64, thresholdMinutes int) (pausedMinutes int, err error) {
	s.q.Cancel(jobqueue.QueueSLATimer, timerJobID(req.ID))
	s.q.Cancel(jobqueue.QueueSLATimer, warnJobID(req.ID))

	sched, err := s.schedule.ResolveSchedule(ctx, chatID)
	if err != nil {
		return 0, fmt.Errorf("slatimer: resolve schedule: %w", err)
	}
	elapsed := sched.WorkingMinutesBetween(req.ReceivedAt, time.Now())
	return req.PausedWorkingMinutes + elapsed, nil
}

// Resume re-enrols a fresh timer using the remaining threshold
// (threshold - pausedWorkingMinutes), anchored to now so the clock
// resumes from where it left off instead of restarting.
func (s *Service) Resume(ctx context.Context, requestID string, chatID int64, thresholdMinutes, pausedWorkingMinutes, slaWarningPercent int) error {
	remaining := thresholdMinutes - pausedWorkingMinutes
	if remaining < 0 {
		remaining = 0
	}
	return s.StartSlaTimer(ctx, requestID, chatID, time.Now(), remaining, slaWarningPercent)
}

func marshalPayload(p TimerPayload) ([]byte, error) {
	return json.Marshal(p)
}
