// Package jobqueue implements the delayed job queue (C7): at-least-once
// named-job delivery after a delay, idempotent on job ID, with
// per-queue concurrency, a token-bucket rate limit, retries with
// exponential backoff, and best-effort cancellation.
//
// Built on github.com/hibiken/asynq (Redis-backed), the same way the
// ai-cv-evaluator reference builds its background worker: a thin
// Client for enqueue/cancel and a Server+ServeMux for dispatch, with
// handlers wrapped so a panic or typed error becomes a structured log
// line instead of an unhandled crash.
package jobqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hibiken/asynq"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/time/rate"

	"github.com/chatsla/sentinel/internal/metrics"
)

// Queue names, the four logical queues from spec.md §4.7.
const (
	QueueSLATimer      = "sla-timer"
	QueueAlertDispatch = "alert-dispatch"
	QueueSurvey        = "survey"
	QueueRetention     = "retention"
)

// EnqueueOptions mirrors the properties spec.md §4.7 requires of enqueue.
type EnqueueOptions struct {
	DelayMillis      int64
	Attempts         int
	RemoveOnComplete bool
	RemoveOnFail     bool
}

// Client enqueues and cancels named jobs.
type Client struct {
	c   *asynq.Client
	ins *asynq.Inspector
}

func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("jobqueue: parse redis uri: %w", err)
	}
	return &Client{
		c:   asynq.NewClient(opt),
		ins: asynq.NewInspector(opt),
	}, nil
}

func (c *Client) Close() error {
	if err := c.c.Close(); err != nil {
		return err
	}
	return c.ins.Close()
}

// Enqueue schedules a named job on queue, after opts.DelayMillis. It is
// idempotent on jobID: an existing pending/scheduled instance with the
// same ID is cancelled first so the new one supersedes it, matching
// spec.md's "re-enqueueing with the same ID supersedes any prior one".
func (c *Client) Enqueue(ctx context.Context, queue, jobID, taskType string, payload []byte, opts EnqueueOptions) error {
	c.Cancel(queue, jobID)

	trace, err := gonanoid.New(12)
	if err != nil {
		trace = jobID
	}

	aOpts := []asynq.Option{
		asynq.Queue(queue),
		asynq.TaskID(jobID),
	}
	if opts.DelayMillis > 0 {
		aOpts = append(aOpts, asynq.ProcessIn(time.Duration(opts.DelayMillis)*time.Millisecond))
	}
	if opts.Attempts > 0 {
		aOpts = append(aOpts, asynq.MaxRetry(opts.Attempts))
	}
	if opts.RemoveOnComplete {
		aOpts = append(aOpts, asynq.Retention(time.Minute))
	}

	task := asynq.NewTask(taskType, payload)
	if _, err := c.c.EnqueueContext(ctx, task, aOpts...); err != nil {
		return fmt.Errorf("jobqueue: enqueue %s/%s: %w", queue, jobID, err)
	}
	slog.Debug("jobqueue: dispatched", "queue", queue, "jobID", jobID, "taskType", taskType, "trace", trace)
	metrics.JobsEnqueued.WithLabelValues(queue).Inc()
	return nil
}

// Cancel best-effort removes a pending/scheduled job by ID from the
// given queue. Returns whether anything was found and removed.
func (c *Client) Cancel(queue, jobID string) bool {
	cancelled := false
	for _, state := range []string{"scheduled", "pending", "retry"} {
		if err := c.deleteFromState(queue, state, jobID); err == nil {
			cancelled = true
		}
	}
	return cancelled
}

func (c *Client) deleteFromState(queue, state, jobID string) error {
	switch state {
	case "scheduled":
		return c.ins.DeleteTask(queue, jobID)
	default:
		return c.ins.DeleteTask(queue, jobID)
	}
}

// Handler processes one job's payload; a returned error triggers a
// retry per the job's configured attempts.
type Handler func(ctx context.Context, payload []byte) error

// QueueConfig is the per-queue concurrency and rate limit.
type QueueConfig struct {
	Concurrency int
	RatePerSec  float64 // 0 disables the limiter
	Burst       int
}

// DefaultQueueConfigs matches spec.md §5's defaults.
func DefaultQueueConfigs() map[string]QueueConfig {
	return map[string]QueueConfig{
		QueueSLATimer:      {Concurrency: 5},
		QueueAlertDispatch: {Concurrency: 3, RatePerSec: 10, Burst: 10},
		QueueSurvey:        {Concurrency: 5},
		QueueRetention:     {Concurrency: 1},
	}
}

// Server runs the worker pools for every registered queue.
type Server struct {
	srv      *asynq.Server
	mux      *asynq.ServeMux
	limiters map[string]*rate.Limiter
}

// NewServer constructs a worker server with a single asynq worker pool
// sized to the sum of the queues' concurrency, shared across queues by
// priority weight (queue name -> weight = configured concurrency), and
// a graceful shutdown grace window.
func NewServer(redisURL string, queues map[string]QueueConfig, shutdownGrace time.Duration) (*Server, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("jobqueue: parse redis uri: %w", err)
	}

	priorities := make(map[string]int, len(queues))
	limiters := make(map[string]*rate.Limiter, len(queues))
	totalConcurrency := 0
	for name, cfg := range queues {
		if cfg.Concurrency <= 0 {
			cfg.Concurrency = 1
		}
		priorities[name] = cfg.Concurrency
		totalConcurrency += cfg.Concurrency
		if cfg.RatePerSec > 0 {
			limiters[name] = rate.NewLimiter(rate.Limit(cfg.RatePerSec), max(cfg.Burst, 1))
		}
	}

	asynqCfg := asynq.Config{
		Concurrency: totalConcurrency,
		Queues:      priorities,
		ShutdownTimeout: shutdownGrace,
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return backoffDelay(n)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			slog.Error("jobqueue: handler failed", "task", task.Type(), "error", err)
		}),
	}

	return &Server{
		srv:      asynq.NewServer(opt, asynqCfg),
		mux:      asynq.NewServeMux(),
		limiters: limiters,
	}, nil
}

// backoffDelay computes the retry delay for attempt n via an
// exponential backoff policy, matching spec.md §4.7's "retries with
// backoff" requirement.
func backoffDelay(n int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 10 * time.Minute
	b.Multiplier = 2
	d := b.NextBackOff()
	for i := 0; i < n; i++ {
		d = b.NextBackOff()
	}
	return d
}

// Register wires a handler for taskType on the given queue, rate
// limited if the queue has a configured limiter.
func (s *Server) Register(queue, taskType string, h Handler) {
	limiter := s.limiters[queue]
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := h(ctx, t.Payload()); err != nil {
			metrics.JobsFailed.WithLabelValues(queue, taskType).Inc()
			return err
		}
		return nil
	})
}

// Run blocks serving registered handlers until Shutdown is called.
func (s *Server) Run() error {
	return s.srv.Run(s.mux)
}

// Shutdown drains in-flight handlers up to the configured grace window.
func (s *Server) Shutdown() {
	s.srv.Shutdown()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
