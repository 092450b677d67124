package slatimer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chatsla/sentinel/internal/jobqueue"
	"github.com/chatsla/sentinel/internal/lifecycle"
	"github.com/chatsla/sentinel/internal/store"
	"github.com/chatsla/sentinel/internal/workinghours"
)

// fakeLifecycleStore backs a lifecycle.Engine with an in-memory request
// table, enough to exercise ClaimResponse's conditional update.
type fakeLifecycleStore struct {
	mu   sync.Mutex
	reqs map[string]*store.Request
}

func (f *fakeLifecycleStore) GetRequest(ctx context.Context, id string) (*store.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[id], nil
}

func (f *fakeLifecycleStore) GetRequestByMessage(ctx context.Context, chatID, messageID int64) (*store.Request, error) {
	return nil, nil
}

func (f *fakeLifecycleStore) ListRequests(ctx context.Context, find *store.FindRequest) ([]*store.Request, error) {
	return nil, nil
}

func (f *fakeLifecycleStore) UpdateIfStatusIn(ctx context.Context, id string, from []store.RequestStatus, patch *store.RequestPatch, ac store.AuditContext) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.reqs[id]
	if !ok {
		return false, nil
	}
	match := false
	for _, s := range from {
		if req.Status == s {
			match = true
			break
		}
	}
	if !match {
		return false, nil
	}
	applyPatch(req, patch)
	return true, nil
}

func (f *fakeLifecycleStore) UpdateRequestRaw(ctx context.Context, id string, patch *store.RequestPatch, ac store.AuditContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.reqs[id]
	if !ok {
		return nil
	}
	applyPatch(req, patch)
	return nil
}

func applyPatch(req *store.Request, patch *store.RequestPatch) {
	if patch.Status != nil {
		req.Status = *patch.Status
	}
	if patch.ResponseAt != nil {
		req.ResponseAt = patch.ResponseAt
	}
	if patch.ResponseMessageID != nil {
		req.ResponseMessageID = patch.ResponseMessageID
	}
	if patch.RespondedBy != nil {
		req.RespondedBy = patch.RespondedBy
	}
	if patch.ResponseTimeMinutes != nil {
		req.ResponseTimeMinutes = patch.ResponseTimeMinutes
	}
	if patch.SLABreached != nil {
		req.SLABreached = *patch.SLABreached
	}
}

// fakeTimerStore backs slatimer.Store (only GetRequest is needed).
type fakeTimerStore struct {
	*fakeLifecycleStore
}

// fakeQueue is an in-memory stand-in for jobqueue.Client: enqueue
// records are kept by jobID so cancellation and re-enqueue/supersede
// semantics can be asserted without a Redis broker.
type fakeQueue struct {
	mu        sync.Mutex
	jobs      map[string]jobqueue.EnqueueOptions
	cancelled []string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: map[string]jobqueue.EnqueueOptions{}}
}

func (q *fakeQueue) Enqueue(ctx context.Context, queue, jobID, taskType string, payload []byte, opts jobqueue.EnqueueOptions) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[jobID] = opts
	return nil
}

func (q *fakeQueue) Cancel(queue, jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, existed := q.jobs[jobID]
	delete(q.jobs, jobID)
	q.cancelled = append(q.cancelled, jobID)
	return existed
}

type fakeSchedule struct{ sched *workinghours.Schedule }

func (f fakeSchedule) ResolveSchedule(ctx context.Context, chatID int64) (*workinghours.Schedule, error) {
	return f.sched, nil
}

func newTestService() (*Service, *fakeQueue, *fakeLifecycleStore) {
	lst := &fakeLifecycleStore{reqs: map[string]*store.Request{}}
	engine := lifecycle.New(lst)
	q := newFakeQueue()
	sched := fakeSchedule{sched: &workinghours.Schedule{Location: time.UTC, Is24x7: true}}
	svc := New(q, sched, engine, &fakeTimerStore{lst})
	return svc, q, lst
}

func TestStartSlaTimerEnqueuesTimerAndWarn(t *testing.T) {
	ctx := context.Background()
	svc, q, _ := newTestService()

	receivedAt := time.Now()
	if err := svc.StartSlaTimer(ctx, "req-1", 1, receivedAt, 60, 80); err != nil {
		t.Fatalf("StartSlaTimer: %v", err)
	}

	if _, ok := q.jobs[timerJobID("req-1")]; !ok {
		t.Error("expected timer:req-1 to be enqueued")
	}
	if _, ok := q.jobs[warnJobID("req-1")]; !ok {
		t.Error("expected warn:req-1 to be enqueued when slaWarningPercent > 0")
	}
}

func TestStartSlaTimerSkipsWarnWhenPercentZero(t *testing.T) {
	ctx := context.Background()
	svc, q, _ := newTestService()

	if err := svc.StartSlaTimer(ctx, "req-2", 1, time.Now(), 60, 0); err != nil {
		t.Fatalf("StartSlaTimer: %v", err)
	}
	if _, ok := q.jobs[timerJobID("req-2")]; !ok {
		t.Error("expected timer:req-2 to be enqueued")
	}
	if _, ok := q.jobs[warnJobID("req-2")]; ok {
		t.Error("expected no warn:req-2 job when slaWarningPercent is 0")
	}
}

func TestStopSlaTimerCancelsAndClaims(t *testing.T) {
	ctx := context.Background()
	svc, q, lst := newTestService()

	receivedAt := time.Now().Add(-45 * time.Minute)
	req := &store.Request{ID: "req-3", ChatID: 1, Status: store.StatusPending, ReceivedAt: receivedAt}
	lst.reqs[req.ID] = req

	if err := svc.StartSlaTimer(ctx, req.ID, 1, receivedAt, 60, 80); err != nil {
		t.Fatalf("StartSlaTimer: %v", err)
	}

	res, err := svc.StopSlaTimer(ctx, req, 1, time.Now(), 999, "accountant-1", 60, store.AuditContext{ChangedBy: "test"})
	if err != nil {
		t.Fatalf("StopSlaTimer: %v", err)
	}
	if !res.Claimed {
		t.Fatal("expected the claim to succeed")
	}
	if res.Breached {
		t.Errorf("expected no breach at ~45 minutes against a 60 minute threshold, got workingMinutes=%d", res.WorkingMinutes)
	}
	for _, jobID := range []string{timerJobID(req.ID), warnJobID(req.ID)} {
		if _, ok := q.jobs[jobID]; ok {
			t.Errorf("expected %s to be cancelled on stop", jobID)
		}
	}
	if lst.reqs[req.ID].Status != store.StatusAnswered {
		t.Errorf("expected request status answered, got %s", lst.reqs[req.ID].Status)
	}
}

func TestStopSlaTimerRaceLostReturnsUnclaimed(t *testing.T) {
	ctx := context.Background()
	svc, _, lst := newTestService()

	req := &store.Request{ID: "req-4", ChatID: 1, Status: store.StatusAnswered, ReceivedAt: time.Now().Add(-10 * time.Minute)}
	lst.reqs[req.ID] = req

	res, err := svc.StopSlaTimer(ctx, req, 1, time.Now(), 1, "accountant-1", 60, store.AuditContext{ChangedBy: "test"})
	if err != nil {
		t.Fatalf("StopSlaTimer: %v", err)
	}
	if res.Claimed {
		t.Fatal("expected claim to fail on a request already in a terminal/non-claimable status")
	}
}

func TestPauseThenResumeAccountsRemainingThreshold(t *testing.T) {
	ctx := context.Background()
	svc, q, lst := newTestService()

	receivedAt := time.Now().Add(-20 * time.Minute)
	req := &store.Request{ID: "req-5", ChatID: 1, Status: store.StatusWaitingClient, ReceivedAt: receivedAt}
	lst.reqs[req.ID] = req

	paused, err := svc.Pause(ctx, req, 1, 60)
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if paused < 19 || paused > 21 {
		t.Errorf("expected ~20 paused minutes, got %d", paused)
	}
	for _, jobID := range []string{timerJobID(req.ID), warnJobID(req.ID)} {
		if _, ok := q.jobs[jobID]; ok {
			t.Errorf("expected %s cancelled by Pause", jobID)
		}
	}

	if err := svc.Resume(ctx, req.ID, 1, 60, paused, 80); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if _, ok := q.jobs[timerJobID(req.ID)]; !ok {
		t.Error("expected Resume to re-enrol a fresh timer job")
	}
}
