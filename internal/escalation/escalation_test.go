package escalation

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/chatsla/sentinel/internal/jobqueue"
	"github.com/chatsla/sentinel/internal/notify"
	"github.com/chatsla/sentinel/internal/settings"
	"github.com/chatsla/sentinel/internal/slatimer"
	"github.com/chatsla/sentinel/internal/store"
	"github.com/chatsla/sentinel/internal/workinghours"
)

// fakeStore is a minimal in-memory Store fake covering the methods the
// escalation Worker needs: one Chat, one Request, and an Alert table
// keyed the same way the real driver dedupes (requestID, level, alertType).
type fakeStore struct {
	mu      sync.Mutex
	chats   map[int64]*store.Chat
	reqs    map[string]*store.Request
	alerts  map[string]*store.Alert // key: requestID|alertType|level
	patches []*store.RequestPatch
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chats:  map[int64]*store.Chat{},
		reqs:   map[string]*store.Request{},
		alerts: map[string]*store.Alert{},
	}
}

func alertKey(requestID string, alertType store.AlertType, level int) string {
	return requestID + "|" + string(alertType) + "|" + strconv.Itoa(level)
}

func (f *fakeStore) GetRequest(ctx context.Context, id string) (*store.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[id], nil
}

func (f *fakeStore) GetChat(ctx context.Context, id int64) (*store.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chats[id], nil
}

func (f *fakeStore) InsertAlert(ctx context.Context, a *store.Alert) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := alertKey(a.RequestID, a.AlertType, a.Level)
	if _, exists := f.alerts[key]; exists {
		return false, nil
	}
	f.alerts[key] = a
	return true, nil
}

func (f *fakeStore) CurrentEscalationLevel(ctx context.Context, requestID string, alertType store.AlertType) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, a := range f.alerts {
		if a.RequestID == requestID && a.AlertType == alertType && a.Level > max {
			max = a.Level
		}
	}
	return max, nil
}

func (f *fakeStore) UpdateRequestRaw(ctx context.Context, id string, patch *store.RequestPatch, ac store.AuditContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patch)
	req, ok := f.reqs[id]
	if !ok {
		return nil
	}
	if patch.SLABreached != nil {
		req.SLABreached = *patch.SLABreached
	}
	return nil
}

// fakeQueue records re-arm/re-enqueue calls without a real broker.
type fakeQueue struct {
	mu       sync.Mutex
	enqueued []string
}

func (q *fakeQueue) Enqueue(ctx context.Context, queue, jobID, taskType string, payload []byte, opts jobqueue.EnqueueOptions) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, jobID)
	return nil
}

// fakeSchedule resolves a fixed 24/7 schedule regardless of chat ID, so
// elapsed-minutes math reduces to the raw wall-clock difference.
type fakeSchedule struct{}

func (fakeSchedule) ResolveSchedule(ctx context.Context, chatID int64) (*workinghours.Schedule, error) {
	return &workinghours.Schedule{Location: time.UTC, Is24x7: true}, nil
}

// fakeSettingsStore backs settings.Resolver with a fixed GlobalSettings row.
type fakeSettingsStore struct {
	gs *store.GlobalSettings
}

func (f fakeSettingsStore) GetGlobalSettings(ctx context.Context) (*store.GlobalSettings, error) {
	return f.gs, nil
}

// fakeDispatcher records dispatched alerts instead of delivering them.
type fakeDispatcher struct {
	mu  sync.Mutex
	got []notify.AlertMessage
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, recipient string, alert notify.AlertMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, alert)
	return nil
}

func newTestWorker(st Store, q Queue, dispatch Dispatcher) *Worker {
	resolver := settings.New(fakeSettingsStore{gs: &store.GlobalSettings{
		Timezone:              "UTC",
		MaxEscalations:        3,
		EscalationIntervalMin: 30,
		SLAWarningPercent:     80,
		DefaultSLAThreshold:   60,
	}})
	return New(st, q, resolver, fakeSchedule{}, dispatch)
}

// TestWarnThenBreachKeepIndependentLevelSequences is the regression test
// for the shared-counter bug: a warn firing and a breach firing on the
// same request must each land at level 1, since warning and breach
// escalation levels are tracked independently (unique index is
// (requestID, level, alertType)).
func TestWarnThenBreachKeepIndependentLevelSequences(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	receivedAt := time.Now().Add(-90 * time.Minute)
	req := &store.Request{
		ID:         "req-1",
		ChatID:     1,
		Status:     store.StatusPending,
		ReceivedAt: receivedAt,
	}
	st.reqs[req.ID] = req
	st.chats[1] = &store.Chat{
		ID:                  1,
		Title:               "Test Chat",
		AccountantUsernames: []string{"@accountant1"},
	}

	q := &fakeQueue{}
	dispatch := &fakeDispatcher{}
	w := newTestWorker(st, q, dispatch)

	warnPayload, err := json.Marshal(slatimer.TimerPayload{
		RequestID: req.ID, ChatID: 1, IsWarning: true, Threshold: 48, EnrolledAt: receivedAt,
	})
	if err != nil {
		t.Fatalf("marshal warn payload: %v", err)
	}
	if err := w.HandleWarn(ctx, warnPayload); err != nil {
		t.Fatalf("HandleWarn: %v", err)
	}

	breachPayload, err := json.Marshal(slatimer.TimerPayload{
		RequestID: req.ID, ChatID: 1, Threshold: 60, EnrolledAt: receivedAt,
	})
	if err != nil {
		t.Fatalf("marshal breach payload: %v", err)
	}
	if err := w.HandleBreach(ctx, breachPayload); err != nil {
		t.Fatalf("HandleBreach: %v", err)
	}

	warnAlert, ok := st.alerts[alertKey(req.ID, store.AlertWarning, 1)]
	if !ok {
		t.Fatalf("expected warning alert at level 1, alerts: %#v", st.alerts)
	}
	breachAlert, ok := st.alerts[alertKey(req.ID, store.AlertBreach, 1)]
	if !ok {
		t.Fatalf("expected breach alert at level 1 (independent of the warning sequence), alerts: %#v", st.alerts)
	}
	if warnAlert.Level != 1 || breachAlert.Level != 1 {
		t.Fatalf("warn and breach must both be at level 1, got warn=%d breach=%d", warnAlert.Level, breachAlert.Level)
	}

	if !st.reqs[req.ID].SLABreached {
		t.Error("expected Request.SLABreached to be set true by the breach firing")
	}
}

// TestBreachReArmsUntilEscalationCap exercises the re-arm loop: each
// breach firing that has not yet hit MaxEscalations should enqueue the
// next escalation job.
func TestBreachReArmsUntilEscalationCap(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	receivedAt := time.Now().Add(-2 * time.Hour)
	req := &store.Request{ID: "req-2", ChatID: 1, Status: store.StatusPending, ReceivedAt: receivedAt}
	st.reqs[req.ID] = req
	st.chats[1] = &store.Chat{ID: 1, Title: "Test Chat", AccountantUsernames: []string{"@a"}}

	q := &fakeQueue{}
	w := newTestWorker(st, q, &fakeDispatcher{})

	payload, _ := json.Marshal(slatimer.TimerPayload{RequestID: req.ID, ChatID: 1, Threshold: 60, EnrolledAt: receivedAt})
	if err := w.HandleBreach(ctx, payload); err != nil {
		t.Fatalf("HandleBreach level 1: %v", err)
	}
	if len(q.enqueued) != 1 {
		t.Fatalf("expected one re-arm enqueue after level 1 breach (cap=3), got %d: %v", len(q.enqueued), q.enqueued)
	}

	if err := w.HandleBreach(ctx, payload); err != nil {
		t.Fatalf("HandleBreach level 2: %v", err)
	}
	if len(q.enqueued) != 2 {
		t.Fatalf("expected a second re-arm enqueue after level 2 breach (cap=3), got %d: %v", len(q.enqueued), q.enqueued)
	}

	if err := w.HandleBreach(ctx, payload); err != nil {
		t.Fatalf("HandleBreach level 3: %v", err)
	}
	if len(q.enqueued) != 2 {
		t.Fatalf("expected no re-arm once level 3 reaches the cap, got %d: %v", len(q.enqueued), q.enqueued)
	}
}

// TestDuplicateAlertDeliveryIsNoop asserts at-least-once delivery of the
// same firing does not double-insert or re-dispatch.
func TestDuplicateAlertDeliveryIsNoop(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	receivedAt := time.Now().Add(-2 * time.Hour)
	req := &store.Request{ID: "req-3", ChatID: 1, Status: store.StatusPending, ReceivedAt: receivedAt}
	st.reqs[req.ID] = req
	st.chats[1] = &store.Chat{ID: 1, Title: "Test Chat", AccountantUsernames: []string{"@a"}}

	q := &fakeQueue{}
	dispatch := &fakeDispatcher{}
	w := newTestWorker(st, q, dispatch)

	payload, _ := json.Marshal(slatimer.TimerPayload{RequestID: req.ID, ChatID: 1, Threshold: 60, EnrolledAt: receivedAt})
	if err := w.HandleBreach(ctx, payload); err != nil {
		t.Fatalf("first HandleBreach: %v", err)
	}
	firstDispatchCount := len(dispatch.got)
	if err := w.HandleBreach(ctx, payload); err != nil {
		t.Fatalf("second HandleBreach: %v", err)
	}
	if len(st.alerts) != 1 {
		t.Fatalf("expected exactly one alert row after duplicate delivery, got %d", len(st.alerts))
	}
	if len(dispatch.got) != firstDispatchCount {
		t.Fatalf("expected no additional dispatch on duplicate delivery, first=%d second=%d", firstDispatchCount, len(dispatch.got))
	}
}
