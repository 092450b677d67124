package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chatsla/sentinel/internal/slaerr"
	"github.com/chatsla/sentinel/internal/store"
)

type fakeStore struct {
	requests     map[string]*store.Request
	byMessage    map[int64]*store.Request
	claimResult  bool
	claimErr     error
	updateErr    error
	lastPatch    *store.RequestPatch
	lastUpdateID string
}

func (f *fakeStore) GetRequest(ctx context.Context, id string) (*store.Request, error) {
	return f.requests[id], nil
}

func (f *fakeStore) GetRequestByMessage(ctx context.Context, chatID, messageID int64) (*store.Request, error) {
	return f.byMessage[messageID], nil
}

func (f *fakeStore) ListRequests(ctx context.Context, find *store.FindRequest) ([]*store.Request, error) {
	var out []*store.Request
	for _, r := range f.requests {
		if find.ChatID != nil && r.ChatID != *find.ChatID {
			continue
		}
		if len(find.Statuses) > 0 && r.Status != find.Statuses[0] {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) UpdateIfStatusIn(ctx context.Context, id string, from []store.RequestStatus, patch *store.RequestPatch, ac store.AuditContext) (bool, error) {
	f.lastPatch = patch
	f.lastUpdateID = id
	return f.claimResult, f.claimErr
}

func (f *fakeStore) UpdateRequestRaw(ctx context.Context, id string, patch *store.RequestPatch, ac store.AuditContext) error {
	f.lastPatch = patch
	f.lastUpdateID = id
	return f.updateErr
}

func TestCanTransitionMatrix(t *testing.T) {
	require.True(t, CanTransition(store.StatusPending, store.StatusInProgress))
	require.True(t, CanTransition(store.StatusPending, store.StatusClosed))
	require.False(t, CanTransition(store.StatusClosed, store.StatusPending))
	require.False(t, CanTransition(store.StatusAnswered, store.StatusInProgress))
	require.False(t, CanTransition(store.StatusPending, store.StatusPending))
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	fs := &fakeStore{requests: map[string]*store.Request{"r1": {ID: "r1", Status: store.StatusClosed}}}
	e := New(fs)

	err := e.UpdateStatus(context.Background(), "r1", store.StatusPending, store.AuditContext{})
	var it *slaerr.InvalidTransition
	require.ErrorAs(t, err, &it)
	require.Nil(t, fs.lastPatch, "no write should occur on an invalid transition")
}

func TestUpdateStatusWritesOnValidTransition(t *testing.T) {
	fs := &fakeStore{requests: map[string]*store.Request{"r1": {ID: "r1", Status: store.StatusPending}}}
	e := New(fs)

	err := e.UpdateStatus(context.Background(), "r1", store.StatusInProgress, store.AuditContext{ChangedBy: "op"})
	require.NoError(t, err)
	require.Equal(t, "r1", fs.lastUpdateID)
	require.Equal(t, store.StatusInProgress, *fs.lastPatch.Status)
}

func TestMatchTargetReplyToClaimable(t *testing.T) {
	fs := &fakeStore{byMessage: map[int64]*store.Request{42: {ID: "r1", Status: store.StatusPending}}}
	e := New(fs)

	target, err := e.MatchTarget(context.Background(), 1, int64Ptr(42))
	require.NoError(t, err)
	require.NotNil(t, target)
	require.Equal(t, "r1", target.ID)
}

func TestMatchTargetReplyToAlreadyAnsweredIsIgnored(t *testing.T) {
	fs := &fakeStore{byMessage: map[int64]*store.Request{42: {ID: "r1", Status: store.StatusAnswered}}}
	e := New(fs)

	target, err := e.MatchTarget(context.Background(), 1, int64Ptr(42))
	require.NoError(t, err)
	require.Nil(t, target, "a reply to a resolved request must not be redirected elsewhere")
}

func TestMatchTargetFallsBackToLIFOPending(t *testing.T) {
	fs := &fakeStore{requests: map[string]*store.Request{
		"r1": {ID: "r1", ChatID: 1, Status: store.StatusPending},
	}}
	e := New(fs)

	target, err := e.MatchTarget(context.Background(), 1, nil)
	require.NoError(t, err)
	require.NotNil(t, target)
	require.Equal(t, "r1", target.ID)
}

func TestClaimResponseRaceLost(t *testing.T) {
	fs := &fakeStore{claimResult: false}
	e := New(fs)

	ok, err := e.ClaimResponse(context.Background(), &store.Request{ID: "r1"}, time.Now(), 7, "acc-1", 5, store.AuditContext{})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClaimResponseSuccess(t *testing.T) {
	fs := &fakeStore{claimResult: true}
	e := New(fs)

	ok, err := e.ClaimResponse(context.Background(), &store.Request{ID: "r1"}, time.Now(), 7, "acc-1", 5, store.AuditContext{})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, store.StatusAnswered, *fs.lastPatch.Status)
}

func int64Ptr(v int64) *int64 { return &v }
