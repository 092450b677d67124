package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chatsla/sentinel/internal/store"
)

type fakeGlobalStore struct {
	gs    *store.GlobalSettings
	err   error
	calls int
}

func (f *fakeGlobalStore) GetGlobalSettings(ctx context.Context) (*store.GlobalSettings, error) {
	f.calls++
	return f.gs, f.err
}

func intPtr(v int) *int { return &v }

func TestSLAThresholdPrefersChatOverride(t *testing.T) {
	r := New(&fakeGlobalStore{gs: &store.GlobalSettings{DefaultSLAThreshold: 60}})
	chat := &store.Chat{SLAThresholdMinutes: intPtr(10)}
	require.Equal(t, 10, r.SLAThreshold(context.Background(), chat))
}

func TestSLAThresholdFallsBackToTierDefault(t *testing.T) {
	r := New(&fakeGlobalStore{gs: &store.GlobalSettings{DefaultSLAThreshold: 60}})
	tier := store.TierVIP
	chat := &store.Chat{ClientTier: &tier}
	require.Equal(t, tierDefaults[store.TierVIP], r.SLAThreshold(context.Background(), chat))
}

func TestSLAThresholdFallsBackToGlobalDefault(t *testing.T) {
	r := New(&fakeGlobalStore{gs: &store.GlobalSettings{DefaultSLAThreshold: 45}})
	chat := &store.Chat{}
	require.Equal(t, 45, r.SLAThreshold(context.Background(), chat))
}

func TestSLAThresholdFallsBackToHardcodedOnStoreError(t *testing.T) {
	r := New(&fakeGlobalStore{err: context.DeadlineExceeded})
	chat := &store.Chat{}
	require.Equal(t, fallbackThreshold, r.SLAThreshold(context.Background(), chat))
}

func TestGlobalServesStaleOnSubsequentError(t *testing.T) {
	fs := &fakeGlobalStore{gs: &store.GlobalSettings{DefaultSLAThreshold: 90}}
	r := New(fs)
	first := r.Global(context.Background())
	require.Equal(t, 90, first.DefaultSLAThreshold)

	r.mu.Lock()
	r.loadedAt = time.Now().Add(-2 * cacheTTL) // expire the TTL, keep the cached row
	r.mu.Unlock()
	fs.err = context.DeadlineExceeded
	fs.gs = nil
	second := r.Global(context.Background())
	require.Equal(t, 90, second.DefaultSLAThreshold, "should serve the stale cached value rather than the fallback")
}

func TestRecipientsByLevelOnePrefersAccountants(t *testing.T) {
	r := New(&fakeGlobalStore{gs: &store.GlobalSettings{}})
	recipients, tier := r.RecipientsByLevel(context.Background(), []string{"mgr-1"}, []string{"acc-1", "acc-1"}, 1)
	require.Equal(t, RecipientAccountant, tier)
	require.Equal(t, []string{"acc-1"}, recipients)
}

func TestRecipientsByLevelOneFallsBackToManagers(t *testing.T) {
	r := New(&fakeGlobalStore{gs: &store.GlobalSettings{}})
	recipients, tier := r.RecipientsByLevel(context.Background(), []string{"mgr-1"}, nil, 1)
	require.Equal(t, RecipientManager, tier)
	require.Equal(t, []string{"mgr-1"}, recipients)
}

func TestRecipientsByLevelOneFallsBackToGlobalManagers(t *testing.T) {
	r := New(&fakeGlobalStore{gs: &store.GlobalSettings{GlobalManagerIDs: []string{"global-mgr"}}})
	recipients, tier := r.RecipientsByLevel(context.Background(), nil, nil, 1)
	require.Equal(t, RecipientFallback, tier)
	require.Equal(t, []string{"global-mgr"}, recipients)
}

func TestRecipientsByLevelTwoUnionsAndDedupes(t *testing.T) {
	r := New(&fakeGlobalStore{gs: &store.GlobalSettings{}})
	recipients, tier := r.RecipientsByLevel(context.Background(), []string{"mgr-1"}, []string{"mgr-1", "acc-1"}, 2)
	require.Equal(t, RecipientBoth, tier)
	require.ElementsMatch(t, []string{"mgr-1", "acc-1"}, recipients)
}
