package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chatsla/sentinel/internal/store"
)

type fakeScheduleStore struct {
	chat   *store.Chat
	rows   []*store.WorkingSchedule
	hols   []*store.Holiday
	global *store.GlobalSettings
}

func (f *fakeScheduleStore) GetChat(ctx context.Context, id int64) (*store.Chat, error) {
	return f.chat, nil
}
func (f *fakeScheduleStore) ListWorkingSchedule(ctx context.Context, chatID int64) ([]*store.WorkingSchedule, error) {
	return f.rows, nil
}
func (f *fakeScheduleStore) ListHolidays(ctx context.Context, chatID int64) ([]*store.Holiday, error) {
	return f.hols, nil
}
func (f *fakeScheduleStore) GetGlobalSettings(ctx context.Context) (*store.GlobalSettings, error) {
	return f.global, nil
}

func TestResolveScheduleIs24x7ModeWins(t *testing.T) {
	fs := &fakeScheduleStore{chat: &store.Chat{ID: 1, Is24x7Mode: true}}
	r := NewScheduleResolver(fs, New(fs))

	sched, err := r.ResolveSchedule(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, sched.Is24x7)
}

func TestResolveScheduleUsesActiveChatRows(t *testing.T) {
	fs := &fakeScheduleStore{
		chat: &store.Chat{ID: 1},
		rows: []*store.WorkingSchedule{
			{ChatID: 1, Weekday: time.Monday, Start: "09:00", End: "17:00", Timezone: "UTC", IsActive: true},
			{ChatID: 1, Weekday: time.Tuesday, Start: "09:00", End: "17:00", Timezone: "UTC", IsActive: false},
		},
		global: &store.GlobalSettings{},
	}
	r := NewScheduleResolver(fs, New(fs))

	sched, err := r.ResolveSchedule(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, sched.Is24x7)
	require.Len(t, sched.Windows, 1)
	require.Equal(t, time.Monday, sched.Windows[0].Weekday)
}

func TestResolveScheduleFallsBackToGlobalDefault(t *testing.T) {
	fs := &fakeScheduleStore{
		chat: &store.Chat{ID: 1},
		global: &store.GlobalSettings{
			Timezone:    "UTC",
			WorkingDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
			StartTime:   "09:00",
			EndTime:     "18:00",
		},
	}
	r := NewScheduleResolver(fs, New(fs))

	sched, err := r.ResolveSchedule(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, sched.Is24x7)
	require.Len(t, sched.Windows, 5)
}

func TestResolveScheduleGlobalAllDayEveryDayCollapsesTo24x7(t *testing.T) {
	fs := &fakeScheduleStore{
		chat: &store.Chat{ID: 1},
		global: &store.GlobalSettings{
			Timezone: "UTC",
			WorkingDays: []time.Weekday{
				time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
				time.Thursday, time.Friday, time.Saturday,
			},
			StartTime: "00:00",
			EndTime:   "23:59",
		},
	}
	r := NewScheduleResolver(fs, New(fs))

	sched, err := r.ResolveSchedule(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, sched.Is24x7)
}

func TestResolveScheduleCarriesHolidays(t *testing.T) {
	fs := &fakeScheduleStore{
		chat:   &store.Chat{ID: 1, Is24x7Mode: true},
		hols:   []*store.Holiday{{ChatID: 1, Date: "2026-12-25"}},
		global: &store.GlobalSettings{},
	}
	r := NewScheduleResolver(fs, New(fs))

	sched, err := r.ResolveSchedule(context.Background(), 1)
	require.NoError(t, err)
	_, ok := sched.Holidays["2026-12-25"]
	require.True(t, ok)
}
