package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/chatsla/sentinel/internal/store"
	"github.com/chatsla/sentinel/internal/workinghours"
)

// ScheduleStore is the subset of persistence ScheduleResolver needs to
// resolve a chat's effective working-hours schedule.
type ScheduleStore interface {
	GetChat(ctx context.Context, id int64) (*store.Chat, error)
	ListWorkingSchedule(ctx context.Context, chatID int64) ([]*store.WorkingSchedule, error)
	ListHolidays(ctx context.Context, chatID int64) ([]*store.Holiday, error)
}

// ScheduleResolver implements slatimer.ScheduleResolver, resolving the
// effective workinghours.Schedule for a chat per spec.md §4.8's
// precedence: chat.is24x7Mode wins outright; else active per-chat
// WorkingSchedule rows; else the global default, collapsed to 24/7 if
// it spans every day 00:00-23:59.
type ScheduleResolver struct {
	st  ScheduleStore
	cfg *Resolver
}

func NewScheduleResolver(st ScheduleStore, cfg *Resolver) *ScheduleResolver {
	return &ScheduleResolver{st: st, cfg: cfg}
}

// ResolveSchedule implements slatimer.ScheduleResolver.
func (r *ScheduleResolver) ResolveSchedule(ctx context.Context, chatID int64) (*workinghours.Schedule, error) {
	chat, err := r.st.GetChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("settings: resolve schedule, load chat: %w", err)
	}

	holidays, err := r.st.ListHolidays(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("settings: resolve schedule, load holidays: %w", err)
	}
	holidaySet := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		holidaySet[h.Date] = struct{}{}
	}

	if chat != nil && chat.Is24x7Mode {
		return &workinghours.Schedule{Is24x7: true, Holidays: holidaySet}, nil
	}

	if chat != nil {
		rows, err := r.st.ListWorkingSchedule(ctx, chatID)
		if err != nil {
			return nil, fmt.Errorf("settings: resolve schedule, load chat schedule: %w", err)
		}
		if sched := buildFromRows(rows, holidaySet); sched != nil {
			return sched, nil
		}
	}

	gs := r.cfg.Global(ctx)
	return buildFromGlobal(gs, holidaySet), nil
}

func buildFromRows(rows []*store.WorkingSchedule, holidays map[string]struct{}) *workinghours.Schedule {
	var windows []workinghours.Window
	var loc *time.Location
	for _, row := range rows {
		if !row.IsActive {
			continue
		}
		l, err := time.LoadLocation(row.Timezone)
		if err != nil {
			continue
		}
		if loc == nil {
			loc = l
		}
		start, ok1 := parseHHMM(row.Start)
		end, ok2 := parseHHMM(row.End)
		if !ok1 || !ok2 {
			continue
		}
		windows = append(windows, workinghours.Window{Weekday: row.Weekday, Start: start, End: end})
	}
	if len(windows) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	return &workinghours.Schedule{Location: loc, Windows: windows, Holidays: holidays}
}

func buildFromGlobal(gs *store.GlobalSettings, holidays map[string]struct{}) *workinghours.Schedule {
	loc, err := time.LoadLocation(gs.Timezone)
	if err != nil {
		loc = time.UTC
	}
	start, okStart := parseHHMM(gs.StartTime)
	end, okEnd := parseHHMM(gs.EndTime)

	// "all day, every day" collapses to 24/7 per spec.md §4.8.
	if okStart && okEnd && start == 0 && end >= 23*time.Hour+59*time.Minute && len(gs.WorkingDays) >= 7 {
		return &workinghours.Schedule{Is24x7: true, Holidays: holidays}
	}

	var windows []workinghours.Window
	if okStart && okEnd {
		for _, d := range gs.WorkingDays {
			windows = append(windows, workinghours.Window{Weekday: d, Start: start, End: end})
		}
	}
	return &workinghours.Schedule{Location: loc, Windows: windows, Holidays: holidays}
}

func parseHHMM(s string) (time.Duration, bool) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, true
}
