package workinghours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func weekdaySchedule(t *testing.T) *Schedule {
	loc := mustLoc(t, "Europe/Moscow")
	var windows []Window
	for d := time.Monday; d <= time.Friday; d++ {
		windows = append(windows, Window{Weekday: d, Start: 9 * time.Hour, End: 18 * time.Hour})
	}
	return &Schedule{Location: loc, Windows: windows, Holidays: map[string]struct{}{}}
}

func at(t *testing.T, loc *time.Location, layout, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation(layout, value, loc)
	require.NoError(t, err)
	return ts
}

func TestIsWorkingTime_BoundaryInclusiveStartExclusiveEnd(t *testing.T) {
	s := weekdaySchedule(t)
	start := at(t, s.Location, "2006-01-02 15:04", "2025-01-20 09:00") // Monday
	require.True(t, s.IsWorkingTime(start))
	end := at(t, s.Location, "2006-01-02 15:04", "2025-01-20 18:00")
	require.False(t, s.IsWorkingTime(end))
	justBefore := end.Add(-time.Minute)
	require.True(t, s.IsWorkingTime(justBefore))
}

func TestIsWorkingTime_Weekend(t *testing.T) {
	s := weekdaySchedule(t)
	sat := at(t, s.Location, "2006-01-02 15:04", "2025-01-25 12:00")
	require.False(t, s.IsWorkingTime(sat))
}

func TestIsWorkingTime_Holiday(t *testing.T) {
	s := weekdaySchedule(t)
	s.Holidays["2025-01-20"] = struct{}{}
	mon := at(t, s.Location, "2006-01-02 15:04", "2025-01-20 12:00")
	require.False(t, s.IsWorkingTime(mon))
}

func TestWorkingMinutesBetween_ZeroAndNonNegative(t *testing.T) {
	s := weekdaySchedule(t)
	a := at(t, s.Location, "2006-01-02 15:04", "2025-01-20 10:00")
	require.Equal(t, 0, s.WorkingMinutesBetween(a, a))
	require.Equal(t, 0, s.WorkingMinutesBetween(a, a.Add(-time.Hour)))
}

func TestWorkingMinutesBetween_LessThanRawDiff(t *testing.T) {
	s := weekdaySchedule(t)
	fri := at(t, s.Location, "2006-01-02 15:04", "2025-01-24 17:55")
	mon := at(t, s.Location, "2006-01-02 15:04", "2025-01-27 09:55")
	got := s.WorkingMinutesBetween(fri, mon)
	require.Equal(t, 60, got)
	raw := int(mon.Sub(fri) / time.Minute)
	require.LessOrEqual(t, got, raw)
}

func Test24x7_WorkingMinutesEqualsRawDiff(t *testing.T) {
	s := &Schedule{Location: time.UTC, Is24x7: true}
	a := time.Date(2025, 1, 25, 3, 0, 0, 0, time.UTC)
	b := a.Add(90 * time.Minute)
	require.Equal(t, 90, s.WorkingMinutesBetween(a, b))
}

func TestNextWorkingTime_InsideWindowReturnsSame(t *testing.T) {
	s := weekdaySchedule(t)
	mon := at(t, s.Location, "2006-01-02 15:04", "2025-01-20 10:00")
	require.Equal(t, mon, s.NextWorkingTime(mon))
}

func TestNextWorkingTime_BeforeStartSameDay(t *testing.T) {
	s := weekdaySchedule(t)
	early := at(t, s.Location, "2006-01-02 15:04", "2025-01-20 07:00")
	next := s.NextWorkingTime(early)
	require.Equal(t, at(t, s.Location, "2006-01-02 15:04", "2025-01-20 09:00"), next)
}

func TestNextWorkingTime_FridayEveningRollsToMonday(t *testing.T) {
	s := weekdaySchedule(t)
	fri := at(t, s.Location, "2006-01-02 15:04", "2025-01-24 19:00")
	next := s.NextWorkingTime(fri)
	require.Equal(t, at(t, s.Location, "2006-01-02 15:04", "2025-01-27 09:00"), next)
	require.True(t, next.After(fri) || next.Equal(fri))
	require.True(t, s.IsWorkingTime(next))
}

func TestAddWorkingMinutes_FridayBreachLandsMonday(t *testing.T) {
	s := weekdaySchedule(t)
	fri := at(t, s.Location, "2006-01-02 15:04", "2025-01-24 17:55")
	breach := s.AddWorkingMinutes(fri, 60)
	require.Equal(t, at(t, s.Location, "2006-01-02 15:04", "2025-01-27 09:55"), breach)
}

func Test24x7Chat_BreachSameDay(t *testing.T) {
	loc := mustLoc(t, "Europe/Moscow")
	s := &Schedule{Location: loc, Is24x7: true}
	sat := at(t, loc, "2006-01-02 15:04", "2025-01-25 03:00")
	breach := s.AddWorkingMinutes(sat, 60)
	require.Equal(t, at(t, loc, "2006-01-02 15:04", "2025-01-25 04:00"), breach)
}

func TestDelayUntilBreach_NonNegative(t *testing.T) {
	s := weekdaySchedule(t)
	now := at(t, s.Location, "2006-01-02 15:04", "2025-01-20 10:00")
	received := now.Add(-5 * time.Minute)
	d := s.DelayUntilBreach(now, received, 60)
	require.GreaterOrEqual(t, d, time.Duration(0))
}
