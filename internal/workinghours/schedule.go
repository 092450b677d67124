// Package workinghours converts wall-clock instants into working minutes
// against a per-chat schedule, DST- and holiday-aware. All arithmetic is
// done in the schedule's configured timezone to avoid the double-count
// and skip bugs a naive UTC-minute-diff approach would hit across DST
// transitions.
package workinghours

import (
	"log/slog"
	"sort"
	"time"
)

// maxScanDays bounds the forward search in NextWorkingTime so a
// degenerate schedule (no working days at all) cannot spin forever.
const maxScanDays = 365

// Window is a single day's working window.
type Window struct {
	// Weekday uses time.Weekday numbering (Sunday = 0).
	Weekday time.Weekday
	Start   time.Duration // offset from midnight
	End     time.Duration // offset from midnight, half-open: tod must be < End
}

// Schedule is the resolved working-hours configuration for a chat.
type Schedule struct {
	Location *time.Location
	Is24x7   bool
	Windows  []Window // zero or more per weekday; empty weekday = non-working day
	Holidays map[string]struct{} // "2006-01-02" in Location, excluded even on a working day
}

func (s *Schedule) windowsFor(day time.Weekday) []Window {
	var out []Window
	for _, w := range s.Windows {
		if w.Weekday == day {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func (s *Schedule) isHoliday(t time.Time) bool {
	if len(s.Holidays) == 0 {
		return false
	}
	_, ok := s.Holidays[t.Format("2006-01-02")]
	return ok
}

// IsWorkingTime reports whether t falls inside an active working window.
func (s *Schedule) IsWorkingTime(t time.Time) bool {
	if s.Is24x7 {
		return true
	}
	local := t.In(s.Location)
	if s.isHoliday(local) {
		return false
	}
	tod := timeOfDay(local)
	for _, w := range s.windowsFor(local.Weekday()) {
		if tod >= w.Start && tod < w.End {
			return true
		}
	}
	return false
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}

// NextWorkingTime returns the earliest instant >= t that satisfies
// IsWorkingTime. If no window is found within maxScanDays it logs a
// warning and returns t unchanged.
func (s *Schedule) NextWorkingTime(t time.Time) time.Time {
	if s.Is24x7 || s.IsWorkingTime(t) {
		return t
	}
	local := t.In(s.Location)
	base := startOfDay(local)
	for i := 0; i < maxScanDays; i++ {
		day := base.AddDate(0, 0, i)
		if s.isHoliday(day) {
			continue
		}
		for _, w := range s.windowsFor(day.Weekday()) {
			start := day.Add(w.Start)
			end := day.Add(w.End)
			if i == 0 && !local.Before(end) {
				continue // this window already elapsed today
			}
			if i == 0 && local.After(start) {
				// inside a later window today that IsWorkingTime missed
				// only if it abuts a holiday edge case; clamp forward.
				start = local
			}
			return start
		}
	}
	slog.Warn("workinghours: no working window found within scan bound", "from", t, "scanDays", maxScanDays)
	return t
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WorkingMinutesBetween returns the whole working minutes elapsed in
// [a, b), clamping each day's contribution to the configured window(s)
// intersected with [a, b]. Returns 0 when b <= a.
func (s *Schedule) WorkingMinutesBetween(a, b time.Time) int {
	if !b.After(a) {
		return 0
	}
	if s.Is24x7 {
		return int(b.Sub(a) / time.Minute)
	}
	total := time.Duration(0)
	la, lb := a.In(s.Location), b.In(s.Location)
	day := startOfDay(la)
	end := startOfDay(lb).AddDate(0, 0, 1)
	for day.Before(end) {
		if !s.isHoliday(day) {
			for _, w := range s.windowsFor(day.Weekday()) {
				winStart := day.Add(w.Start)
				winEnd := day.Add(w.End)
				lo := maxTime(winStart, la)
				hi := minTime(winEnd, lb)
				if hi.After(lo) {
					total += hi.Sub(lo)
				}
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return int(total / time.Minute)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// AddWorkingMinutes returns the instant reached by advancing from from
// by exactly minutes of working time, skipping non-working gaps and
// clamping within each day's window(s).
func (s *Schedule) AddWorkingMinutes(from time.Time, minutes int) time.Time {
	if s.Is24x7 {
		return from.Add(time.Duration(minutes) * time.Minute)
	}
	remaining := time.Duration(minutes) * time.Minute
	cursor := s.NextWorkingTime(from)
	for i := 0; i < maxScanDays+1; i++ {
		local := cursor.In(s.Location)
		day := startOfDay(local)
		var windowEnd time.Time
		found := false
		if !s.isHoliday(day) {
			for _, w := range s.windowsFor(local.Weekday()) {
				winStart := day.Add(w.Start)
				winEnd := day.Add(w.End)
				if !local.Before(winStart) && local.Before(winEnd) {
					windowEnd = winEnd
					found = true
					break
				}
			}
		}
		if !found {
			cursor = s.NextWorkingTime(cursor.Add(time.Minute))
			continue
		}
		avail := windowEnd.Sub(local)
		if remaining <= avail {
			return local.Add(remaining)
		}
		remaining -= avail
		cursor = s.NextWorkingTime(windowEnd)
	}
	slog.Warn("workinghours: AddWorkingMinutes exceeded scan bound", "from", from, "minutes", minutes)
	return cursor
}

// DelayUntilBreach returns the non-negative delay from now until the
// instant at which WorkingMinutesBetween(receivedAt, instant) equals
// thresholdMinutes.
func (s *Schedule) DelayUntilBreach(now, receivedAt time.Time, thresholdMinutes int) time.Duration {
	breachAt := s.AddWorkingMinutes(receivedAt, thresholdMinutes)
	d := breachAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
