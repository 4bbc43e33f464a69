// Package schedule holds the pure scheduling rules: next-run computation and
// normalization of legacy task parameters. No I/O, unit-testable against
// fixed clocks.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/marketops/rankpulse/pkg/models"
)

// NextRun computes the next due timestamp for a schedule. The result is
// always strictly after the slot that triggered the current execution.
//
// Rules:
//   - hourly: one hour after the previously scheduled slot (not after now),
//     so a late execution does not accumulate drift. A badly overdue hourly
//     schedule catches up one slot per tick.
//   - daily: time_of_day on the next calendar day in the schedule's timezone.
//   - weekly: next occurrence of day_of_week at time_of_day; when that lands
//     on today it rolls a full week forward so the same tick cannot re-fire.
//   - monthly: day_of_month in the next calendar month, clamped to the month
//     length (day 31 in a 30-day month becomes day 30, never rolls over).
func NextRun(s *models.ScheduledAnalysis, now time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		loc = time.UTC
	}

	switch s.Frequency {
	case models.FrequencyHourly:
		base := s.NextRunAt
		if base.IsZero() {
			base = now
		}
		return base.Add(time.Hour), nil
	}

	hour, minute, err := parseTimeOfDay(s.TimeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(loc)

	switch s.Frequency {
	case models.FrequencyDaily:
		return time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc), nil

	case models.FrequencyWeekly:
		target := time.Weekday(s.DayOfWeek % 7)
		days := (int(target) - int(local.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return time.Date(local.Year(), local.Month(), local.Day()+days, hour, minute, 0, 0, loc), nil

	case models.FrequencyMonthly:
		year, month := local.Year(), local.Month()+1
		if month > time.December {
			year, month = year+1, time.January
		}
		day := clampDay(s.DayOfMonth, year, month)
		return time.Date(year, month, day, hour, minute, 0, 0, loc), nil
	}

	return time.Time{}, fmt.Errorf("unknown frequency %q", s.Frequency)
}

// parseTimeOfDay parses "HH:MM" into hour and minute.
func parseTimeOfDay(tod string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(tod), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time_of_day %q", tod)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid time_of_day %q", tod)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time_of_day %q", tod)
	}
	return hour, minute, nil
}

// clampDay bounds a day-of-month to the length of the given month.
// time.Date would normalize an overflow by rolling into the next month,
// which is not what we want for "last day of February"-style schedules.
func clampDay(day int, year int, month time.Month) int {
	if day < 1 {
		return 1
	}
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}
