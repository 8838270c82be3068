// Package streak computes engagement metrics from dated records.
//
// Every day comparison uses the calendar date in local time. "Today" is
// the local wall-clock date, not a rolling 24h window, so results can
// shift around midnight or when the time zone changes.
package streak

import (
	"math"
	"sort"
	"time"
)

// DateLayout is the calendar date format records carry.
const DateLayout = "2006-01-02"

// Dated is anything that belongs to a calendar day.
type Dated interface {
	GetDate() string
}

// Today returns the local calendar date of now.
func Today(now time.Time) string {
	return now.Local().Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date (or the date part of a timestamp)
// as local midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, dateKey(s), time.Local)
}

// AddDays shifts a calendar date by n days.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}

// DaysBetween returns the number of calendar days from one date to another.
func DaysBetween(from, to string) (int, error) {
	a, err := ParseDate(from)
	if err != nil {
		return 0, err
	}
	b, err := ParseDate(to)
	if err != nil {
		return 0, err
	}
	// Round absorbs the 23h/25h days around DST changes
	return int(math.Round(b.Sub(a).Hours() / 24)), nil
}

func dateKey(s string) string {
	if len(s) > len(DateLayout) {
		return s[:len(DateLayout)]
	}
	return s
}

// Filter keeps the records that satisfy keep.
func Filter[T any](records []T, keep func(T) bool) []T {
	var out []T
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// CountByDay counts records per calendar date.
func CountByDay[T Dated](records []T) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		if d := dateKey(r.GetDate()); d != "" {
			counts[d]++
		}
	}
	return counts
}

// CountOnDay counts the records dated on date.
func CountOnDay[T Dated](records []T, date string) int {
	n := 0
	for _, r := range records {
		if dateKey(r.GetDate()) == date {
			n++
		}
	}
	return n
}

// InRange keeps records dated within [from, to] inclusive.
func InRange[T Dated](records []T, from, to string) []T {
	return Filter(records, func(r T) bool {
		d := dateKey(r.GetDate())
		return d >= from && d <= to
	})
}

// IsDoneToday reports whether any record is dated today.
func IsDoneToday[T Dated](records []T, now time.Time) bool {
	return CountOnDay(records, Today(now)) > 0
}

// ConsecutiveDayStreak returns the longest run of calendar-consecutive
// days, ending at or before today, on which at least minPerDay records
// fall. A day below the threshold or a missing day breaks the run.
func ConsecutiveDayStreak[T Dated](records []T, minPerDay int, now time.Time) int {
	if minPerDay < 1 {
		minPerDay = 1
	}
	today := Today(now)

	counts := CountByDay(records)
	days := make([]time.Time, 0, len(counts))
	for d := range counts {
		if d > today {
			continue
		}
		t, err := ParseDate(d)
		if err != nil {
			continue
		}
		days = append(days, t)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	best, run := 0, 0
	var prev time.Time
	for i, day := range days {
		key := day.Format(DateLayout)
		if counts[key] < minPerDay {
			run = 0
		} else if run > 0 && i > 0 && prev.AddDate(0, 0, 1).Format(DateLayout) == key {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
		prev = day
	}
	return best
}

// CurrentStreak counts consecutive days, walking back from today, on
// which at least minPerDay records fall. It stops at the first day that
// misses the threshold, including today.
func CurrentStreak[T Dated](records []T, minPerDay int, now time.Time) int {
	if minPerDay < 1 {
		minPerDay = 1
	}
	counts := CountByDay(records)
	day := now.Local()
	streak := 0
	for counts[day.Format(DateLayout)] >= minPerDay {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// PercentageProgress returns round(100 * count / goal), rounding halves
// up. It does not clamp; a zero goal yields 0.
func PercentageProgress(count, goal float64) int {
	if goal == 0 {
		return 0
	}
	return int(math.Floor(100*count/goal + 0.5))
}

// Clamp limits a percentage to [0, 100] for display.
func Clamp(percent int) int {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}

// WeekBounds returns the Sunday and Saturday of now's week.
func WeekBounds(now time.Time) (start, end string) {
	local := now.Local()
	first := local.AddDate(0, 0, -int(local.Weekday()))
	return first.Format(DateLayout), first.AddDate(0, 0, 6).Format(DateLayout)
}

// MonthStart returns the first day of now's month.
func MonthStart(now time.Time) string {
	local := now.Local()
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, time.Local).Format(DateLayout)
}
