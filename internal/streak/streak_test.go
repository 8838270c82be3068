package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type day string

func (d day) GetDate() string { return string(d) }

func repeat(date string, n int) []day {
	out := make([]day, n)
	for i := range out {
		out[i] = day(date)
	}
	return out
}

func concat(parts ...[]day) []day {
	var out []day
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var now = time.Date(2024, 3, 10, 14, 0, 0, 0, time.Local)

func TestConsecutiveDayStreak(t *testing.T) {
	tests := []struct {
		name      string
		records   []day
		minPerDay int
		expected  int
	}{
		{
			name:      "empty",
			records:   nil,
			minPerDay: 1,
			expected:  0,
		},
		{
			name:      "gap breaks the run",
			records:   []day{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-05"},
			minPerDay: 1,
			expected:  3,
		},
		{
			name:      "unordered input with duplicates",
			records:   []day{"2024-03-03", "2024-03-01", "2024-03-02", "2024-03-02"},
			minPerDay: 1,
			expected:  3,
		},
		{
			name:      "threshold met",
			records:   repeat("2024-03-01", 5),
			minPerDay: 5,
			expected:  1,
		},
		{
			name:      "threshold missed",
			records:   repeat("2024-03-01", 4),
			minPerDay: 5,
			expected:  0,
		},
		{
			name:      "day below threshold breaks streak",
			records:   concat(repeat("2024-03-01", 5), repeat("2024-03-02", 3)),
			minPerDay: 5,
			expected:  1,
		},
		{
			name:      "run resumes after a short day",
			records:   concat(repeat("2024-03-01", 5), repeat("2024-03-02", 3), repeat("2024-03-03", 5), repeat("2024-03-04", 5)),
			minPerDay: 5,
			expected:  2,
		},
		{
			name:      "future days ignored",
			records:   []day{"2024-03-09", "2024-03-10", "2024-03-11", "2024-03-12", "2024-03-13"},
			minPerDay: 1,
			expected:  2,
		},
		{
			name:      "month boundary is consecutive",
			records:   []day{"2024-02-28", "2024-02-29", "2024-03-01"},
			minPerDay: 1,
			expected:  3,
		},
		{
			name:      "timestamps use their date part",
			records:   []day{"2024-03-01T08:00:00Z", "2024-03-02T21:30:00Z"},
			minPerDay: 1,
			expected:  2,
		},
		{
			name:      "unparsable dates skipped",
			records:   []day{"", "yesterday", "2024-03-01"},
			minPerDay: 1,
			expected:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConsecutiveDayStreak(tt.records, tt.minPerDay, now))
		})
	}
}

func TestCurrentStreak(t *testing.T) {
	records := concat(
		repeat("2024-03-10", 5),
		repeat("2024-03-09", 5),
		repeat("2024-03-08", 2),
		repeat("2024-03-07", 5),
	)
	assert.Equal(t, 2, CurrentStreak(records, 5, now))
	assert.Equal(t, 4, CurrentStreak(records, 1, now))

	// Nothing logged today yet ends the streak immediately
	assert.Equal(t, 0, CurrentStreak(records[5:], 5, now))
}

func TestIsDoneToday(t *testing.T) {
	assert.True(t, IsDoneToday([]day{"2024-03-01", "2024-03-10"}, now))
	assert.False(t, IsDoneToday([]day{"2024-03-09"}, now))
	assert.False(t, IsDoneToday([]day{}, now))

	lateEvening := time.Date(2024, 3, 10, 23, 59, 0, 0, time.Local)
	assert.True(t, IsDoneToday([]day{"2024-03-10"}, lateEvening))
}

func TestPercentageProgress(t *testing.T) {
	tests := []struct {
		count, goal float64
		expected    int
	}{
		{2, 3, 67},
		{0, 5, 0},
		{1, 3, 33},
		{1, 8, 13}, // 12.5 rounds up
		{7, 5, 140},
		{3, 0, 0},
		{1.5, 6, 25},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, PercentageProgress(tt.count, tt.goal), "%v/%v", tt.count, tt.goal)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-4))
	assert.Equal(t, 42, Clamp(42))
	assert.Equal(t, 100, Clamp(140))
}

func TestCalendarHelpers(t *testing.T) {
	start, end := WeekBounds(now) // Sunday
	assert.Equal(t, "2024-03-10", start)
	assert.Equal(t, "2024-03-16", end)

	wednesday := time.Date(2024, 3, 13, 9, 0, 0, 0, time.Local)
	start, end = WeekBounds(wednesday)
	assert.Equal(t, "2024-03-10", start)
	assert.Equal(t, "2024-03-16", end)

	assert.Equal(t, "2024-03-01", MonthStart(now))

	d, err := DaysBetween("2024-03-10", "2024-04-01")
	require.NoError(t, err)
	assert.Equal(t, 22, d)

	next, err := AddDays("2024-02-28", 2)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", next)

	_, err = DaysBetween("soon", "2024-04-01")
	assert.Error(t, err)

	records := []day{"2024-03-01", "2024-03-05", "2024-03-10", "2024-03-11"}
	assert.Len(t, InRange(records, "2024-03-05", "2024-03-10"), 2)
	assert.Equal(t, map[string]int{"2024-03-01": 1, "2024-03-05": 1, "2024-03-10": 1, "2024-03-11": 1}, CountByDay(records))
}
