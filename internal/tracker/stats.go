package tracker

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/lifetrack/internal/domain"
	"github.com/mmcdole/lifetrack/internal/streak"
)

// Goals are the daily targets progress is measured against.
type Goals struct {
	DailyStudyHours  float64
	PrayersPerDay    int
	DailyQuranPages  float64
	SleepHours       float64
	AttendanceTarget float64 // percent
}

// DefaultGoals returns the targets used when nothing is configured.
func DefaultGoals() Goals {
	return Goals{
		DailyStudyHours:  6,
		PrayersPerDay:    5,
		DailyQuranPages:  2,
		SleepHours:       8,
		AttendanceTarget: 85,
	}
}

// WithProfile applies the goals a user saved on their profile.
func (g Goals) WithProfile(p *domain.Profile) Goals {
	if p == nil {
		return g
	}
	if p.DailyStudyGoal > 0 {
		g.DailyStudyHours = p.DailyStudyGoal
	}
	if p.SleepGoal > 0 {
		g.SleepHours = p.SleepGoal
	}
	return g
}

type StudyStats struct {
	HoursToday  float64            `json:"hours_today"`
	GoalPercent int                `json:"goal_percent"`
	DoneToday   bool               `json:"done_today"`
	Streak      int                `json:"streak"`
	BestStreak  int                `json:"best_streak"`
	WeekHours   float64            `json:"week_hours"`
	BySubject   map[string]float64 `json:"by_subject"`
}

func ComputeStudy(sessions []domain.StudySession, goalHours float64, now time.Time) StudyStats {
	today := streak.Today(now)
	weekStart, weekEnd := streak.WeekBounds(now)

	s := StudyStats{BySubject: make(map[string]float64)}
	for _, sess := range sessions {
		if sess.Date == today {
			s.HoursToday += sess.Duration
		}
		if sess.Date >= weekStart && sess.Date <= weekEnd {
			s.WeekHours += sess.Duration
		}
		s.BySubject[sess.Subject] += sess.Duration
	}
	s.HoursToday = round1(s.HoursToday)
	s.WeekHours = round1(s.WeekHours)
	s.GoalPercent = streak.PercentageProgress(s.HoursToday, goalHours)
	s.DoneToday = streak.IsDoneToday(sessions, now)
	s.Streak = streak.CurrentStreak(sessions, 1, now)
	s.BestStreak = streak.ConsecutiveDayStreak(sessions, 1, now)
	return s
}

type PrayerStats struct {
	TodayCount        int `json:"today_count"`
	TodayPercent      int `json:"today_percent"`
	CurrentStreak     int `json:"current_streak"`
	BestStreak        int `json:"best_streak"`
	WeeklyTotal       int `json:"weekly_total"`
	WeeklyJamat       int `json:"weekly_jamat"`
	WeeklyConsistency int `json:"weekly_consistency"`
	MonthlyProgress   int `json:"monthly_progress"`
	KazaCount         int `json:"kaza_count"`
}

// ComputePrayer measures prayers against perDay. Kaza prayers are left
// out of today's and this week's totals but still count toward the
// current streak and monthly progress.
func ComputePrayer(records []domain.PrayerRecord, perDay int, now time.Time) PrayerStats {
	if perDay <= 0 {
		perDay = 5
	}
	regular := streak.Filter(records, domain.PrayerRecord.IsRegular)

	var s PrayerStats
	s.KazaCount = len(records) - len(regular)
	s.TodayCount = streak.CountOnDay(regular, streak.Today(now))
	s.TodayPercent = streak.PercentageProgress(float64(s.TodayCount), float64(perDay))
	s.CurrentStreak = streak.CurrentStreak(records, perDay, now)
	s.BestStreak = streak.ConsecutiveDayStreak(regular, perDay, now)

	weekStart, weekEnd := streak.WeekBounds(now)
	week := streak.InRange(regular, weekStart, weekEnd)
	s.WeeklyTotal = len(week)
	for _, p := range week {
		if p.PrayerType == domain.PrayerJamat {
			s.WeeklyJamat++
		}
	}
	s.WeeklyConsistency = streak.PercentageProgress(float64(s.WeeklyTotal), float64(perDay*7))

	month := streak.InRange(records, streak.MonthStart(now), streak.Today(now))
	s.MonthlyProgress = streak.PercentageProgress(float64(len(month)), float64(now.Local().Day()*perDay))
	return s
}

type QuranStats struct {
	PagesToday         int  `json:"pages_today"`
	GoalPercent        int  `json:"goal_percent"`
	DoneToday          bool `json:"done_today"`
	CurrentStreak      int  `json:"current_streak"`
	BestStreak         int  `json:"best_streak"`
	MonthlyConsistency int  `json:"monthly_consistency"`
	WeekPages          int  `json:"week_pages"`
	TotalPages         int  `json:"total_pages"`
}

func ComputeQuran(readings []domain.QuranReading, dailyPages float64, now time.Time) QuranStats {
	today := streak.Today(now)
	weekStart, weekEnd := streak.WeekBounds(now)

	var s QuranStats
	for _, r := range readings {
		s.TotalPages += r.Pages
		if r.Date == today {
			s.PagesToday += r.Pages
		}
		if r.Date >= weekStart && r.Date <= weekEnd {
			s.WeekPages += r.Pages
		}
	}
	s.GoalPercent = streak.PercentageProgress(float64(s.PagesToday), dailyPages)
	s.DoneToday = streak.IsDoneToday(readings, now)
	s.CurrentStreak = streak.CurrentStreak(readings, 1, now)
	s.BestStreak = streak.ConsecutiveDayStreak(readings, 1, now)

	monthSessions := streak.InRange(readings, streak.MonthStart(now), today)
	s.MonthlyConsistency = streak.PercentageProgress(float64(len(monthSessions)), float64(daysInMonth(now)))
	return s
}

type SleepStats struct {
	Nights          int                 `json:"nights"`
	AverageDuration float64             `json:"average_duration"`
	AverageQuality  float64             `json:"average_quality"`
	GoalAchieved    int                 `json:"goal_achieved"` // percent of nights meeting the goal
	BestStreak      int                 `json:"best_streak"` // consecutive nights meeting the goal
	LastNight       *domain.SleepRecord `json:"last_night"`
}

func ComputeSleep(records []domain.SleepRecord, goalHours float64, now time.Time) SleepStats {
	s := SleepStats{Nights: len(records)}
	if len(records) == 0 {
		return s
	}

	var totalDuration, totalQuality float64
	met := streak.Filter(records, func(r domain.SleepRecord) bool { return r.Duration >= goalHours })
	for i, r := range records {
		totalDuration += r.Duration
		totalQuality += r.Quality
		if s.LastNight == nil || r.Date > s.LastNight.Date {
			s.LastNight = &records[i]
		}
	}
	s.AverageDuration = round1(totalDuration / float64(len(records)))
	s.AverageQuality = round1(totalQuality / float64(len(records)))
	s.GoalAchieved = streak.PercentageProgress(float64(len(met)), float64(len(records)))
	s.BestStreak = streak.ConsecutiveDayStreak(met, 1, now)
	return s
}

type AttendanceStats struct {
	Present     int            `json:"present"`
	Absent      int            `json:"absent"`
	Late        int            `json:"late"`
	Percent     int            `json:"percent"`
	BySubject   map[string]int `json:"by_subject"` // attendance percent per subject
	BelowTarget []string       `json:"below_target"` // subjects under the target, sorted
}

func ComputeAttendance(records []domain.Attendance, target float64) AttendanceStats {
	s := AttendanceStats{BySubject: make(map[string]int)}
	present := make(map[string]int)
	total := make(map[string]int)

	for _, r := range records {
		switch r.Status {
		case domain.AttendancePresent:
			s.Present++
			present[r.Subject]++
		case domain.AttendanceAbsent:
			s.Absent++
		case domain.AttendanceLate:
			s.Late++
		}
		total[r.Subject]++
	}
	s.Percent = streak.PercentageProgress(float64(s.Present), float64(len(records)))

	for subject, n := range total {
		pct := streak.PercentageProgress(float64(present[subject]), float64(n))
		s.BySubject[subject] = pct
		if float64(pct) < target {
			s.BelowTarget = append(s.BelowTarget, subject)
		}
	}
	sort.Strings(s.BelowTarget)
	return s
}

type HabitView struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Type      domain.HabitType `json:"type"`
	Streak    int              `json:"streak"`
	DoneToday bool             `json:"done_today"`
	DaysFree  int              `json:"days_free"` // bad habits only
}

type HabitStats struct {
	Habits       []HabitView `json:"habits"`
	GoodTotal    int         `json:"good_total"`
	GoodDone     int         `json:"good_done"`
	GoodProgress int         `json:"good_progress"`
	BestStreak   int         `json:"best_streak"`
	Active       int         `json:"active"` // habits with a running streak
}

func ComputeHabits(habits []domain.Habit, now time.Time) HabitStats {
	today := streak.Today(now)

	var s HabitStats
	for _, h := range habits {
		v := HabitView{
			ID:        h.ID,
			Name:      h.Name,
			Type:      h.Type,
			Streak:    h.Streak,
			DoneToday: h.LastCompleted == today,
		}
		if h.Type == domain.HabitBad {
			v.DaysFree = daysSince(h.LastCompleted, today)
		} else {
			s.GoodTotal++
			if v.DoneToday {
				s.GoodDone++
			}
			if h.Streak > s.BestStreak {
				s.BestStreak = h.Streak
			}
		}
		if h.Streak > 0 {
			s.Active++
		}
		s.Habits = append(s.Habits, v)
	}
	s.GoodProgress = streak.PercentageProgress(float64(s.GoodDone), float64(s.GoodTotal))
	return s
}

// ToggleHabit returns the patch that checks or unchecks h for today.
// Checking a good habit extends its streak and unchecking gives the day
// back. Marking a bad habit as done resets its streak.
func ToggleHabit(h domain.Habit, now time.Time) domain.Record {
	today := streak.Today(now)
	doneToday := h.LastCompleted == today

	if h.Type == domain.HabitBad {
		if doneToday {
			return domain.Record{"streak": h.Streak, "last_completed": h.LastCompleted}
		}
		return domain.Record{"streak": 0, "last_completed": today}
	}

	if !doneToday {
		return domain.Record{"streak": h.Streak + 1, "last_completed": today}
	}
	remaining := h.Streak - 1
	if remaining <= 0 {
		return domain.Record{"streak": 0, "last_completed": ""}
	}
	yesterday, _ := streak.AddDays(today, -1)
	return domain.Record{"streak": remaining, "last_completed": yesterday}
}

type ExamView struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	Date        string `json:"date"`
	DaysUntil   int    `json:"days_until"`
	Preparation int    `json:"preparation"` // percent of target study hours
}

// ComputeExams lists upcoming exams, soonest first.
func ComputeExams(exams []domain.Exam, now time.Time) []ExamView {
	today := streak.Today(now)

	var out []ExamView
	for _, e := range exams {
		days, err := streak.DaysBetween(today, e.Date)
		if err != nil || days < 0 {
			continue
		}
		out = append(out, ExamView{
			ID:          e.ID,
			Subject:     e.Subject,
			Date:        e.Date,
			DaysUntil:   days,
			Preparation: streak.PercentageProgress(e.StudyHours, e.TargetHours),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// ClassesOn returns the scheduled classes for now's weekday, by start time.
func ClassesOn(schedule []domain.ClassSchedule, now time.Time) []domain.ClassSchedule {
	weekday := now.Local().Weekday().String()
	out := streak.Filter(schedule, func(c domain.ClassSchedule) bool {
		return strings.EqualFold(c.Day, weekday)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// Stats is the dashboard view across every tracker.
type Stats struct {
	Study        StudyStats             `json:"study"`
	Prayer       PrayerStats            `json:"prayer"`
	Quran        QuranStats             `json:"quran"`
	Sleep        SleepStats             `json:"sleep"`
	Attendance   AttendanceStats        `json:"attendance"`
	Habits       HabitStats             `json:"habits"`
	Exams        []ExamView             `json:"exams"`
	TodayClasses []domain.ClassSchedule `json:"today_classes"`
}

// Compute derives every tracker's stats from a snapshot.
func Compute(s Snapshot, goals Goals, now time.Time) Stats {
	goals = goals.WithProfile(s.Profile)
	return Stats{
		Study:        ComputeStudy(s.Study, goals.DailyStudyHours, now),
		Prayer:       ComputePrayer(s.Prayers, goals.PrayersPerDay, now),
		Quran:        ComputeQuran(s.Quran, goals.DailyQuranPages, now),
		Sleep:        ComputeSleep(s.Sleep, goals.SleepHours, now),
		Attendance:   ComputeAttendance(s.Attendance, goals.AttendanceTarget),
		Habits:       ComputeHabits(s.Habits, now),
		Exams:        ComputeExams(s.Exams, now),
		TodayClasses: ClassesOn(s.Schedule, now),
	}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func daysInMonth(now time.Time) int {
	local := now.Local()
	return time.Date(local.Year(), local.Month()+1, 0, 0, 0, 0, 0, time.Local).Day()
}

func daysSince(date, today string) int {
	if date == "" {
		return 0
	}
	days, err := streak.DaysBetween(date, today)
	if err != nil || days < 0 {
		return 0
	}
	return days
}
