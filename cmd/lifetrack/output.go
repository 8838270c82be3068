package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/lifetrack/internal/domain"
	"github.com/mmcdole/lifetrack/internal/offline"
	"github.com/mmcdole/lifetrack/internal/search"
	"github.com/mmcdole/lifetrack/internal/streak"
	"github.com/mmcdole/lifetrack/internal/tracker"
	"github.com/mmcdole/lifetrack/internal/tui"
	"github.com/mmcdole/lifetrack/internal/tui/styles"
)

const barWidth = 20

type statusSource interface {
	IsOnline() bool
	ForceOffline() bool
	UserID() string
	PendingSync() []domain.PendingOperation
	Status() offline.Status
	PreloadedAt() (time.Time, bool)
}

func printStatus(w io.Writer, styled bool, s statusSource) {
	pending := s.PendingSync()
	st := s.Status()

	if styled {
		ind := tui.RenderIndicator(tui.Indicator{Online: s.IsOnline(), Pending: len(pending)})
		if ind == "" {
			ind = styles.SuccessStyle.Render("● Online, all changes synced")
		}
		fmt.Fprintln(w, ind)
	} else {
		fmt.Fprintf(w, "online: %t\n", s.IsOnline())
	}
	if s.ForceOffline() {
		fmt.Fprintln(w, "offline override: on")
	}

	user := s.UserID()
	if user == "" {
		user = "(none)"
	}
	fmt.Fprintf(w, "user: %s\n", user)
	fmt.Fprintf(w, "pending: %d\n", len(pending))
	for _, op := range pending {
		fmt.Fprintf(w, "  %s %s %s %s\n",
			op.EnqueuedTime().Format(time.DateTime), op.Kind, op.Collection, op.TargetID())
	}
	fmt.Fprintf(w, "resync: %s\n", st.State)
	if st.LastError != nil {
		fmt.Fprintf(w, "last error: %v\n", st.LastError)
	}
	if !st.LastSync.IsZero() {
		fmt.Fprintf(w, "last sync: %s (%d replayed)\n", st.LastSync.Format(time.DateTime), st.Replayed)
	}
	if at, ok := s.PreloadedAt(); ok {
		fmt.Fprintf(w, "preloaded: %s\n", at.Format(time.DateTime))
	}
}

// formatRecord renders a record as "id  key=value ..." with keys sorted
// and ownership fields left out.
func formatRecord(rec domain.Record) string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		switch k {
		case "id", "user_id", "created_at", "updated_at":
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, rec.ID())
	for _, k := range keys {
		v := rec.String(k)
		if v == "" {
			continue
		}
		if strings.ContainsAny(v, " \t") {
			v = fmt.Sprintf("%q", v)
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, "  ")
}

func printRecords(w io.Writer, styled bool, dataset string, records []domain.Record, fromCache bool) {
	title := fmt.Sprintf("%s (%d)", dataset, len(records))
	if fromCache {
		title += " [cached]"
	}
	if styled {
		title = styles.TitleStyle.Render(title)
	}
	fmt.Fprintln(w, title)
	for _, rec := range records {
		fmt.Fprintln(w, formatRecord(rec))
	}
}

func printSearchResults(w io.Writer, styled bool, dataset string, results []search.Result) {
	title := fmt.Sprintf("%s: %d match(es)", dataset, len(results))
	if styled {
		title = styles.TitleStyle.Render(title)
	}
	fmt.Fprintln(w, title)
	for _, r := range results {
		fmt.Fprintln(w, formatRecord(r.Record))
	}
}

func printPreload(w io.Writer, styled bool, results []domain.RefreshResult) error {
	failed := 0
	for _, r := range results {
		line := fmt.Sprintf("%-20s %4d", r.Dataset, r.Count)
		switch {
		case r.Error != nil:
			failed++
			line += "  cached: " + r.Error.Error()
			if styled {
				line = styles.ErrorStyle.Render(line)
			}
		case r.FromCache:
			line += "  cached"
		}
		fmt.Fprintln(w, line)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d dataset(s) could not be fetched", failed, len(results))
	}
	return nil
}

func printStats(w io.Writer, styled bool, s tracker.Stats) {
	row := func(label string, percent int, detail string) {
		percent = streak.Clamp(percent)
		if styled {
			fmt.Fprintf(w, "%s%s %3d%%  %s\n",
				styles.LabelStyle.Render(label), styles.RenderProgressBar(percent, barWidth), percent,
				styles.DimStyle.Render(detail))
			return
		}
		fmt.Fprintf(w, "%-12s %3d%%  %s\n", label, percent, detail)
	}

	row("Study", s.Study.GoalPercent,
		fmt.Sprintf("%.1fh today, %.1fh this week, streak %d (best %d)",
			s.Study.HoursToday, s.Study.WeekHours, s.Study.Streak, s.Study.BestStreak))
	row("Prayers", s.Prayer.TodayPercent,
		fmt.Sprintf("%d today, streak %d (best %d), %d%% this week, %d jamat, %d kaza",
			s.Prayer.TodayCount, s.Prayer.CurrentStreak, s.Prayer.BestStreak,
			s.Prayer.WeeklyConsistency, s.Prayer.WeeklyJamat, s.Prayer.KazaCount))
	row("Quran", s.Quran.GoalPercent,
		fmt.Sprintf("%d pages today, streak %d, %d%% of days this month",
			s.Quran.PagesToday, s.Quran.CurrentStreak, s.Quran.MonthlyConsistency))
	row("Sleep", s.Sleep.GoalAchieved,
		fmt.Sprintf("avg %.1fh quality %.1f over %d night(s), best streak %d",
			s.Sleep.AverageDuration, s.Sleep.AverageQuality, s.Sleep.Nights, s.Sleep.BestStreak))
	row("Attendance", s.Attendance.Percent,
		fmt.Sprintf("%d present, %d late, %d absent", s.Attendance.Present, s.Attendance.Late, s.Attendance.Absent))
	row("Habits", s.Habits.GoodProgress,
		fmt.Sprintf("%d/%d done today, best streak %d", s.Habits.GoodDone, s.Habits.GoodTotal, s.Habits.BestStreak))

	if len(s.Attendance.BelowTarget) > 0 {
		fmt.Fprintf(w, "below attendance target: %s\n", strings.Join(s.Attendance.BelowTarget, ", "))
	}
	for _, c := range s.TodayClasses {
		fmt.Fprintf(w, "class %s-%s %s %s\n", c.Time, c.EndTime, c.Subject, c.Location)
	}
	for _, e := range s.Exams {
		fmt.Fprintf(w, "exam %s %s in %d day(s), %d%% prepared\n", e.Date, e.Subject, e.DaysUntil, e.Preparation)
	}
}
