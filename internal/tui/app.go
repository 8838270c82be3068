package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/lifetrack/internal/domain"
	"github.com/mmcdole/lifetrack/internal/offline"
	"github.com/mmcdole/lifetrack/internal/streak"
	"github.com/mmcdole/lifetrack/internal/tracker"
	"github.com/mmcdole/lifetrack/internal/tui/styles"
)

const (
	pollInterval = time.Second
	syncTimeout  = 30 * time.Second
	statusTTL    = 4 * time.Second
	barWidth     = 30
)

// Sync is the offline manager surface the indicator drives.
type Sync interface {
	IsOnline() bool
	ForceOffline() bool
	SetForceOffline(force bool)
	PendingSync() []domain.PendingOperation
	SyncPendingData(ctx context.Context) (int, error)
	Status() offline.Status
}

// Model is the main Bubble Tea model for the indicator
type Model struct {
	sync    Sync
	queries *tracker.Queries
	goals   tracker.Goals
	now     func() time.Time

	Keys    KeyMap
	Help    help.Model
	Spinner spinner.Model
	Bar     progress.Model

	// Connectivity and queue state
	Online       bool
	ForceOffline bool
	Pending      int
	Engine       offline.Status
	Syncing      bool

	Stats       tracker.Stats
	StatsLoaded bool

	Width       int
	StatusMsg   string
	StatusIsErr bool
}

// NewModel creates a new indicator model
func NewModel(sync Sync, queries *tracker.Queries, goals tracker.Goals) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.SpinnerStyle

	return Model{
		sync:    sync,
		queries: queries,
		goals:   goals,
		now:     time.Now,
		Keys:    DefaultKeyMap(),
		Help:    help.New(),
		Spinner: sp,
		Bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth), progress.WithoutPercentage()),
		Online:  sync.IsOnline(),
	}
}

// Init reads the initial state and starts polling
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.Spinner.Tick,
		ReadStatusCmd(m.sync),
		LoadStatsCmd(m.queries, m.goals, m.now),
		TickCmd(pollInterval),
	)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tea.Batch(ReadStatusCmd(m.sync), TickCmd(pollInterval))

	case StatusUpdatedMsg:
		m.Online = msg.Online
		m.ForceOffline = msg.ForceOffline
		m.Pending = msg.Pending
		m.Engine = msg.Engine
		return m, nil

	case SyncDoneMsg:
		m.Syncing = false
		cmds := []tea.Cmd{ReadStatusCmd(m.sync), ClearStatusCmd(statusTTL)}
		if msg.Err != nil {
			if offline.IsDrainInProgress(msg.Err) {
				m.setStatus("Sync already running", false)
			} else {
				m.setStatus("Sync failed: "+msg.Err.Error(), true)
			}
			return m, tea.Batch(cmds...)
		}
		m.setStatus(fmt.Sprintf("Synced %d pending change(s)", msg.Replayed), false)
		cmds = append(cmds, LoadStatsCmd(m.queries, m.goals, m.now))
		return m, tea.Batch(cmds...)

	case StatsLoadedMsg:
		m.Stats = msg.Stats
		m.StatsLoaded = true
		return m, nil

	case ErrMsg:
		m.setStatus(msg.Error(), true)
		return m, ClearStatusCmd(statusTTL)

	case ClearStatusMsg:
		m.StatusMsg = ""
		m.StatusIsErr = false
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Sync):
		if m.Syncing {
			return m, nil
		}
		if m.Pending == 0 {
			m.setStatus("Nothing to sync", false)
			return m, ClearStatusCmd(statusTTL)
		}
		m.Syncing = true
		m.setStatus("Syncing...", false)
		return m, SyncCmd(m.sync, syncTimeout)

	case key.Matches(msg, m.Keys.ToggleOffline):
		m.ForceOffline = !m.ForceOffline
		m.sync.SetForceOffline(m.ForceOffline)
		if m.ForceOffline {
			m.setStatus("Working offline", false)
		} else {
			m.setStatus("Offline override cleared", false)
		}
		return m, tea.Batch(ReadStatusCmd(m.sync), ClearStatusCmd(statusTTL))

	case key.Matches(msg, m.Keys.Refresh):
		return m, LoadStatsCmd(m.queries, m.goals, m.now)

	case key.Matches(msg, m.Keys.Help):
		m.Help.ShowAll = !m.Help.ShowAll
		return m, nil
	}
	return m, nil
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.StatusMsg = msg
	m.StatusIsErr = isErr
}

// View renders the indicator, stats and footer
func (m Model) View() string {
	var b strings.Builder

	header := styles.TitleStyle.Render("lifetrack")
	draining := m.Syncing || m.Engine.State == offline.StateDraining
	if ind := RenderIndicator(Indicator{
		Online:   m.Online,
		Pending:  m.Pending,
		Draining: draining,
		Spinner:  m.Spinner.View(),
	}); ind != "" {
		header = lipgloss.JoinHorizontal(lipgloss.Center, header, "  ", ind)
	}
	b.WriteString(header)
	b.WriteString("\n")

	if m.Engine.State == offline.StateFailed && m.Engine.LastError != nil {
		b.WriteString(styles.WarnStyle.Render("Last sync failed: " + m.Engine.LastError.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.StatsLoaded {
		b.WriteString(styles.PanelStyle.Render(m.renderStats()))
		b.WriteString("\n")
	} else {
		b.WriteString(styles.DimStyle.Render("Loading stats..."))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.StatusMsg != "" {
		if m.StatusIsErr {
			b.WriteString(styles.ErrorStyle.Render(m.StatusMsg))
		} else {
			b.WriteString(styles.DimStyle.Render(m.StatusMsg))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.Help.View(m.Keys))
	return b.String()
}

func (m Model) renderStats() string {
	s := m.Stats
	rows := []string{
		m.renderRow("Study", s.Study.GoalPercent, fmt.Sprintf("%.1fh  streak %d", s.Study.HoursToday, s.Study.Streak)),
		m.renderRow("Prayers", s.Prayer.TodayPercent, fmt.Sprintf("%d today  streak %d", s.Prayer.TodayCount, s.Prayer.CurrentStreak)),
		m.renderRow("Quran", s.Quran.GoalPercent, fmt.Sprintf("%d pages  streak %d", s.Quran.PagesToday, s.Quran.CurrentStreak)),
		m.renderRow("Sleep", s.Sleep.GoalAchieved, fmt.Sprintf("avg %.1fh", s.Sleep.AverageDuration)),
		m.renderRow("Attendance", s.Attendance.Percent, fmt.Sprintf("%d%%", s.Attendance.Percent)),
		m.renderRow("Habits", s.Habits.GoodProgress, fmt.Sprintf("%d/%d done", s.Habits.GoodDone, s.Habits.GoodTotal)),
	}
	if len(s.Exams) > 0 {
		next := s.Exams[0]
		rows = append(rows, styles.LabelStyle.Render("Next exam")+
			styles.SubtitleStyle.Render(fmt.Sprintf("%s in %d day(s)", styles.Truncate(next.Subject, 24), next.DaysUntil)))
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderRow(label string, percent int, detail string) string {
	percent = streak.Clamp(percent)
	return styles.LabelStyle.Render(label) +
		m.Bar.ViewAs(float64(percent)/100) + " " +
		styles.DimStyle.Render(detail)
}
