package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/lifetrack/internal/tracker"
)

// ReadStatusCmd reads connectivity and queue state from the manager
func ReadStatusCmd(s Sync) tea.Cmd {
	return func() tea.Msg {
		return StatusUpdatedMsg{
			Online:       s.IsOnline(),
			ForceOffline: s.ForceOffline(),
			Pending:      len(s.PendingSync()),
			Engine:       s.Status(),
		}
	}
}

// SyncCmd drains the pending queue
func SyncCmd(s Sync, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		n, err := s.SyncPendingData(ctx)
		return SyncDoneMsg{Replayed: n, Err: err}
	}
}

// LoadStatsCmd computes stats from the cached snapshot
func LoadStatsCmd(q *tracker.Queries, goals tracker.Goals, now func() time.Time) tea.Cmd {
	return func() tea.Msg {
		snap, err := q.Snapshot()
		if err != nil {
			return ErrMsg{Err: err, Context: "Loading stats"}
		}
		return StatsLoadedMsg{Stats: tracker.Compute(snap, goals, now())}
	}
}

// TickCmd returns a command that sends a tick after a delay
func TickCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// ClearStatusCmd returns a command that clears status after a delay
func ClearStatusCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}
