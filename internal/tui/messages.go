package tui

import (
	"github.com/mmcdole/lifetrack/internal/offline"
	"github.com/mmcdole/lifetrack/internal/tracker"
)

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// TickMsg is sent periodically to re-read connectivity and queue state
type TickMsg struct{}

// StatusUpdatedMsg carries a fresh read of the offline manager
type StatusUpdatedMsg struct {
	Online       bool
	ForceOffline bool
	Pending      int
	Engine       offline.Status
}

// SyncDoneMsg signals that a manual sync finished
type SyncDoneMsg struct {
	Replayed int
	Err      error
}

// StatsLoadedMsg carries stats computed from the offline cache
type StatsLoadedMsg struct {
	Stats tracker.Stats
}

// ClearStatusMsg clears the footer status message
type ClearStatusMsg struct{}
