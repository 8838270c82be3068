package tui

import (
	"fmt"

	"github.com/mmcdole/lifetrack/internal/tui/styles"
)

// Indicator is the state rendered by RenderIndicator.
type Indicator struct {
	Online   bool
	Pending  int
	Draining bool
	Spinner  string // current spinner frame, shown while draining
}

// RenderIndicator renders the connectivity badge. It is empty when online
// with nothing pending.
func RenderIndicator(ind Indicator) string {
	if ind.Online && ind.Pending == 0 {
		return ""
	}

	if ind.Online {
		text := "● Online"
		if ind.Pending > 0 {
			if ind.Draining && ind.Spinner != "" {
				text += " " + ind.Spinner
			}
			text += fmt.Sprintf(" (%d)", ind.Pending)
		}
		return styles.OnlineBadgeStyle.Render(text)
	}

	text := "○ Offline"
	if ind.Pending > 0 {
		text += fmt.Sprintf(" (%d)", ind.Pending)
	}
	return styles.OfflineBadgeStyle.Render(text)
}
