package views

import (
	"fmt"
	"time"

	"github.com/rivetr/rivetr-console/internal/stream"
	"github.com/rivetr/rivetr-console/internal/ui/styles"
)

// Badge renders the connection badge of a stream. spin is the spinner frame
// shown while reconnecting.
func Badge(st stream.State, spin string) string {
	label := st.Badge()
	switch st.Phase {
	case stream.PhaseOpen:
		return styles.BadgeOK.Render(label)
	case stream.PhaseReconnecting:
		if spin != "" {
			label = spin + " " + label
		}
		return styles.BadgeWarning.Render(label)
	case stream.PhaseFailed:
		return styles.BadgeError.Render(label)
	default:
		return styles.BadgeMuted.Render(label)
	}
}

// StatusDetail is the line shown next to the badge
func StatusDetail(st stream.State, maxAttempts int) string {
	switch st.Phase {
	case stream.PhaseConnecting:
		if st.Attempt > 0 {
			return styles.Muted.Render(fmt.Sprintf("connecting (attempt %d/%d)", st.Attempt, maxAttempts))
		}
		return styles.Muted.Render("connecting")
	case stream.PhaseReconnecting:
		detail := fmt.Sprintf("attempt %d/%d in %s", st.Attempt, maxAttempts, st.RetryIn.Round(time.Millisecond))
		if st.Err != "" {
			return styles.LogError.Render(st.Err) + styles.Muted.Render(" - "+detail)
		}
		return styles.Muted.Render(detail)
	case stream.PhaseFailed:
		return styles.LogError.Render(st.Err) + styles.Muted.Render(" - press r to reconnect")
	case stream.PhaseIdle:
		return styles.Muted.Render("press r to connect")
	default:
		return ""
	}
}
