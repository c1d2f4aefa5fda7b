package components

import (
	"fmt"
	"time"

	"github.com/mcoot/puzzlegame/internal/model"
)

// StatusElementID is the DOM id of the session status block
const StatusElementID = "session-status"

// StatusEventName is the SSE event that carries a re-rendered status block
const StatusEventName = "session-status"

// FormatElapsed renders a duration rounded to whole seconds
func FormatElapsed(d time.Duration) string {
	return d.Round(time.Second).String()
}

func elapsedSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

func stateLabel(state model.SessionState) string {
	switch state {
	case model.SessionStateInProgress:
		return "In progress"
	case model.SessionStateCompleted:
		return "Completed"
	default:
		return "Not started"
	}
}
