// Package progress tracks the per-service rows of the autostart table.
// It knows nothing about the channel or the protocol phases; it only
// applies progress, error and finish events to rows that already exist.
package progress

import (
	"math"
	"strconv"
)

// VisualState is the derived display state of a row.
type VisualState int

const (
	Pending VisualState = iota
	InProgress
	Failed
	Finished
)

// String implements fmt.Stringer.
func (s VisualState) String() string {
	switch s {
	case Pending:
		return "pending"
	case InProgress:
		return "in progress"
	case Failed:
		return "failed"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further events may change the row.
func (s VisualState) Terminal() bool {
	return s == Failed || s == Finished
}

// Style is the colour class applied to a row's bar.
type Style int

const (
	StyleNone Style = iota
	StyleInProgress
	StyleSuccess
	StyleFailure
)

// Style returns the colour class for the state.
func (s VisualState) Style() Style {
	switch s {
	case InProgress:
		return StyleInProgress
	case Finished:
		return StyleSuccess
	case Failed:
		return StyleFailure
	default:
		return StyleNone
	}
}

// Entry is one service row.
type Entry struct {
	ID          string
	TotalSteps  int // 0 until the first progress update
	CurrentStep int
	StatusText  string
	Percent     int
	State       VisualState

	// finish copies the total into the current counter, which leaves both
	// blank when no total was ever reported.
	currentKnown bool
}

// StepsLabel is the text of the step-total counter.
func (e Entry) StepsLabel() string {
	if e.TotalSteps == 0 {
		return "-"
	}
	return strconv.Itoa(e.TotalSteps)
}

// CurrentLabel is the text of the current-step counter.
func (e Entry) CurrentLabel() string {
	if !e.currentKnown {
		return "-"
	}
	return strconv.Itoa(e.CurrentStep)
}

// Percentage returns round(current/steps*100) with halves rounded up.
// steps must be positive and current within [0, steps].
// Computed in float64 so large step counts cannot overflow.
func Percentage(current, steps int) int {
	return int(math.Floor(float64(current)*100/float64(steps) + 0.5))
}
