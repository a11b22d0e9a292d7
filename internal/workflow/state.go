// Package workflow gates when correspondences may be collected and when the
// estimated transform may be applied to a layer.
package workflow

import (
	"errors"
	"fmt"
	"strings"

	"georef/internal/alignment"
)

// State is the position of a Session in the georeferencing lifecycle.
type State int

const (
	Idle State = iota
	CollectingPoints
	CollectingLines
	Ready
	Applied
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CollectingPoints:
		return "collecting-points"
	case CollectingLines:
		return "collecting-lines"
	case Ready:
		return "ready"
	case Applied:
		return "applied"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Collecting reports whether the state accepts picks.
func (s State) Collecting() bool {
	return s == CollectingPoints || s == CollectingLines
}

// Mode selects the correspondence kind and, with it, the estimator.
type Mode int

const (
	ModeNone Mode = iota
	ModePoints
	ModeLines
)

func (m Mode) String() string {
	switch m {
	case ModePoints:
		return "points"
	case ModeLines:
		return "lines"
	default:
		return "none"
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode parses "points" or "lines".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "points", "point":
		return ModePoints, nil
	case "lines", "line":
		return ModeLines, nil
	default:
		return ModeNone, fmt.Errorf("unknown correspondence mode %q", s)
	}
}

var (
	// ErrWorkflowNotReady is returned when estimation or application is
	// requested outside the Ready state.
	ErrWorkflowNotReady = errors.New("workflow not ready")

	// ErrInvalidTransition is returned for an event the current state does
	// not accept.
	ErrInvalidTransition = errors.New("invalid workflow transition")
)

// NotReadyError reports an estimation or apply request made outside Ready.
// It matches ErrWorkflowNotReady, and while correspondences are still being
// collected also alignment.ErrInsufficientCorrespondences.
type NotReadyError struct {
	State          State
	CompletedPairs int
	CommittedLines int
	RequiredPairs  int
}

func (e *NotReadyError) Error() string {
	switch e.State {
	case CollectingPoints:
		return fmt.Sprintf("workflow not ready: %d of %d point pairs collected", e.CompletedPairs, e.RequiredPairs)
	case CollectingLines:
		return fmt.Sprintf("workflow not ready: %d of 2 lines committed", e.CommittedLines)
	default:
		return fmt.Sprintf("workflow not ready: session is %s", e.State)
	}
}

func (e *NotReadyError) Unwrap() []error {
	if e.State.Collecting() {
		return []error{ErrWorkflowNotReady, alignment.ErrInsufficientCorrespondences}
	}
	return []error{ErrWorkflowNotReady}
}
