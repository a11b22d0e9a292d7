package workflow

import (
	"fmt"
	"log/slog"
	"sync"

	"georef/internal/alignment"
	"georef/internal/correspondence"
	"georef/internal/layer"
	"georef/pkg/geometry"

	"github.com/google/uuid"
)

// RequiredLines is the number of committed lines that makes a line-mode
// session Ready. The first line is the layer segment, the second the
// reference segment.
const RequiredLines = 2

// Options configures a Session.
type Options struct {
	// RequiredPairs is the number of completed point pairs that makes a
	// point-mode session Ready. Values below alignment.MinAffinePairs are
	// raised to it.
	RequiredPairs int

	Estimator alignment.Options
	Logger    *slog.Logger
}

// DefaultOptions returns default session options.
func DefaultOptions() Options {
	return Options{
		RequiredPairs: alignment.MinAffinePairs,
		Estimator:     alignment.DefaultOptions(),
	}
}

// EventType identifies session events.
type EventType int

const (
	EventStateChanged EventType = iota
	EventPointPicked
	EventPairCompleted
	EventLineCommitted
	EventApplied
	EventApplyFailed
)

// Event describes something that happened to a session.
type Event struct {
	Type      EventType
	State     State
	Point     geometry.Point2D
	Pair      correspondence.Pair
	Transform geometry.Transform
	Err       error
}

// EventListener is called after the session lock is released.
type EventListener func(Event)

// Status is a snapshot of a session.
type Status struct {
	ID                string `json:"id"`
	State             State  `json:"state"`
	Mode              Mode   `json:"mode"`
	CompletedPairs    int    `json:"completed_pairs"`
	PendingPick       bool   `json:"pending_pick"`
	CurrentLinePoints int    `json:"current_line_points"`
	CommittedLines    int    `json:"committed_lines"`
}

// Session is one georeferencing cycle: collect correspondences, estimate,
// apply. A single lock covers the collected data and the apply step, so a
// layer is never seen half remapped by another caller of the session.
type Session struct {
	mu sync.Mutex

	id     string
	opts   Options
	logger *slog.Logger

	state State
	mode  Mode

	pairs       correspondence.Builder
	currentLine []geometry.Point2D
	lines       [][]geometry.Point2D

	transform geometry.Transform

	lmu       sync.RWMutex
	listeners map[EventType][]EventListener
}

// NewSession creates an Idle session.
func NewSession(opts Options) *Session {
	if opts.RequiredPairs < alignment.MinAffinePairs {
		opts.RequiredPairs = alignment.MinAffinePairs
	}
	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:        id,
		opts:      opts,
		logger:    logger.With("session", id),
		listeners: make(map[EventType][]EventListener),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// On registers a listener for the given event type.
func (s *Session) On(event EventType, listener EventListener) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

func (s *Session) emit(events ...Event) {
	for _, ev := range events {
		s.lmu.RLock()
		listeners := s.listeners[ev.Type]
		s.lmu.RUnlock()

		for _, listener := range listeners {
			listener(ev)
		}
	}
}

// Begin starts collecting correspondences in the given mode. Only an Idle
// session can begin.
func (s *Session) Begin(mode Mode) error {
	s.mu.Lock()
	if s.state != Idle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("begin %s collection while %s: %w", mode, state, ErrInvalidTransition)
	}

	var next State
	switch mode {
	case ModePoints:
		next = CollectingPoints
	case ModeLines:
		next = CollectingLines
	default:
		s.mu.Unlock()
		return fmt.Errorf("begin collection in mode %s: %w", mode, ErrInvalidTransition)
	}
	s.mode = mode
	ev := s.setState(next)
	s.mu.Unlock()

	s.emit(ev)
	return nil
}

// PickPoint records one picked point. In point mode picks alternate between
// the reference map and the layer, and the session becomes Ready once
// RequiredPairs pairs are complete. In line mode the point extends the line
// in progress.
func (s *Session) PickPoint(p geometry.Point2D) error {
	s.mu.Lock()
	events, err := s.pickLocked(p)
	s.mu.Unlock()

	s.emit(events...)
	return err
}

func (s *Session) pickLocked(p geometry.Point2D) ([]Event, error) {
	switch s.state {
	case CollectingPoints:
		pair, done, err := s.pairs.Add(p)
		if err != nil {
			return nil, err
		}
		events := []Event{{Type: EventPointPicked, State: s.state, Point: p}}
		if !done {
			return events, nil
		}
		events = append(events, Event{Type: EventPairCompleted, State: s.state, Pair: pair})
		s.logger.Debug("pair completed", "pairs", s.pairs.Len(), "required", s.opts.RequiredPairs)
		if s.pairs.Len() >= s.opts.RequiredPairs {
			events = append(events, s.setState(Ready))
		}
		return events, nil

	case CollectingLines:
		if !p.IsFinite() {
			return nil, fmt.Errorf("pick %v: %w", p, correspondence.ErrNonFinitePoint)
		}
		s.currentLine = append(s.currentLine, p)
		return []Event{{Type: EventPointPicked, State: s.state, Point: p}}, nil

	default:
		return nil, fmt.Errorf("pick point while %s: %w", s.state, ErrInvalidTransition)
	}
}

// FinishLine commits the line in progress and starts a new one. A line
// needs at least two points. The session becomes Ready after the second
// committed line.
func (s *Session) FinishLine() error {
	s.mu.Lock()
	events, err := s.finishLineLocked()
	s.mu.Unlock()

	s.emit(events...)
	return err
}

func (s *Session) finishLineLocked() ([]Event, error) {
	if s.state != CollectingLines {
		return nil, fmt.Errorf("finish line while %s: %w", s.state, ErrInvalidTransition)
	}
	if len(s.currentLine) < 2 {
		return nil, fmt.Errorf("line has %d points, need 2: %w",
			len(s.currentLine), alignment.ErrInsufficientCorrespondences)
	}

	s.lines = append(s.lines, s.currentLine)
	s.currentLine = nil
	s.logger.Debug("line committed", "lines", len(s.lines))

	events := []Event{{Type: EventLineCommitted, State: s.state}}
	if len(s.lines) >= RequiredLines {
		events = append(events, s.setState(Ready))
	}
	return events, nil
}

// Estimate runs the estimator for the session mode without touching any
// layer. It is only allowed from Ready.
func (s *Session) Estimate() (geometry.Transform, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Ready {
		return nil, s.notReady()
	}
	return s.estimateLocked()
}

// Apply estimates the transform and remaps every geometry of l. It is only
// allowed from Ready. On failure the session stays Ready and l is left
// unchanged; on success the session becomes Applied.
func (s *Session) Apply(l *layer.Layer) (geometry.Transform, error) {
	s.mu.Lock()
	t, events, err := s.applyLocked(l)
	s.mu.Unlock()

	s.emit(events...)
	return t, err
}

func (s *Session) applyLocked(l *layer.Layer) (geometry.Transform, []Event, error) {
	if s.state != Ready {
		return nil, nil, s.notReady()
	}

	t, err := s.estimateLocked()
	if err != nil {
		s.logger.Warn("estimation failed", "mode", s.mode, "error", err)
		return nil, []Event{{Type: EventApplyFailed, State: s.state, Err: err}}, err
	}

	if err := l.Apply(t); err != nil {
		s.logger.Warn("apply failed", "layer", l.Name(), "transform", t, "error", err)
		err = fmt.Errorf("apply %s transform: %w", t.Kind(), err)
		return nil, []Event{{Type: EventApplyFailed, State: s.state, Err: err}}, err
	}

	s.transform = t
	attrs := []any{"layer", l.Name(), "transform", t, "features", l.Len()}
	if s.mode == ModePoints {
		summary := alignment.Summarize(alignment.Residuals(s.pairs.Pairs(), t))
		attrs = append(attrs, "rms_error", summary.RMS, "max_error", summary.Max)
	}
	s.logger.Info("transform applied", attrs...)

	return t, []Event{
		s.setState(Applied),
		{Type: EventApplied, State: Applied, Transform: t},
	}, nil
}

func (s *Session) estimateLocked() (geometry.Transform, error) {
	switch s.mode {
	case ModePoints:
		t, err := alignment.EstimateAffine(s.pairs.Pairs(), s.opts.Estimator)
		if err != nil {
			return nil, fmt.Errorf("estimate affine transform: %w", err)
		}
		return t, nil
	case ModeLines:
		t, err := alignment.EstimateSimilarity(s.lineCorrespondence(), s.opts.Estimator)
		if err != nil {
			return nil, fmt.Errorf("estimate similarity transform: %w", err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("estimate in mode %s: %w", s.mode, ErrInvalidTransition)
	}
}

// LineCorrespondence returns the segment pair line mode estimates from, or
// false while fewer than two lines are committed.
func (s *Session) LineCorrespondence() (correspondence.Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.lines) < RequiredLines {
		return correspondence.Line{}, false
	}
	return s.lineCorrespondence(), true
}

// lineCorrespondence uses the first two committed lines, each reduced to
// the segment from its first to its last point.
func (s *Session) lineCorrespondence() correspondence.Line {
	seg := func(line []geometry.Point2D) geometry.Segment {
		return geometry.NewSegment(line[0], line[len(line)-1])
	}
	return correspondence.NewLine(seg(s.lines[0]), seg(s.lines[1]))
}

func (s *Session) notReady() error {
	return &NotReadyError{
		State:          s.state,
		CompletedPairs: s.pairs.Len(),
		CommittedLines: len(s.lines),
		RequiredPairs:  s.opts.RequiredPairs,
	}
}

// Reset discards everything collected and returns the session to Idle.
func (s *Session) Reset() {
	s.mu.Lock()
	s.mode = ModeNone
	s.pairs.Reset()
	s.currentLine = nil
	s.lines = nil
	s.transform = nil
	ev := s.setState(Idle)
	s.mu.Unlock()

	s.emit(ev)
}

// setState must be called with mu held.
func (s *Session) setState(next State) Event {
	s.logger.Info("state changed", "from", s.state, "to", next)
	s.state = next
	return Event{Type: EventStateChanged, State: next}
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, pending := s.pairs.Pending()
	return Status{
		ID:                s.id,
		State:             s.state,
		Mode:              s.mode,
		CompletedPairs:    s.pairs.Len(),
		PendingPick:       pending,
		CurrentLinePoints: len(s.currentLine),
		CommittedLines:    len(s.lines),
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transform returns the applied transform, or nil before Applied.
func (s *Session) Transform() geometry.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transform
}

// Pairs returns the completed point pairs.
func (s *Session) Pairs() []correspondence.Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairs.Pairs()
}

// Lines returns copies of the committed lines.
func (s *Session) Lines() [][]geometry.Point2D {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]geometry.Point2D, len(s.lines))
	for i, line := range s.lines {
		out[i] = append([]geometry.Point2D(nil), line...)
	}
	return out
}
