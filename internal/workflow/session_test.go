package workflow

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"georef/internal/alignment"
	"georef/internal/layer"
	"georef/pkg/geometry"
)

func testSession(t *testing.T) *Session {
	t.Helper()
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSession(opts)
}

func testLayer() *layer.Layer {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.LineString{{0, 0}, {1, 0}, {2, 0}}))
	fc.Append(geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}))
	return layer.New("test", fc)
}

// pick feeds reference/layer pairs to the session in pick order.
func pick(t *testing.T, s *Session, picks ...geometry.Point2D) {
	t.Helper()
	for _, p := range picks {
		require.NoError(t, s.PickPoint(p))
	}
}

func pt(x, y float64) geometry.Point2D {
	return geometry.NewPoint2D(x, y)
}

func TestSession_PointMode(t *testing.T) {
	t.Parallel()

	t.Run("apply before three pairs is rejected", func(t *testing.T) {
		t.Parallel()
		s := testSession(t)
		l := testLayer()
		before := l.Features()

		require.NoError(t, s.Begin(ModePoints))
		pick(t, s, pt(10, 20), pt(0, 0), pt(11, 20), pt(1, 0))
		assert.Equal(t, CollectingPoints, s.State())

		_, err := s.Apply(l)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrWorkflowNotReady)
		assert.ErrorIs(t, err, alignment.ErrInsufficientCorrespondences)

		var notReady *NotReadyError
		require.True(t, errors.As(err, &notReady))
		assert.Equal(t, 2, notReady.CompletedPairs)

		assert.Equal(t, CollectingPoints, s.State())
		assert.Equal(t, 2, s.Status().CompletedPairs)
		assert.Equal(t, before[0].Geometry, l.Features()[0].Geometry)
	})

	t.Run("half a pair does not count", func(t *testing.T) {
		t.Parallel()
		s := testSession(t)

		require.NoError(t, s.Begin(ModePoints))
		pick(t, s, pt(10, 20), pt(0, 0), pt(11, 20), pt(1, 0), pt(10, 21))

		st := s.Status()
		assert.Equal(t, CollectingPoints, st.State)
		assert.Equal(t, 2, st.CompletedPairs)
		assert.True(t, st.PendingPick)
	})

	t.Run("third pair makes the session ready and apply remaps the layer", func(t *testing.T) {
		t.Parallel()
		s := testSession(t)
		l := testLayer()

		require.NoError(t, s.Begin(ModePoints))
		pick(t, s, pt(10, 20), pt(0, 0), pt(11, 20), pt(1, 0), pt(10, 21), pt(0, 1))
		require.Equal(t, Ready, s.State())

		pairs := s.Pairs()
		require.Len(t, pairs, 3)
		assert.Equal(t, pt(0, 0), pairs[0].Source)
		assert.Equal(t, pt(10, 20), pairs[0].Target)

		tr, err := s.Apply(l)
		require.NoError(t, err)
		assert.Equal(t, geometry.KindAffine, tr.Kind())
		assert.Equal(t, Applied, s.State())
		assert.Equal(t, tr, s.Transform())

		ls := l.Features()[0].Geometry.(orb.LineString)
		require.Len(t, ls, 3)
		assert.InDelta(t, 12.0, ls[2][0], 1e-9)
		assert.InDelta(t, 20.0, ls[2][1], 1e-9)
	})

	t.Run("picks after ready are rejected", func(t *testing.T) {
		t.Parallel()
		s := testSession(t)

		require.NoError(t, s.Begin(ModePoints))
		pick(t, s, pt(10, 20), pt(0, 0), pt(11, 20), pt(1, 0), pt(10, 21), pt(0, 1))
		assert.ErrorIs(t, s.PickPoint(pt(5, 5)), ErrInvalidTransition)
		assert.Equal(t, 3, s.Status().CompletedPairs)
	})

	t.Run("collinear picks keep the session ready and the layer untouched", func(t *testing.T) {
		t.Parallel()
		s := testSession(t)
		l := testLayer()
		before := l.Features()

		require.NoError(t, s.Begin(ModePoints))
		pick(t, s, pt(0, 0), pt(0, 0), pt(1, 1), pt(1, 0), pt(2, 5), pt(2, 0))

		_, err := s.Apply(l)
		require.ErrorIs(t, err, alignment.ErrDegenerateConfiguration)
		assert.Equal(t, Ready, s.State())
		assert.Nil(t, s.Transform())
		for i := range before {
			assert.Equal(t, before[i].Geometry, l.Features()[i].Geometry)
		}
	})

	t.Run("required pairs is configurable", func(t *testing.T) {
		t.Parallel()
		opts := DefaultOptions()
		opts.RequiredPairs = 4
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		s := NewSession(opts)

		require.NoError(t, s.Begin(ModePoints))
		pick(t, s, pt(10, 20), pt(0, 0), pt(11, 20), pt(1, 0), pt(10, 21), pt(0, 1))
		assert.Equal(t, CollectingPoints, s.State())
		pick(t, s, pt(11, 21), pt(1, 1))
		assert.Equal(t, Ready, s.State())

		tr, err := s.Estimate()
		require.NoError(t, err)
		assert.InDelta(t, 10.0, tr.Affine().TX, 1e-9)
		assert.Equal(t, Ready, s.State())
	})

	t.Run("required pairs cannot go below three", func(t *testing.T) {
		t.Parallel()
		opts := DefaultOptions()
		opts.RequiredPairs = 1
		s := NewSession(opts)

		require.NoError(t, s.Begin(ModePoints))
		pick(t, s, pt(10, 20), pt(0, 0))
		assert.Equal(t, CollectingPoints, s.State())
	})

	t.Run("non-finite pick is rejected", func(t *testing.T) {
		t.Parallel()
		s := testSession(t)

		require.NoError(t, s.Begin(ModePoints))
		assert.Error(t, s.PickPoint(pt(math.NaN(), 0)))
		assert.False(t, s.Status().PendingPick)
	})
}

func TestSession_LineMode(t *testing.T) {
	t.Parallel()

	t.Run("two committed lines apply a similarity", func(t *testing.T) {
		t.Parallel()
		s := testSession(t)
		l := testLayer()

		require.NoError(t, s.Begin(ModeLines))
		pick(t, s, pt(0, 0), pt(1, 0))
		require.NoError(t, s.FinishLine())
		assert.Equal(t, CollectingLines, s.State())

		_, err := s.Apply(l)
		assert.ErrorIs(t, err, ErrWorkflowNotReady)
		assert.ErrorIs(t, err, alignment.ErrInsufficientCorrespondences)

		_, ok := s.LineCorrespondence()
		assert.False(t, ok)

		pick(t, s, pt(0, 0), pt(0, 1), pt(0, 2))
		require.NoError(t, s.FinishLine())
		require.Equal(t, Ready, s.State())
		assert.Len(t, s.Lines(), 2)

		line, ok := s.LineCorrespondence()
		require.True(t, ok)
		assert.Equal(t, geometry.NewSegment(pt(0, 0), pt(1, 0)), line.Source)
		assert.Equal(t, geometry.NewSegment(pt(0, 0), pt(0, 2)), line.Target)

		tr, err := s.Apply(l)
		require.NoError(t, err)
		require.Equal(t, geometry.KindSimilarity, tr.Kind())

		sim := tr.(geometry.SimilarityTransform)
		assert.InDelta(t, 2.0, sim.Scale, 1e-9)
		assert.InDelta(t, math.Pi/2, sim.Rotation, 1e-9)

		ls := l.Features()[0].Geometry.(orb.LineString)
		assert.InDelta(t, 0.0, ls[2][0], 1e-9)
		assert.InDelta(t, 4.0, ls[2][1], 1e-9)
	})

	t.Run("a line needs two points", func(t *testing.T) {
		t.Parallel()
		s := testSession(t)

		require.NoError(t, s.Begin(ModeLines))
		assert.ErrorIs(t, s.FinishLine(), alignment.ErrInsufficientCorrespondences)
		pick(t, s, pt(3, 3))
		assert.ErrorIs(t, s.FinishLine(), alignment.ErrInsufficientCorrespondences)

		st := s.Status()
		assert.Equal(t, 0, st.CommittedLines)
		assert.Equal(t, 1, st.CurrentLinePoints)
	})

	t.Run("closed line is degenerate at apply", func(t *testing.T) {
		t.Parallel()
		s := testSession(t)
		l := testLayer()

		require.NoError(t, s.Begin(ModeLines))
		pick(t, s, pt(0, 0), pt(1, 1), pt(0, 0))
		require.NoError(t, s.FinishLine())
		pick(t, s, pt(0, 0), pt(1, 0))
		require.NoError(t, s.FinishLine())

		_, err := s.Apply(l)
		assert.ErrorIs(t, err, alignment.ErrDegenerateConfiguration)
		assert.Equal(t, Ready, s.State())
	})

	t.Run("finish line outside line mode", func(t *testing.T) {
		t.Parallel()
		s := testSession(t)

		assert.ErrorIs(t, s.FinishLine(), ErrInvalidTransition)
		require.NoError(t, s.Begin(ModePoints))
		assert.ErrorIs(t, s.FinishLine(), ErrInvalidTransition)
	})
}

func TestSession_Transitions(t *testing.T) {
	t.Parallel()

	t.Run("idle rejects picks and apply", func(t *testing.T) {
		t.Parallel()
		s := testSession(t)

		assert.ErrorIs(t, s.PickPoint(pt(0, 0)), ErrInvalidTransition)

		_, err := s.Apply(testLayer())
		assert.ErrorIs(t, err, ErrWorkflowNotReady)
		assert.NotErrorIs(t, err, alignment.ErrInsufficientCorrespondences)

		_, err = s.Estimate()
		assert.ErrorIs(t, err, ErrWorkflowNotReady)
		assert.Equal(t, Idle, s.State())
	})

	t.Run("begin only from idle", func(t *testing.T) {
		t.Parallel()
		s := testSession(t)

		assert.ErrorIs(t, s.Begin(ModeNone), ErrInvalidTransition)
		require.NoError(t, s.Begin(ModeLines))
		assert.ErrorIs(t, s.Begin(ModePoints), ErrInvalidTransition)
		assert.Equal(t, ModeLines, s.Status().Mode)
	})

	t.Run("applied is terminal until reset", func(t *testing.T) {
		t.Parallel()
		s := testSession(t)
		l := testLayer()

		require.NoError(t, s.Begin(ModePoints))
		pick(t, s, pt(10, 20), pt(0, 0), pt(11, 20), pt(1, 0), pt(10, 21), pt(0, 1))
		_, err := s.Apply(l)
		require.NoError(t, err)

		_, err = s.Apply(l)
		assert.ErrorIs(t, err, ErrWorkflowNotReady)
		assert.ErrorIs(t, s.PickPoint(pt(0, 0)), ErrInvalidTransition)
		assert.ErrorIs(t, s.Begin(ModePoints), ErrInvalidTransition)

		s.Reset()
		st := s.Status()
		assert.Equal(t, Idle, st.State)
		assert.Equal(t, ModeNone, st.Mode)
		assert.Zero(t, st.CompletedPairs)
		assert.Nil(t, s.Transform())
		assert.NoError(t, s.Begin(ModePoints))
	})
}

func TestSession_Events(t *testing.T) {
	t.Parallel()

	s := testSession(t)
	var states []State
	var pairs, applied int
	s.On(EventStateChanged, func(ev Event) { states = append(states, ev.State) })
	s.On(EventPairCompleted, func(Event) { pairs++ })
	s.On(EventApplied, func(ev Event) {
		applied++
		assert.NotNil(t, ev.Transform)
	})

	require.NoError(t, s.Begin(ModePoints))
	pick(t, s, pt(10, 20), pt(0, 0), pt(11, 20), pt(1, 0), pt(10, 21), pt(0, 1))
	_, err := s.Apply(testLayer())
	require.NoError(t, err)
	s.Reset()

	assert.Equal(t, []State{CollectingPoints, Ready, Applied, Idle}, states)
	assert.Equal(t, 3, pairs)
	assert.Equal(t, 1, applied)
	assert.NotEmpty(t, s.ID())
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	m, err := ParseMode("Points")
	require.NoError(t, err)
	assert.Equal(t, ModePoints, m)

	m, err = ParseMode("line")
	require.NoError(t, err)
	assert.Equal(t, ModeLines, m)

	_, err = ParseMode("polygons")
	assert.Error(t, err)

	text, err := Ready.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "ready", string(text))
}
