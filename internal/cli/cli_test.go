package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"georef/internal/correspondence"
	"georef/internal/project"
	"georef/internal/workflow"
	"georef/pkg/geometry"
)

const sampleLayer = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "well"}, "geometry": {"type": "Point", "coordinates": [2, 3]}},
    {"type": "Feature", "properties": {"name": "road"}, "geometry": {"type": "LineString", "coordinates": [[0, 0], [4, 0]]}}
  ]
}`

// writeSession writes a point-mode session whose pairs describe a
// translation by (10, 20), plus the layer it refers to.
func writeSession(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	layerPath := filepath.Join(dir, "sheet.geojson")
	require.NoError(t, os.WriteFile(layerPath, []byte(sampleLayer), 0644))

	sessionPath := filepath.Join(dir, "sheet.json")
	f := project.New("sheet", workflow.ModePoints)
	f.SetLayer(sessionPath, layerPath)
	for _, src := range []geometry.Point2D{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}} {
		f.AddPair(correspondence.Pair{Source: src, Target: src.Add(geometry.NewPoint2D(10, 20))})
	}
	require.NoError(t, f.Save(sessionPath))
	return sessionPath
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := NewRootCommand(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestFit(t *testing.T) {
	t.Parallel()

	session := writeSession(t)
	plotPath := filepath.Join(t.TempDir(), "residuals.png")

	stdout, stderr, err := run(t, "fit", "--session", session, "--plot", plotPath, "--log-format", "json")
	require.NoError(t, err, stderr)

	var r struct {
		Session string        `json:"session"`
		Kind    string        `json:"kind"`
		Matrix  [2][3]float64 `json:"matrix"`
		Summary struct {
			Count int     `json:"count"`
			Max   float64 `json:"max"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &r))
	assert.Equal(t, "sheet", r.Session)
	assert.Equal(t, "affine", r.Kind)
	assert.Equal(t, 4, r.Summary.Count, "every recorded pair is used")
	assert.Less(t, r.Summary.Max, 1e-9)
	assert.InDelta(t, 10, r.Matrix[0][2], 1e-9)
	assert.InDelta(t, 20, r.Matrix[1][2], 1e-9)

	assert.Contains(t, stderr, `"msg":"transform estimated"`)
	assert.FileExists(t, plotPath)
}

func TestFit_NotReady(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	session := filepath.Join(dir, "empty.json")
	require.NoError(t, project.New("empty", workflow.ModePoints).Save(session))

	_, _, err := run(t, "fit", "--session", session)
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrWorkflowNotReady)
}

func TestApply(t *testing.T) {
	t.Parallel()

	session := writeSession(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "out.geojson")
	reportPath := filepath.Join(dir, "report.json")

	_, stderr, err := run(t, "apply", "--session", session, "--out", out, "--report", reportPath)
	require.NoError(t, err, stderr)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	pt := fc.Features[0].Geometry.(orb.Point)
	assert.InDelta(t, 12, pt.X(), 1e-9)
	assert.InDelta(t, 23, pt.Y(), 1e-9)
	assert.Equal(t, "well", fc.Features[0].Properties.MustString("name"))

	ls := fc.Features[1].Geometry.(orb.LineString)
	assert.InDelta(t, 14, ls[1].X(), 1e-9)

	data, err = os.ReadFile(reportPath)
	require.NoError(t, err)
	var r struct {
		Layer struct {
			Name     string `json:"name"`
			Features int    `json:"features"`
			Vertices int    `json:"vertices"`
		} `json:"layer"`
	}
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, "sheet", r.Layer.Name)
	assert.Equal(t, 2, r.Layer.Features)
	assert.Equal(t, 3, r.Layer.Vertices)
}

func TestApply_Stdout(t *testing.T) {
	t.Parallel()

	stdout, stderr, err := run(t, "apply", "--session", writeSession(t))
	require.NoError(t, err, stderr)

	fc, err := geojson.UnmarshalFeatureCollection([]byte(stdout))
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}

func TestApply_MissingLayer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	session := filepath.Join(dir, "nolayer.json")
	f := project.New("nolayer", workflow.ModeLines)
	f.AddLine(geometry.NewPoint2D(0, 0), geometry.NewPoint2D(1, 0))
	f.AddLine(geometry.NewPoint2D(5, 5), geometry.NewPoint2D(5, 7))
	require.NoError(t, f.Save(session))

	_, _, err := run(t, "apply", "--session", session)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no layer")
}

func TestInvalidLogLevel(t *testing.T) {
	t.Parallel()

	_, _, err := run(t, "version", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestVersion(t *testing.T) {
	t.Parallel()

	stdout, _, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "georef "))
}
