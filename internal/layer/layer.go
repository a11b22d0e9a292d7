// Package layer holds the uploaded vector layer being georeferenced and
// remaps its geometries through an estimated transform.
package layer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"georef/pkg/geometry"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Layer is a named feature collection. All access goes through the
// layer's lock; Apply swaps every geometry in one step so readers see the
// collection either fully remapped or untouched.
type Layer struct {
	mu sync.RWMutex

	name       string
	collection *geojson.FeatureCollection
}

// New wraps fc in a Layer. The layer takes ownership of fc.
func New(name string, fc *geojson.FeatureCollection) *Layer {
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	return &Layer{name: name, collection: fc}
}

// Load decodes a GeoJSON FeatureCollection.
func Load(name string, r io.Reader) (*Layer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read layer %s: %w", name, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode layer %s: %w", name, err)
	}
	return New(name, fc), nil
}

// LoadFile loads a layer from a GeoJSON file. The layer is named after the
// file.
func LoadFile(path string) (*Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Load(name, f)
}

// Name returns the layer name.
func (l *Layer) Name() string {
	return l.name
}

// Len returns the number of features.
func (l *Layer) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.collection.Features)
}

// VertexCount returns the total number of vertices over all features.
func (l *Layer) VertexCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, f := range l.collection.Features {
		n += VertexCount(f.Geometry)
	}
	return n
}

// Bound returns the extent of the layer, or false if it has no geometry.
func (l *Layer) Bound() (geometry.Rect, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, ok := collectionBound(l.collection)
	if !ok {
		return geometry.Rect{}, false
	}
	return geometry.Rect{
		X:      b.Min[0],
		Y:      b.Min[1],
		Width:  b.Max[0] - b.Min[0],
		Height: b.Max[1] - b.Min[1],
	}, true
}

// Features returns deep copies of the layer's features.
func (l *Layer) Features() []*geojson.Feature {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*geojson.Feature, len(l.collection.Features))
	for i, f := range l.collection.Features {
		c := *f
		if f.Geometry != nil {
			c.Geometry = orb.Clone(f.Geometry)
		}
		c.Properties = f.Properties.Clone()
		if f.BBox != nil {
			c.BBox = append(geojson.BBox(nil), f.BBox...)
		}
		out[i] = &c
	}
	return out
}

// Apply remaps every feature's geometry through t. Either every feature is
// remapped or, on error, the layer is left exactly as it was.
func (l *Layer) Apply(t geometry.Transform) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	remapped := make([]orb.Geometry, len(l.collection.Features))
	for i, f := range l.collection.Features {
		g, err := Remap(t, f.Geometry)
		if err != nil {
			return fmt.Errorf("layer %s feature %d: %w", l.name, i, err)
		}
		remapped[i] = g
	}

	for i, f := range l.collection.Features {
		f.Geometry = remapped[i]
		if f.BBox != nil && f.Geometry != nil {
			f.BBox = geojson.NewBBox(f.Geometry.Bound())
		}
	}
	if l.collection.BBox != nil {
		if b, ok := collectionBound(l.collection); ok {
			l.collection.BBox = geojson.NewBBox(b)
		}
	}
	return nil
}

// MarshalJSON encodes the layer as a GeoJSON FeatureCollection.
func (l *Layer) MarshalJSON() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collection.MarshalJSON()
}

// Encode writes the layer as GeoJSON, optionally indented.
func (l *Layer) Encode(w io.Writer, indent bool) error {
	data, err := l.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode layer %s: %w", l.name, err)
	}
	if indent {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return err
		}
		data = buf.Bytes()
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// Save writes the layer to path.
func (l *Layer) Save(path string, indent bool) error {
	var buf bytes.Buffer
	if err := l.Encode(&buf, indent); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func collectionBound(fc *geojson.FeatureCollection) (orb.Bound, bool) {
	var (
		b     orb.Bound
		found bool
	)
	for _, f := range fc.Features {
		if f.Geometry == nil || VertexCount(f.Geometry) == 0 {
			continue
		}
		if !found {
			b = f.Geometry.Bound()
			found = true
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	return b, found
}
