// Package project provides the session file that records a layer and the
// correspondences picked for it.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"georef/internal/correspondence"
	"georef/internal/workflow"
	"georef/pkg/geometry"
)

// CurrentVersion is the session file format version written by Save.
const CurrentVersion = 1

// File represents a georeferencing session file.
type File struct {
	Version     int       `json:"version"`
	Name        string    `json:"name"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
	Description string    `json:"description,omitempty"`

	// Correspondence mode: "points" or "lines".
	Mode string `json:"mode"`

	// Layer path (relative to the session file)
	LayerPath string `json:"layer,omitempty"`

	// Point pairs in pick order.
	Pairs []correspondence.Pair `json:"pairs,omitempty"`

	// Committed lines in pick order; the first is drawn on the layer, the
	// second on the reference map.
	Lines [][]geometry.Point2D `json:"lines,omitempty"`
}

// New creates a new session file.
func New(name string, mode workflow.Mode) *File {
	now := time.Now()
	return &File{
		Version:  CurrentVersion,
		Name:     name,
		Created:  now,
		Modified: now,
		Mode:     mode.String(),
	}
}

// Load loads a session file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("session %s: %w", path, err)
	}
	return &f, nil
}

// Save writes the session file.
func (p *File) Save(path string) error {
	p.Modified = time.Now()
	if p.Version == 0 {
		p.Version = CurrentVersion
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks the version and mode.
func (p *File) Validate() error {
	if p.Version > CurrentVersion {
		return fmt.Errorf("unsupported session version %d", p.Version)
	}
	if _, err := workflow.ParseMode(p.Mode); err != nil {
		return err
	}
	return nil
}

// SetLayer sets the layer path (relative to the session file).
func (p *File) SetLayer(sessionPath, layerPath string) {
	rel, err := filepath.Rel(filepath.Dir(sessionPath), layerPath)
	if err != nil {
		p.LayerPath = layerPath
	} else {
		p.LayerPath = rel
	}
	p.Modified = time.Now()
}

// GetLayerPath returns the absolute path to the layer.
func (p *File) GetLayerPath(sessionPath string) string {
	if p.LayerPath == "" {
		return ""
	}
	if filepath.IsAbs(p.LayerPath) {
		return p.LayerPath
	}
	return filepath.Join(filepath.Dir(sessionPath), p.LayerPath)
}

// AddPair appends a point pair.
func (p *File) AddPair(pair correspondence.Pair) {
	p.Pairs = append(p.Pairs, pair)
	p.Modified = time.Now()
}

// AddLine appends a committed line.
func (p *File) AddLine(points ...geometry.Point2D) {
	p.Lines = append(p.Lines, points)
	p.Modified = time.Now()
}

// Replay begins s in the file's mode and feeds it the recorded picks in
// the order a user would have made them. It stops at the first rejected
// pick.
func (p *File) Replay(s *workflow.Session) error {
	mode, err := workflow.ParseMode(p.Mode)
	if err != nil {
		return err
	}
	if err := s.Begin(mode); err != nil {
		return err
	}

	switch mode {
	case workflow.ModePoints:
		for i, pair := range p.Pairs {
			if err := s.PickPoint(pair.Target); err != nil {
				return fmt.Errorf("pair %d target: %w", i, err)
			}
			if err := s.PickPoint(pair.Source); err != nil {
				return fmt.Errorf("pair %d source: %w", i, err)
			}
		}
	case workflow.ModeLines:
		for i, line := range p.Lines {
			for _, pt := range line {
				if err := s.PickPoint(pt); err != nil {
					return fmt.Errorf("line %d: %w", i, err)
				}
			}
			if err := s.FinishLine(); err != nil {
				return fmt.Errorf("line %d: %w", i, err)
			}
		}
	}
	return nil
}
