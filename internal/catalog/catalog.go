// Package catalog loads the fixed list of parking-space regions from the
// layout artifact and checks it against the frame geometry before the
// processing loop starts.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/smartpark/internal/model"
)

// Default region size in pixels, used when the layout omits it.
const (
	DefaultWidth  = 107
	DefaultHeight = 48
)

var (
	// ErrEmpty is returned when a layout defines no regions.
	ErrEmpty = errors.New("catalog: no parking spaces defined")
	// ErrOutOfBounds is returned when a region extends past the frame.
	ErrOutOfBounds = errors.New("catalog: region outside frame bounds")
)

// layout mirrors the on-disk artifact.  Positions are top-left [x, y]
// pairs in catalog order.
type layout struct {
	Width     int      `json:"width" yaml:"width"`
	Height    int      `json:"height" yaml:"height"`
	Positions [][2]int `json:"positions" yaml:"positions"`
}

// Catalog is the immutable, ordered set of regions.
type Catalog struct {
	regions []model.Region
}

// New builds a catalog from top-left positions and a shared size.  Region
// IDs are assigned from position order starting at 1.
func New(positions [][2]int, width, height int) *Catalog {
	regions := make([]model.Region, len(positions))
	for i, p := range positions {
		regions[i] = model.Region{ID: i + 1, X: p[0], Y: p[1], Width: width, Height: height}
	}
	return &Catalog{regions: regions}
}

// Load reads a layout file.  Files ending in .yaml or .yml are decoded as
// YAML, everything else as JSON.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	var l layout
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &l)
	default:
		err = json.Unmarshal(raw, &l)
	}
	if err != nil {
		return nil, fmt.Errorf("decode layout %s: %w", path, err)
	}
	if len(l.Positions) == 0 {
		return nil, ErrEmpty
	}
	if l.Width <= 0 {
		l.Width = DefaultWidth
	}
	if l.Height <= 0 {
		l.Height = DefaultHeight
	}
	return New(l.Positions, l.Width, l.Height), nil
}

// Regions returns a copy of the regions in catalog order.
func (c *Catalog) Regions() []model.Region {
	out := make([]model.Region, len(c.regions))
	copy(out, c.regions)
	return out
}

// Len returns the number of regions.
func (c *Catalog) Len() int { return len(c.regions) }

// Contains reports whether id names a region in the catalog.
func (c *Catalog) Contains(id int) bool { return id >= 1 && id <= len(c.regions) }

// Validate checks that every region lies fully inside a frame of the given
// size.  The first offending region is reported.
func (c *Catalog) Validate(frameWidth, frameHeight int) error {
	for _, r := range c.regions {
		if r.X < 0 || r.Y < 0 || r.Width <= 0 || r.Height <= 0 ||
			r.X+r.Width > frameWidth || r.Y+r.Height > frameHeight {
			return fmt.Errorf("%w: space %d at (%d,%d) size %dx%d, frame %dx%d",
				ErrOutOfBounds, r.ID, r.X, r.Y, r.Width, r.Height, frameWidth, frameHeight)
		}
	}
	return nil
}
