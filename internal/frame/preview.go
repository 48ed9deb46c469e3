package frame

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"sync"
	"time"

	"github.com/iliyamo/smartpark/internal/model"
)

// Preview defaults.
const (
	DefaultPreviewQuality = 80
	DefaultPreviewTTL     = 500 * time.Millisecond
)

var (
	colorAvailable = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	colorOccupied  = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	colorReserved  = color.RGBA{R: 255, G: 165, B: 0, A: 255}
)

// Preview encodes frames as base64 JPEG for the video-frame endpoint.  A
// result is reused for TTL regardless of which frame is passed in, which
// bounds encoding work when many clients poll.
type Preview struct {
	ttl     time.Duration
	quality int
	now     func() time.Time

	mu       sync.Mutex
	cached   string
	cachedAt time.Time
}

// NewPreview returns a codec with the given cache TTL.  A non-positive ttl
// uses DefaultPreviewTTL.
func NewPreview(ttl time.Duration) *Preview {
	if ttl <= 0 {
		ttl = DefaultPreviewTTL
	}
	return &Preview{ttl: ttl, quality: DefaultPreviewQuality, now: time.Now}
}

// Encode returns the base64 JPEG of f with the region outlines of spaces
// drawn on top.  The second return value reports whether the cached string
// was served.
func (p *Preview) Encode(f *Frame, spaces []model.RegionStatus) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.cached != "" && now.Sub(p.cachedAt) < p.ttl {
		return p.cached, true, nil
	}
	if f == nil || f.Image == nil {
		return "", false, ErrNoFrames
	}

	img := cloneRGBA(f.Image)
	Overlay(img, spaces)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return "", false, fmt.Errorf("encode preview: %w", err)
	}
	p.cached = base64.StdEncoding.EncodeToString(buf.Bytes())
	p.cachedAt = now
	return p.cached, false, nil
}

// Overlay outlines every region on img, coloured by state.  Available
// spaces get the thickest border so free spots stand out.
func Overlay(img *image.RGBA, spaces []model.RegionStatus) {
	for _, s := range spaces {
		c, thickness := colorOccupied, 2
		switch s.Status {
		case model.StateAvailable:
			c, thickness = colorAvailable, 5
		case model.StateReserved:
			c, thickness = colorReserved, 3
		}
		r := image.Rect(s.Coordinates.X, s.Coordinates.Y,
			s.Coordinates.X+s.Coordinates.Width, s.Coordinates.Y+s.Coordinates.Height)
		strokeRect(img, r, c, thickness)
	}
}

func strokeRect(img *image.RGBA, r image.Rectangle, c color.RGBA, t int) {
	u := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Rect), u, image.Point{}, draw.Src)
	}
}
