// Package frame provides the camera feed as an endless sequence of
// decoded frames, plus the JPEG preview codec served by the API.
package frame

import (
	"context"
	"errors"
	"image"
	"image/draw"
	"time"
)

var (
	// ErrNoFrames is returned when a whole pass over a source produced no
	// decodable frame.  The caller is expected to reopen the source.
	ErrNoFrames = errors.New("frame: source yielded no decodable frames")
	// ErrUnsupported is returned by Open for paths it cannot read.
	ErrUnsupported = errors.New("frame: unsupported video source")
)

// Frame is one decoded image.  The pixel buffer is owned by the Frame and
// must not be modified once the frame has been handed to a consumer.
//
// Fields:
//   - Image: RGBA pixels rooted at (0,0).
//   - Seq: read counter assigned by the source, starting at 1.
//   - Timestamp: wall-clock time the frame was read.
type Frame struct {
	Image     *image.RGBA
	Seq       uint64
	Timestamp time.Time
}

// New copies img into a fresh RGBA buffer rooted at the origin.
func New(img image.Image, seq uint64, ts time.Time) *Frame {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return &Frame{Image: dst, Seq: seq, Timestamp: ts}
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.Image.Rect.Dx() }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.Image.Rect.Dy() }

// Source yields frames forever, looping back to the first frame at the end
// of the clip.  A read that produces no frame is skipped inside Next; only
// failures that need the source reopened are returned.
type Source interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}

// Prepend returns a Source that yields f once and then reads from src.  It
// puts back a frame that was read ahead, for example to learn the size.
func Prepend(f *Frame, src Source) Source {
	if f == nil {
		return src
	}
	return &prepended{first: f, Source: src}
}

type prepended struct {
	first *Frame
	Source
}

func (p *prepended) Next(ctx context.Context) (*Frame, error) {
	if f := p.first; f != nil {
		p.first = nil
		return f, nil
	}
	return p.Source.Next(ctx)
}
