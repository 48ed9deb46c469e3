package frame

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"os"
	"time"
)

// GIFSource loops over the frames of an animated GIF.  Frames are composed
// once at open time, honouring each frame's disposal method, so Next only
// has to copy a ready canvas.
type GIFSource struct {
	frames []*image.RGBA
	pos    int
	seq    uint64
	now    func() time.Time
}

// NewGIFSource decodes every frame of the GIF at path.
func NewGIFSource(path string) (*GIFSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gif: %w", err)
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return nil, fmt.Errorf("decode gif %s: %w", path, err)
	}
	frames := compose(g)
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFrames, path)
	}
	return &GIFSource{frames: frames, now: time.Now}, nil
}

// compose renders the GIF's delta frames onto a full-size canvas.
func compose(g *gif.GIF) []*image.RGBA {
	w, h := g.Config.Width, g.Config.Height
	if w == 0 || h == 0 {
		for _, p := range g.Image {
			b := p.Bounds()
			if b.Max.X > w {
				w = b.Max.X
			}
			if b.Max.Y > h {
				h = b.Max.Y
			}
		}
	}
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	out := make([]*image.RGBA, 0, len(g.Image))
	for i, p := range g.Image {
		var saved *image.RGBA
		disposal := byte(gif.DisposalNone)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			saved = cloneRGBA(canvas)
		}
		draw.Draw(canvas, p.Bounds(), p, p.Bounds().Min, draw.Over)
		out = append(out, cloneRGBA(canvas))

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, p.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = saved
		}
	}
	return out
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}

// Next returns a copy of the next composed frame.
func (s *GIFSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img := s.frames[s.pos]
	s.pos = (s.pos + 1) % len(s.frames)
	s.seq++
	return &Frame{Image: cloneRGBA(img), Seq: s.seq, Timestamp: s.now()}, nil
}

// Close releases the decoded frames.
func (s *GIFSource) Close() error {
	s.frames = nil
	return nil
}

// Len reports the number of frames in the clip.
func (s *GIFSource) Len() int { return len(s.frames) }
