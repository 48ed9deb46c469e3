//go:build gocv

package frame

import (
	"context"
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// maxEmptyReads bounds how many consecutive empty reads are skipped before
// the capture is reported broken.
const maxEmptyReads = 100

func init() { openVideo = openCapture }

// CaptureSource reads a video file or stream through OpenCV and rewinds to
// the first frame when the clip ends.
type CaptureSource struct {
	cap *gocv.VideoCapture
	mat gocv.Mat
	seq uint64
	now func() time.Time
}

func openCapture(path string) (Source, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open capture %s: %w", path, err)
	}
	vc.Set(gocv.VideoCaptureBufferSize, 1)
	return &CaptureSource{cap: vc, mat: gocv.NewMat(), now: time.Now}, nil
}

// Next reads one frame.  Empty reads are retried immediately.
func (s *CaptureSource) Next(ctx context.Context) (*Frame, error) {
	for empty := 0; empty < maxEmptyReads; empty++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		total := s.cap.Get(gocv.VideoCaptureFrameCount)
		if total > 0 && s.cap.Get(gocv.VideoCapturePosFrames) >= total {
			s.cap.Set(gocv.VideoCapturePosFrames, 0)
		}
		if ok := s.cap.Read(&s.mat); !ok || s.mat.Empty() {
			continue
		}
		img, err := s.mat.ToImage()
		if err != nil {
			continue
		}
		s.seq++
		return New(img, s.seq, s.now()), nil
	}
	return nil, ErrNoFrames
}

// Close releases the OpenCV handles.
func (s *CaptureSource) Close() error {
	s.mat.Close()
	return s.cap.Close()
}
