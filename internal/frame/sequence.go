package frame

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var stillExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true}

// SequenceSource plays a list of still images in order and starts over
// after the last one.  Files are decoded on demand so a large directory
// does not sit in memory.
type SequenceSource struct {
	files []string
	pos   int
	seq   uint64
	now   func() time.Time
}

// NewSequenceSource lists dir and returns a source over its image files in
// lexical order.
func NewSequenceSource(dir string) (*SequenceSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !stillExt[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrNoFrames, dir)
	}
	sort.Strings(files)
	return newSequence(files), nil
}

func newSequence(files []string) *SequenceSource {
	return &SequenceSource{files: files, now: time.Now}
}

// Next decodes the next file.  Files that fail to open or decode are
// skipped; a full pass without a single good file returns ErrNoFrames.
func (s *SequenceSource) Next(ctx context.Context) (*Frame, error) {
	for misses := 0; misses < len(s.files); misses++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := s.files[s.pos]
		s.pos = (s.pos + 1) % len(s.files)

		img, err := decodeFile(path)
		if err != nil {
			log.Debug().Str("component", "frame").Err(err).Str("file", path).Msg("skipping unreadable frame")
			continue
		}
		s.seq++
		return New(img, s.seq, s.now()), nil
	}
	return nil, ErrNoFrames
}

// Close is a no-op; files are closed after each decode.
func (s *SequenceSource) Close() error { return nil }

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
