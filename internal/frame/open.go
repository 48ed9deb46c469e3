package frame

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// openVideo opens container formats (mp4, avi, rtsp URLs).  It is only
// set when the binary is built with the gocv tag.
var openVideo func(path string) (Source, error)

// Open picks a Source implementation for path: a directory becomes a
// SequenceSource, a .gif a GIFSource, a single still image a one-frame
// sequence, and anything else is handed to the OpenCV capture when
// available.
func Open(path string) (Source, error) {
	if strings.Contains(path, "://") {
		return openContainer(path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open video source: %w", err)
	}
	if info.IsDir() {
		return NewSequenceSource(path)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case ext == ".gif":
		return NewGIFSource(path)
	case stillExt[ext]:
		return newSequence([]string{path}), nil
	}
	return openContainer(path)
}

func openContainer(path string) (Source, error) {
	if openVideo == nil {
		return nil, fmt.Errorf("%w: %s (rebuild with -tags gocv for video files)", ErrUnsupported, path)
	}
	return openVideo(path)
}
