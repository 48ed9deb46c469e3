package main

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/smartpark/internal/frame"
	"github.com/iliyamo/smartpark/internal/identity"
	"github.com/iliyamo/smartpark/internal/service"
)

type stubSource struct {
	f     *frame.Frame
	err   error
	pulls int
}

func (s *stubSource) Next(context.Context) (*frame.Frame, error) {
	s.pulls++
	return s.f, s.err
}
func (s *stubSource) Close() error { return nil }

func TestFrameSize_Configured(t *testing.T) {
	src := &stubSource{}
	got, w, h, err := frameSize(context.Background(), src, 1100, 720)
	require.NoError(t, err)
	assert.Equal(t, 1100, w)
	assert.Equal(t, 720, h)
	assert.Zero(t, src.pulls)
	assert.Same(t, src, got)
}

func TestFrameSize_Probed(t *testing.T) {
	src := &stubSource{f: frame.New(image.NewRGBA(image.Rect(0, 0, 320, 240)), 1, time.Now())}
	_, w, h, err := frameSize(context.Background(), src, 0, 720)
	require.NoError(t, err)
	assert.Equal(t, 320, w)
	assert.Equal(t, 240, h)
	assert.Equal(t, 1, src.pulls)
}

func TestFrameSize_ProbedFrameIsClassifiedFirst(t *testing.T) {
	probed := frame.New(image.NewRGBA(image.Rect(0, 0, 320, 240)), 1, time.Now())
	later := frame.New(image.NewRGBA(image.Rect(0, 0, 320, 240)), 2, time.Now())
	src := &stubSource{f: probed}
	got, _, _, err := frameSize(context.Background(), src, 0, 0)
	require.NoError(t, err)

	src.f = later
	f, err := got.Next(context.Background())
	require.NoError(t, err)
	assert.Same(t, probed, f)
	assert.Equal(t, 1, src.pulls, "probed frame is replayed, not re-read")

	f, err = got.Next(context.Background())
	require.NoError(t, err)
	assert.Same(t, later, f)
}

func TestFrameSize_ProbeError(t *testing.T) {
	src := &stubSource{err: frame.ErrNoFrames}
	_, _, _, err := frameSize(context.Background(), src, 0, 0)
	assert.True(t, errors.Is(err, frame.ErrNoFrames))
}

func TestCodeStoreAndSender_Fallbacks(t *testing.T) {
	assert.IsType(t, &identity.MemoryStore{}, codeStore(nil))
	assert.IsType(t, identity.LogSender{}, codeSender(nil))

	pub := service.NewPublisher("amqp://localhost")
	assert.Same(t, pub, codeSender(pub))
}
