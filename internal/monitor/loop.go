// Package monitor runs the background processing loop: pull a frame,
// classify every region against the live reservations, publish the result.
package monitor

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/smartpark/internal/classifier"
	"github.com/iliyamo/smartpark/internal/frame"
	"github.com/iliyamo/smartpark/internal/metrics"
	"github.com/iliyamo/smartpark/internal/model"
	"github.com/iliyamo/smartpark/internal/status"
)

// Defaults for Options.
const (
	DefaultInterval   = 20 * time.Millisecond
	DefaultMinBackoff = time.Second
	DefaultMaxBackoff = 30 * time.Second
)

// Opener (re)opens the frame source.
type Opener func() (frame.Source, error)

// Reservations is the read side of the ledger the loop depends on.
type Reservations interface {
	Active(now time.Time) map[int]model.Reservation
}

// Options tunes the loop.  Zero values select the defaults.
type Options struct {
	Interval   time.Duration
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// Width and Height are the frame size the catalog was validated
	// against.  Frames of any other size are skipped.  Zero disables the
	// check.
	Width, Height int
	// Source is an already open source to start with.  When nil the loop
	// calls the opener before the first cycle.
	Source frame.Source
}

// Loop is the single writer of the status store.
type Loop struct {
	open         Opener
	classifier   *classifier.Classifier
	reservations Reservations
	store        *status.Store
	opts         Options
	now          func() time.Time
	// badSize is the last rejected frame size already warned about.
	badSize image.Point
}

// New wires a loop.  Run must be called to start it.
func New(open Opener, c *classifier.Classifier, res Reservations, store *status.Store, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = DefaultMinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = DefaultMaxBackoff
		if opts.MaxBackoff < opts.MinBackoff {
			opts.MaxBackoff = opts.MinBackoff
		}
	}
	return &Loop{open: open, classifier: c, reservations: res, store: store, opts: opts, now: time.Now}
}

// Run processes frames until ctx is cancelled.  Source failures never end
// the loop; the source is closed and reopened with exponential backoff.
func (l *Loop) Run(ctx context.Context) error {
	src := l.opts.Source
	defer func() {
		if src != nil {
			src.Close()
		}
	}()

	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()
	backoff := l.opts.MinBackoff

	for {
		if src == nil {
			s, err := l.open()
			if err != nil {
				log.Error().Str("component", "monitor").Err(err).Dur("retry_in", backoff).Msg("open video source")
				if !sleep(ctx, backoff) {
					return nil
				}
				backoff = nextBackoff(backoff, l.opts.MaxBackoff)
				continue
			}
			src = s
		}

		if err := l.cycle(ctx, src); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.CyclesTotal.WithLabelValues("error").Inc()
			metrics.SourceReopens.Inc()
			log.Error().Str("component", "monitor").Err(err).Dur("retry_in", backoff).Msg("frame source failed, reopening")
			src.Close()
			src = nil
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, l.opts.MaxBackoff)
			continue
		}
		backoff = l.opts.MinBackoff

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// cycle runs one pull-classify-publish step.  Only source errors are
// returned; everything else is logged and counted.
func (l *Loop) cycle(ctx context.Context, src frame.Source) error {
	f, err := src.Next(ctx)
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	if l.opts.Width > 0 && (f.Width() != l.opts.Width || f.Height() != l.opts.Height) {
		metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		l.warnSize(image.Pt(f.Width(), f.Height()))
		return nil
	}
	l.badSize = image.Point{}

	start := l.now()
	active := l.reservations.Active(start)
	spaces, agg, err := l.classifier.ClassifyFrame(f.Image, active)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		log.Warn().Str("component", "monitor").Err(err).Uint64("seq", f.Seq).Msg("classify frame")
		return nil
	}
	metrics.CycleDuration.Observe(time.Since(start).Seconds())

	if l.store.Publish(&status.Snapshot{Spaces: spaces, Status: agg, Frame: f}) {
		metrics.SnapshotChanges.Inc()
		metrics.ObserveStatus(agg)
	}
	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	return nil
}

// warnSize logs a rejected frame size once per run of same-sized frames.
func (l *Loop) warnSize(size image.Point) {
	ev := log.Debug()
	if size != l.badSize {
		ev = log.Warn()
		l.badSize = size
	}
	ev.Str("component", "monitor").
		Int("width", size.X).Int("height", size.Y).
		Int("want_width", l.opts.Width).Int("want_height", l.opts.Height).
		Msg("skipping frame with unexpected size")
}

func nextBackoff(cur, max time.Duration) time.Duration {
	cur *= 2
	if cur > max {
		return max
	}
	return cur
}

// sleep waits d or until ctx is done, reporting whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
