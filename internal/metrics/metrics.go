package metrics

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/smartpark/internal/ledger"
	"github.com/iliyamo/smartpark/internal/model"
)

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartpark_cycles_total",
			Help: "Processing loop cycles by outcome",
		},
		[]string{"result"}, // ok|error|skipped
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartpark_cycle_duration_seconds",
			Help:    "Time spent masking and classifying one frame",
			Buckets: []float64{.001, .0025, .005, .01, .02, .05, .1, .25},
		},
	)

	SourceReopens = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "smartpark_source_reopens_total",
			Help: "Times the frame source was reopened after a failure",
		},
	)

	SnapshotChanges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "smartpark_snapshot_changes_total",
			Help: "Published snapshots that differed from the previous one",
		},
	)

	Spaces = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartpark_spaces",
			Help: "Parking spaces by state in the latest snapshot",
		},
		[]string{"state"}, // available|occupied|reserved
	)

	ReservationEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartpark_reservation_events_total",
			Help: "Reservation ledger mutations by kind",
		},
		[]string{"kind"},
	)

	PreviewEncodes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartpark_preview_encodes_total",
			Help: "Video-frame preview requests by cache outcome",
		},
		[]string{"cache"}, // hit|miss
	)
)

func init() {
	prometheus.MustRegister(CyclesTotal)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(SourceReopens)
	prometheus.MustRegister(SnapshotChanges)
	prometheus.MustRegister(Spaces)
	prometheus.MustRegister(ReservationEvents)
	prometheus.MustRegister(PreviewEncodes)
}

// Register mounts the prometheus handler at /metrics.
func Register(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// ObserveStatus copies the aggregate counters into the Spaces gauge.
func ObserveStatus(s model.AggregateStatus) {
	Spaces.WithLabelValues(string(model.StateAvailable)).Set(float64(s.AvailableSpaces))
	Spaces.WithLabelValues(string(model.StateOccupied)).Set(float64(s.OccupiedSpaces))
	Spaces.WithLabelValues(string(model.StateReserved)).Set(float64(s.ReservedSpaces))
}

// LedgerNotifier counts ledger events.
type LedgerNotifier struct{}

// Notify increments ReservationEvents for ev.Kind.
func (LedgerNotifier) Notify(_ context.Context, ev ledger.Event) {
	ReservationEvents.WithLabelValues(ev.Kind).Inc()
}
