package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/smartpark/internal/ledger"
	"github.com/iliyamo/smartpark/internal/model"
)

func TestObserveStatus(t *testing.T) {
	ObserveStatus(model.NewAggregateStatus(10, 4, 1))

	assert.Equal(t, 4.0, testutil.ToFloat64(Spaces.WithLabelValues("available")))
	assert.Equal(t, 5.0, testutil.ToFloat64(Spaces.WithLabelValues("occupied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Spaces.WithLabelValues("reserved")))
}

func TestLedgerNotifier(t *testing.T) {
	tests := []struct {
		name string
		kind string
		incN int
	}{
		{name: "created", kind: ledger.EventCreated, incN: 2},
		{name: "expired", kind: ledger.EventExpired, incN: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(ReservationEvents.WithLabelValues(tt.kind))
			for i := 0; i < tt.incN; i++ {
				LedgerNotifier{}.Notify(context.Background(), ledger.Event{Kind: tt.kind})
			}
			after := testutil.ToFloat64(ReservationEvents.WithLabelValues(tt.kind))
			assert.Equal(t, float64(tt.incN), after-before)
		})
	}
}

func TestCycleDuration_Collected(t *testing.T) {
	CycleDuration.Observe(0.004)
	assert.Greater(t, testutil.CollectAndCount(CycleDuration), 0)
}

func TestRegister_ServesMetrics(t *testing.T) {
	e := echo.New()
	Register(e)
	SourceReopens.Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "smartpark_source_reopens_total"))
}
