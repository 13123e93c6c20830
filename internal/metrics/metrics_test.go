package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("availability", "200"))
	IncHTTP("availability", "200")
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("availability", "200")))

	hits := testutil.ToFloat64(cacheLookups.WithLabelValues("hit"))
	misses := testutil.ToFloat64(cacheLookups.WithLabelValues("miss"))
	IncCacheHit()
	IncCacheMiss()
	IncCacheMiss()
	assert.Equal(t, hits+1, testutil.ToFloat64(cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(cacheLookups.WithLabelValues("miss")))

	conflicts := testutil.ToFloat64(bookingCreated.WithLabelValues("conflict"))
	IncBookingCreated("conflict")
	assert.Equal(t, conflicts+1, testutil.ToFloat64(bookingCreated.WithLabelValues("conflict")))

	cancelled := testutil.ToFloat64(bookingCancelled)
	IncBookingCancelled()
	assert.Equal(t, cancelled+1, testutil.ToFloat64(bookingCancelled))

	failed := testutil.ToFloat64(scheduleReloads.WithLabelValues("error"))
	IncScheduleReload(false)
	assert.Equal(t, failed+1, testutil.ToFloat64(scheduleReloads.WithLabelValues("error")))
}

func TestObserveResolve(t *testing.T) {
	ObserveResolve(15*time.Millisecond, 12)
	assert.Equal(t, 1, testutil.CollectAndCount(resolveDuration))
}
