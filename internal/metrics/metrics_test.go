package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(bookingCreated.WithLabelValues("Barba"))
	IncBookingCreated("Barba")
	assert.Equal(t, before+1, testutil.ToFloat64(bookingCreated.WithLabelValues("Barba")))

	before = testutil.ToFloat64(bookingRescheduled.WithLabelValues("moved"))
	IncRescheduled("moved")
	assert.Equal(t, before+1, testutil.ToFloat64(bookingRescheduled.WithLabelValues("moved")))

	before = testutil.ToFloat64(persistFailures)
	IncPersistFailure()
	assert.Equal(t, before+1, testutil.ToFloat64(persistFailures))
}
