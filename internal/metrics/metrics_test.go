package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveScan("granted", "teacher", 3*time.Millisecond)
	m.ObserveScan("granted", "teacher", time.Millisecond)
	m.ObserveScan("unknown", "", time.Millisecond)
	m.PaymentRegistered("cash")
	m.EventProcessed("applied")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.scans.WithLabelValues("granted", "teacher")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scans.WithLabelValues("unknown", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.payments.WithLabelValues("cash")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsProcessed.WithLabelValues("applied")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.scanDuration))
}
