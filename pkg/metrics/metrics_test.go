package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	mc := NewMetricsCollector(DefaultMetricsConfig(), reg)

	mc.RequestSent("PUBLISH")
	mc.RequestSent("PUBLISH")
	mc.ResponseReceived("PUBLISH", 200, 30*time.Millisecond)
	mc.ResponseReceived("PUBLISH", 423, 10*time.Millisecond)
	mc.Timeout("SUBSCRIBE")
	mc.StateTransition("publish", "idle", "refreshing")
	mc.FlowActive("publish", true)
	mc.NotifyReceived("pidf")
	mc.ReRegistration()

	assert.Equal(t, 2.0, testutil.ToFloat64(mc.requestsSent.WithLabelValues("PUBLISH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.responses.WithLabelValues("PUBLISH", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.responses.WithLabelValues("PUBLISH", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.timeouts.WithLabelValues("SUBSCRIBE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.stateTransitions.WithLabelValues("publish", "idle", "refreshing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.flowsActive.WithLabelValues("publish")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.notifications.WithLabelValues("pidf")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.reRegistrations))

	mc.FlowActive("publish", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(mc.flowsActive.WithLabelValues("publish")))
}

func TestMetricsCollector_NilSafe(t *testing.T) {
	var mc *MetricsCollector
	assert.NotPanics(t, func() {
		mc.RequestSent("REGISTER")
		mc.ResponseReceived("REGISTER", 200, time.Second)
		mc.Timeout("REGISTER")
		mc.StateTransition("register", "idle", "refreshing")
		mc.FlowActive("register", true)
		mc.NotifyReceived("rlmi")
		mc.ReRegistration()
	})
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "1xx", statusClass(180))
	assert.Equal(t, "6xx", statusClass(603))
	assert.Equal(t, "other", statusClass(0))
	assert.Equal(t, "other", statusClass(700))
}
