package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/grid-x/nibe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := newMetrics(func() nibe.StatisticsSnapshot {
		return nibe.StatisticsSnapshot{Frames: 10, ChecksumErrors: 2, ReadTokens: 4, Timeouts: 1}
	})
	m.ValueChanged(40004, nibe.VariableInfo{Name: "BT1 Outdoor temp"}, -12.3)
	m.ConnectivityDegraded(nibe.ErrTimeout)

	families, err := m.registry.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range metric.GetLabel() {
				key += "," + l.GetName() + "=" + l.GetValue()
			}
			switch {
			case metric.GetGauge() != nil:
				values[key] = metric.GetGauge().GetValue()
			case metric.GetCounter() != nil:
				values[key] = metric.GetCounter().GetValue()
			}
		}
	}

	assert.Equal(t, -12.3, values["nibe_value,coil=40004,name=BT1 Outdoor temp"])
	assert.Equal(t, 1.0, values["nibe_connectivity_degraded_total"])
	assert.Equal(t, 10.0, values["nibe_frames_total"])
	assert.Equal(t, 2.0, values["nibe_framing_errors_total,reason=checksum"])
	assert.Equal(t, 4.0, values["nibe_tokens_total,kind=read"])
	assert.Equal(t, 1.0, values["nibe_requests_total,outcome=timeout"])
}

func TestMetricsHandler(t *testing.T) {
	m := newMetrics(func() nibe.StatisticsSnapshot { return nibe.StatisticsSnapshot{} })
	m.ValueChanged(40008, nibe.VariableInfo{Name: "BT2 Supply temp S1"}, 35)

	rec := httptest.NewRecorder()
	m.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `nibe_value{coil="40008",name="BT2 Supply temp S1"} 35`)
}
