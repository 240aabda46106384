package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.BrokerRoute("updateDrawing", "relayed")
	m.BrokerRoute("updateDrawing", "relayed")
	m.RelayRequest("deleteDrawing", "applied")
	m.Redraw(3)
	m.AssetLoad(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.brokerRoutes.WithLabelValues("updateDrawing", "relayed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.relayRequests.WithLabelValues("deleteDrawing", "applied")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.curves))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assetLoads.WithLabelValues("placeholder")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.BrokerRoute("a", "b")
		m.RelayRequest("a", "b")
		m.Redraw(1)
		m.AssetLoad(true)
		m.PeerConnected()
		m.PeerDisconnected()
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Redraw(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "evidence_board_compositor_redraws_total 1"))
}
