// Package metrics 定义服务的 prometheus 指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "evidence_board"

// Metrics collectors shared by the board components. A nil *Metrics records nothing.
// Metrics 指标集合，nil 时不记录
type Metrics struct {
	registry *prometheus.Registry

	brokerRoutes  *prometheus.CounterVec
	relayRequests *prometheus.CounterVec
	redraws       prometheus.Counter
	curves        prometheus.Gauge
	assetLoads    *prometheus.CounterVec
	peers         prometheus.Gauge
}

// New 创建并注册指标
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		brokerRoutes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "mutations_total",
			Help:      "Mutations attempted by this process, by action and route (direct, relayed, failed).",
		}, []string{"action", "route"}),
		relayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "requests_total",
			Help:      "Relay requests handled by the privileged peer, by action and outcome.",
		}, []string{"action", "outcome"}),
		redraws: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compositor",
			Name:      "redraws_total",
			Help:      "Full connector repaints.",
		}),
		curves: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "compositor",
			Name:      "curves",
			Help:      "Curves drawn by the last repaint.",
		}),
		assetLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "loads_total",
			Help:      "Texture loads by result (ok, placeholder).",
		}, []string{"result"}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "peers",
			Help:      "Connected websocket peers.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.brokerRoutes, m.relayRequests, m.redraws, m.curves, m.assetLoads, m.peers,
	)
	return m
}

// Handler 指标 HTTP 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry the underlying registry, for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) BrokerRoute(action, route string) {
	if m == nil {
		return
	}
	m.brokerRoutes.WithLabelValues(action, route).Inc()
}

func (m *Metrics) RelayRequest(action, outcome string) {
	if m == nil {
		return
	}
	m.relayRequests.WithLabelValues(action, outcome).Inc()
}

// Redraw records one repaint and the number of curves it drew
func (m *Metrics) Redraw(curves int) {
	if m == nil {
		return
	}
	m.redraws.Inc()
	m.curves.Set(float64(curves))
}

func (m *Metrics) AssetLoad(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "placeholder"
	}
	m.assetLoads.WithLabelValues(result).Inc()
}

func (m *Metrics) PeerConnected() {
	if m != nil {
		m.peers.Inc()
	}
}

func (m *Metrics) PeerDisconnected() {
	if m != nil {
		m.peers.Dec()
	}
}
