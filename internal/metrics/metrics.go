// Package metrics exposes the bridge's Prometheus collectors.
//
// Every method is safe on a nil *Metrics so components can run without
// instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "efbridge"

// States published by the server, one gauge each.
var serverStates = []string{"running", "stopped", "invalid_port"}

type Metrics struct {
	gatherer prometheus.Gatherer

	sessions          *prometheus.GaugeVec
	frames            *prometheus.CounterVec
	dropped           *prometheus.CounterVec
	handshakeFailures *prometheus.CounterVec
	serverState       *prometheus.GaugeVec
	presetActions     *prometheus.CounterVec
	dispatchBacklog   prometheus.Gauge
}

// New registers the collectors on reg. A nil reg uses a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		sessions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Number of promoted sessions by peer type",
		}, []string{"peer"}),

		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "WebSocket frames by direction and peer type",
		}, []string{"direction", "peer"}),

		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_frames_total",
			Help:      "Frames dropped by reason",
		}, []string{"reason"}),

		handshakeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_failures_total",
			Help:      "Connections closed before promotion",
		}, []string{"reason"}),

		serverState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_state",
			Help:      "1 for the currently published server state",
		}, []string{"state"}),

		presetActions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preset_actions_total",
			Help:      "Preset sync messages emitted by family and target",
		}, []string{"family", "target"}),

		dispatchBacklog: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_backlog",
			Help:      "Closures waiting in the dispatch queue at last sample",
		}),
	}
}

func (m *Metrics) SessionOpened(peer string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(peer).Inc()
}

func (m *Metrics) SessionClosed(peer string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(peer).Dec()
}

// Frame counts one frame; direction is "in" or "out".
func (m *Metrics) Frame(direction, peer string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(direction, peer).Inc()
}

func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) HandshakeFailed(reason string) {
	if m == nil {
		return
	}
	m.handshakeFailures.WithLabelValues(reason).Inc()
}

// ServerState marks state as the current one.
func (m *Metrics) ServerState(state string) {
	if m == nil {
		return
	}
	for _, s := range serverStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.serverState.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) PresetAction(family, target string) {
	if m == nil {
		return
	}
	m.presetActions.WithLabelValues(family, target).Inc()
}

func (m *Metrics) DispatchBacklog(n int) {
	if m == nil {
		return
	}
	m.dispatchBacklog.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
