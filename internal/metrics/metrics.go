// Package metrics provides Prometheus instrumentation for the messaging
// client connection core. It exposes a gauge for the connection state,
// counters for frame and reconnect throughput, and a histogram for how long
// connections survive before dropping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionState reports the current state of the connection state
	// machine as a one-hot gauge labeled by state name.
	ConnectionState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chatclient_connection_state",
		Help: "Current connection state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	// ReconnectsTotal counts reconnect attempts, labeled by outcome:
	// "scheduled" when a retry timer is armed, "exhausted" when the attempt
	// ceiling is reached.
	ReconnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatclient_reconnects_total",
		Help: "Total reconnect attempts by outcome",
	}, []string{"outcome"}) // outcome = "scheduled", "exhausted"

	// FramesTotal counts inbound frames by result: "ok" for validated
	// events, "keepalive" for pong replies, "dropped" for malformed or
	// invalid frames.
	FramesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatclient_frames_total",
		Help: "Total inbound frames processed by result",
	}, []string{"result"}) // result = "ok", "keepalive", "dropped"

	// EventsTotal counts validated events delivered to the bus, by type.
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatclient_events_total",
		Help: "Total validated events published, by event type",
	}, []string{"type"})

	// HeartbeatsTotal counts keep-alive pings sent while connected.
	HeartbeatsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatclient_heartbeats_total",
		Help: "Total keep-alive pings sent",
	})

	// ConnectionDuration records how long each connection stayed up before
	// closing, in seconds.
	ConnectionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatclient_connection_duration_seconds",
		Help:    "Lifetime of each connection before it closed",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionState,
		ReconnectsTotal,
		FramesTotal,
		EventsTotal,
		HeartbeatsTotal,
		ConnectionDuration,
	)
}

// SetConnectionState flips the one-hot state gauge to the given state.
func SetConnectionState(state string) {
	for _, s := range []string{"disconnected", "connecting", "connected", "reconnecting"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		ConnectionState.WithLabelValues(s).Set(v)
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
