// Package metrics defines all Prometheus metrics for routingctl.
// All metrics use the "routingctl_" prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "routingctl"

// --- Registration Metrics ---

var (
	// RegisterRequestsReceived counts REGISTER_REQUEST datagrams received
	// by the Controller, including re-registrations.
	RegisterRequestsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "register_requests_received_total",
		Help:      "Total REGISTER_REQUEST datagrams received by the controller, by switch id.",
	}, []string{"switch_id"})

	// RegisterResponsesSent counts REGISTER_RESPONSE datagrams sent.
	RegisterResponsesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "register_responses_sent_total",
		Help:      "Total REGISTER_RESPONSE datagrams sent by the controller, by switch id.",
	}, []string{"switch_id"})
)

// --- Routing Metrics ---

var (
	// RoutingRecomputes counts effective-topology recomputations, split
	// by whether they produced a change.
	RoutingRecomputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "routing_recomputes_total",
		Help:      "Total routing recomputations, by whether the result changed.",
	}, []string{"changed"})

	// RoutingTablesSent counts per-switch routing table pushes.
	RoutingTablesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "routing_tables_sent_total",
		Help:      "Total routing tables sent to switches, by switch id.",
	}, []string{"switch_id"})

	// RoutingComputeDuration tracks Dijkstra pass latency.
	RoutingComputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "routing_compute_duration_seconds",
		Help:      "All-pairs routing table computation duration in seconds.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})
)

// --- Liveness Metrics ---

var (
	// SwitchesAlive is a gauge of switches the controller currently
	// considers alive.
	SwitchesAlive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "switches_alive",
		Help:      "Number of switches the controller currently considers alive.",
	})

	// SwitchLivenessTransitions counts Switch Alive/Dead transitions.
	SwitchLivenessTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "switch_liveness_transitions_total",
		Help:      "Total switch alive/dead transitions observed by the controller.",
	}, []string{"to_state"})

	// NeighborLivenessTransitions counts Neighbor Alive/Dead transitions
	// observed by a switch.
	NeighborLivenessTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "neighbor_liveness_transitions_total",
		Help:      "Total neighbor alive/dead transitions observed by a switch.",
	}, []string{"to_state"})
)

// --- Wire Metrics ---

var (
	// DatagramsReceived counts received datagrams by message type.
	DatagramsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "datagrams_received_total",
		Help:      "Total datagrams received, by message type.",
	}, []string{"msg_type"})

	// DatagramsSent counts sent datagrams by message type.
	DatagramsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "datagrams_sent_total",
		Help:      "Total datagrams sent, by message type.",
	}, []string{"msg_type"})

	// DecodeErrors counts malformed datagrams dropped by the codec.
	DecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decode_errors_total",
		Help:      "Total datagrams dropped for failing to decode.",
	})
)
