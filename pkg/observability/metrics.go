// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the relay and the answer assembler.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 300s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamrelay_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamrelay_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamrelay_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// RelaysTotal counts upstream relays by mode (stream/unary) and outcome.
	RelaysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamrelay_relays_total",
			Help: "Upstream relays",
		},
		[]string{"mode", "outcome"},
	)

	// RelaysInFlight tracks relays whose upstream call has not finished.
	RelaysInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamrelay_relays_in_flight",
			Help: "Relays in flight",
		},
	)

	// UpstreamFirstByteSeconds records time from dispatch to the upstream
	// response headers.
	UpstreamFirstByteSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamrelay_upstream_first_byte_seconds",
			Help:    "Upstream time to first byte",
			Buckets: LLMBuckets,
		},
		[]string{"mode"},
	)

	// HeartbeatsTotal counts synthetic heartbeat frames written by format.
	HeartbeatsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamrelay_heartbeats_total",
			Help: "Heartbeat frames sent",
		},
		[]string{"format"},
	)

	// FramesTotal counts decoded stream deltas by kind.
	FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamrelay_frames_total",
			Help: "Decoded stream deltas",
		},
		[]string{"kind"},
	)

	// OrphanToolFragmentsTotal counts tool-call fragments dropped because
	// their index was never opened.
	OrphanToolFragmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "streamrelay_orphan_tool_fragments_total",
			Help: "Dropped orphan tool-call fragments",
		},
	)

	// RevealUpdatesTotal counts paced reveal updates delivered to sinks.
	RevealUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "streamrelay_reveal_updates_total",
			Help: "Reveal updates",
		},
	)

	// ExchangesTotal counts chat exchanges by model and terminal state.
	ExchangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamrelay_exchanges_total",
			Help: "Chat exchanges",
		},
		[]string{"model", "state"},
	)

	// ExchangeDuration records the wall time of a chat exchange including
	// tool rounds.
	ExchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamrelay_exchange_duration_seconds",
			Help:    "Chat exchange duration",
			Buckets: LLMBuckets,
		},
		[]string{"model"},
	)

	// ToolExecutionsTotal counts tool executions by name and outcome.
	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamrelay_tool_executions_total",
			Help: "Tool executions",
		},
		[]string{"tool_name", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		RelaysTotal,
		RelaysInFlight,
		UpstreamFirstByteSeconds,
		HeartbeatsTotal,
		FramesTotal,
		OrphanToolFragmentsTotal,
		RevealUpdatesTotal,
		ExchangesTotal,
		ExchangeDuration,
		ToolExecutionsTotal,
	)
}
