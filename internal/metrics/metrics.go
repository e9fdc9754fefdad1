package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// OptimizerRuns counts finished runs by outcome (completed, failed)
	OptimizerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimizer_runs_total", Help: "Optimization runs by status."},
		[]string{"status"},
	)
	// RunDuration records the wall time of whole runs in seconds
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "optimizer_run_duration_seconds", Help: "Optimization run duration in seconds.", Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900}},
		[]string{"map"},
	)
	// ComponentSolves counts component solves by strategy (bruteforce, beam)
	ComponentSolves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimizer_component_solves_total", Help: "Component solves by strategy."},
		[]string{"strategy"},
	)
	OracleCalls = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "optimizer_oracle_calls_total", Help: "Score oracle invocations."},
	)
	BeamSteps = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "optimizer_beam_steps_total", Help: "Beam rounds that admitted a successor."},
	)
	// RefineOutcomes counts allocation refinements by MILP status
	RefineOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimizer_refine_total", Help: "Allocation refinements by outcome."},
		[]string{"status"},
	)
	// MapFetches counts map data lookups by source (cache, remote, file) and result
	MapFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mapdata_fetches_total", Help: "Map data lookups by source and result."},
		[]string{"source", "result"},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(OptimizerRuns, RunDuration, ComponentSolves, OracleCalls, BeamSteps, RefineOutcomes)
		Registry.MustRegister(MapFetches)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
