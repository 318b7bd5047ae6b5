// Package telemetry exposes simulation progress as Prometheus metrics.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nvandessel/gossipsim/internal/gossip"
)

const namespace = "gossipsim"

// Metrics holds one registry and the collectors that mirror an engine.
// Each Metrics has its own registry so tests and multiple servers never collide.
type Metrics struct {
	Registry *prometheus.Registry

	nodes           *prometheus.GaugeVec
	step            prometheus.Gauge
	totalMessages   prometheus.Gauge
	messagesCreated prometheus.Gauge
	running         prometheus.Gauge

	stepsTotal      prometheus.Counter
	deliveriesTotal prometheus.Counter
	duplicatesTotal prometheus.Counter
	infectionsTotal prometheus.Counter
	recoveriesTotal prometheus.Counter

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	buildInfo       *prometheus.GaugeVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		nodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "nodes",
				Help:      "Number of nodes per SIR state.",
			},
			[]string{"state"},
		),
		step: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "step",
			Help:      "Current step counter.",
		}),
		totalMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "known_messages",
			Help:      "Sum over nodes of distinct known message ids.",
		}),
		messagesCreated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "messages_created",
			Help:      "Messages originated since the last reset.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while the simulation is running.",
		}),

		stepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Steps that advanced the simulation.",
		}),
		deliveriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Successful message deliveries.",
		}),
		duplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_deliveries_total",
			Help:      "Deliveries of a message the recipient already knew.",
		}),
		infectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "infections_total",
			Help:      "Susceptible nodes that became infected.",
		}),
		recoveriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recoveries_total",
			Help:      "Infected nodes that were removed.",
		}),

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"op", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Latency of HTTP requests.",
				// 0.1ms .. ~400ms
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 13),
			},
			[]string{"op"},
		),
		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "build_info",
				Help:      "Build info (constant 1, labeled by version).",
			},
			[]string{"version"},
		),
	}

	m.Registry.MustRegister(
		m.nodes, m.step, m.totalMessages, m.messagesCreated, m.running,
		m.stepsTotal, m.deliveriesTotal, m.duplicatesTotal, m.infectionsTotal, m.recoveriesTotal,
		m.requestsTotal, m.requestDuration, m.buildInfo,
	)
	return m
}

// SetBuildInfo should be called once at startup.
func (m *Metrics) SetBuildInfo(version string) {
	m.buildInfo.WithLabelValues(version).Set(1)
}

// SetStatistics mirrors a statistics snapshot into the gauges.
func (m *Metrics) SetStatistics(s gossip.Statistics) {
	m.nodes.WithLabelValues(gossip.Susceptible.String()).Set(float64(s.Susceptible))
	m.nodes.WithLabelValues(gossip.Infected.String()).Set(float64(s.Infected))
	m.nodes.WithLabelValues(gossip.Removed.String()).Set(float64(s.Removed))
	m.step.Set(float64(s.Step))
	m.totalMessages.Set(float64(s.TotalMessages))
	m.messagesCreated.Set(float64(s.MessagesCreated))
	if s.Running {
		m.running.Set(1)
	} else {
		m.running.Set(0)
	}
}

// ObserveStep adds an advanced step's activity to the counters and refreshes
// the gauges. Lifecycle changes without a step go through SetStatistics.
func (m *Metrics) ObserveStep(rep gossip.StepReport, s gossip.Statistics) {
	m.stepsTotal.Inc()
	m.deliveriesTotal.Add(float64(rep.Deliveries))
	m.duplicatesTotal.Add(float64(rep.Duplicates))
	m.infectionsTotal.Add(float64(rep.NewInfections))
	m.recoveriesTotal.Add(float64(rep.Recoveries))
	m.SetStatistics(s)
}

// Handler exposes /metrics. Mount it with mux.Handle("/metrics", m.Handler()).
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Instrument wraps an http.Handler to record metrics under the provided "op" label.
func (m *Metrics) Instrument(op string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(sw, r)

		class := strconv.Itoa(sw.status/100) + "xx"
		m.requestsTotal.WithLabelValues(op, class).Inc()
		m.requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	})
}
