package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "watchdog"

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	processStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "starts_total",
			Help:      "Number of successful process launches, including the initial one.",
		}, []string{"name"},
	)
	processRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "restarts_total",
			Help:      "Number of relaunch attempts after an exit or a failed start.",
		}, []string{"name"},
	)
	processExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "exits_total",
			Help:      "Number of observed process terminations.",
		}, []string{"name", "code"},
	)
	startFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "start_failures_total",
			Help:      "Number of failed launches by reason (not_found, launch_failed).",
		}, []string{"name", "reason"},
	)
	gaveUp = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "gave_up_total",
			Help:      "Number of slots abandoned after exceeding max retries.",
		}, []string{"name"},
	)
	currentStates = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "current_state",
			Help:      "Current state of each slot (1 = active state, 0 = inactive).",
		}, []string{"name", "state"},
	)
	pollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "poll_duration_seconds",
			Help:      "Time spent in one check-and-relaunch cycle.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	cpuPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "cpu_percent",
			Help:      "CPU usage of the running instance.",
		}, []string{"name"},
	)
	memoryRSS = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "memory_rss_bytes",
			Help:      "Resident set size of the running instance.",
		}, []string{"name"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		processStarts, processRestarts, processExits, startFailures, gaveUp,
		currentStates, pollDuration, cpuPercent, memoryRSS,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves metrics from a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncStart(name string) {
	if regOK.Load() {
		processStarts.WithLabelValues(name).Inc()
	}
}

func IncRestart(name string) {
	if regOK.Load() {
		processRestarts.WithLabelValues(name).Inc()
	}
}

func IncExit(name string, code int) {
	if regOK.Load() {
		processExits.WithLabelValues(name, strconv.Itoa(code)).Inc()
	}
}

func IncStartFailure(name, reason string) {
	if regOK.Load() {
		startFailures.WithLabelValues(name, reason).Inc()
	}
}

func IncGaveUp(name string) {
	if regOK.Load() {
		gaveUp.WithLabelValues(name).Inc()
	}
}

// SetState marks state as the only active state of name among states.
func SetState(name, state string, states []string) {
	if !regOK.Load() {
		return
	}
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		currentStates.WithLabelValues(name, s).Set(v)
	}
}

func ObservePollDuration(seconds float64) {
	if regOK.Load() {
		pollDuration.Observe(seconds)
	}
}

func SetUsage(name string, cpu float64, rss uint64) {
	if regOK.Load() {
		cpuPercent.WithLabelValues(name).Set(cpu)
		memoryRSS.WithLabelValues(name).Set(float64(rss))
	}
}

// ClearUsage drops the usage series of name, e.g. while it is not running.
func ClearUsage(name string) {
	if regOK.Load() {
		cpuPercent.DeleteLabelValues(name)
		memoryRSS.DeleteLabelValues(name)
	}
}
