package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goiperf_sessions_started_total",
		Help: "Total test sessions started",
	})
	sessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goiperf_sessions_ended_total",
		Help: "Test sessions ended by result",
	}, []string{"result"})
	linesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goiperf_log_lines_total",
		Help: "Lines appended to the log store",
	})
	metricsObserved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goiperf_metrics_observed_total",
		Help: "Per-interval measurements parsed from tool output",
	})
	breakpointSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goiperf_breakpoint_samples_total",
		Help: "Breakpoint samples recorded",
	})
	lastBandwidth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "goiperf_bandwidth_mbps",
		Help: "Most recent per-interval bandwidth in Mbps",
	})
)
