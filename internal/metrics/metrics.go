// Package metrics exposes poll-cycle health and channel readings to
// Prometheus so the bridge can be watched like any other exporter.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robertfraefel/procon-bridge/internal/logging"
)

const (
	httpReadTimeout  = 15 * time.Second
	httpWriteTimeout = 15 * time.Second
	httpIdleTimeout  = 60 * time.Second
)

var (
	ChannelValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "procon_channel_value",
			Help: "Current computed value (offset + factor * raw) per active channel",
		},
		[]string{"column", "name", "unit"},
	)

	RelayMode = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "procon_relay_mode",
			Help: "Relay mode per relay column (0=auto, 1=manual off, 2=manual on)",
		},
		[]string{"column", "name"},
	)

	FetchFailure = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "procon_fetch_failure",
			Help: "1 if the last poll failed to fetch or decode GetState.csv, 0 if successful",
		},
	)

	LastRefreshTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "procon_last_refresh_timestamp_seconds",
			Help: "Unix timestamp of the last successful poll",
		},
	)

	PollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "procon_poll_duration_seconds",
			Help:    "Wall time of one fetch+decode+publish cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	RelayWrites = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "procon_relay_writes_total",
			Help: "Number of ENA patterns posted to /usrcfg.cgi",
		},
	)
)

// NewRegistry builds a registry holding only the bridge's own metrics.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		ChannelValue,
		RelayMode,
		FetchFailure,
		LastRefreshTimestamp,
		PollDuration,
		RelayWrites,
	)
	return registry
}

// Serve blocks on an HTTP server exposing /metrics on addr.
func Serve(addr string, registry *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}
	logging.Info("Metrics endpoint listening", "addr", addr)
	return server.ListenAndServe()
}
