// Package metrics exposes Prometheus instrumentation for the tracking core.
package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles all tracking metrics behind one registry.
// A nil *Collector is valid and records nothing, so wiring metrics stays
// optional.
type Collector struct {
	reg *prometheus.Registry

	TripsStarted prometheus.Counter
	TripsEnded   prometheus.Counter

	LocationsIngested prometheus.Counter
	IngestDuration    prometheus.Histogram

	RemindersEvaluated  prometheus.Counter
	RemindersSent       prometheus.Counter
	RemindersSuppressed prometheus.Counter
}

// NewCollector builds a Collector with its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		TripsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracking_trips_started_total",
			Help: "Trips started.",
		}),
		TripsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracking_trips_ended_total",
			Help: "Trips ended.",
		}),
		LocationsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracking_locations_ingested_total",
			Help: "GPS pings persisted.",
		}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracking_ingest_duration_seconds",
			Help:    "Time to persist one location batch.",
			Buckets: prometheus.DefBuckets,
		}),
		RemindersEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracking_reminders_evaluated_total",
			Help: "Reminder evaluation passes over ingested batches.",
		}),
		RemindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracking_reminders_sent_total",
			Help: "Proximity reminders dispatched to parents.",
		}),
		RemindersSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracking_reminders_suppressed_total",
			Help: "Reminders withheld by the cooldown window.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.TripsStarted, c.TripsEnded,
		c.LocationsIngested, c.IngestDuration,
		c.RemindersEvaluated, c.RemindersSent, c.RemindersSuppressed,
	)
	return c
}

// Serve starts a /metrics endpoint on addr and returns the server so the
// caller can shut it down.
func (c *Collector) Serve(addr string, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("metrics server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

// TripStarted increments the started counter. Nil-safe.
func (c *Collector) TripStarted() {
	if c != nil {
		c.TripsStarted.Inc()
	}
}

// TripEnded increments the ended counter. Nil-safe.
func (c *Collector) TripEnded() {
	if c != nil {
		c.TripsEnded.Inc()
	}
}

// LocationsInserted adds n to the ingestion counter and observes the batch
// duration. Nil-safe.
func (c *Collector) LocationsInserted(n int, d time.Duration) {
	if c != nil {
		c.LocationsIngested.Add(float64(n))
		c.IngestDuration.Observe(d.Seconds())
	}
}

// ReminderEvaluated increments the evaluation counter. Nil-safe.
func (c *Collector) ReminderEvaluated() {
	if c != nil {
		c.RemindersEvaluated.Inc()
	}
}

// ReminderSent increments the sent counter. Nil-safe.
func (c *Collector) ReminderSent() {
	if c != nil {
		c.RemindersSent.Inc()
	}
}

// ReminderSuppressed increments the cooldown-suppression counter. Nil-safe.
func (c *Collector) ReminderSuppressed() {
	if c != nil {
		c.RemindersSuppressed.Inc()
	}
}
