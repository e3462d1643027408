// Package metrics defines the Prometheus collectors fed by the truth
// accumulator and writes them out in the node-exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/orneryd/calotruth/pkg/truth"
)

// Metrics holds all Prometheus collectors for calotruth. It implements
// truth.Observer.
type Metrics struct {
	registry *prometheus.Registry

	EventsTotal           prometheus.Counter
	EventsWithWarnings    prometheus.Counter
	EventDuration         prometheus.Histogram
	SubEventsTotal        *prometheus.CounterVec
	HitsTotal             prometheus.Counter
	ClustersPerEvent      prometheus.Histogram
	CaloParticlesPerEvent prometheus.Histogram
	RejectedTotal         *prometheus.CounterVec
	AnomaliesTotal        *prometheus.CounterVec
	StoreErrorsTotal      prometheus.Counter
}

var _ truth.Observer = (*Metrics)(nil)

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EventsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "calotruth_events_total",
				Help: "Total number of finalized events.",
			},
		),
		EventsWithWarnings: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "calotruth_events_with_warnings_total",
				Help: "Events that contained orphan hits or malformed references.",
			},
		),
		EventDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "calotruth_event_duration_seconds",
				Help:    "Time from event initialization to finalization.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		SubEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calotruth_sub_events_total",
				Help: "Sub-events by outcome (accumulated, skipped).",
			},
			[]string{"outcome"},
		),
		HitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "calotruth_hits_total",
				Help: "Total calorimeter hits read from selected collections.",
			},
		),
		ClustersPerEvent: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "calotruth_clusters_per_event",
				Help:    "Number of SimClusters per event.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		CaloParticlesPerEvent: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "calotruth_calo_particles_per_event",
				Help:    "Number of CaloParticles per event.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		RejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calotruth_rejected_candidates_total",
				Help: "Calo-particle candidates rejected by the selection, by reason.",
			},
			[]string{"reason"},
		),
		AnomaliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calotruth_input_anomalies_total",
				Help: "Recoverable input problems by kind.",
			},
			[]string{"kind"},
		),
		StoreErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "calotruth_store_errors_total",
				Help: "Finalized events that could not be stored.",
			},
		),
	}

	m.registry.MustRegister(
		m.EventsTotal,
		m.EventsWithWarnings,
		m.EventDuration,
		m.SubEventsTotal,
		m.HitsTotal,
		m.ClustersPerEvent,
		m.CaloParticlesPerEvent,
		m.RejectedTotal,
		m.AnomaliesTotal,
		m.StoreErrorsTotal,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveEvent records a finalized event.
func (m *Metrics) ObserveEvent(out *truth.Output, elapsed time.Duration) {
	d := out.Diagnostics

	m.EventsTotal.Inc()
	if d.Warnings() {
		m.EventsWithWarnings.Inc()
	}
	m.EventDuration.Observe(elapsed.Seconds())
	m.SubEventsTotal.WithLabelValues("accumulated").Add(float64(len(out.Graphs)))
	m.SubEventsTotal.WithLabelValues("skipped").Add(float64(d.SkippedSubEvents))
	m.HitsTotal.Add(float64(len(out.Hits)))
	m.ClustersPerEvent.Observe(float64(len(out.Clusters)))
	m.CaloParticlesPerEvent.Observe(float64(len(out.CaloParticles)))

	for reason, n := range d.Rejected {
		m.RejectedTotal.WithLabelValues(string(reason)).Add(float64(n))
	}
	m.AnomaliesTotal.WithLabelValues("malformed_reference").Add(float64(d.MalformedReferences))
	m.AnomaliesTotal.WithLabelValues("orphan_hit").Add(float64(d.OrphanHits))
	m.AnomaliesTotal.WithLabelValues("process_type_mismatch").Add(float64(d.ProcessTypeMismatches))
	m.AnomaliesTotal.WithLabelValues("unlinked_track").Add(float64(d.UnlinkedTracks))
	m.AnomaliesTotal.WithLabelValues("collapsed_vertex").Add(float64(d.CollapsedVertices))
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
