// Package metrics defines the Prometheus metric collectors used by the
// aligner and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the aligner.
type Metrics struct {
	ReadsTotal          *prometheus.CounterVec
	AlignmentsTotal     *prometheus.CounterVec
	PairsTotal          prometheus.Counter
	LocalAtts           prometheus.Counter
	AnchorAtts          prometheus.Counter
	LocalIndexAtts      prometheus.Counter
	LocalExtAtts        prometheus.Counter
	LocalSearchRecur    prometheus.Counter
	GlobalGenomeCoords  prometheus.Counter
	LocalGenomeCoords   prometheus.Counter
	TilesBuilt          prometheus.Counter
	SpliceSitesRecorded prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		ReadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rhisat_reads_total",
				Help: "Total reads processed by outcome (aligned, unaligned).",
			},
			[]string{"outcome"},
		),
		AlignmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rhisat_alignments_total",
				Help: "Total alignments reported by kind (unspliced, spliced).",
			},
			[]string{"kind"},
		),
		PairsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rhisat_concordant_pairs_total",
				Help: "Total concordant pairs reported.",
			},
		),
		LocalAtts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rhisat_local_attempts_total",
				Help: "Total local search attempts.",
			},
		),
		AnchorAtts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rhisat_anchor_attempts_total",
				Help: "Total anchor search attempts.",
			},
		),
		LocalIndexAtts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rhisat_local_index_attempts_total",
				Help: "Total local FM-index search attempts.",
			},
		),
		LocalExtAtts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rhisat_local_extension_attempts_total",
				Help: "Total direct extension attempts.",
			},
		),
		LocalSearchRecur: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rhisat_hybrid_recursions_total",
				Help: "Total hybrid search recursion frames entered.",
			},
		),
		GlobalGenomeCoords: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rhisat_global_genome_coords_total",
				Help: "Total SA elements resolved against the global index.",
			},
		),
		LocalGenomeCoords: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rhisat_local_genome_coords_total",
				Help: "Total SA elements resolved against local tile indexes.",
			},
		),
		TilesBuilt: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rhisat_tiles_built_total",
				Help: "Total local tile indexes built on demand.",
			},
		),
		SpliceSitesRecorded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rhisat_splice_sites_recorded_total",
				Help: "Total novel splice sites recorded in the shared database.",
			},
		),
	}

	prometheus.MustRegister(
		m.ReadsTotal,
		m.AlignmentsTotal,
		m.PairsTotal,
		m.LocalAtts,
		m.AnchorAtts,
		m.LocalIndexAtts,
		m.LocalExtAtts,
		m.LocalSearchRecur,
		m.GlobalGenomeCoords,
		m.LocalGenomeCoords,
		m.TilesBuilt,
		m.SpliceSitesRecorded,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
