package cuckoo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level metric vars, updated by every Map instance via its
// "name" label — the same pattern fennel's lib/arena and hangar/mem
// packages use for their own promauto.NewGaugeVec package vars.
var (
	usedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cuckoomap_used_entries",
		Help: "Number of distinct keys currently stored in the map.",
	}, []string{"name"})

	layersGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cuckoomap_layers",
		Help: "Number of cascade layers (subtables) currently allocated.",
	}, []string{"name"})

	kicksHist = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cuckoomap_insert_kicks",
		Help:    "Number of evictions performed by a single subtable insert.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"name"})

	promotionsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cuckoomap_promotions_total",
		Help: "Number of times lookup promoted an entry back to layer 0.",
	}, []string{"name"})
)

func (m *Map[K, V]) reportUsedLocked() {
	usedGauge.WithLabelValues(m.name).Set(float64(m.used))
}

func (m *Map[K, V]) reportLayersLocked() {
	layersGauge.WithLabelValues(m.name).Set(float64(len(m.tables)))
}
