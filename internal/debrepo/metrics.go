package debrepo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reliquary",
			Subsystem: "debrepo",
			Name:      "cache_total",
			Help:      "Total number of metadata cache lookups, by outcome.",
		},
		[]string{"outcome"},
	)
	generateCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reliquary",
			Subsystem: "debrepo",
			Name:      "generate_total",
			Help:      "Total number of Packages indices generated, by compression.",
		},
		[]string{"compression"},
	)
)
