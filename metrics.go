// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.9.21
//

// Implements optional Prometheus instrumentation around the batch
// dispatch path. A DispatchCollector is entirely optional: every
// estimator call accepts a nil *DispatchCollector and the core never
// requires a registry to function.

package celltrack

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DispatchCollector bundles the Prometheus metrics emitted by
// EstimatePositionsWithMetrics.
type DispatchCollector struct {
	gatherer prometheus.Gatherer

	ObservationsTotal prometheus.Counter
	EstimatesTotal     *prometheus.CounterVec
	FallbackTotal      prometheus.Counter
	CellGroupsInFlight prometheus.Gauge
}

// NewDispatchCollector registers the dispatch metrics against reg,
// defaulting to the global Prometheus registry when reg is nil.
func NewDispatchCollector(reg prometheus.Registerer) (*DispatchCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	observations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "celltrack_observations_total",
		Help: "Total number of well-formed observations consumed by EstimatePositions.",
	})
	if err := registerOrReuse(reg, observations); err != nil {
		return nil, err
	}

	estimates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "celltrack_estimates_total",
		Help: "Total number of batch estimates produced, labeled by the method actually used.",
	}, []string{"method"})
	if err := registerOrReuse(reg, estimates); err != nil {
		return nil, err
	}

	fallback := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "celltrack_fallback_total",
		Help: "Total number of cell groups that fell back to the centroid method.",
	})
	if err := registerOrReuse(reg, fallback); err != nil {
		return nil, err
	}

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "celltrack_cell_groups_in_flight",
		Help: "Number of cell groups currently being estimated.",
	})
	if err := registerOrReuse(reg, inFlight); err != nil {
		return nil, err
	}

	return &DispatchCollector{
		gatherer:           gatherer,
		ObservationsTotal:  observations,
		EstimatesTotal:     estimates,
		FallbackTotal:      fallback,
		CellGroupsInFlight: inFlight,
	}, nil
}

// Handler returns a /metrics handler that gathers from the same registry
// NewDispatchCollector registered against, not the process-wide default.
func (c *DispatchCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// registerOrReuse registers c against reg, tolerating an
// AlreadyRegisteredError so repeated collector construction in tests
// doesn't panic.
func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) error {
	err := reg.Register(c)
	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		_ = are
		return nil
	}
	return err
}
