// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.9.21
//

// Implements the batch dispatch contract: for each cell group, run the
// configured method and fall back to centroid on any numerical failure.

package celltrack

// EstimatePositions returns one Estimate per cell group, in Go's
// (unspecified) map iteration order. Groups with fewer than two
// observations, or configured for the centroid method, use centroid
// directly. Any other method falls back to centroid on numerical
// failure (a null return from the method, per the error-handling
// design's "estimate absent" contract).
func EstimatePositions(groups map[string][]Observation, cfg PathLossConfig) []Estimate {
	return EstimatePositionsWithMetrics(groups, cfg, nil)
}

// EstimatePositionsWithMetrics is EstimatePositions with an optional
// Prometheus collector. collector may be nil.
func EstimatePositionsWithMetrics(groups map[string][]Observation, cfg PathLossConfig, collector *DispatchCollector) []Estimate {
	estimates := make([]Estimate, 0, len(groups))
	for cellID, obs := range groups {
		if collector != nil {
			collector.CellGroupsInFlight.Inc()
			collector.ObservationsTotal.Add(float64(len(obs)))
		}

		est := estimateOneCell(cellID, obs, cfg, collector)
		estimates = append(estimates, est)

		if collector != nil {
			collector.CellGroupsInFlight.Dec()
		}
	}
	return estimates
}

func estimateOneCell(cellID string, obs []Observation, cfg PathLossConfig, collector *DispatchCollector) Estimate {
	tech := latestTech(obs)
	est := newEstimate(cellID, tech, len(obs))

	method := cfg.Method
	if len(obs) < 2 {
		method = MethodCentroid
	}

	lat, lon, ok := runMethod(method, obs, cfg)
	usedMethod := method
	if !ok && method != MethodCentroid {
		logWarnf("cell %s: method %s failed on %d observations, falling back to centroid", cellID, method, len(obs))
		if collector != nil {
			collector.FallbackTotal.Inc()
		}
		usedMethod = MethodCentroid
		lat, lon, ok = centroidEstimate(obs, cfg)
	}

	if collector != nil {
		collector.EstimatesTotal.WithLabelValues(usedMethod.String()).Inc()
	}

	if ok {
		est.setPosition(lat, lon)
	}
	return est
}

func runMethod(method Method, obs []Observation, cfg PathLossConfig) (lat, lon float64, ok bool) {
	switch method {
	case MethodCentroid:
		return centroidEstimate(obs, cfg)
	case MethodIntersection:
		return intersectionEstimate(obs, cfg)
	case MethodWLS:
		return wlsEstimate(obs, cfg)
	case MethodRobust:
		return robustEstimate(obs, cfg)
	default:
		return centroidEstimate(obs, cfg)
	}
}

// latestTech returns the technology tag of the observation with the
// latest timestamp in the group.
func latestTech(obs []Observation) string {
	if len(obs) == 0 {
		return ""
	}
	latest := obs[0]
	for _, o := range obs[1:] {
		if o.TimestampMS > latest.TimestampMS {
			latest = o
		}
	}
	return latest.Tech
}
