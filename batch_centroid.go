// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.9.21
//

// Implements the centroid batch estimator: a received-power-weighted mean
// of observation positions. This is also the universal fallback target
// for every other batch method.

package celltrack

import "math"

// centroidEstimate computes the received-power-weighted mean of
// observation positions directly in geographic coordinates (no
// tangent-plane conversion needed). For each observation, RSSI is
// converted to linear power p = 10^(rssi/10) and weighted by
// w = p^(2/eta). Returns ok=false iff every weight is zero.
func centroidEstimate(obs []Observation, cfg PathLossConfig) (lat, lon float64, ok bool) {
	var sumW, sumLat, sumLon float64
	for _, o := range obs {
		p := math.Pow(10.0, float64(o.RSSIDBm)/10.0)
		w := math.Pow(p, 2.0/cfg.PathLossExponent)
		sumW += w
		sumLat += w * o.Lat
		sumLon += w * o.Lon
	}
	if sumW <= 0 {
		return 0, 0, false
	}
	return sumLat / sumW, sumLon / sumW, true
}
