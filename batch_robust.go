// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.9.21
//

// Implements the robust weighted-least-squares batch estimator: an
// initial WLS pass followed by median/MAD outlier rejection and an
// optional re-solve on the surviving inliers.

package celltrack

import (
	"math"

	"golang.org/x/exp/slices"
)

// robustEstimate runs wlsSolve once, classifies observations as inliers
// or outliers via a median-absolute-deviation gate on their residuals,
// and re-solves on the inliers iff at least three remain and at least
// one outlier was removed. Otherwise the initial WLS estimate is
// returned unchanged.
func robustEstimate(obs []Observation, cfg PathLossConfig) (lat, lon float64, ok bool) {
	plane, pts, radii := projectForWLS(obs, cfg)

	p, ok := wlsSolve(pts, radii)
	if !ok {
		return 0, 0, false
	}

	residuals := make([]float64, len(pts))
	for i, pt := range pts {
		residuals[i] = math.Abs(dist2D(p, pt) - radii[i])
	}

	m := median(residuals)
	mad := medianAbsoluteDeviation(residuals, m)

	inlierPts := make([]Point2D, 0, len(pts))
	inlierRadii := make([]float64, 0, len(radii))
	outliers := 0
	for i, r := range residuals {
		isInlier := mad < 1e-6 || math.Abs(r-m)/(1.4826*mad) < cfg.OutlierThresholdMAD
		if isInlier {
			inlierPts = append(inlierPts, pts[i])
			inlierRadii = append(inlierRadii, radii[i])
		} else {
			outliers++
		}
	}

	if outliers == 0 || len(inlierPts) < wlsMinObservations {
		lat, lon = plane.Unproject(p)
		return lat, lon, true
	}

	refined, ok := wlsSolve(inlierPts, inlierRadii)
	if !ok {
		logWarnf("robust WLS: re-solve on %d inliers failed, keeping initial estimate", len(inlierPts))
		lat, lon = plane.Unproject(p)
		return lat, lon, true
	}
	lat, lon = plane.Unproject(refined)
	return lat, lon, true
}

func median(xs []float64) float64 {
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2.0
}

func medianAbsoluteDeviation(xs []float64, center float64) float64 {
	devs := make([]float64, len(xs))
	for i, x := range xs {
		devs[i] = math.Abs(x - center)
	}
	return median(devs)
}
