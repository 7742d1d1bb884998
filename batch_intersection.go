// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.9.21
//

// Implements the circle-intersection voting batch estimator: every pair
// of observations defines a path-loss circle, and the transmitter is
// taken to be wherever the highest density of (angle-weighted) pairwise
// intersections accumulates.

package celltrack

import "math"

type intersectionPoint struct {
	p Point2D
	w float64 // crossing-angle weight
}

// circleIntersections returns the 0, 1 (tangent), or 2 intersection
// points of circles (c1,r1) and (c2,r2), each tagged with the
// crossing-angle weight w = clamp(h/min(r1,r2), 0, 1), where h is the
// perpendicular half-chord length. This convention (rather than the more
// conventional |sin(theta)|) is cheaper (no trig call per candidate
// pair) and proportional to it for small h, diverging only near tangency.
func circleIntersections(c1 Point2D, r1 float64, c2 Point2D, r2 float64) []intersectionPoint {
	dx := c2.X - c1.X
	dy := c2.Y - c1.Y
	d := math.Hypot(dx, dy)

	if d <= 1e-6 || d > r1+r2 || d < math.Abs(r1-r2) {
		return nil
	}

	a := (r1*r1 - r2*r2 + d*d) / (2 * d)
	h2 := r1*r1 - a*a
	if h2 < 0 {
		h2 = 0
	}
	h := math.Sqrt(h2)

	xm := c1.X + a*dx/d
	ym := c1.Y + a*dy/d
	rx := -dy * (h / d)
	ry := dx * (h / d)

	w := clamp(h/math.Min(r1, r2), 0, 1)

	if h <= 1e-9 {
		return []intersectionPoint{{Point2D{xm, ym}, w}}
	}
	return []intersectionPoint{
		{Point2D{xm + rx, ym + ry}, w},
		{Point2D{xm - rx, ym - ry}, w},
	}
}

// intersectionEstimate implements the circle-intersection voting method
// of the batch estimator family. It returns ok=false whenever no pair of
// circles intersects; the dispatch then falls back to centroidEstimate.
func intersectionEstimate(obs []Observation, cfg PathLossConfig) (lat, lon float64, ok bool) {
	originLat, originLon := meanLatLon(obs)
	plane := NewTangentPlane(originLat, originLon)

	pts := make([]Point2D, len(obs))
	radii := make([]float64, len(obs))
	for i, o := range obs {
		pts[i] = plane.Project(o.Lat, o.Lon)
		radii[i] = RSSIToDistance(float64(o.RSSIDBm), cfg.PathLossExponent, cfg.ReferenceRSSIDBm, cfg.ReferenceDistanceM)
	}

	var candidates []intersectionPoint
	for i := 0; i < len(obs); i++ {
		for j := i + 1; j < len(obs); j++ {
			candidates = append(candidates, circleIntersections(pts[i], radii[i], pts[j], radii[j])...)
		}
	}

	if len(candidates) == 0 {
		return 0, 0, false
	}

	b := math.Max(5.0, cfg.ClusterBandwidthM)
	bestIdx := 0
	bestScore := math.Inf(-1)
	for k, pk := range candidates {
		score := 0.0
		for _, pm := range candidates {
			if dist2D(pm.p, pk.p) <= b {
				score += pm.w
			}
		}
		if score > bestScore {
			bestScore = score
			bestIdx = k
		}
	}
	star := candidates[bestIdx].p

	var sumW, sumX, sumY float64
	for _, pm := range candidates {
		dm := dist2D(pm.p, star)
		if dm > b {
			continue
		}
		w := pm.w * (1 - dm/b)
		sumW += w
		sumX += w * pm.p.X
		sumY += w * pm.p.Y
	}
	if sumW <= 0 {
		return 0, 0, false
	}

	lat, lon = plane.Unproject(Point2D{sumX / sumW, sumY / sumW})
	return lat, lon, true
}

func meanLatLon(obs []Observation) (lat, lon float64) {
	var sumLat, sumLon float64
	for _, o := range obs {
		sumLat += o.Lat
		sumLon += o.Lon
	}
	n := float64(len(obs))
	return sumLat / n, sumLon / n
}
