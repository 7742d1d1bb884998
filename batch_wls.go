// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.9.21
//

// Implements the weighted-least-squares batch estimator: Gauss-Newton
// minimization of sum w_i*(||p-p_i||-d_i)^2 in the tangent plane. The 2x2
// normal-equation solve uses a closed-form Cramer inverse rather than a
// generic matrix solver, since WLS only ever needs a 2x2 solve here.

package celltrack

import "math"

const (
	wlsMinObservations = 3
	wlsMaxIterations   = 20
	wlsConvergenceM    = 0.1
	wlsSingularDet     = 1e-10
)

// wlsSolve runs Gauss-Newton weighted least squares to find the point p
// minimizing sum w_i*(||p-pts[i]||-radii[i])^2, starting from the
// arithmetic mean of pts. Returns ok=false on too few observations or a
// singular normal-equation matrix.
func wlsSolve(pts []Point2D, radii []float64) (Point2D, bool) {
	n := len(pts)
	if n < wlsMinObservations {
		return Point2D{}, false
	}

	p := arithmeticMean(pts)

	for iter := 0; iter < wlsMaxIterations; iter++ {
		var a11, a12, a22, b0, b1 float64
		for i := 0; i < n; i++ {
			dist := dist2D(p, pts[i])
			if dist < 1e-9 {
				dist = 1e-9
			}
			hx := (p.X - pts[i].X) / dist
			hy := (p.Y - pts[i].Y) / dist
			r := dist - radii[i]
			w := 1.0 / (1.0 + radii[i]/1000.0)

			a11 += w * hx * hx
			a12 += w * hx * hy
			a22 += w * hy * hy
			b0 += w * hx * r
			b1 += w * hy * r
		}

		det := a11*a22 - a12*a12
		if math.Abs(det) < wlsSingularDet {
			logWarnf("batch WLS: singular normal equations (det=%.3g), aborting", det)
			return Point2D{}, false
		}

		dX := (b0*a22 - a12*b1) / det
		dY := (a11*b1 - a12*b0) / det

		p.X -= dX
		p.Y -= dY

		if math.Hypot(dX, dY) < wlsConvergenceM {
			break
		}
	}

	return p, true
}

func arithmeticMean(pts []Point2D) Point2D {
	var sx, sy float64
	for _, p := range pts {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(pts))
	return Point2D{sx / n, sy / n}
}

// projectForWLS converts observations into the tangent-plane points and
// path-loss distances that the WLS and robust-WLS estimators share.
func projectForWLS(obs []Observation, cfg PathLossConfig) (TangentPlane, []Point2D, []float64) {
	originLat, originLon := meanLatLon(obs)
	plane := NewTangentPlane(originLat, originLon)
	pts := make([]Point2D, len(obs))
	radii := make([]float64, len(obs))
	for i, o := range obs {
		pts[i] = plane.Project(o.Lat, o.Lon)
		radii[i] = RSSIToDistance(float64(o.RSSIDBm), cfg.PathLossExponent, cfg.ReferenceRSSIDBm, cfg.ReferenceDistanceM)
	}
	return plane, pts, radii
}

// wlsEstimate implements the plain weighted-least-squares batch
// estimator.
func wlsEstimate(obs []Observation, cfg PathLossConfig) (lat, lon float64, ok bool) {
	plane, pts, radii := projectForWLS(obs, cfg)
	p, ok := wlsSolve(pts, radii)
	if !ok {
		return 0, 0, false
	}
	lat, lon = plane.Unproject(p)
	return lat, lon, true
}
