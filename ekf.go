// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.9.21
//

// Implements the self-calibrating Extended Kalman Filter that tracks one
// stationary base station plus the two parameters of the log-distance
// path-loss model. The filter is driven entirely by the caller: a single
// Step call performs one predict-update iteration.

package celltrack

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Default EKF tuning constants.
const (
	DefaultProcessNoise   = 1e-5 // q, applied to all four diagonal entries of Q
	DefaultMeasurementVar = 9.0  // R, measurement variance in dB^2 (~3 dB std)
	InitialP0Dbm          = -40.0
	InitialEta            = 3.0
	InitialVariance       = 1000.0 // diagonal of the initial P
)

// EKF tracks a single stationary base station and the two parameters of
// the log-distance path-loss model from a stream of (user position,
// RSSI) measurements. An instance is not safe for concurrent use; callers
// must serialize Step/Initialize/Reset externally. Distinct instances are
// fully independent.
type EKF struct {
	initialized bool
	x           *mat.VecDense // [Xb, Yb, P0, Eta]
	P           *mat.Dense    // 4x4 covariance
	q           float64       // process noise scalar (diagonal of Q)
	r           float64       // measurement variance

	zone       int
	hemisphere byte

	lastUser         UTMCoord
	lastRSSIDBm      int
	measurementCount int
}

// NewEKF creates an Uninitialized filter with the default process and
// measurement noise.
func NewEKF() *EKF {
	return NewEKFWithProcessNoise(DefaultProcessNoise)
}

// NewEKFWithProcessNoise creates an Uninitialized filter with a
// caller-chosen process noise scalar q (see DESIGN.md for why this is
// exposed rather than fixed).
func NewEKFWithProcessNoise(q float64) *EKF {
	return &EKF{q: q, r: DefaultMeasurementVar}
}

// IsInitialized reports whether the filter has left the Uninitialized
// state.
func (f *EKF) IsInitialized() bool {
	return f.initialized
}

// Initialize sets the filter to Tracking using the initial-state
// assignment: x = (u_x, u_y, -40, 3.0), P = 1000*I4. The UTM zone and
// hemisphere of initialUserUTM are captured and become the filter's fixed
// frame for every subsequent inverse projection, regardless of zone
// crossings in later input.
func (f *EKF) Initialize(initialUserUTM UTMCoord) {
	f.x = mat.NewVecDense(4, []float64{
		initialUserUTM.Easting,
		initialUserUTM.Northing,
		InitialP0Dbm,
		InitialEta,
	})
	f.P = identity4()
	f.P.Scale(InitialVariance, f.P)
	f.zone = initialUserUTM.Zone
	f.hemisphere = initialUserUTM.Hemisphere
	f.initialized = true
	f.measurementCount = 0
}

// Reset returns the filter to Uninitialized. The next Step call
// re-initializes from its incoming user position.
func (f *EKF) Reset() {
	f.initialized = false
	f.x = nil
	f.P = nil
	f.measurementCount = 0
}

// Step performs one predict-update iteration for a measurement taken at
// userUTM with the given RSSI. If the filter is Uninitialized it
// auto-initializes on userUTM first; this is never a user-visible error.
// Step mutates the filter's internal state and returns a non-nil error
// only in the (should-be-impossible) case that the innovation covariance
// S is non-positive after arithmetic, in which case the update is
// skipped and a warning is logged.
func (f *EKF) Step(userUTM UTMCoord, rssiDBm int) error {
	if !f.initialized {
		f.Initialize(userUTM)
	}
	if f.zone != userUTM.Zone || f.hemisphere != userUTM.Hemisphere {
		logWarnf("EKF.Step: user UTM frame (zone=%d hemi=%c) does not match the filter's fixed frame (zone=%d hemi=%c); caller must re-project before calling Step",
			userUTM.Zone, userUTM.Hemisphere, f.zone, f.hemisphere)
	}

	// Predict: stationary target, so x is unchanged; only covariance grows.
	q := identity4()
	q.Scale(f.q, q)
	f.P.Add(f.P, q)

	xb, yb, p0, eta := f.x.AtVec(0), f.x.AtVec(1), f.x.AtVec(2), f.x.AtVec(3)
	dx := xb - userUTM.Easting
	dy := yb - userUTM.Northing
	d := math.Max(math.Hypot(dx, dy), 1.0)

	zHat := PredictedRSSI(d, eta, p0, 1.0)
	h := ekfJacobian(dx, dy, d, eta)

	var ph mat.VecDense
	ph.MulVec(f.P, h)
	s := mat.Dot(h, &ph) + f.r
	if s <= 0 {
		logWarnf("EKF.Step: innovation covariance S=%.6g is non-positive; skipping update", s)
		return fmt.Errorf("celltrack: EKF innovation covariance non-positive (S=%.6g)", s)
	}

	k := mat.NewVecDense(4, nil)
	k.ScaleVec(1/s, &ph)

	innovation := float64(rssiDBm) - zHat
	var dxv mat.VecDense
	dxv.ScaleVec(innovation, k)
	f.x.AddVec(f.x, &dxv)

	var kh mat.Dense
	kh.Outer(1.0, k, h)
	factor := identity4()
	factor.Sub(factor, &kh)
	var newP mat.Dense
	newP.Mul(factor, f.P)
	symmetrize(&newP)
	f.P = &newP

	f.lastUser = userUTM
	f.lastRSSIDBm = rssiDBm
	f.measurementCount++
	return nil
}

// ekfJacobian returns H = dh/dx evaluated at the prior mean, where
// dx = xb-ux, dy = yb-uy, and d = ||(dx,dy)||. The negative sign on the
// position partials is essential: an unsigned variant is a correctness
// bug that causes divergence.
func ekfJacobian(dx, dy, d, eta float64) *mat.VecDense {
	coef := -(10.0 * eta) / (math.Ln10 * d * d)
	return mat.NewVecDense(4, []float64{
		coef * dx,
		coef * dy,
		1.0,
		-10.0 * math.Log10(d),
	})
}

// EstimatedPositionUTM returns the current base-station estimate in the
// filter's captured zone/hemisphere, or ok=false if Uninitialized.
func (f *EKF) EstimatedPositionUTM() (UTMCoord, bool) {
	if !f.initialized {
		return UTMCoord{}, false
	}
	return UTMCoord{
		Easting:    f.x.AtVec(0),
		Northing:   f.x.AtVec(1),
		Zone:       f.zone,
		Hemisphere: f.hemisphere,
	}, true
}

// EstimatedPosition returns the current base-station estimate as WGS84
// geographic coordinates via inverse UTM projection, or ok=false if
// Uninitialized.
func (f *EKF) EstimatedPosition() (latDeg, lonDeg float64, ok bool) {
	u, ok := f.EstimatedPositionUTM()
	if !ok {
		return 0, 0, false
	}
	lat, lon := UTMInverse(u)
	return lat, lon, true
}

// ErrorRadiusM returns sqrt(P11 + P22), the RMS of the position
// variances, for display only; it is +Inf if Uninitialized and must not
// be interpreted by callers as any specific confidence level.
func (f *EKF) ErrorRadiusM() float64 {
	if !f.initialized {
		return math.Inf(1)
	}
	return math.Sqrt(f.P.At(0, 0) + f.P.At(1, 1))
}

// PathLossParameters returns the current (P0, eta) estimate.
func (f *EKF) PathLossParameters() (p0, eta float64) {
	if !f.initialized {
		return InitialP0Dbm, InitialEta
	}
	return f.x.AtVec(2), f.x.AtVec(3)
}

// PositionUncertainty returns the standard deviations of the position
// components.
func (f *EKF) PositionUncertainty() (sigmaX, sigmaY float64) {
	if !f.initialized {
		return math.Inf(1), math.Inf(1)
	}
	return math.Sqrt(f.P.At(0, 0)), math.Sqrt(f.P.At(1, 1))
}

// Covariance returns a read-only copy of the 4x4 state covariance.
func (f *EKF) Covariance() [4][4]float64 {
	var out [4][4]float64
	if !f.initialized {
		return out
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i][j] = f.P.At(i, j)
		}
	}
	return out
}

// TrackingState assembles the full per-step derived output record.
func (f *EKF) TrackingState() TrackingState {
	lat, lon, _ := f.EstimatedPosition()
	p0, eta := f.PathLossParameters()
	return TrackingState{
		Lat:              lat,
		Lon:              lon,
		ErrorRadiusM:     f.ErrorRadiusM(),
		P0:               p0,
		Eta:              eta,
		LastUserEasting:  f.lastUser.Easting,
		LastUserNorthing: f.lastUser.Northing,
		LastRSSIDBm:      f.lastRSSIDBm,
		MeasurementCount: f.measurementCount,
	}
}

func identity4() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1.0)
	}
	return m
}

// symmetrize guards against drift from numerical asymmetry: P <- (P+P^T)/2.
func symmetrize(m *mat.Dense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := i + 1; j < c; j++ {
			avg := (m.At(i, j) + m.At(j, i)) / 2.0
			m.Set(i, j, avg)
			m.Set(j, i, avg)
		}
	}
}
