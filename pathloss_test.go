package celltrack

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathLossScenarioS2(t *testing.T) {
	d := RSSIToDistance(-80, 2.0, -40, 1.0)
	assert.InDelta(t, 100.0, d, 1e-6)
}

func TestPathLossRoundTrip(t *testing.T) {
	etas := []float64{0.5, 1.0, 2.0, 2.7, 3.5, 5.0}
	refs := []float64{-60.0, -40.0, -20.0}
	dists := []float64{1.0, 5.0, 50.0, 500.0, 5000.0, 49999.0}
	for _, eta := range etas {
		for _, ref := range refs {
			for _, d := range dists {
				rssi := PredictedRSSI(d, eta, ref, 1.0)
				if rssi < MinRSSIDBm || rssi > MaxRSSIDBm {
					continue // outside the receiver's modeled dynamic range
				}
				got := RSSIToDistance(rssi, eta, ref, 1.0)
				assert.InDelta(t, d, got, 0.01, "eta=%v ref=%v d=%v", eta, ref, d)
			}
		}
	}
}

func TestPathLossClamping(t *testing.T) {
	// Extreme RSSI clamps into the receiver range before inversion.
	dHot := RSSIToDistance(10, 2.0, -40, 1.0)
	dCold := RSSIToDistance(-500, 2.0, -40, 1.0)
	assert.True(t, dHot >= MinDistanceM && dHot <= MaxDistanceM)
	assert.True(t, dCold >= MinDistanceM && dCold <= MaxDistanceM)

	// A degenerate eta is clamped below MinEta rather than blowing up.
	d := RSSIToDistance(-140, 0.0, -40, 1.0)
	assert.False(t, math.IsInf(d, 0))
	assert.False(t, math.IsNaN(d))
}
