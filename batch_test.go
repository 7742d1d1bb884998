package celltrack

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkObs(cellID string, lat, lon float64, rssi int) Observation {
	return Observation{TimestampMS: 0, Lat: lat, Lon: lon, RSSIDBm: rssi, CellID: cellID, Tech: "LTE"}
}

func TestBatchCentroidScenarioS1(t *testing.T) {
	obs := []Observation{mkObs("C", 35.681200, 139.767100, -80)}
	cfg := DefaultPathLossConfig()

	lat, lon, ok := centroidEstimate(obs, cfg)
	require.True(t, ok)
	assert.InDelta(t, 35.681200, lat, 1e-9)
	assert.InDelta(t, 139.767100, lon, 1e-9)
}

func TestBatchCentroidNoObservations(t *testing.T) {
	_, _, ok := centroidEstimate(nil, DefaultPathLossConfig())
	assert.False(t, ok)
}

func TestBatchCentroidFavorsStrongerSignal(t *testing.T) {
	cfg := DefaultPathLossConfig()
	obs := []Observation{
		mkObs("C", 0.0, 0.0, -60), // stronger signal
		mkObs("C", 0.0, 1.0, -100),
	}
	lat, lon, ok := centroidEstimate(obs, cfg)
	require.True(t, ok)
	assert.InDelta(t, 0.0, lat, 1e-9)
	assert.Less(t, lon, 0.5, "the stronger observation should pull the weighted centroid toward it")
}

// equilateralAroundCenter builds three points at circumradius r around
// center, at 90/210/330 degrees, matching the geometry of scenario S5 up to
// translation and scale.
func equilateralAroundCenter(center Point2D, r float64) [3]Point2D {
	var pts [3]Point2D
	angles := [3]float64{90, 210, 330}
	for i, deg := range angles {
		rad := ToRad(deg)
		pts[i] = Point2D{
			X: center.X + r*math.Cos(rad),
			Y: center.Y + r*math.Sin(rad),
		}
	}
	return pts
}

func TestBatchIntersectionScenarioS5(t *testing.T) {
	cfg := DefaultPathLossConfig() // eta=2.0, ref_rssi=-40, ref_dist=1.0
	center := Point2D{X: 50, Y: 50}
	pts := equilateralAroundCenter(center, 100.0)

	plane0 := NewTangentPlane(35.0, 139.0)
	obs := make([]Observation, 3)
	for i, p := range pts {
		lat, lon := plane0.Unproject(p)
		// rssi=-80 under these defaults inverts to exactly d=100m, per the
		// path-loss scenario in pathloss_test.go.
		obs[i] = mkObs("C", lat, lon, -80)
	}

	lat, lon, ok := intersectionEstimate(obs, cfg)
	require.True(t, ok)

	got := plane0.Project(lat, lon)
	assert.InDelta(t, center.X, got.X, 1.0)
	assert.InDelta(t, center.Y, got.Y, 1.0)
}

func TestBatchRobustBeatsWLSUnderContamination(t *testing.T) {
	cfg := DefaultPathLossConfig()
	center := Point2D{X: 50, Y: 50}
	pts := equilateralAroundCenter(center, 100.0)

	plane0 := NewTangentPlane(35.0, 139.0)
	obs := make([]Observation, 0, 4)
	for _, p := range pts {
		lat, lon := plane0.Unproject(p)
		obs = append(obs, mkObs("C", lat, lon, -80)) // d=100m each
	}

	// An outlier far from the cluster, reporting an inconsistent short
	// distance (d=10m <-> rssi=-60 exactly under these defaults).
	outlierLat, outlierLon := plane0.Unproject(Point2D{X: 400, Y: 400})
	obs = append(obs, mkObs("C", outlierLat, outlierLon, -60))

	robustLat, robustLon, ok := robustEstimate(obs, cfg)
	require.True(t, ok)
	robustPos := plane0.Project(robustLat, robustLon)
	robustErr := dist2D(robustPos, center)

	wlsLat, wlsLon, ok := wlsEstimate(obs, cfg)
	require.True(t, ok)
	wlsPos := plane0.Project(wlsLat, wlsLon)
	wlsErr := dist2D(wlsPos, center)

	assert.Less(t, robustErr, 1.0, "robust estimator should reject the outlier and recover the true center")
	assert.Greater(t, wlsErr, robustErr, "plain WLS should be pulled noticeably off by the contaminating outlier")
}

func TestBatchWLSRecoversKnownPosition(t *testing.T) {
	cfg := DefaultPathLossConfig()
	center := Point2D{X: 0, Y: 0}
	plane0 := NewTangentPlane(10.0, 100.0)

	angles := []float64{0, 90, 180, 270, 45}
	obs := make([]Observation, 0, len(angles))
	for _, deg := range angles {
		rad := ToRad(deg)
		p := Point2D{X: center.X + 100*math.Cos(rad), Y: center.Y + 100*math.Sin(rad)}
		lat, lon := plane0.Unproject(p)
		obs = append(obs, mkObs("C", lat, lon, -80)) // d=100m
	}

	lat, lon, ok := wlsEstimate(obs, cfg)
	require.True(t, ok)
	got := plane0.Project(lat, lon)
	assert.InDelta(t, center.X, got.X, 1.0)
	assert.InDelta(t, center.Y, got.Y, 1.0)
}

func TestBatchWLSTooFewObservations(t *testing.T) {
	_, ok := wlsSolve([]Point2D{{X: 0, Y: 0}, {X: 1, Y: 1}}, []float64{10, 10})
	assert.False(t, ok)
}

func TestDispatchForcesCentroidBelowTwoObservations(t *testing.T) {
	cfg := DefaultPathLossConfig()
	cfg.Method = MethodRobust

	groups := map[string][]Observation{
		"C": {mkObs("C", 1.0, 2.0, -80)},
	}
	estimates := EstimatePositions(groups, cfg)
	require.Len(t, estimates, 1)
	require.NotNil(t, estimates[0].Lat)
	assert.InDelta(t, 1.0, *estimates[0].Lat, 1e-9)
	assert.InDelta(t, 2.0, *estimates[0].Lon, 1e-9)
}

func TestDispatchFallsBackToCentroidOnWLSFailure(t *testing.T) {
	cfg := DefaultPathLossConfig()
	cfg.Method = MethodWLS

	groups := map[string][]Observation{
		"C": {
			mkObs("C", 1.0, 2.0, -80),
			mkObs("C", 1.0, 2.001, -80),
		},
	}
	estimates := EstimatePositions(groups, cfg)
	require.Len(t, estimates, 1)
	require.NotNil(t, estimates[0].Lat)

	wantLat, wantLon, ok := centroidEstimate(groups["C"], cfg)
	require.True(t, ok)
	assert.InDelta(t, wantLat, *estimates[0].Lat, 1e-9)
	assert.InDelta(t, wantLon, *estimates[0].Lon, 1e-9)
}

func TestDispatchEmptyGroups(t *testing.T) {
	estimates := EstimatePositions(map[string][]Observation{}, DefaultPathLossConfig())
	assert.Empty(t, estimates)
}

func TestGroupByCellDropsIllFormedAndDedupes(t *testing.T) {
	obs := []Observation{
		mkObs("", 1.0, 2.0, -80), // no cell id: dropped
		{TimestampMS: 1, Lat: math.NaN(), Lon: 2.0, RSSIDBm: -80, CellID: "C"}, // non-finite: dropped
		{TimestampMS: 1, Lat: 1.0, Lon: 2.0, RSSIDBm: -80, CellID: "C"},
		{TimestampMS: 2, Lat: 1.0, Lon: 2.0, RSSIDBm: -70, CellID: "C"}, // same (lat,lon,cell), later timestamp wins
	}
	groups := GroupByCell(obs)
	require.Len(t, groups["C"], 1)
	assert.Equal(t, -70, groups["C"][0].RSSIDBm)
}
