// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.9.21
//

package celltrack

import "math"

// Observation is a single (user_position, rssi, cell_id) measurement
// produced by a moving observer. It is immutable once constructed and
// never mutated by the estimators.
type Observation struct {
	TimestampMS int64   `json:"timestamp_ms"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	RSSIDBm     int     `json:"rssi_dbm"`
	CellID      string  `json:"cell_id"`
	Tech        string  `json:"tech"`
}

// WellFormed reports whether every numeric field is present and finite,
// and the cell identifier is non-empty. Ill-formed observations are
// dropped silently at the ingest boundary rather than surfaced as errors.
func (o Observation) WellFormed() bool {
	if o.CellID == "" {
		return false
	}
	return isFinite(o.Lat) && isFinite(o.Lon) && isFinite(float64(o.RSSIDBm))
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// GroupByCell buckets well-formed observations by cell identifier,
// dropping ill-formed ones, and deduplicates observations that share an
// identical (lat, lon, cell_id) by keeping the one with the latest
// timestamp.
func GroupByCell(observations []Observation) map[string][]Observation {
	type dedupKey struct {
		lat, lon float64
		cellID   string
	}
	latest := make(map[dedupKey]Observation)
	for _, o := range observations {
		if !o.WellFormed() {
			logWarnf("dropping ill-formed observation: cell=%s lat=%v lon=%v rssi=%d", o.CellID, o.Lat, o.Lon, o.RSSIDBm)
			continue
		}
		k := dedupKey{o.Lat, o.Lon, o.CellID}
		prev, ok := latest[k]
		if !ok || o.TimestampMS > prev.TimestampMS {
			latest[k] = o
		}
	}

	groups := make(map[string][]Observation)
	for _, o := range latest {
		groups[o.CellID] = append(groups[o.CellID], o)
	}
	return groups
}
