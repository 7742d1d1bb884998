// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.9.21
//

package celltrack

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PathLossConfig holds the batch estimators' path-loss model and dispatch
// options. Zero-value PathLossConfig is not valid; use
// DefaultPathLossConfig or LoadPathLossConfig.
type PathLossConfig struct {
	PathLossExponent    float64 `yaml:"path_loss_exponent"`
	ReferenceRSSIDBm    float64 `yaml:"reference_rssi_dbm"`
	ReferenceDistanceM  float64 `yaml:"reference_distance_m"`
	ClusterBandwidthM   float64 `yaml:"cluster_bandwidth_m"`
	OutlierThresholdMAD float64 `yaml:"outlier_threshold_mad"`
	Method              Method  `yaml:"method"`
}

// DefaultPathLossConfig returns the defaults: eta=2.0, P0=-40dBm,
// dRef=1m, cluster bandwidth 150m, outlier gate 2.5 MAD, method=robust.
func DefaultPathLossConfig() PathLossConfig {
	return PathLossConfig{
		PathLossExponent:    2.0,
		ReferenceRSSIDBm:    -40.0,
		ReferenceDistanceM:  1.0,
		ClusterBandwidthM:   150.0,
		OutlierThresholdMAD: 2.5,
		Method:              MethodRobust,
	}
}

// LoadPathLossConfig reads a YAML file overriding any subset of
// DefaultPathLossConfig's fields, grounded on the sensor-logger project's
// LoadSensorsConfig/LoadStorageConfig pattern: read the whole file, then
// unmarshal on top of the defaults so an omitted key keeps its default.
func LoadPathLossConfig(path string) (PathLossConfig, error) {
	cfg := DefaultPathLossConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read path-loss config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse path-loss config: %w", err)
	}
	return cfg, nil
}
