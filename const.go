// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.9.21
//

package celltrack

// WGS84 ellipsoid parameters, shared by the UTM projection.
const (
	Re = 6378137.0           // Earth's semi-major axis [m]
	Fe = 1.0 / 298.257223563 // Earth's flattening
)

// Equirectangular tangent plane used by the batch estimators, which only
// need local relative positions and don't carry the UTM zone machinery.
const EarthRadiusM = 6_371_000.0 // [m]

// UTM projection constants.
const (
	UTMK0           = 0.9996   // Scale factor at the central meridian
	UTMFalseEasting = 500000.0 // [m]
	UTMFalseNorthS  = 1.0e7    // Southern-hemisphere false northing [m]
	UTMZoneWidthDeg = 6.0      // Zone width [deg]
)
