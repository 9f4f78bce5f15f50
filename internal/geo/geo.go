// Package geo provides the great-circle math shared by all format handlers.
package geo

import "math"

// EarthRadiusKm is the sphere radius used for all distance computations.
// Every call site must use the same radius so that distances computed by
// different handlers are comparable.
const EarthRadiusKm = 6367.0

// DegreeToRadian converts degrees to radians.
func DegreeToRadian(degree float64) float64 {
	return degree * math.Pi / 180
}

// DistanceMeters returns the great-circle distance between two positions
// in meters using the haversine formula. Identical points yield 0; NaN
// inputs propagate NaN, which downstream code treats as an unset distance.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	dLat := DegreeToRadian(lat2 - lat1)
	dLon := DegreeToRadian(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(DegreeToRadian(lat1))*math.Cos(DegreeToRadian(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c * 1000
}
