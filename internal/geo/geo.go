// Package geo provides the great-circle math used by route ordering and
// proximity reminders. Pure functions, no dependencies.
package geo

import "math"

// EarthRadiusM is the mean Earth radius in metres (WGS84 mean).
const EarthRadiusM = 6371000.0

// HaversineM returns the great-circle distance in metres between two
// WGS84 coordinates. No road-network information is used anywhere in the
// system; straight-line distance is the routing metric.
func HaversineM(aLat, aLng, bLat, bLng float64) float64 {
	dLat := radians(bLat - aLat)
	dLng := radians(bLng - aLng)

	s1 := math.Sin(dLat/2) * math.Sin(dLat/2)
	s2 := math.Sin(dLng/2) * math.Sin(dLng/2)
	h := s1 + math.Cos(radians(aLat))*math.Cos(radians(bLat))*s2

	return EarthRadiusM * 2 * math.Asin(math.Sqrt(h))
}

// HaversineKM returns the great-circle distance in kilometres.
func HaversineKM(aLat, aLng, bLat, bLng float64) float64 {
	return HaversineM(aLat, aLng, bLat, bLng) / 1000
}

// BearingDeg returns the initial bearing in degrees [0, 360) from the first
// coordinate towards the second.
func BearingDeg(aLat, aLng, bLat, bLng float64) float64 {
	la1 := radians(aLat)
	la2 := radians(bLat)
	dLng := radians(bLng - aLng)

	y := math.Sin(dLng) * math.Cos(la2)
	x := math.Cos(la1)*math.Sin(la2) - math.Sin(la1)*math.Cos(la2)*math.Cos(dLng)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
