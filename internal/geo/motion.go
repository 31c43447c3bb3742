// Package geo implements great-circle motion over a spherical Earth.
//
// All functions are pure and safe for concurrent use.
package geo

import (
	"math"
	"snail-trail-service/internal/domain"
)

// EarthRadiusMeters is the mean Earth radius used by every formula here.
const EarthRadiusMeters = 6371000.0

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

// BearingTo returns the initial great-circle bearing from -> to in radians,
// in (-π, π], with 0 pointing north and positive values turning clockwise.
// Identical points have no defined bearing and yield 0.
func BearingTo(from, to domain.Coordinate) float64 {
	lat1 := toRadians(from.Latitude)
	lat2 := toRadians(to.Latitude)
	dLon := toRadians(to.Longitude - from.Longitude)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	b := math.Atan2(y, x)
	if math.IsNaN(b) {
		return 0
	}
	return b
}

// DistanceMeters returns the haversine great-circle distance between two points.
func DistanceMeters(from, to domain.Coordinate) float64 {
	lat1 := toRadians(from.Latitude)
	lat2 := toRadians(to.Latitude)
	dLat := toRadians(to.Latitude - from.Latitude)
	dLon := toRadians(to.Longitude - from.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	// Rounding can push a slightly outside [0, 1] near identical or antipodal points.
	a = clamp(a, 0, 1)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// Destination moves start along bearing (radians) by meters using the
// spherical direct-geodesic formula. It performs no arrival check.
func Destination(start domain.Coordinate, bearing, meters float64) domain.Coordinate {
	delta := meters / EarthRadiusMeters
	lat1 := toRadians(start.Latitude)
	lon1 := toRadians(start.Longitude)

	sinLat2 := math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(bearing)
	lat2 := math.Asin(clamp(sinLat2, -1, 1))

	lon2 := lon1 + math.Atan2(
		math.Sin(bearing)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2),
	)

	return domain.Coordinate{
		Latitude:  toDegrees(lat2),
		Longitude: normalizeLongitude(toDegrees(lon2)),
	}
}

// Advance moves current toward target by speed*elapsedSeconds meters along the
// initial great-circle bearing.
//
// When the remaining distance is no more than one step, the result is target
// itself, so a snail never overshoots and then oscillates around its goal.
// A zero, negative or non-finite step leaves current unchanged.
func Advance(current, target domain.Coordinate, speed, elapsedSeconds float64) domain.Coordinate {
	step := speed * elapsedSeconds
	if !(step > 0) || math.IsInf(step, 0) {
		return current
	}

	if current == target || DistanceMeters(current, target) <= step {
		return target
	}

	return Destination(current, BearingTo(current, target), step)
}

// ETASeconds returns the travel time from current to target at speed.
// A zero speed yields +Inf (or NaN when already at target); see Arrives.
func ETASeconds(current, target domain.Coordinate, speed float64) float64 {
	return DistanceMeters(current, target) / speed
}

// Arrives reports whether an ETA is a usable finite duration.
func Arrives(etaSeconds float64) bool {
	return !math.IsNaN(etaSeconds) && !math.IsInf(etaSeconds, 0) && etaSeconds >= 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeLongitude wraps degrees into [-180, 180].
func normalizeLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
