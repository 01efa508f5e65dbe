// Package geo provides the pure geospatial math the integrity engine is
// built on: great-circle distance, travel speed, and radius containment.
// All functions validate their inputs and perform no I/O.
package geo

import (
	"fmt"
	"math"

	"github.com/fieldops/attendance-engine/pkg/models"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// Validation failures for coordinate, duration, and radius inputs.
var (
	ErrInvalidCoordinate = fmt.Errorf("invalid coordinate")
	ErrInvalidDuration   = fmt.Errorf("invalid duration")
	ErrInvalidRadius     = fmt.Errorf("invalid radius")
)

// ValidatePoint checks latitude/longitude bounds and rejects non-finite
// values.
func ValidatePoint(p models.GeoPoint) error {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) ||
		math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		return fmt.Errorf("%w: non-finite value (%v, %v)", ErrInvalidCoordinate, p.Latitude, p.Longitude)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidCoordinate, p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidCoordinate, p.Longitude)
	}
	return nil
}

// Distance computes the haversine great-circle distance between two points
// in meters. Symmetric; zero for identical points; correct across the
// antimeridian and at the poles.
func Distance(a, b models.GeoPoint) (float64, error) {
	if err := ValidatePoint(a); err != nil {
		return 0, err
	}
	if err := ValidatePoint(b); err != nil {
		return 0, err
	}

	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c, nil
}

// SpeedKmh converts a distance in meters covered in the given number of
// minutes to km/h. Returns 0 for non-positive distances; fails for
// non-positive durations.
func SpeedKmh(meters, minutes float64) (float64, error) {
	if minutes <= 0 || math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return 0, fmt.Errorf("%w: %v minutes", ErrInvalidDuration, minutes)
	}
	if meters <= 0 {
		return 0, nil
	}
	return (meters / 1000) / (minutes / 60), nil
}

// WithinRadius reports whether point lies within radiusMeters of center.
func WithinRadius(center, point models.GeoPoint, radiusMeters float64) (bool, error) {
	if radiusMeters < 0 || math.IsNaN(radiusMeters) {
		return false, fmt.Errorf("%w: %v meters", ErrInvalidRadius, radiusMeters)
	}
	d, err := Distance(center, point)
	if err != nil {
		return false, err
	}
	return d <= radiusMeters, nil
}

// Round2 is the canonical rounding policy for reported distances and
// speeds. Applied once where a value enters a signal or response, never
// inside the math itself.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
