package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/attendance-engine/pkg/models"
)

var (
	kathmandu = models.GeoPoint{Latitude: 27.7172, Longitude: 85.3240}
	pokhara   = models.GeoPoint{Latitude: 28.2096, Longitude: 83.9856}
)

func TestDistanceSymmetric(t *testing.T) {
	ab, err := Distance(kathmandu, pokhara)
	require.NoError(t, err)
	ba, err := Distance(pokhara, kathmandu)
	require.NoError(t, err)
	assert.InDelta(t, ab, ba, 1e-9)
}

func TestDistanceZeroForSamePoint(t *testing.T) {
	d, err := Distance(kathmandu, kathmandu)
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestDistanceKathmanduPokhara(t *testing.T) {
	// Known great-circle distance is roughly 140 km.
	d, err := Distance(kathmandu, pokhara)
	require.NoError(t, err)
	assert.InDelta(t, 143000, d, 5000)
}

func TestDistanceAcrossAntimeridian(t *testing.T) {
	west := models.GeoPoint{Latitude: 0, Longitude: 179.9}
	east := models.GeoPoint{Latitude: 0, Longitude: -179.9}
	d, err := Distance(west, east)
	require.NoError(t, err)
	// 0.2 degrees of longitude at the equator, not nearly the full circle.
	assert.InDelta(t, 22238, d, 100)
}

func TestDistancePoles(t *testing.T) {
	north := models.GeoPoint{Latitude: 90, Longitude: 0}
	south := models.GeoPoint{Latitude: -90, Longitude: 120}
	d, err := Distance(north, south)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi*EarthRadiusMeters, d, 1)
}

func TestDistanceRejectsOutOfRange(t *testing.T) {
	cases := []models.GeoPoint{
		{Latitude: 91, Longitude: 0},
		{Latitude: -90.0001, Longitude: 0},
		{Latitude: 0, Longitude: 180.5},
		{Latitude: 0, Longitude: -181},
		{Latitude: math.NaN(), Longitude: 0},
		{Latitude: 0, Longitude: math.Inf(1)},
	}
	for _, p := range cases {
		_, err := Distance(p, kathmandu)
		assert.ErrorIs(t, err, ErrInvalidCoordinate, "point %+v", p)
	}
}

func TestSpeedKmh(t *testing.T) {
	v, err := SpeedKmh(1000, 60)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)

	v, err = SpeedKmh(200000, 10)
	require.NoError(t, err)
	assert.InDelta(t, 1200.0, v, 1e-9)
}

func TestSpeedKmhZeroDistance(t *testing.T) {
	for _, meters := range []float64{0, -5} {
		v, err := SpeedKmh(meters, 30)
		require.NoError(t, err)
		assert.Zero(t, v)
	}
}

func TestSpeedKmhRejectsNonPositiveDuration(t *testing.T) {
	for _, minutes := range []float64{0, -1, math.NaN()} {
		_, err := SpeedKmh(100, minutes)
		assert.ErrorIs(t, err, ErrInvalidDuration, "minutes=%v", minutes)
	}
}

func TestWithinRadius(t *testing.T) {
	center := models.GeoPoint{Latitude: 27.7172, Longitude: 85.3240}
	near := models.GeoPoint{Latitude: 27.7176, Longitude: 85.3244}

	ok, err := WithinRadius(center, near, 100)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = WithinRadius(center, pokhara, 100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithinRadiusRejectsNegativeRadius(t *testing.T) {
	_, err := WithinRadius(kathmandu, pokhara, -1)
	assert.ErrorIs(t, err, ErrInvalidRadius)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1200.35, Round2(1200.3456))
	assert.Equal(t, 0.3, Round2(0.2999999))
}
