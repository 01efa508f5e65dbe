package travel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/attendance-engine/pkg/models"
)

var base = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func timed(lat, lon float64, at time.Time) models.TimedPoint {
	return models.TimedPoint{Point: models.GeoPoint{Latitude: lat, Longitude: lon}, At: at}
}

func TestAnalyzeImpossibleSpeedRejects(t *testing.T) {
	// Kathmandu to Pokhara in ten minutes is several hundred km/h.
	prev := timed(27.7172, 85.3240, base)
	cur := timed(28.2096, 83.9856, base.Add(10*time.Minute))

	a, err := Analyze(prev, cur, DefaultThresholds())
	require.NoError(t, err)
	assert.True(t, a.Reject)
	require.NotNil(t, a.Signal)
	assert.Equal(t, models.SignalImpossibleTravelSpeed, a.Signal.Kind)
	assert.Equal(t, models.SeverityHigh, a.Signal.Severity)
	assert.Greater(t, a.SpeedKmh, 200.0)
}

func TestAnalyzeWalkingSpeedClean(t *testing.T) {
	// Roughly 50 meters in ten minutes.
	prev := timed(27.7172, 85.3240, base)
	cur := timed(27.71765, 85.3240, base.Add(10*time.Minute))

	a, err := Analyze(prev, cur, DefaultThresholds())
	require.NoError(t, err)
	assert.False(t, a.Reject)
	assert.Nil(t, a.Signal)
	assert.Less(t, a.SpeedKmh, 1.0)
}

func TestAnalyzeHighBandFlagsWithoutReject(t *testing.T) {
	// ~25 km in 10 minutes is 150 km/h: suspect but not impossible.
	prev := timed(27.7172, 85.3240, base)
	cur := timed(27.9420, 85.3240, base.Add(10*time.Minute))

	a, err := Analyze(prev, cur, DefaultThresholds())
	require.NoError(t, err)
	assert.False(t, a.Reject)
	require.NotNil(t, a.Signal)
	assert.Equal(t, models.SeverityHigh, a.Signal.Severity)
	assert.GreaterOrEqual(t, a.SpeedKmh, 100.0)
	assert.Less(t, a.SpeedKmh, 200.0)
}

func TestAnalyzeMediumBandFlagsMedium(t *testing.T) {
	// ~13 km in 10 minutes is ~80 km/h.
	prev := timed(27.7172, 85.3240, base)
	cur := timed(27.8370, 85.3240, base.Add(10*time.Minute))

	a, err := Analyze(prev, cur, DefaultThresholds())
	require.NoError(t, err)
	assert.False(t, a.Reject)
	require.NotNil(t, a.Signal)
	assert.Equal(t, models.SeverityMedium, a.Signal.Severity)
}

func TestAnalyzeRejectsNonPositiveElapsed(t *testing.T) {
	prev := timed(27.7172, 85.3240, base)

	_, err := Analyze(prev, timed(27.8, 85.3, base), DefaultThresholds())
	assert.ErrorIs(t, err, ErrInvalidTimeSequence)

	_, err = Analyze(prev, timed(27.8, 85.3, base.Add(-time.Minute)), DefaultThresholds())
	assert.ErrorIs(t, err, ErrInvalidTimeSequence)
}

func TestAnalyzeCustomThresholds(t *testing.T) {
	// A rural fleet tuned to tolerate 150 km/h does not flag a 120 km/h leg.
	th := Thresholds{RejectKmh: 300, HighKmh: 150, MediumKmh: 120}
	prev := timed(27.7172, 85.3240, base)
	cur := timed(27.9060, 85.3240, base.Add(10*time.Minute)) // ~126 km/h

	a, err := Analyze(prev, cur, th)
	require.NoError(t, err)
	assert.False(t, a.Reject)
	require.NotNil(t, a.Signal)
	assert.Equal(t, models.SeverityMedium, a.Signal.Severity)
}
