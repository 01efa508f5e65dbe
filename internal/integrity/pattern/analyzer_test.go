package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/attendance-engine/pkg/models"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

// speedRecords builds n speed-flagged records on distinct days and
// distinct coordinate buckets so only the speed category counts.
func speedRecords(n int, kmh float64) []models.FlaggedRecord {
	records := make([]models.FlaggedRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, models.FlaggedRecord{
			At:       now.AddDate(0, 0, -(i + 1)),
			Point:    models.GeoPoint{Latitude: 27.0 + float64(i)*0.1, Longitude: 85.0},
			SpeedKmh: kmh,
			Kind:     models.SignalImpossibleTravelSpeed,
		})
	}
	return records
}

func TestNoRecordsNoPattern(t *testing.T) {
	res := NewAnalyzer(DefaultConfig()).Analyze(nil, now)
	assert.False(t, res.HasPattern)
	assert.Equal(t, PatternNone, res.PatternType)
	assert.Equal(t, models.SeverityLow, res.RiskLevel)
	assert.True(t, res.Confidence.IsZero())
}

func TestFiveSpeedViolationsMediumRisk(t *testing.T) {
	res := NewAnalyzer(DefaultConfig()).Analyze(speedRecords(5, 150), now)
	assert.True(t, res.HasPattern)
	assert.Equal(t, PatternSpeedViolations, res.PatternType)
	assert.Equal(t, models.SeverityMedium, res.RiskLevel)
	assert.Equal(t, 5, res.Speed.Count)
	assert.InDelta(t, 150, res.Speed.AverageKmh, 1e-9)
	assert.InDelta(t, 150, res.Speed.MaxKmh, 1e-9)
}

func TestTenSpeedViolationsHighRisk(t *testing.T) {
	res := NewAnalyzer(DefaultConfig()).Analyze(speedRecords(10, 220), now)
	assert.True(t, res.HasPattern)
	assert.Equal(t, PatternSpeedViolations, res.PatternType)
	assert.Equal(t, models.SeverityHigh, res.RiskLevel)
	assert.Equal(t, "1", res.Confidence.String())
}

func TestUnderFloorStillMediumWhenPatternExists(t *testing.T) {
	// Three occurrences: a pattern, but under the medium floor of five.
	res := NewAnalyzer(DefaultConfig()).Analyze(speedRecords(3, 90), now)
	assert.True(t, res.HasPattern)
	assert.Equal(t, models.SeverityMedium, res.RiskLevel)
}

func TestSlowFlagsDoNotCountAsSpeedViolations(t *testing.T) {
	res := NewAnalyzer(DefaultConfig()).Analyze(speedRecords(5, 30), now)
	assert.Zero(t, res.Speed.Count)
	assert.False(t, res.HasPattern)
}

func TestRepeatedLocationBucket(t *testing.T) {
	// Six flagged records within the same ~111m cell on separate days.
	records := make([]models.FlaggedRecord, 0, 6)
	for i := 0; i < 6; i++ {
		records = append(records, models.FlaggedRecord{
			At:    now.AddDate(0, 0, -(i + 1)),
			Point: models.GeoPoint{Latitude: 27.7172, Longitude: 85.3240},
			Kind:  models.SignalLocationSpoofing,
		})
	}

	res := NewAnalyzer(DefaultConfig()).Analyze(records, now)
	assert.True(t, res.HasPattern)
	assert.Equal(t, PatternLocationAnomalies, res.PatternType)
	assert.Equal(t, 6, res.LocationAnomalies)
}

func TestNearbyButDistinctBucketsDoNotCount(t *testing.T) {
	// Four records spread over distinct 3-decimal buckets.
	records := []models.FlaggedRecord{
		{At: now.AddDate(0, 0, -1), Point: models.GeoPoint{Latitude: 27.701, Longitude: 85.324}},
		{At: now.AddDate(0, 0, -2), Point: models.GeoPoint{Latitude: 27.702, Longitude: 85.324}},
		{At: now.AddDate(0, 0, -3), Point: models.GeoPoint{Latitude: 27.703, Longitude: 85.324}},
		{At: now.AddDate(0, 0, -4), Point: models.GeoPoint{Latitude: 27.704, Longitude: 85.324}},
	}
	res := NewAnalyzer(DefaultConfig()).Analyze(records, now)
	assert.Zero(t, res.LocationAnomalies)
}

func TestRapidSequencesCountAsTimeAnomalies(t *testing.T) {
	// Four flagged operations 20 seconds apart: three sub-minute gaps.
	records := make([]models.FlaggedRecord, 0, 4)
	for i := 0; i < 4; i++ {
		records = append(records, models.FlaggedRecord{
			At:    now.Add(time.Duration(-i*20) * time.Second),
			Point: models.GeoPoint{Latitude: 27.0 + float64(i)*0.1, Longitude: 85.0},
			Kind:  models.SignalTimeAnomaly,
		})
	}

	res := NewAnalyzer(DefaultConfig()).Analyze(records, now)
	assert.Equal(t, 3, res.TimeAnomalies)
	assert.True(t, res.HasPattern)
	assert.Equal(t, PatternTimeAnomalies, res.PatternType)
}

func TestImpossibleShiftLengthCounts(t *testing.T) {
	records := []models.FlaggedRecord{
		{At: now.AddDate(0, 0, -1), Point: models.GeoPoint{Latitude: 27.1, Longitude: 85.0}, ShiftHours: 20},
	}
	res := NewAnalyzer(DefaultConfig()).Analyze(records, now)
	assert.Equal(t, 1, res.TimeAnomalies)
}

func TestRecordsOutsideWindowIgnored(t *testing.T) {
	records := speedRecords(5, 150)
	for i := range records {
		records[i].At = now.AddDate(0, 0, -45)
	}
	res := NewAnalyzer(DefaultConfig()).Analyze(records, now)
	assert.False(t, res.HasPattern)
	assert.Zero(t, res.Speed.Count)
}

func TestDominantTypeTieBreaksSpeedFirst(t *testing.T) {
	// Two speed violations and two rapid-gap anomalies tie; speed wins.
	records := []models.FlaggedRecord{
		{At: now.Add(-10 * time.Second), Point: models.GeoPoint{Latitude: 27.1, Longitude: 85.0}, SpeedKmh: 120},
		{At: now.Add(-30 * time.Second), Point: models.GeoPoint{Latitude: 27.2, Longitude: 85.0}, SpeedKmh: 120},
		{At: now.Add(-50 * time.Second), Point: models.GeoPoint{Latitude: 27.3, Longitude: 85.0}},
	}
	res := NewAnalyzer(DefaultConfig()).Analyze(records, now)
	require.True(t, res.HasPattern)
	assert.Equal(t, 2, res.Speed.Count)
	assert.Equal(t, 2, res.TimeAnomalies)
	assert.Equal(t, PatternSpeedViolations, res.PatternType)
}
