// Package pattern scans a user's recent flagged history for recurring
// fraud signatures. The analyzer is read-only: it consumes records already
// flagged by the per-operation checks and grades the user's overall risk.
package pattern

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fieldops/attendance-engine/internal/integrity/geo"
	"github.com/fieldops/attendance-engine/pkg/models"
)

// Config tunes the pattern window and its detection thresholds.
type Config struct {
	// WindowDays is the trailing period the analyzer inspects.
	WindowDays int `json:"window_days" mapstructure:"window_days"`
	// SpeedThresholdKmh is the medium travel band; flagged records at or
	// above it count as speed violations.
	SpeedThresholdKmh float64 `json:"speed_threshold_kmh" mapstructure:"speed_threshold_kmh"`
	// BucketReuseLimit is how often one ~111m coordinate bucket may recur
	// in flagged records before it reads as a repeated suspicious location.
	BucketReuseLimit int `json:"bucket_reuse_limit" mapstructure:"bucket_reuse_limit"`
	// RapidGap is the spacing below which consecutive flagged operations
	// count as a time anomaly.
	RapidGap time.Duration `json:"rapid_gap" mapstructure:"rapid_gap"`
	// MaxShiftHours is the longest credible shift; flagged clock-outs
	// beyond it count as time anomalies.
	MaxShiftHours float64 `json:"max_shift_hours" mapstructure:"max_shift_hours"`
	// PatternFloor, MediumFloor and HighFloor grade the summed counts.
	PatternFloor int `json:"pattern_floor" mapstructure:"pattern_floor"`
	MediumFloor  int `json:"medium_floor" mapstructure:"medium_floor"`
	HighFloor    int `json:"high_floor" mapstructure:"high_floor"`
}

// DefaultConfig returns the stock tuning: 30-day window, 60 km/h speed
// floor, 5-reuse buckets, sub-minute gaps, 16-hour shifts, pattern at 3
// occurrences, medium at 5, high at 10.
func DefaultConfig() Config {
	return Config{
		WindowDays:        30,
		SpeedThresholdKmh: 60,
		BucketReuseLimit:  5,
		RapidGap:          time.Minute,
		MaxShiftHours:     16,
		PatternFloor:      3,
		MediumFloor:       5,
		HighFloor:         10,
	}
}

// PatternType names the dominant signature category.
type PatternType string

const (
	PatternSpeedViolations   PatternType = "speed_violations"
	PatternLocationAnomalies PatternType = "location_anomalies"
	PatternTimeAnomalies     PatternType = "time_anomalies"
	PatternNone              PatternType = "none"
)

// SpeedStats summarizes the speed-violation records in the window.
type SpeedStats struct {
	Count      int     `json:"count"`
	AverageKmh float64 `json:"average_kmh"`
	MaxKmh     float64 `json:"max_kmh"`
}

// Result is the graded outcome of one pattern scan.
type Result struct {
	HasPattern  bool            `json:"has_pattern"`
	PatternType PatternType     `json:"pattern_type"`
	RiskLevel   models.Severity `json:"risk_level"`
	// Confidence is the summed occurrence count normalized against the
	// high floor, capped at 1.
	Confidence decimal.Decimal `json:"confidence"`

	Speed             SpeedStats `json:"speed"`
	LocationAnomalies int        `json:"location_anomalies"`
	TimeAnomalies     int        `json:"time_anomalies"`
}

// Analyzer grades flagged-record histories.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer creates an analyzer with the given tuning.
func NewAnalyzer(cfg Config) *Analyzer {
	if cfg.WindowDays <= 0 {
		cfg = DefaultConfig()
	}
	return &Analyzer{cfg: cfg}
}

// Analyze scans the window of flagged records and grades the user's risk.
// Records outside the configured window are ignored even if the provider
// returned them.
func (a *Analyzer) Analyze(records []models.FlaggedRecord, now time.Time) *Result {
	cutoff := now.AddDate(0, 0, -a.cfg.WindowDays)
	inWindow := make([]models.FlaggedRecord, 0, len(records))
	for _, rec := range records {
		if !rec.At.Before(cutoff) {
			inWindow = append(inWindow, rec)
		}
	}

	speed := a.speedViolations(inWindow)
	location := a.locationAnomalies(inWindow)
	timing := a.timeAnomalies(inWindow)

	total := speed.Count + location + timing
	res := &Result{
		Speed:             speed,
		LocationAnomalies: location,
		TimeAnomalies:     timing,
		HasPattern:        total >= a.cfg.PatternFloor,
		PatternType:       PatternNone,
		RiskLevel:         models.SeverityLow,
		Confidence:        confidence(total, a.cfg.HighFloor),
	}

	switch {
	case total >= a.cfg.HighFloor:
		res.RiskLevel = models.SeverityHigh
	case total >= a.cfg.MediumFloor:
		res.RiskLevel = models.SeverityMedium
	case res.HasPattern:
		// A real pattern under the medium floor still reads medium.
		res.RiskLevel = models.SeverityMedium
	}

	if res.HasPattern {
		res.PatternType = dominant(speed.Count, location, timing)
	}

	return res
}

// speedViolations counts records flagged at or above the medium speed band
// and reports their count, average, and max.
func (a *Analyzer) speedViolations(records []models.FlaggedRecord) SpeedStats {
	var stats SpeedStats
	var sum float64
	for _, rec := range records {
		if rec.SpeedKmh < a.cfg.SpeedThresholdKmh {
			continue
		}
		stats.Count++
		sum += rec.SpeedKmh
		if rec.SpeedKmh > stats.MaxKmh {
			stats.MaxKmh = rec.SpeedKmh
		}
	}
	if stats.Count > 0 {
		stats.AverageKmh = geo.Round2(sum / float64(stats.Count))
		stats.MaxKmh = geo.Round2(stats.MaxKmh)
	}
	return stats
}

// locationAnomalies groups flagged records into 3-decimal coordinate
// buckets (≈111m cells) and counts the records falling into buckets reused
// at or beyond the limit. Counting records rather than buckets weighs a
// spot by its recurrence: one bucket reused five times contributes five
// occurrences to the pattern total, not one.
func (a *Analyzer) locationAnomalies(records []models.FlaggedRecord) int {
	buckets := make(map[string]int)
	for _, rec := range records {
		buckets[bucketKey(rec.Point)]++
	}
	anomalies := 0
	for _, n := range buckets {
		if n >= a.cfg.BucketReuseLimit {
			anomalies += n
		}
	}
	return anomalies
}

// timeAnomalies counts sub-minute gaps between distinct flagged operations
// plus records carrying an impossible shift length.
func (a *Analyzer) timeAnomalies(records []models.FlaggedRecord) int {
	times := make([]time.Time, 0, len(records))
	anomalies := 0
	for _, rec := range records {
		times = append(times, rec.At)
		if rec.ShiftHours > a.cfg.MaxShiftHours {
			anomalies++
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		if gap > 0 && gap < a.cfg.RapidGap {
			anomalies++
		}
	}
	return anomalies
}

// dominant picks the category with the most occurrences; ties resolve in
// the order speed, location, time.
func dominant(speed, location, timing int) PatternType {
	switch {
	case speed >= location && speed >= timing:
		return PatternSpeedViolations
	case location >= timing:
		return PatternLocationAnomalies
	default:
		return PatternTimeAnomalies
	}
}

func confidence(total, highFloor int) decimal.Decimal {
	if highFloor <= 0 || total <= 0 {
		return decimal.Zero
	}
	c := decimal.NewFromInt(int64(total)).Div(decimal.NewFromInt(int64(highFloor)))
	if c.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return c.Round(2)
}

// bucketKey rounds a point to 3 decimal places per axis.
func bucketKey(p models.GeoPoint) string {
	return fmt.Sprintf("%.3f:%.3f", p.Latitude, p.Longitude)
}
