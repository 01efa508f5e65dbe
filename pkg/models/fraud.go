package models

import "time"

// SignalKind identifies the specific implausibility a fraud check detected.
type SignalKind string

const (
	SignalImpossibleTravelSpeed SignalKind = "impossible_travel_speed"
	SignalLocationSpoofing      SignalKind = "location_spoofing"
	SignalSuspiciousPattern     SignalKind = "suspicious_location_pattern"
	SignalTimeAnomaly           SignalKind = "time_anomaly"
)

// Severity grades a fraud signal.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// FraudSignal is one structured implausibility finding. Signals are
// transient: produced per operation and persisted only as the flag reason
// on the record they concern.
type FraudSignal struct {
	Kind       SignalKind             `json:"kind"`
	Severity   Severity               `json:"severity"`
	Reason     string                 `json:"reason"`
	Evidence   map[string]interface{} `json:"evidence,omitempty"`
	DetectedAt time.Time              `json:"detected_at"`
}

// Decision is the outcome class of an orchestrated operation.
type Decision string

const (
	DecisionAllow        Decision = "allow"
	DecisionAllowFlagged Decision = "allow_flagged"
	DecisionReject       Decision = "reject"
)

// IntegrityVerdict is the engine's answer for one operation.
type IntegrityVerdict struct {
	Decision Decision      `json:"decision"`
	Reason   string        `json:"reason,omitempty"`
	Signals  []FraudSignal `json:"signals,omitempty"`
}

// Flagged reports whether the verdict carries at least one signal that
// must be persisted on the affected record.
func (v *IntegrityVerdict) Flagged() bool {
	return v.Decision == DecisionAllowFlagged && len(v.Signals) > 0
}

// FlagReason joins the signal reasons into the audit string stored on the
// record. Empty when nothing was flagged.
func (v *IntegrityVerdict) FlagReason() string {
	if len(v.Signals) == 0 {
		return ""
	}
	reason := v.Signals[0].Reason
	for _, s := range v.Signals[1:] {
		reason += "; " + s.Reason
	}
	return reason
}

// FlaggedRecord is the read-model consumed by pattern analysis: a
// previously flagged event reduced to the fields the analyzer scores.
type FlaggedRecord struct {
	At       time.Time  `json:"at"`
	Point    GeoPoint   `json:"point"`
	SpeedKmh float64    `json:"speed_kmh"`
	Kind     SignalKind `json:"kind"`
	// ShiftHours is the recorded shift length for clock-out records,
	// zero otherwise.
	ShiftHours float64 `json:"shift_hours"`
}
