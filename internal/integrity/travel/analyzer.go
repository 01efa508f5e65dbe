// Package travel classifies the plausibility of movement between two timed
// coordinate samples.
package travel

import (
	"fmt"
	"time"

	"github.com/fieldops/attendance-engine/internal/integrity/geo"
	"github.com/fieldops/attendance-engine/pkg/models"
)

// ErrInvalidTimeSequence is returned when the second sample does not come
// strictly after the first.
var ErrInvalidTimeSequence = fmt.Errorf("invalid time sequence")

// Thresholds are the deployment-tunable speed bands in km/h. Rural fleets
// on highways need higher bands than a walking-distance urban deployment.
type Thresholds struct {
	// RejectKmh and above is physically impossible travel; the operation
	// is rejected outright.
	RejectKmh float64 `json:"reject_kmh" mapstructure:"reject_kmh"`
	// HighKmh up to RejectKmh is spoofing-suspect; flagged, not rejected.
	HighKmh float64 `json:"high_kmh" mapstructure:"high_kmh"`
	// MediumKmh up to HighKmh is unusual but possible; flagged.
	MediumKmh float64 `json:"medium_kmh" mapstructure:"medium_kmh"`
}

// DefaultThresholds returns the stock bands: reject at 200 km/h, high at
// 100, medium at 60.
func DefaultThresholds() Thresholds {
	return Thresholds{RejectKmh: 200, HighKmh: 100, MediumKmh: 60}
}

// Assessment is the outcome of analyzing one travel leg.
type Assessment struct {
	DistanceMeters float64
	Minutes        float64
	SpeedKmh       float64
	// Signal is nil when the leg is plausible.
	Signal *models.FraudSignal
	// Reject is set when the speed crosses the reject band; the
	// orchestrator blocks the operation instead of flagging it.
	Reject bool
}

// Analyze computes the speed between two samples and classifies it against
// the thresholds. The same function covers every leg the engine checks:
// previous-day clock-out to clock-in, clock-in to clock-out, session
// check-in to check-out, and consecutive location visits.
func Analyze(previous, current models.TimedPoint, th Thresholds) (*Assessment, error) {
	elapsed := current.At.Sub(previous.At)
	if elapsed <= 0 {
		return nil, fmt.Errorf("%w: %s is not after %s",
			ErrInvalidTimeSequence,
			current.At.Format(time.RFC3339),
			previous.At.Format(time.RFC3339))
	}
	minutes := elapsed.Minutes()

	meters, err := geo.Distance(previous.Point, current.Point)
	if err != nil {
		return nil, err
	}
	speed, err := geo.SpeedKmh(meters, minutes)
	if err != nil {
		return nil, err
	}

	a := &Assessment{
		DistanceMeters: meters,
		Minutes:        minutes,
		SpeedKmh:       speed,
	}

	switch {
	case speed >= th.RejectKmh:
		a.Reject = true
		a.Signal = a.signal(models.SeverityHigh,
			fmt.Sprintf("travel speed %.2f km/h is physically impossible", geo.Round2(speed)))
	case speed >= th.HighKmh:
		a.Signal = a.signal(models.SeverityHigh,
			fmt.Sprintf("travel speed %.2f km/h suggests location spoofing", geo.Round2(speed)))
	case speed >= th.MediumKmh:
		a.Signal = a.signal(models.SeverityMedium,
			fmt.Sprintf("travel speed %.2f km/h is unusually fast", geo.Round2(speed)))
	}

	return a, nil
}

func (a *Assessment) signal(severity models.Severity, reason string) *models.FraudSignal {
	return &models.FraudSignal{
		Kind:     models.SignalImpossibleTravelSpeed,
		Severity: severity,
		Reason:   reason,
		Evidence: map[string]interface{}{
			"distance_meters": geo.Round2(a.DistanceMeters),
			"minutes":         geo.Round2(a.Minutes),
			"speed_kmh":       geo.Round2(a.SpeedKmh),
		},
		DetectedAt: time.Now().UTC(),
	}
}
