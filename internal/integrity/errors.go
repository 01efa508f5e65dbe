package integrity

import (
	"fmt"
	"time"
)

// GeospatialViolation is an operation refused on geometric grounds:
// invalid coordinates or a point outside the authorized geofence. The
// offending value and the bound it broke travel with the error.
type GeospatialViolation struct {
	Reason         string
	DistanceMeters float64
	RadiusMeters   float64
}

func (e *GeospatialViolation) Error() string {
	if e.RadiusMeters > 0 {
		return fmt.Sprintf("geospatial violation: %s (distance %.2f m, allowed %.2f m)",
			e.Reason, e.DistanceMeters, e.RadiusMeters)
	}
	return "geospatial violation: " + e.Reason
}

// TimeSequenceViolation is an operation whose timestamp does not come
// after the reference event it is compared against.
type TimeSequenceViolation struct {
	Current   time.Time
	Reference time.Time
}

func (e *TimeSequenceViolation) Error() string {
	return fmt.Sprintf("time sequence violation: %s is not after %s",
		e.Current.Format(time.RFC3339), e.Reference.Format(time.RFC3339))
}

// ConflictError is a lock acquisition that timed out; the caller should
// retry after a short backoff.
type ConflictError struct {
	Key string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent operation conflict on %s, retry shortly", e.Key)
}
