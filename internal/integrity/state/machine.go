// Package state holds the legal transition table for a user's daily
// attendance. The machine is a pure decision over a supplied snapshot: it
// never loads or persists anything, which keeps every transition unit
// testable in isolation.
package state

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/attendance-engine/pkg/models"
)

// DayState is the day axis: a strict NOT_STARTED → CLOCKED_IN →
// CLOCKED_OUT walk. CLOCKED_OUT is terminal for the date.
type DayState string

const (
	DayNotStarted DayState = "NOT_STARTED"
	DayClockedIn  DayState = "CLOCKED_IN"
	DayClockedOut DayState = "CLOCKED_OUT"
)

// ViolationCode is the machine-readable reason a transition was refused.
type ViolationCode string

const (
	ViolationAlreadyClockedIn     ViolationCode = "already_clocked_in"
	ViolationNotClockedIn         ViolationCode = "not_clocked_in"
	ViolationAlreadyClockedOut    ViolationCode = "already_clocked_out"
	ViolationActiveSessionExists  ViolationCode = "active_session_exists"
	ViolationNoDailyAttendance    ViolationCode = "no_daily_attendance"
	ViolationNoActiveSession      ViolationCode = "no_active_session"
	ViolationActiveLocationExists ViolationCode = "active_location_exists"
	ViolationNoActiveLocation     ViolationCode = "no_active_location"
)

// suggestions give the caller the corrective sequence for each refusal.
var suggestions = map[ViolationCode]string{
	ViolationAlreadyClockedIn:     "you are already clocked in for this date",
	ViolationNotClockedIn:         "clock in before clocking out",
	ViolationAlreadyClockedOut:    "the day is already closed; re-entry requires a new date",
	ViolationActiveSessionExists:  "check out of the active session first",
	ViolationNoDailyAttendance:    "clock in before starting a session or location visit",
	ViolationNoActiveSession:      "check into a session before checking out",
	ViolationActiveLocationExists: "check out of the active location first",
	ViolationNoActiveLocation:     "check into a location before checking out",
}

// ViolationError is a refused transition. It is a value result, not an
// exceptional condition; callers map it to their transport's error shape.
type ViolationError struct {
	Code       ViolationCode
	Suggestion string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("state violation %s: %s", e.Code, e.Suggestion)
}

func violation(code ViolationCode) *ViolationError {
	return &ViolationError{Code: code, Suggestion: suggestions[code]}
}

// Input is the operation applied to the machine together with the fields a
// successful transition records.
type Input struct {
	Op          models.OperationType
	At          time.Time
	Point       models.GeoPoint
	SessionType models.SessionType
	EntityID    uuid.UUID
}

// Delta is the mutation a legal transition produces. The orchestrator hands
// it to the state provider, which applies it in a single transaction.
type Delta struct {
	// CreateAttendance is set for clock-in: a fresh snapshot row.
	CreateAttendance *models.DailyAttendanceSnapshot

	// CloseDay is set for clock-out.
	CloseDay bool

	// OpenSession / CloseSessionID cover the session axis.
	OpenSession    *models.SessionRecord
	CloseSessionID *uuid.UUID

	// OpenVisit / CloseVisitID cover the location axis.
	OpenVisit    *models.LocationVisitRecord
	CloseVisitID *uuid.UUID

	// CloseAt / ClosePoint carry the timestamp and coordinate recorded by
	// whichever close effect is set above.
	CloseAt    *time.Time
	ClosePoint *models.GeoPoint
}

// DayStateOf derives the day axis from a snapshot. A nil snapshot means no
// record exists for the date yet.
func DayStateOf(snap *models.DailyAttendanceSnapshot) DayState {
	switch {
	case snap == nil || snap.ClockInAt == nil:
		return DayNotStarted
	case snap.ClockOutAt != nil:
		return DayClockedOut
	default:
		return DayClockedIn
	}
}

// SessionActive derives the session axis.
func SessionActive(snap *models.DailyAttendanceSnapshot) bool {
	return snap != nil && snap.ActiveSessionID != nil
}

// LocationActive derives the location axis.
func LocationActive(snap *models.DailyAttendanceSnapshot) bool {
	return snap != nil && snap.ActiveLocationVisitID != nil
}

// Apply validates one operation against the snapshot and returns the delta
// a legal transition produces. The snapshot is never mutated.
func Apply(snap *models.DailyAttendanceSnapshot, userID uuid.UUID, date string, in Input) (*Delta, *ViolationError) {
	day := DayStateOf(snap)

	switch in.Op {
	case models.OpClockIn:
		if day != DayNotStarted {
			return nil, violation(ViolationAlreadyClockedIn)
		}
		at := in.At
		point := in.Point
		return &Delta{
			CreateAttendance: &models.DailyAttendanceSnapshot{
				ID:           uuid.New(),
				UserID:       userID,
				Date:         date,
				ClockInAt:    &at,
				ClockInPoint: &point,
			},
		}, nil

	case models.OpClockOut:
		if day == DayNotStarted {
			return nil, violation(ViolationNotClockedIn)
		}
		if day == DayClockedOut {
			return nil, violation(ViolationAlreadyClockedOut)
		}
		if SessionActive(snap) {
			return nil, violation(ViolationActiveSessionExists)
		}
		at := in.At
		point := in.Point
		return &Delta{CloseDay: true, CloseAt: &at, ClosePoint: &point}, nil

	case models.OpSessionCheckIn:
		if day != DayClockedIn {
			return nil, violation(ViolationNoDailyAttendance)
		}
		if SessionActive(snap) {
			return nil, violation(ViolationActiveSessionExists)
		}
		return &Delta{
			OpenSession: &models.SessionRecord{
				ID:           uuid.New(),
				AttendanceID: snap.ID,
				Type:         in.SessionType,
				CheckInAt:    in.At,
				CheckInPoint: in.Point,
			},
		}, nil

	case models.OpSessionCheckOut:
		if !SessionActive(snap) {
			return nil, violation(ViolationNoActiveSession)
		}
		id := *snap.ActiveSessionID
		at := in.At
		point := in.Point
		return &Delta{CloseSessionID: &id, CloseAt: &at, ClosePoint: &point}, nil

	case models.OpLocationCheckIn:
		if day != DayClockedIn {
			return nil, violation(ViolationNoDailyAttendance)
		}
		if LocationActive(snap) {
			return nil, violation(ViolationActiveLocationExists)
		}
		return &Delta{
			OpenVisit: &models.LocationVisitRecord{
				ID:           uuid.New(),
				AttendanceID: snap.ID,
				EntityID:     in.EntityID,
				CheckInAt:    in.At,
				CheckInPoint: in.Point,
			},
		}, nil

	case models.OpLocationCheckOut:
		if !LocationActive(snap) {
			return nil, violation(ViolationNoActiveLocation)
		}
		id := *snap.ActiveLocationVisitID
		at := in.At
		point := in.Point
		return &Delta{CloseVisitID: &id, CloseAt: &at, ClosePoint: &point}, nil
	}

	// Unknown operations cannot reach a legal transition.
	return nil, violation(ViolationNoDailyAttendance)
}
