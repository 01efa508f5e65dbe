// Package models holds the plain value types shared by the attendance
// integrity engine and its storage/transport adapters. Persistence mapping
// lives in internal/storage; nothing here performs I/O.
package models

import (
	"time"

	"github.com/google/uuid"
)

// OperationType identifies one orchestrated attendance operation.
type OperationType string

const (
	OpClockIn          OperationType = "clock_in"
	OpClockOut         OperationType = "clock_out"
	OpSessionCheckIn   OperationType = "session_check_in"
	OpSessionCheckOut  OperationType = "session_check_out"
	OpLocationCheckIn  OperationType = "location_check_in"
	OpLocationCheckOut OperationType = "location_check_out"
)

// Axis is one of the three sub-state tracks of a user's day. Session and
// location operations for the same user do not serialize with each other;
// day operations serialize with all three axes because their
// preconditions span them.
type Axis string

const (
	AxisDay      Axis = "day"
	AxisSession  Axis = "session"
	AxisLocation Axis = "location"
)

// AxisOf maps an operation to the state axis it mutates.
func AxisOf(op OperationType) Axis {
	switch op {
	case OpSessionCheckIn, OpSessionCheckOut:
		return AxisSession
	case OpLocationCheckIn, OpLocationCheckOut:
		return AxisLocation
	default:
		return AxisDay
	}
}

// GeoPoint is an immutable WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TimedPoint is a coordinate observed at a specific instant, the unit of
// travel analysis.
type TimedPoint struct {
	Point GeoPoint  `json:"point"`
	At    time.Time `json:"at"`
}

// SessionType classifies a work session.
type SessionType string

const (
	SessionWork    SessionType = "work"
	SessionBreak   SessionType = "break"
	SessionLunch   SessionType = "lunch"
	SessionMeeting SessionType = "meeting"
	SessionErrand  SessionType = "errand"
)

// ValidSessionType reports whether t is one of the known session types.
func ValidSessionType(t SessionType) bool {
	switch t {
	case SessionWork, SessionBreak, SessionLunch, SessionMeeting, SessionErrand:
		return true
	}
	return false
}

// DailyAttendanceSnapshot is the per-user per-calendar-date attendance row.
// Created on first clock-in, mutated by clock-out and session/location
// transitions, never deleted. Flagged records are soft-flagged, not removed.
type DailyAttendanceSnapshot struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_user_date" json:"user_id"`
	// Date is the calendar date in the deployment timezone, formatted
	// 2006-01-02. Part of the storage-level uniqueness constraint that
	// backstops the in-process operation lock.
	Date string `gorm:"type:varchar(10);not null;uniqueIndex:idx_attendance_user_date" json:"date"`

	ClockInAt     *time.Time `json:"clock_in_at,omitempty"`
	ClockInPoint  *GeoPoint  `gorm:"embedded;embeddedPrefix:clock_in_" json:"clock_in_point,omitempty"`
	ClockOutAt    *time.Time `json:"clock_out_at,omitempty"`
	ClockOutPoint *GeoPoint  `gorm:"embedded;embeddedPrefix:clock_out_" json:"clock_out_point,omitempty"`

	ActiveSessionID       *uuid.UUID `gorm:"type:uuid" json:"active_session_id,omitempty"`
	ActiveLocationVisitID *uuid.UUID `gorm:"type:uuid" json:"active_location_visit_id,omitempty"`

	IsFlagged  bool   `gorm:"not null;default:false" json:"is_flagged"`
	FlagReason string `gorm:"type:text" json:"flag_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the gorm table name.
func (DailyAttendanceSnapshot) TableName() string { return "daily_attendances" }

// SessionRecord is one work session owned by exactly one daily attendance.
// At most one session per attendance has CheckOutAt == nil; the state
// machine enforces that invariant, storage backstops it.
type SessionRecord struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	AttendanceID uuid.UUID   `gorm:"type:uuid;not null;index;uniqueIndex:idx_sessions_one_open,where:check_out_at IS NULL" json:"attendance_id"`
	Type         SessionType `gorm:"type:varchar(16);not null" json:"type"`

	CheckInAt     time.Time  `gorm:"not null" json:"check_in_at"`
	CheckInPoint  GeoPoint   `gorm:"embedded;embeddedPrefix:check_in_" json:"check_in_point"`
	CheckOutAt    *time.Time `json:"check_out_at,omitempty"`
	CheckOutPoint *GeoPoint  `gorm:"embedded;embeddedPrefix:check_out_" json:"check_out_point,omitempty"`

	IsFlagged  bool   `gorm:"not null;default:false" json:"is_flagged"`
	FlagReason string `gorm:"type:text" json:"flag_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the gorm table name.
func (SessionRecord) TableName() string { return "attendance_sessions" }

// LocationVisitRecord is one geofenced site visit, same single-active
// invariant as sessions but scoped independently.
type LocationVisitRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AttendanceID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_visits_one_open,where:check_out_at IS NULL" json:"attendance_id"`
	EntityID     uuid.UUID `gorm:"type:uuid;not null" json:"entity_id"`

	CheckInAt     time.Time  `gorm:"not null" json:"check_in_at"`
	CheckInPoint  GeoPoint   `gorm:"embedded;embeddedPrefix:check_in_" json:"check_in_point"`
	CheckOutAt    *time.Time `json:"check_out_at,omitempty"`
	CheckOutPoint *GeoPoint  `gorm:"embedded;embeddedPrefix:check_out_" json:"check_out_point,omitempty"`

	IsFlagged  bool   `gorm:"not null;default:false" json:"is_flagged"`
	FlagReason string `gorm:"type:text" json:"flag_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the gorm table name.
func (LocationVisitRecord) TableName() string { return "location_visits" }

// AuthorizedEntity is the geofence resolution result for a user and point.
type AuthorizedEntity struct {
	EntityID       uuid.UUID `json:"entity_id"`
	Name           string    `json:"name"`
	Center         GeoPoint  `json:"center"`
	RadiusMeters   float64   `json:"radius_meters"`
	DistanceMeters float64   `json:"distance_meters"`
}
