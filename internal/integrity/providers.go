package integrity

import (
	"context"

	"github.com/google/uuid"

	"github.com/fieldops/attendance-engine/internal/integrity/state"
	"github.com/fieldops/attendance-engine/pkg/models"
)

// ChangeSet is the single atomic persistence unit the orchestrator hands
// to the state provider after validation: the machine's delta plus the
// flag produced by fraud analysis. Nothing is written until the whole
// operation has been validated.
type ChangeSet struct {
	UserID uuid.UUID
	Date   string
	// Snapshot is the current row, nil when the delta creates it.
	Snapshot *models.DailyAttendanceSnapshot
	Delta    *state.Delta

	Flagged    bool
	FlagReason string
}

// StateProvider loads and persists attendance state. Implementations must
// apply a ChangeSet in one transaction.
type StateProvider interface {
	// LoadSnapshot returns the attendance row for the user and date, or
	// nil when no record exists yet.
	LoadSnapshot(ctx context.Context, userID uuid.UUID, date string) (*models.DailyAttendanceSnapshot, error)
	// LoadSession returns the session by ID.
	LoadSession(ctx context.Context, id uuid.UUID) (*models.SessionRecord, error)
	// LoadLocationVisit returns the visit by ID.
	LoadLocationVisit(ctx context.Context, id uuid.UUID) (*models.LocationVisitRecord, error)
	// LastLocationVisit returns the most recent visit of the attendance,
	// open or closed, or nil when there is none.
	LastLocationVisit(ctx context.Context, attendanceID uuid.UUID) (*models.LocationVisitRecord, error)
	// Persist applies the change set atomically.
	Persist(ctx context.Context, cs *ChangeSet) error
}

// EntityProvider resolves whether a point lies inside a geofence the user
// is authorized for.
type EntityProvider interface {
	// ResolveAuthorizedEntity returns the nearest authorized entity whose
	// geofence the user may check into, or nil when the point is inside
	// no authorized geofence.
	ResolveAuthorizedEntity(ctx context.Context, userID uuid.UUID, point models.GeoPoint) (*models.AuthorizedEntity, error)
}

// HistoryProvider supplies the flagged-record window for pattern analysis.
// Reads are concurrent and read-only; no lock is required around them.
type HistoryProvider interface {
	RecentFlaggedRecords(ctx context.Context, userID uuid.UUID, windowDays int) ([]models.FlaggedRecord, error)
}
