// Package storage implements the engine's collaborator interfaces on
// gorm. Besides serving reads and the single atomic write per operation,
// the schema carries the uniqueness constraints that backstop the
// in-process operation lock in horizontally scaled deployments.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fieldops/attendance-engine/internal/integrity"
	"github.com/fieldops/attendance-engine/pkg/models"
)

// Store is the gorm-backed StateProvider and HistoryProvider.
type Store struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// NewStore wraps an open gorm connection.
func NewStore(db *gorm.DB, logger *zap.SugaredLogger) *Store {
	return &Store{db: db, logger: logger}
}

// AutoMigrate creates the attendance tables and their constraint indexes.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.DailyAttendanceSnapshot{},
		&models.SessionRecord{},
		&models.LocationVisitRecord{},
		&models.WorkEntity{},
		&models.EntityAssignment{},
	)
}

// LoadSnapshot returns the attendance row for the user and date, nil when
// none exists.
func (s *Store) LoadSnapshot(ctx context.Context, userID uuid.UUID, date string) (*models.DailyAttendanceSnapshot, error) {
	var snap models.DailyAttendanceSnapshot
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return &snap, nil
}

// LoadSession returns the session by ID, nil when none exists.
func (s *Store) LoadSession(ctx context.Context, id uuid.UUID) (*models.SessionRecord, error) {
	var rec models.SessionRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &rec, nil
}

// LoadLocationVisit returns the visit by ID, nil when none exists.
func (s *Store) LoadLocationVisit(ctx context.Context, id uuid.UUID) (*models.LocationVisitRecord, error) {
	var rec models.LocationVisitRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load location visit: %w", err)
	}
	return &rec, nil
}

// LastLocationVisit returns the attendance's most recent visit, open or
// closed, nil when there is none.
func (s *Store) LastLocationVisit(ctx context.Context, attendanceID uuid.UUID) (*models.LocationVisitRecord, error) {
	var rec models.LocationVisitRecord
	err := s.db.WithContext(ctx).
		Where("attendance_id = ?", attendanceID).
		Order("check_in_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load last location visit: %w", err)
	}
	return &rec, nil
}

// Persist applies one validated change set in a single transaction. The
// unique (user_id, date) index makes a duplicate clock-in fail here even
// if two instances raced past their process-local locks.
func (s *Store) Persist(ctx context.Context, cs *integrity.ChangeSet) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		delta := cs.Delta

		if delta.CreateAttendance != nil {
			snap := *delta.CreateAttendance
			snap.IsFlagged = cs.Flagged
			snap.FlagReason = cs.FlagReason
			if err := tx.Create(&snap).Error; err != nil {
				return fmt.Errorf("create attendance: %w", err)
			}
			return nil
		}

		if cs.Snapshot == nil {
			return fmt.Errorf("change set without snapshot for %s on %s", cs.UserID, cs.Date)
		}
		updates := map[string]interface{}{"updated_at": time.Now()}
		if cs.Flagged {
			updates["is_flagged"] = true
			updates["flag_reason"] = cs.FlagReason
		}

		switch {
		case delta.CloseDay:
			updates["clock_out_at"] = delta.CloseAt
			updates["clock_out_latitude"] = delta.ClosePoint.Latitude
			updates["clock_out_longitude"] = delta.ClosePoint.Longitude

		case delta.OpenSession != nil:
			rec := *delta.OpenSession
			rec.IsFlagged = cs.Flagged
			rec.FlagReason = cs.FlagReason
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("create session: %w", err)
			}
			updates["active_session_id"] = rec.ID

		case delta.CloseSessionID != nil:
			err := tx.Model(&models.SessionRecord{}).
				Where("id = ?", *delta.CloseSessionID).
				Updates(map[string]interface{}{
					"check_out_at":        delta.CloseAt,
					"check_out_latitude":  delta.ClosePoint.Latitude,
					"check_out_longitude": delta.ClosePoint.Longitude,
				}).Error
			if err != nil {
				return fmt.Errorf("close session: %w", err)
			}
			updates["active_session_id"] = nil

		case delta.OpenVisit != nil:
			rec := *delta.OpenVisit
			rec.IsFlagged = cs.Flagged
			rec.FlagReason = cs.FlagReason
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("create location visit: %w", err)
			}
			updates["active_location_visit_id"] = rec.ID

		case delta.CloseVisitID != nil:
			err := tx.Model(&models.LocationVisitRecord{}).
				Where("id = ?", *delta.CloseVisitID).
				Updates(map[string]interface{}{
					"check_out_at":        delta.CloseAt,
					"check_out_latitude":  delta.ClosePoint.Latitude,
					"check_out_longitude": delta.ClosePoint.Longitude,
				}).Error
			if err != nil {
				return fmt.Errorf("close location visit: %w", err)
			}
			updates["active_location_visit_id"] = nil
		}

		err := tx.Model(&models.DailyAttendanceSnapshot{}).
			Where("id = ?", cs.Snapshot.ID).
			Updates(updates).Error
		if err != nil {
			return fmt.Errorf("update attendance: %w", err)
		}
		return nil
	})
}

// RecentFlaggedRecords builds the pattern-analysis window from flagged
// attendance rows, sessions, and visits. Signals persist only as reason
// strings, so the recorded speed is recovered from the reason text.
func (s *Store) RecentFlaggedRecords(ctx context.Context, userID uuid.UUID, windowDays int) ([]models.FlaggedRecord, error) {
	cutoff := time.Now().AddDate(0, 0, -windowDays)
	var records []models.FlaggedRecord

	var snaps []models.DailyAttendanceSnapshot
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_flagged = ? AND created_at >= ?", userID, true, cutoff).
		Find(&snaps).Error
	if err != nil {
		return nil, fmt.Errorf("load flagged attendances: %w", err)
	}
	for _, snap := range snaps {
		rec := flaggedRecordFrom(snap.FlagReason)
		if snap.ClockInAt != nil {
			rec.At = *snap.ClockInAt
		}
		if snap.ClockInPoint != nil {
			rec.Point = *snap.ClockInPoint
		}
		if snap.ClockInAt != nil && snap.ClockOutAt != nil {
			rec.ShiftHours = snap.ClockOutAt.Sub(*snap.ClockInAt).Hours()
		}
		records = append(records, rec)
	}

	var sessions []models.SessionRecord
	err = s.db.WithContext(ctx).
		Joins("JOIN daily_attendances ON daily_attendances.id = attendance_sessions.attendance_id").
		Where("daily_attendances.user_id = ? AND attendance_sessions.is_flagged = ? AND attendance_sessions.created_at >= ?",
			userID, true, cutoff).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("load flagged sessions: %w", err)
	}
	for _, session := range sessions {
		rec := flaggedRecordFrom(session.FlagReason)
		rec.At = session.CheckInAt
		rec.Point = session.CheckInPoint
		records = append(records, rec)
	}

	var visits []models.LocationVisitRecord
	err = s.db.WithContext(ctx).
		Joins("JOIN daily_attendances ON daily_attendances.id = location_visits.attendance_id").
		Where("daily_attendances.user_id = ? AND location_visits.is_flagged = ? AND location_visits.created_at >= ?",
			userID, true, cutoff).
		Find(&visits).Error
	if err != nil {
		return nil, fmt.Errorf("load flagged visits: %w", err)
	}
	for _, visit := range visits {
		rec := flaggedRecordFrom(visit.FlagReason)
		rec.At = visit.CheckInAt
		rec.Point = visit.CheckInPoint
		records = append(records, rec)
	}

	return records, nil
}

var speedPattern = regexp.MustCompile(`(\d+(?:\.\d+)?) km/h`)

// flaggedRecordFrom classifies a persisted flag reason back into the
// read-model the pattern analyzer scores.
func flaggedRecordFrom(reason string) models.FlaggedRecord {
	rec := models.FlaggedRecord{Kind: models.SignalLocationSpoofing}
	if m := speedPattern.FindStringSubmatch(reason); m != nil {
		rec.Kind = models.SignalImpossibleTravelSpeed
		rec.SpeedKmh, _ = strconv.ParseFloat(m[1], 64)
	} else if strings.Contains(reason, "shift length") {
		rec.Kind = models.SignalTimeAnomaly
	}
	return rec
}
