// Package integrity is the attendance integrity engine's entry point. The
// orchestrator serializes competing operations per user and axis, runs the
// state machine, runs fraud analysis, and either approves, approves with a
// flag, or rejects. Validation completes fully before the single atomic
// persistence call; no operation partially commits.
package integrity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldops/attendance-engine/internal/integrity/geo"
	"github.com/fieldops/attendance-engine/internal/integrity/lock"
	"github.com/fieldops/attendance-engine/internal/integrity/pattern"
	"github.com/fieldops/attendance-engine/internal/integrity/spoof"
	"github.com/fieldops/attendance-engine/internal/integrity/state"
	"github.com/fieldops/attendance-engine/internal/integrity/travel"
	"github.com/fieldops/attendance-engine/internal/metrics"
	"github.com/fieldops/attendance-engine/pkg/models"
)

// Request is one attendance operation presented to the engine. The point
// and timestamp come from an untrusted client; everything about them is
// re-validated here.
type Request struct {
	Op          models.OperationType
	UserID      uuid.UUID
	Point       models.GeoPoint
	At          time.Time
	SessionType models.SessionType
}

// Config tunes the engine.
type Config struct {
	Travel   travel.Thresholds `json:"travel" mapstructure:"travel"`
	Pattern  pattern.Config    `json:"pattern" mapstructure:"pattern"`
	Timezone string            `json:"timezone" mapstructure:"timezone"`
	// MaxShiftHours bounds a credible clock-in to clock-out span; longer
	// shifts are flagged as time anomalies.
	MaxShiftHours float64 `json:"max_shift_hours" mapstructure:"max_shift_hours"`
}

// DefaultConfig returns the stock engine tuning with a UTC date boundary.
func DefaultConfig() Config {
	return Config{
		Travel:        travel.DefaultThresholds(),
		Pattern:       pattern.DefaultConfig(),
		Timezone:      "UTC",
		MaxShiftHours: 16,
	}
}

// Engine orchestrates attendance operations.
type Engine struct {
	logger   *zap.SugaredLogger
	locker   lock.Locker
	store    StateProvider
	entities EntityProvider
	history  HistoryProvider

	patterns *pattern.Analyzer
	cfg      Config
	tz       *time.Location
}

// NewEngine wires the orchestrator with its collaborators. The locker is
// an explicit instance so tests and deployments choose their own
// serialization scope.
func NewEngine(logger *zap.SugaredLogger, locker lock.Locker, store StateProvider, entities EntityProvider, history HistoryProvider, cfg Config) (*Engine, error) {
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.MaxShiftHours <= 0 {
		cfg.MaxShiftHours = 16
	}
	return &Engine{
		logger:   logger,
		locker:   locker,
		store:    store,
		entities: entities,
		history:  history,
		patterns: pattern.NewAnalyzer(cfg.Pattern),
		cfg:      cfg,
		tz:       tz,
	}, nil
}

// Perform runs one operation end to end. State violations, geospatial
// violations, time-sequence violations and lock conflicts come back as
// typed errors; fraud rejections come back as a verdict with the reject
// decision and nothing persisted.
func (e *Engine) Perform(ctx context.Context, req Request) (*models.IntegrityVerdict, error) {
	if err := geo.ValidatePoint(req.Point); err != nil {
		return nil, &GeospatialViolation{Reason: err.Error()}
	}
	if req.At.IsZero() {
		req.At = time.Now()
	}
	if req.Op == models.OpSessionCheckIn && !models.ValidSessionType(req.SessionType) {
		req.SessionType = models.SessionWork
	}

	date := req.At.In(e.tz).Format(time.DateOnly)

	waitStart := time.Now()
	handles, err := e.acquireLocks(ctx, req.UserID, req.Op)
	if err != nil {
		return nil, err
	}
	metrics.LockWaitSeconds.Observe(time.Since(waitStart).Seconds())
	defer e.releaseLocks(handles)

	verdict, err := e.performLocked(ctx, req, date)
	if err != nil {
		return nil, err
	}

	metrics.VerdictsTotal.WithLabelValues(string(req.Op), string(verdict.Decision)).Inc()
	for _, sig := range verdict.Signals {
		metrics.FraudSignalsTotal.WithLabelValues(string(sig.Kind), string(sig.Severity)).Inc()
	}
	return verdict, nil
}

// lockKeys returns the axis locks an operation must hold before reading
// state. Day operations gate on the other axes too: clock-out refuses
// while a session is open, and session/location check-ins require an open
// day. Holding all three keeps a clock-out from validating against a
// snapshot a concurrent session check-in is about to invalidate. The
// fixed day, session, location order prevents deadlock between
// concurrent day operations.
func lockKeys(userID uuid.UUID, op models.OperationType) []string {
	switch models.AxisOf(op) {
	case models.AxisSession:
		return []string{lock.Key(userID, string(models.AxisSession))}
	case models.AxisLocation:
		return []string{lock.Key(userID, string(models.AxisLocation))}
	default:
		return []string{
			lock.Key(userID, string(models.AxisDay)),
			lock.Key(userID, string(models.AxisSession)),
			lock.Key(userID, string(models.AxisLocation)),
		}
	}
}

// acquireLocks takes the operation's axis locks in order, backing out of
// any partial acquisition on failure.
func (e *Engine) acquireLocks(ctx context.Context, userID uuid.UUID, op models.OperationType) ([]*lock.Handle, error) {
	keys := lockKeys(userID, op)
	handles := make([]*lock.Handle, 0, len(keys))
	for _, key := range keys {
		h, err := e.locker.Acquire(ctx, key)
		if err != nil {
			e.releaseLocks(handles)
			if errors.Is(err, lock.ErrLockTimeout) {
				metrics.LockTimeoutsTotal.Inc()
				return nil, &ConflictError{Key: key}
			}
			return nil, fmt.Errorf("acquire operation lock: %w", err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// releaseLocks frees handles in reverse acquisition order.
func (e *Engine) releaseLocks(handles []*lock.Handle) {
	for i := len(handles) - 1; i >= 0; i-- {
		if err := e.locker.Release(handles[i]); err != nil {
			e.logger.Warnw("operation lock release failed",
				"key", handles[i].Key, "error", err)
		}
	}
}

// performLocked is the critical section: read, validate, and at most one
// write.
func (e *Engine) performLocked(ctx context.Context, req Request, date string) (*models.IntegrityVerdict, error) {
	snap, err := e.store.LoadSnapshot(ctx, req.UserID, date)
	if err != nil {
		return nil, fmt.Errorf("load attendance snapshot: %w", err)
	}

	in := state.Input{Op: req.Op, At: req.At, Point: req.Point, SessionType: req.SessionType}
	delta, verr := state.Apply(snap, req.UserID, date, in)
	if verr != nil {
		e.logger.Infow("state transition refused",
			"user_id", req.UserID, "operation", req.Op, "code", verr.Code)
		metrics.VerdictsTotal.WithLabelValues(string(req.Op), string(models.DecisionReject)).Inc()
		return nil, verr
	}

	signals, rejectSignal, err := e.runFraudChecks(ctx, req, date, snap, delta)
	if err != nil {
		return nil, err
	}

	if rejectSignal != nil {
		verdict := &models.IntegrityVerdict{
			Decision: models.DecisionReject,
			Reason:   rejectSignal.Reason,
			Signals:  append(signals, *rejectSignal),
		}
		e.logger.Warnw("operation rejected by fraud analysis",
			"user_id", req.UserID,
			"operation", req.Op,
			"kind", rejectSignal.Kind,
			"reason", rejectSignal.Reason)
		return verdict, nil
	}

	verdict := &models.IntegrityVerdict{Decision: models.DecisionAllow, Signals: signals}
	if len(signals) > 0 {
		verdict.Decision = models.DecisionAllowFlagged
		verdict.Reason = verdict.FlagReason()
		e.logger.Infow("operation flagged for review",
			"user_id", req.UserID, "operation", req.Op, "reason", verdict.Reason)
	}

	cs := &ChangeSet{
		UserID:     req.UserID,
		Date:       date,
		Snapshot:   snap,
		Delta:      delta,
		Flagged:    verdict.Decision == models.DecisionAllowFlagged,
		FlagReason: verdict.Reason,
	}
	if err := e.store.Persist(ctx, cs); err != nil {
		return nil, fmt.Errorf("persist attendance change: %w", err)
	}

	return verdict, nil
}

// runFraudChecks produces the flag signals and, when travel is physically
// impossible, the reject signal.
func (e *Engine) runFraudChecks(ctx context.Context, req Request, date string, snap *models.DailyAttendanceSnapshot, delta *state.Delta) (signals []models.FraudSignal, rejectSignal *models.FraudSignal, err error) {
	if sig := spoof.Check(req.Point); sig != nil {
		signals = append(signals, *sig)
	}

	previous, err := e.previousTimedPoint(ctx, req, date, snap)
	if err != nil {
		return nil, nil, err
	}
	if previous != nil {
		current := models.TimedPoint{Point: req.Point, At: req.At}
		assessment, aerr := travel.Analyze(*previous, current, e.cfg.Travel)
		if aerr != nil {
			if errors.Is(aerr, travel.ErrInvalidTimeSequence) {
				return nil, nil, &TimeSequenceViolation{Current: req.At, Reference: previous.At}
			}
			return nil, nil, fmt.Errorf("travel analysis: %w", aerr)
		}
		if assessment.Signal != nil {
			if assessment.Reject {
				rejectSignal = assessment.Signal
			} else {
				signals = append(signals, *assessment.Signal)
			}
		}
	}

	if req.Op == models.OpLocationCheckIn {
		if gerr := e.checkGeofence(ctx, req, delta); gerr != nil {
			return nil, nil, gerr
		}
	}

	if sig := e.checkShiftLength(req, snap); sig != nil {
		signals = append(signals, *sig)
	}

	if sig, perr := e.checkPatterns(ctx, req); perr != nil {
		return nil, nil, perr
	} else if sig != nil {
		signals = append(signals, *sig)
	}

	return signals, rejectSignal, nil
}

// previousTimedPoint picks the reference sample for travel analysis: the
// previous day's clock-out for a clock-in, today's clock-in for a
// clock-out, the session's check-in for a session check-out, and the most
// recent visit for consecutive location operations.
func (e *Engine) previousTimedPoint(ctx context.Context, req Request, date string, snap *models.DailyAttendanceSnapshot) (*models.TimedPoint, error) {
	switch req.Op {
	case models.OpClockIn:
		day, err := time.ParseInLocation(time.DateOnly, date, e.tz)
		if err != nil {
			return nil, fmt.Errorf("parse attendance date: %w", err)
		}
		prevDate := day.AddDate(0, 0, -1).Format(time.DateOnly)
		prev, err := e.store.LoadSnapshot(ctx, req.UserID, prevDate)
		if err != nil {
			return nil, fmt.Errorf("load previous day snapshot: %w", err)
		}
		if prev == nil || prev.ClockOutAt == nil || prev.ClockOutPoint == nil {
			return nil, nil
		}
		return &models.TimedPoint{Point: *prev.ClockOutPoint, At: *prev.ClockOutAt}, nil

	case models.OpClockOut:
		if snap == nil || snap.ClockInAt == nil || snap.ClockInPoint == nil {
			return nil, nil
		}
		return &models.TimedPoint{Point: *snap.ClockInPoint, At: *snap.ClockInAt}, nil

	case models.OpSessionCheckOut:
		if snap == nil || snap.ActiveSessionID == nil {
			return nil, nil
		}
		session, err := e.store.LoadSession(ctx, *snap.ActiveSessionID)
		if err != nil {
			return nil, fmt.Errorf("load active session: %w", err)
		}
		if session == nil {
			return nil, nil
		}
		return &models.TimedPoint{Point: session.CheckInPoint, At: session.CheckInAt}, nil

	case models.OpLocationCheckIn:
		if snap == nil {
			return nil, nil
		}
		visit, err := e.store.LastLocationVisit(ctx, snap.ID)
		if err != nil {
			return nil, fmt.Errorf("load last location visit: %w", err)
		}
		if visit == nil {
			return nil, nil
		}
		if visit.CheckOutAt != nil && visit.CheckOutPoint != nil {
			return &models.TimedPoint{Point: *visit.CheckOutPoint, At: *visit.CheckOutAt}, nil
		}
		return &models.TimedPoint{Point: visit.CheckInPoint, At: visit.CheckInAt}, nil

	case models.OpLocationCheckOut:
		if snap == nil || snap.ActiveLocationVisitID == nil {
			return nil, nil
		}
		visit, err := e.store.LoadLocationVisit(ctx, *snap.ActiveLocationVisitID)
		if err != nil {
			return nil, fmt.Errorf("load active location visit: %w", err)
		}
		if visit == nil {
			return nil, nil
		}
		return &models.TimedPoint{Point: visit.CheckInPoint, At: visit.CheckInAt}, nil
	}

	return nil, nil
}

// checkGeofence resolves the authorized entity for a location check-in and
// stamps its ID onto the opening visit. A point inside no authorized
// geofence is a geospatial violation.
func (e *Engine) checkGeofence(ctx context.Context, req Request, delta *state.Delta) error {
	entity, err := e.entities.ResolveAuthorizedEntity(ctx, req.UserID, req.Point)
	if err != nil {
		return fmt.Errorf("resolve authorized entity: %w", err)
	}
	if entity == nil {
		return &GeospatialViolation{Reason: "point is inside no authorized geofence"}
	}
	if entity.DistanceMeters > entity.RadiusMeters {
		return &GeospatialViolation{
			Reason:         fmt.Sprintf("point is outside the %s geofence", entity.Name),
			DistanceMeters: geo.Round2(entity.DistanceMeters),
			RadiusMeters:   entity.RadiusMeters,
		}
	}
	if delta.OpenVisit != nil {
		delta.OpenVisit.EntityID = entity.EntityID
	}
	return nil
}

// checkShiftLength flags clock-outs that close an impossibly long shift.
func (e *Engine) checkShiftLength(req Request, snap *models.DailyAttendanceSnapshot) *models.FraudSignal {
	if req.Op != models.OpClockOut || snap == nil || snap.ClockInAt == nil {
		return nil
	}
	hours := req.At.Sub(*snap.ClockInAt).Hours()
	if hours <= e.cfg.MaxShiftHours {
		return nil
	}
	return &models.FraudSignal{
		Kind:     models.SignalTimeAnomaly,
		Severity: models.SeverityMedium,
		Reason:   fmt.Sprintf("shift length %.1f h exceeds the %.0f h maximum", hours, e.cfg.MaxShiftHours),
		Evidence: map[string]interface{}{
			"shift_hours": geo.Round2(hours),
			"max_hours":   e.cfg.MaxShiftHours,
		},
		DetectedAt: time.Now().UTC(),
	}
}

// checkPatterns grades the user's flagged history and emits a pattern
// signal when one exists. History reads are read-only and safe to run
// concurrently with other users' operations.
func (e *Engine) checkPatterns(ctx context.Context, req Request) (*models.FraudSignal, error) {
	records, err := e.history.RecentFlaggedRecords(ctx, req.UserID, e.patternWindowDays())
	if err != nil {
		return nil, fmt.Errorf("load flagged history: %w", err)
	}
	result := e.patterns.Analyze(records, req.At)
	if !result.HasPattern {
		return nil, nil
	}
	return &models.FraudSignal{
		Kind:     models.SignalSuspiciousPattern,
		Severity: result.RiskLevel,
		Reason: fmt.Sprintf("recurring %s pattern over the last %d days (%d speed, %d location, %d time)",
			result.PatternType, e.patternWindowDays(),
			result.Speed.Count, result.LocationAnomalies, result.TimeAnomalies),
		Evidence: map[string]interface{}{
			"pattern_type":       string(result.PatternType),
			"confidence":         result.Confidence.String(),
			"speed_violations":   result.Speed.Count,
			"location_anomalies": result.LocationAnomalies,
			"time_anomalies":     result.TimeAnomalies,
		},
		DetectedAt: time.Now().UTC(),
	}, nil
}

func (e *Engine) patternWindowDays() int {
	if e.cfg.Pattern.WindowDays > 0 {
		return e.cfg.Pattern.WindowDays
	}
	return pattern.DefaultConfig().WindowDays
}
