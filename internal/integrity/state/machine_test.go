package state

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/attendance-engine/pkg/models"
)

var (
	testUser  = uuid.New()
	testDate  = "2025-06-02"
	testAt    = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	testPoint = models.GeoPoint{Latitude: 27.7172, Longitude: 85.3240}
)

func input(op models.OperationType) Input {
	in := Input{Op: op, At: testAt, Point: testPoint}
	if op == models.OpSessionCheckIn {
		in.SessionType = models.SessionWork
	}
	if op == models.OpLocationCheckIn {
		in.EntityID = uuid.New()
	}
	return in
}

func clockedIn() *models.DailyAttendanceSnapshot {
	at := testAt.Add(-2 * time.Hour)
	point := testPoint
	return &models.DailyAttendanceSnapshot{
		ID:           uuid.New(),
		UserID:       testUser,
		Date:         testDate,
		ClockInAt:    &at,
		ClockInPoint: &point,
	}
}

func TestClockInFromNotStarted(t *testing.T) {
	delta, verr := Apply(nil, testUser, testDate, input(models.OpClockIn))
	require.Nil(t, verr)
	require.NotNil(t, delta.CreateAttendance)
	assert.Equal(t, testUser, delta.CreateAttendance.UserID)
	assert.Equal(t, testDate, delta.CreateAttendance.Date)
	assert.Equal(t, testAt, *delta.CreateAttendance.ClockInAt)
	assert.Equal(t, testPoint, *delta.CreateAttendance.ClockInPoint)
}

func TestOnlyClockInSucceedsFromNotStarted(t *testing.T) {
	refused := map[models.OperationType]ViolationCode{
		models.OpClockOut:         ViolationNotClockedIn,
		models.OpSessionCheckIn:   ViolationNoDailyAttendance,
		models.OpSessionCheckOut:  ViolationNoActiveSession,
		models.OpLocationCheckIn:  ViolationNoDailyAttendance,
		models.OpLocationCheckOut: ViolationNoActiveLocation,
	}
	for op, want := range refused {
		_, verr := Apply(nil, testUser, testDate, input(op))
		require.NotNil(t, verr, "op %s", op)
		assert.Equal(t, want, verr.Code, "op %s", op)
		assert.NotEmpty(t, verr.Suggestion)
	}
}

func TestRepeatedClockIn(t *testing.T) {
	_, verr := Apply(clockedIn(), testUser, testDate, input(models.OpClockIn))
	require.NotNil(t, verr)
	assert.Equal(t, ViolationAlreadyClockedIn, verr.Code)
}

func TestClockInAfterClockedOutDay(t *testing.T) {
	snap := clockedIn()
	out := testAt
	snap.ClockOutAt = &out

	_, verr := Apply(snap, testUser, testDate, input(models.OpClockIn))
	require.NotNil(t, verr)
	assert.Equal(t, ViolationAlreadyClockedIn, verr.Code)
}

func TestClockOut(t *testing.T) {
	delta, verr := Apply(clockedIn(), testUser, testDate, input(models.OpClockOut))
	require.Nil(t, verr)
	assert.True(t, delta.CloseDay)
	assert.Equal(t, testAt, *delta.CloseAt)
	assert.Equal(t, testPoint, *delta.ClosePoint)
}

func TestClockOutTwice(t *testing.T) {
	snap := clockedIn()
	out := testAt
	snap.ClockOutAt = &out

	_, verr := Apply(snap, testUser, testDate, input(models.OpClockOut))
	require.NotNil(t, verr)
	assert.Equal(t, ViolationAlreadyClockedOut, verr.Code)
}

func TestClockOutWithActiveSession(t *testing.T) {
	snap := clockedIn()
	sessionID := uuid.New()
	snap.ActiveSessionID = &sessionID

	// The active session blocks clock-out regardless of elapsed time.
	for _, offset := range []time.Duration{time.Minute, 8 * time.Hour} {
		in := input(models.OpClockOut)
		in.At = testAt.Add(offset)
		_, verr := Apply(snap, testUser, testDate, in)
		require.NotNil(t, verr)
		assert.Equal(t, ViolationActiveSessionExists, verr.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	snap := clockedIn()

	delta, verr := Apply(snap, testUser, testDate, input(models.OpSessionCheckIn))
	require.Nil(t, verr)
	require.NotNil(t, delta.OpenSession)
	assert.Equal(t, snap.ID, delta.OpenSession.AttendanceID)
	assert.Equal(t, models.SessionWork, delta.OpenSession.Type)

	// A second check-in while one is active is refused.
	snap.ActiveSessionID = &delta.OpenSession.ID
	_, verr = Apply(snap, testUser, testDate, input(models.OpSessionCheckIn))
	require.NotNil(t, verr)
	assert.Equal(t, ViolationActiveSessionExists, verr.Code)

	delta, verr = Apply(snap, testUser, testDate, input(models.OpSessionCheckOut))
	require.Nil(t, verr)
	require.NotNil(t, delta.CloseSessionID)
	assert.Equal(t, *snap.ActiveSessionID, *delta.CloseSessionID)
}

func TestSessionCheckOutWithoutActive(t *testing.T) {
	_, verr := Apply(clockedIn(), testUser, testDate, input(models.OpSessionCheckOut))
	require.NotNil(t, verr)
	assert.Equal(t, ViolationNoActiveSession, verr.Code)
}

func TestLocationLifecycle(t *testing.T) {
	snap := clockedIn()

	delta, verr := Apply(snap, testUser, testDate, input(models.OpLocationCheckIn))
	require.Nil(t, verr)
	require.NotNil(t, delta.OpenVisit)
	assert.Equal(t, snap.ID, delta.OpenVisit.AttendanceID)

	snap.ActiveLocationVisitID = &delta.OpenVisit.ID
	_, verr = Apply(snap, testUser, testDate, input(models.OpLocationCheckIn))
	require.NotNil(t, verr)
	assert.Equal(t, ViolationActiveLocationExists, verr.Code)

	delta, verr = Apply(snap, testUser, testDate, input(models.OpLocationCheckOut))
	require.Nil(t, verr)
	require.NotNil(t, delta.CloseVisitID)
	assert.Equal(t, *snap.ActiveLocationVisitID, *delta.CloseVisitID)
}

func TestLocationAxisIndependentOfSessionAxis(t *testing.T) {
	snap := clockedIn()
	sessionID := uuid.New()
	snap.ActiveSessionID = &sessionID

	// An active session does not block location check-in.
	delta, verr := Apply(snap, testUser, testDate, input(models.OpLocationCheckIn))
	require.Nil(t, verr)
	assert.NotNil(t, delta.OpenVisit)
}

func TestApplyNeverMutatesSnapshot(t *testing.T) {
	snap := clockedIn()
	before := *snap

	_, _ = Apply(snap, testUser, testDate, input(models.OpSessionCheckIn))
	_, _ = Apply(snap, testUser, testDate, input(models.OpClockOut))

	assert.Equal(t, before, *snap)
}
