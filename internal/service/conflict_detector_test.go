package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/pkg/database"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
	"github.com/noah-isme/room-reservation-api/pkg/timeslot"
)

func candidate(date, start, end string) Candidate {
	return Candidate{
		RoomID: "room-1",
		Date:   mustDate(date),
		Start:  timeslot.MustTime(start),
		End:    timeslot.MustTime(end),
	}
}

func TestDetectClassConflict(t *testing.T) {
	rooms, schedules, reservations := campus()
	metrics := NewMetricsService()
	detector := NewConflictDetector(rooms, schedules, reservations, metrics, nil)

	// 2025-01-06 is a Monday
	conflicts, err := detector.Detect(context.Background(), candidate("2025-01-06", "09:00", "09:30"))
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictKindClass, conflicts[0].Kind)
	assert.Equal(t, "IT101 - Intro to Computing", conflicts[0].Title)
	assert.Equal(t, "08:00 - 10:00", conflicts[0].TimeRange)
	assert.Equal(t, "Dr. Reyes", conflicts[0].OwnerName)
	assert.Nil(t, conflicts[0].ReservationID)

	conflicts, err = detector.Detect(context.Background(), candidate("2025-01-06", "10:00", "11:00"))
	require.NoError(t, err)
	assert.Empty(t, conflicts, "touching the class end must not conflict")

	conflicts, err = detector.Detect(context.Background(), candidate("2025-01-07", "09:00", "09:30"))
	require.NoError(t, err)
	assert.Empty(t, conflicts, "classes only block their weekday")

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.conflicts.WithLabelValues("class")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.conflictChecks.WithLabelValues("clear")))
}

func TestDetectReservationConflict(t *testing.T) {
	rooms, schedules, reservations := campus()
	detector := NewConflictDetector(rooms, schedules, reservations, nil, nil)

	conflicts, err := detector.Detect(context.Background(), candidate("2025-01-10", "13:30", "14:30"))
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, models.ConflictKindReservation, c.Kind)
	assert.Equal(t, "Thesis defense", c.Title)
	assert.Equal(t, "13:00 - 14:00", c.TimeRange)
	assert.Equal(t, "Prof. Santos", c.OwnerName)
	require.NotNil(t, c.ReservationID)
	assert.Equal(t, "res-a", *c.ReservationID)
	require.NotNil(t, c.Status)
	assert.Equal(t, models.StatusApproved, *c.Status)
}

func TestDetectTouchingReservationsDoNotConflict(t *testing.T) {
	rooms, schedules, reservations := campus()
	detector := NewConflictDetector(rooms, schedules, reservations, nil, nil)

	for _, window := range [][2]string{{"12:00", "13:00"}, {"14:00", "15:00"}} {
		conflicts, err := detector.Detect(context.Background(), candidate("2025-01-10", window[0], window[1]))
		require.NoError(t, err)
		assert.Empty(t, conflicts, "window %v", window)
	}
}

func TestDetectIgnoresTerminalReservations(t *testing.T) {
	for _, status := range []models.ReservationStatus{models.StatusRejected, models.StatusCancelled, models.StatusCompleted} {
		rooms, schedules, reservations := campus()
		reservations.items["res-a"].Status = status
		detector := NewConflictDetector(rooms, schedules, reservations, nil, nil)

		conflicts, err := detector.Detect(context.Background(), candidate("2025-01-10", "13:30", "14:30"))
		require.NoError(t, err)
		assert.Empty(t, conflicts, "status %s must not block", status)
	}
}

func TestDetectPendingReservationsBlock(t *testing.T) {
	rooms, schedules, reservations := campus()
	reservations.items["res-a"].Status = models.StatusPending
	detector := NewConflictDetector(rooms, schedules, reservations, nil, nil)

	conflicts, err := detector.Detect(context.Background(), candidate("2025-01-10", "13:59", "15:00"))
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.StatusPending, *conflicts[0].Status)
}

func TestDetectExcludesReservationBeingEdited(t *testing.T) {
	rooms, schedules, reservations := campus()
	detector := NewConflictDetector(rooms, schedules, reservations, nil, nil)

	c := candidate("2025-01-10", "13:15", "14:15")
	c.ExcludeReservationID = "res-a"
	conflicts, err := detector.Detect(context.Background(), c)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

type leakyReservations struct {
	rows []models.ReservationDetail
}

func (l leakyReservations) ListForConflict(ctx context.Context, roomID string, date timeslot.Date, statuses []models.ReservationStatus, excludeID string) ([]models.ReservationDetail, error) {
	return l.rows, nil
}

func TestDetectFiltersRowsTheStoreShouldHaveExcluded(t *testing.T) {
	rooms, schedules, _ := campus()
	row := func(id string, status models.ReservationStatus) models.ReservationDetail {
		r := models.ReservationDetail{Reservation: reservationOn("2025-01-10", "13:00", "14:00", status)}
		r.ID = id
		return r
	}
	cancelled := row("res-cancelled", models.StatusCancelled)
	self := row("res-self", models.StatusPending)

	detector := NewConflictDetector(rooms, schedules, leakyReservations{rows: []models.ReservationDetail{cancelled, self}}, nil, nil)
	c := candidate("2025-01-10", "13:00", "14:00")
	c.ExcludeReservationID = "res-self"
	conflicts, err := detector.Detect(context.Background(), c)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestDetectReportsClassesBeforeReservations(t *testing.T) {
	rooms, schedules, reservations := campus()
	reservations.items["res-a"].Date = mustDate("2025-01-06")
	reservations.items["res-a"].StartTime = timeslot.MustTime("09:00")
	reservations.items["res-a"].EndTime = timeslot.MustTime("11:00")
	detector := NewConflictDetector(rooms, schedules, reservations, nil, nil)

	conflicts, err := detector.Detect(context.Background(), candidate("2025-01-06", "09:30", "10:30"))
	require.NoError(t, err)
	require.Len(t, conflicts, 2)
	assert.Equal(t, models.ConflictKindClass, conflicts[0].Kind)
	assert.Equal(t, models.ConflictKindReservation, conflicts[1].Kind)
}

func TestDetectRejectsInvalidRange(t *testing.T) {
	rooms, schedules, reservations := campus()
	detector := NewConflictDetector(rooms, schedules, reservations, nil, nil)

	_, err := detector.Detect(context.Background(), candidate("2025-01-10", "14:00", "14:00"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = detector.Detect(context.Background(), candidate("2025-01-10", "15:00", "14:00"))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestDetectFailsClosedOnLookupErrors(t *testing.T) {
	storeErr := errors.New("connection reset")

	t.Run("reservations", func(t *testing.T) {
		rooms, schedules, reservations := campus()
		reservations.listErr = storeErr
		metrics := NewMetricsService()
		detector := NewConflictDetector(rooms, schedules, reservations, metrics, nil)

		conflicts, err := detector.Detect(context.Background(), candidate("2025-01-10", "09:00", "10:00"))
		assert.Nil(t, conflicts)
		var lookup *LookupError
		require.ErrorAs(t, err, &lookup)
		assert.ErrorIs(t, err, storeErr)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.lookupFailures))
	})

	t.Run("class schedules", func(t *testing.T) {
		rooms, schedules, reservations := campus()
		schedules.err = storeErr
		detector := NewConflictDetector(rooms, schedules, reservations, nil, nil)

		_, err := detector.Detect(context.Background(), candidate("2025-01-06", "09:00", "10:00"))
		var lookup *LookupError
		require.ErrorAs(t, err, &lookup)
		assert.Equal(t, "class schedules", lookup.Op)
	})

	t.Run("room", func(t *testing.T) {
		rooms, schedules, reservations := campus()
		rooms.err = storeErr
		detector := NewConflictDetector(rooms, schedules, reservations, nil, nil)

		_, err := detector.Detect(context.Background(), candidate("2025-01-06", "09:00", "10:00"))
		var lookup *LookupError
		require.ErrorAs(t, err, &lookup)
		assert.ErrorIs(t, err, storeErr)
	})
}

func TestDetectMissingRoom(t *testing.T) {
	rooms, schedules, reservations := campus()
	detector := NewConflictDetector(rooms, schedules, reservations, nil, nil)

	c := candidate("2025-01-10", "09:00", "10:00")
	c.RoomID = "ghost"
	_, err := detector.Detect(context.Background(), c)
	var lookup *LookupError
	require.ErrorAs(t, err, &lookup)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

// inFlight counts overlapping lookups across both stores.
type inFlight struct {
	now, peak atomic.Int32
}

func (f *inFlight) enter() {
	n := f.now.Add(1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	f.now.Add(-1)
}

type countedSchedules struct {
	*memorySchedules
	gauge *inFlight
}

func (c countedSchedules) ListByRoomAndDay(ctx context.Context, roomID string, day time.Weekday) ([]models.ClassScheduleDetail, error) {
	c.gauge.enter()
	return c.memorySchedules.ListByRoomAndDay(ctx, roomID, day)
}

type countedReservations struct {
	*memoryReservations
	gauge *inFlight
}

func (c countedReservations) ListForConflict(ctx context.Context, roomID string, date timeslot.Date, statuses []models.ReservationStatus, excludeID string) ([]models.ReservationDetail, error) {
	c.gauge.enter()
	return c.memoryReservations.ListForConflict(ctx, roomID, date, statuses, excludeID)
}

func TestDetectReadsInTurnInsideTransaction(t *testing.T) {
	rooms, schedules, reservations := campus()
	gauge := &inFlight{}
	detector := NewConflictDetector(rooms, countedSchedules{schedules, gauge}, countedReservations{reservations, gauge}, nil, nil)

	ctx := database.WithTx(context.Background(), &sqlx.Tx{})
	conflicts, err := detector.Detect(ctx, candidate("2025-01-10", "13:30", "14:30"))
	require.NoError(t, err)
	assert.Len(t, conflicts, 1)
	assert.Equal(t, int32(1), gauge.peak.Load())
}
