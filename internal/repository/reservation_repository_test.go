package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/pkg/database"
	"github.com/noah-isme/room-reservation-api/pkg/timeslot"
)

var reservationColumns = []string{
	"id", "room_id", "user_id", "date", "start_time", "end_time", "purpose", "status", "admin_notes",
	"course", "year_level", "block", "created_at", "updated_at", "requester_name", "room_label",
}

// statusArray matches the text form of a pq string array holding exactly want.
type statusArray []string

func (s statusArray) Match(v driver.Value) bool {
	raw, ok := v.(string)
	if !ok {
		return false
	}
	raw = strings.Trim(raw, "{}")
	got := strings.Split(strings.ReplaceAll(raw, `"`, ""), ",")
	if len(got) != len(s) {
		return false
	}
	for i := range s {
		if got[i] != s[i] {
			return false
		}
	}
	return true
}

func reservationRow(rows *sqlmock.Rows, id, status string) *sqlmock.Rows {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return rows.AddRow(id, "room-1", "inst-2", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), "13:00:00", "14:00:00",
		"Thesis defense", status, nil, "BSIT", nil, nil, now, now, "Prof. Santos", "Main 101")
}

func TestReservationListForConflictExcludesSelf(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE rs.room_id = $1 AND rs.date = $2 AND rs.status = ANY($3) AND rs.id::text <> $4 ORDER BY rs.start_time ASC")).
		WithArgs("room-1", "2025-01-10", statusArray{"pending", "approved"}, "res-b").
		WillReturnRows(reservationRow(sqlmock.NewRows(reservationColumns), "res-a", "approved"))

	date, _ := timeslot.ParseDate("2025-01-10")
	items, err := repo.ListForConflict(context.Background(), "room-1", date, models.BlockingStatuses, "res-b")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "res-a", items[0].ID)
	assert.Equal(t, "13:00", items[0].StartTime.String())
	assert.Equal(t, "14:00", items[0].EndTime.String())
	assert.Equal(t, "2025-01-10", items[0].Date.String())
	assert.Equal(t, models.StatusApproved, items[0].Status)
	assert.Equal(t, "Prof. Santos", items[0].RequesterName)
	require.NotNil(t, items[0].Course)
	assert.Equal(t, "BSIT", *items[0].Course)
	assert.Nil(t, items[0].AdminNotes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationListForConflictWithoutExclusion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("rs.status = ANY($3) ORDER BY rs.start_time ASC")).
		WithArgs("room-1", "2025-01-10", statusArray{"approved"}).
		WillReturnRows(sqlmock.NewRows(reservationColumns))

	date, _ := timeslot.ParseDate("2025-01-10")
	items, err := repo.ListForConflict(context.Background(), "room-1", date, []models.ReservationStatus{models.StatusApproved}, "")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationListForConflictSurfacesErrors(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	boom := errors.New("connection reset")
	mock.ExpectQuery("FROM reservations").WillReturnError(boom)

	_, err := repo.ListForConflict(context.Background(), "room-1", timeslot.Date{}, models.BlockingStatuses, "")
	assert.True(t, errors.Is(err, boom))
}

func TestReservationListFiltersAndPaginates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	from, _ := timeslot.ParseDate("2025-01-01")
	filter := models.ReservationFilter{
		RoomID:    "room-1",
		DateFrom:  &from,
		Statuses:  []models.ReservationStatus{models.StatusPending},
		Course:    "BSIT",
		Page:      2,
		PageSize:  10,
		SortOrder: "asc",
	}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND rs.room_id = $1 AND rs.date >= $2 AND (rs.status = ANY($3)) AND rs.course = $4 ORDER BY rs.date ASC, rs.start_time ASC LIMIT 10 OFFSET 10")).
		WithArgs("room-1", "2025-01-01", statusArray{"pending"}, "BSIT").
		WillReturnRows(reservationRow(sqlmock.NewRows(reservationColumns), "res-a", "pending"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reservations rs WHERE 1=1 AND rs.room_id = $1")).
		WithArgs("room-1", "2025-01-01", statusArray{"pending"}, "BSIT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	items, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationCreateAndStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectExec("INSERT INTO reservations").WillReturnResult(sqlmock.NewResult(1, 1))
	notes := "see you there"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reservations SET status = $2, admin_notes = COALESCE($3, admin_notes)")).
		WithArgs("res-1", "approved", notes, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	date, _ := timeslot.ParseDate("2025-01-10")
	res := &models.Reservation{RoomID: "room-1", UserID: "inst-2", Date: date, StartTime: timeslot.MustTime("09:00"), EndTime: timeslot.MustTime("10:00"), Purpose: "Review", Status: models.StatusPending}
	require.NoError(t, repo.Create(context.Background(), res))
	assert.NotEmpty(t, res.ID)

	require.NoError(t, repo.UpdateStatus(context.Background(), "res-1", models.StatusApproved, &notes))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationListFiltersByClockInSQL(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	today, _ := timeslot.ParseDate("2025-01-10")
	filter := models.ReservationFilter{
		Statuses: []models.ReservationStatus{models.StatusCompleted, models.StatusRejected},
		Today:    today,
		Now:      timeslot.MustTime("13:30"),
		Course:   "BSIT",
		Page:     1,
		PageSize: 2,
	}

	where := "WHERE 1=1 AND ((rs.status = 'approved' AND (rs.date < $1 OR (rs.date = $1 AND rs.end_time <= $2))) OR rs.status = ANY($3)) AND rs.course = $4"
	mock.ExpectQuery(regexp.QuoteMeta(where + " ORDER BY rs.date DESC, rs.start_time DESC LIMIT 2 OFFSET 0")).
		WithArgs("2025-01-10", "13:30:00", statusArray{"completed", "rejected"}, "BSIT").
		WillReturnRows(reservationRow(sqlmock.NewRows(reservationColumns), "res-old", "approved"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reservations rs " + where)).
		WithArgs("2025-01-10", "13:30:00", statusArray{"completed", "rejected"}, "BSIT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationListActiveAndApprovedShareClock(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	today, _ := timeslot.ParseDate("2025-01-10")
	filter := models.ReservationFilter{
		UserID:   "inst-2",
		Statuses: []models.ReservationStatus{models.StatusActive, models.StatusApproved},
		Today:    today,
		Now:      timeslot.MustTime("13:30"),
	}

	where := "WHERE 1=1 AND rs.user_id = $1 AND ((rs.status = 'approved' AND rs.date = $2 AND rs.start_time <= $3 AND rs.end_time > $3) OR (rs.status = 'approved' AND (rs.date > $2 OR (rs.date = $2 AND rs.start_time > $3))))"
	mock.ExpectQuery(regexp.QuoteMeta(where + " ORDER BY")).
		WithArgs("inst-2", "2025-01-10", "13:30:00").
		WillReturnRows(sqlmock.NewRows(reservationColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reservations rs " + where)).
		WithArgs("inst-2", "2025-01-10", "13:30:00").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	items, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationListMalformedKeyMatchesNothing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectQuery("FROM reservations").WillReturnError(&pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"})

	items, total, err := repo.List(context.Background(), models.ReservationFilter{RoomID: "not-a-uuid"})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
}

func TestReservationListUpcomingSkipsEndedToday(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND (rs.date > $2 OR (rs.date = $2 AND (rs.status = 'pending' OR rs.end_time > $4)))")).
		WithArgs("inst-2", "2025-01-10", statusArray{"pending", "approved"}, "13:30:00").
		WillReturnRows(reservationRow(sqlmock.NewRows(reservationColumns), "res-a", "approved"))

	today, _ := timeslot.ParseDate("2025-01-10")
	items, err := repo.ListUpcomingByUser(context.Background(), "inst-2", today, timeslot.MustTime("13:30"), models.BlockingStatuses, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "res-a", items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationFindByMalformedID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE rs.id = $1")).
		WithArgs("not-a-uuid").
		WillReturnError(&pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"})

	_, err := repo.FindByID(context.Background(), "not-a-uuid")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestReservationUpdateRequiresPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = ? AND status = 'pending'")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	date, _ := timeslot.ParseDate("2025-01-10")
	res := &models.Reservation{ID: "res-1", RoomID: "room-1", Date: date, StartTime: timeslot.MustTime("09:00"), EndTime: timeslot.MustTime("10:00"), Purpose: "Review"}
	err := repo.Update(context.Background(), res)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomLockerRunsWorkInsideTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	locker := NewRoomLocker(db, nil)
	repo := NewReservationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("room:room-1:2025-01-10").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reservations SET status = $2")).
		WithArgs("res-1", "approved", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := locker.WithLock(context.Background(), "room:room-1:2025-01-10", func(ctx context.Context) error {
		assert.True(t, database.InTx(ctx))
		return repo.UpdateStatus(ctx, "res-1", models.StatusApproved, nil)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomLockerNeedsOnlyOneConnection(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	db.SetMaxOpenConns(1)
	locker := NewRoomLocker(db, nil)
	repo := NewReservationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM reservations").WillReturnRows(sqlmock.NewRows(reservationColumns))
	mock.ExpectExec("INSERT INTO reservations").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	date, _ := timeslot.ParseDate("2025-01-10")
	err := locker.WithLock(ctx, "room:room-1:2025-01-10", func(ctx context.Context) error {
		if _, err := repo.ListForConflict(ctx, "room-1", date, models.BlockingStatuses, ""); err != nil {
			return err
		}
		return repo.Create(ctx, &models.Reservation{RoomID: "room-1", UserID: "inst-2", Date: date, StartTime: timeslot.MustTime("09:00"), EndTime: timeslot.MustTime("10:00"), Purpose: "Review", Status: models.StatusPending})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomLockerRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	locker := NewRoomLocker(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	conflict := errors.New("time conflict")
	err := locker.WithLock(context.Background(), "room:room-1:2025-01-10", func(ctx context.Context) error {
		return conflict
	})
	assert.True(t, errors.Is(err, conflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomLockerAcquireFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	locker := NewRoomLocker(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	called := false
	err := locker.WithLock(context.Background(), "room:room-1:2025-01-10", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}
