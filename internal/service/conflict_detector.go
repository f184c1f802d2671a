package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/pkg/database"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
	"github.com/noah-isme/room-reservation-api/pkg/timeslot"
)

// ErrRoomNotFound signals that the candidate's room does not exist.
var ErrRoomNotFound = errors.New("room not found")

// LookupError is returned when the detector cannot read the data it needs. The
// check fails closed: a candidate is never reported clear after a failed read.
type LookupError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	return fmt.Sprintf("conflict lookup %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying store error.
func (e *LookupError) Unwrap() error { return e.Err }

type roomFinder interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

type scheduleSource interface {
	ListByRoomAndDay(ctx context.Context, roomID string, day time.Weekday) ([]models.ClassScheduleDetail, error)
}

type reservationSource interface {
	ListForConflict(ctx context.Context, roomID string, date timeslot.Date, statuses []models.ReservationStatus, excludeID string) ([]models.ReservationDetail, error)
}

// Candidate is a proposed booking to test against existing commitments.
type Candidate struct {
	RoomID               string
	Date                 timeslot.Date
	Start                timeslot.TimeOfDay
	End                  timeslot.TimeOfDay
	ExcludeReservationID string
	// Blocking lists the stored statuses that occupy the slot. Empty means
	// models.BlockingStatuses.
	Blocking []models.ReservationStatus
}

func (c Candidate) blocking() []models.ReservationStatus {
	if len(c.Blocking) == 0 {
		return models.BlockingStatuses
	}
	return c.Blocking
}

// Range returns the candidate's time window.
func (c Candidate) Range() timeslot.Range {
	return timeslot.NewRange(c.Start, c.End)
}

// ConflictDetector finds class schedules and reservations overlapping a candidate.
type ConflictDetector struct {
	rooms        roomFinder
	schedules    scheduleSource
	reservations reservationSource
	metrics      *MetricsService
	logger       *zap.Logger
}

// NewConflictDetector wires the detector to its read sources.
func NewConflictDetector(rooms roomFinder, schedules scheduleSource, reservations reservationSource, metrics *MetricsService, logger *zap.Logger) *ConflictDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictDetector{rooms: rooms, schedules: schedules, reservations: reservations, metrics: metrics, logger: logger}
}

// Detect returns every existing commitment that overlaps the candidate. An empty
// slice means the slot is free; any read failure yields a *LookupError.
func (d *ConflictDetector) Detect(ctx context.Context, c Candidate) ([]models.Conflict, error) {
	window := c.Range()
	if !window.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}

	started := time.Now()
	conflicts, err := d.detect(ctx, c, window)
	d.metrics.ObserveConflictCheck(conflicts, err, time.Since(started))
	if err != nil {
		d.logger.Warn("conflict lookup failed",
			zap.String("room_id", c.RoomID),
			zap.String("date", c.Date.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return conflicts, nil
}

func (d *ConflictDetector) detect(ctx context.Context, c Candidate, window timeslot.Range) ([]models.Conflict, error) {
	room, err := d.rooms.FindByID(ctx, c.RoomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, appErrors.ErrNotFound) {
			return nil, &LookupError{Op: "room", Err: ErrRoomNotFound}
		}
		return nil, &LookupError{Op: "room", Err: err}
	}
	if room == nil {
		return nil, &LookupError{Op: "room", Err: ErrRoomNotFound}
	}

	var (
		classes      []models.ClassScheduleDetail
		reservations []models.ReservationDetail
	)
	g, gctx := errgroup.WithContext(ctx)
	if database.InTx(ctx) {
		// one transaction, one connection: read in turn
		g.SetLimit(1)
	}
	g.Go(func() error {
		rows, err := d.schedules.ListByRoomAndDay(gctx, c.RoomID, c.Date.Weekday())
		if err != nil {
			return &LookupError{Op: "class schedules", Err: err}
		}
		classes = rows
		return nil
	})
	g.Go(func() error {
		rows, err := d.reservations.ListForConflict(gctx, c.RoomID, c.Date, c.blocking(), c.ExcludeReservationID)
		if err != nil {
			return &LookupError{Op: "reservations", Err: err}
		}
		reservations = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	conflicts := make([]models.Conflict, 0)
	for _, cls := range classes {
		if !window.Overlaps(cls.Range()) {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			Kind:      models.ConflictKindClass,
			Title:     cls.Title(),
			TimeRange: cls.Range().String(),
			OwnerName: cls.InstructorName,
		})
	}
	blocking := c.blocking()
	for _, res := range reservations {
		if !containsStatus(blocking, res.Status) || (c.ExcludeReservationID != "" && res.ID == c.ExcludeReservationID) {
			continue
		}
		if !window.Overlaps(res.Range()) {
			continue
		}
		id := res.ID
		status := res.Status
		conflicts = append(conflicts, models.Conflict{
			Kind:          models.ConflictKindReservation,
			Title:         res.Purpose,
			TimeRange:     res.Range().String(),
			OwnerName:     res.RequesterName,
			ReservationID: &id,
			Status:        &status,
		})
	}
	return conflicts, nil
}
