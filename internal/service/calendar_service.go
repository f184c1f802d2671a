package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/internal/models"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
	"github.com/noah-isme/room-reservation-api/pkg/timeslot"
)

type roomReservationReader interface {
	ListByRoomBetween(ctx context.Context, roomID string, from, to timeslot.Date) ([]models.ReservationDetail, error)
}

// roomDaySnapshot holds raw store rows. Effective statuses depend on the time
// of reading, so only unresolved rows are cached.
type roomDaySnapshot struct {
	Room         models.Room                  `json:"room"`
	Classes      []models.ClassScheduleDetail `json:"classes"`
	Reservations []models.ReservationDetail   `json:"reservations"`
}

// CalendarService aggregates a room's classes and reservations for one day.
type CalendarService struct {
	rooms        roomFinder
	schedules    scheduleSource
	reservations roomReservationReader
	cache        *CacheService
	ttl          time.Duration
	clock        Clock
	logger       *zap.Logger
}

// NewCalendarService constructs the service.
func NewCalendarService(rooms roomFinder, schedules scheduleSource, reservations roomReservationReader, cache *CacheService, ttl time.Duration, clock Clock, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &CalendarService{rooms: rooms, schedules: schedules, reservations: reservations, cache: cache, ttl: ttl, clock: clock, logger: logger}
}

// RoomDay returns the room's classes for the weekday of date and the
// reservations on date that still occupy or occupied the room. Cancelled and
// rejected reservations are omitted.
func (s *CalendarService) RoomDay(ctx context.Context, roomID, date string) (*models.RoomDay, error) {
	day := timeslot.DateOf(s.clock.Now())
	if date != "" {
		parsed, err := timeslot.ParseDate(date)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
		}
		day = parsed
	}

	snapshot, err := s.snapshot(ctx, roomID, day)
	if err != nil {
		return nil, err
	}

	visible := make([]models.ReservationDetail, 0, len(snapshot.Reservations))
	for _, res := range ResolveAll(snapshot.Reservations, s.clock.Now()) {
		if res.Status == models.StatusCancelled || res.Status == models.StatusRejected {
			continue
		}
		visible = append(visible, res)
	}
	classes := snapshot.Classes
	if classes == nil {
		classes = []models.ClassScheduleDetail{}
	}

	return &models.RoomDay{
		Room:         snapshot.Room,
		Date:         day,
		DayOfWeek:    day.Weekday().String(),
		Classes:      classes,
		Reservations: visible,
	}, nil
}

func (s *CalendarService) snapshot(ctx context.Context, roomID string, day timeslot.Date) (*roomDaySnapshot, error) {
	key := calendarKey(roomID, day)
	var cached roomDaySnapshot
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	classes, err := s.schedules.ListByRoomAndDay(ctx, roomID, day.Weekday())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class schedules")
	}
	reservations, err := s.reservations.ListByRoomBetween(ctx, roomID, day, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reservations")
	}

	snapshot := &roomDaySnapshot{Room: *room, Classes: classes, Reservations: reservations}
	if err := s.cache.Set(ctx, key, snapshot, s.ttl); err != nil {
		s.logger.Debug("calendar snapshot not cached", zap.String("key", key), zap.Error(err))
	}
	return snapshot, nil
}

func calendarKey(roomID string, day timeslot.Date) string {
	return "calendar:" + roomID + ":" + day.String()
}

func calendarPattern(roomID string) string {
	if roomID == "" {
		return "calendar:*"
	}
	return "calendar:" + roomID + ":*"
}
