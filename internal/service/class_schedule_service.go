package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/internal/models"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
	"github.com/noah-isme/room-reservation-api/pkg/timeslot"
)

type classScheduleRepository interface {
	List(ctx context.Context, filter models.ClassScheduleFilter) ([]models.ClassScheduleDetail, int, error)
	ListByRoomAndDay(ctx context.Context, roomID string, day time.Weekday) ([]models.ClassScheduleDetail, error)
	FindByID(ctx context.Context, id string) (*models.ClassScheduleDetail, error)
	Create(ctx context.Context, schedule *models.ClassSchedule) error
	Update(ctx context.Context, schedule *models.ClassSchedule) error
	Delete(ctx context.Context, id string) error
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ClassScheduleRequest describes a weekly class booking.
type ClassScheduleRequest struct {
	RoomID       string `json:"room_id" validate:"required"`
	InstructorID string `json:"instructor_id" validate:"required"`
	CourseCode   string `json:"course_code" validate:"required,max=20"`
	CourseName   string `json:"course_name" validate:"required,max=200"`
	DayOfWeek    string `json:"day_of_week" validate:"required"`
	StartTime    string `json:"start_time" validate:"required"`
	EndTime      string `json:"end_time" validate:"required"`
}

// ClassScheduleService manages standing weekly class commitments.
type ClassScheduleService struct {
	repo      classScheduleRepository
	rooms     roomFinder
	users     userFinder
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassScheduleService constructs the service.
func NewClassScheduleService(repo classScheduleRepository, rooms roomFinder, users userFinder, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ClassScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassScheduleService{repo: repo, rooms: rooms, users: users, cache: cache, validator: validate, logger: logger}
}

// List returns class schedules with pagination metadata.
func (s *ClassScheduleService) List(ctx context.Context, filter models.ClassScheduleFilter) ([]models.ClassScheduleDetail, *models.Pagination, error) {
	if filter.DayOfWeek != "" {
		day, err := timeslot.ParseWeekday(filter.DayOfWeek)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid day_of_week")
		}
		filter.DayOfWeek = day.String()
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class schedules")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a class schedule by id.
func (s *ClassScheduleService) Get(ctx context.Context, id string) (*models.ClassScheduleDetail, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class schedule")
	}
	return item, nil
}

// Create inserts a class schedule that does not overlap another class in the
// same room on the same weekday.
func (s *ClassScheduleService) Create(ctx context.Context, req ClassScheduleRequest) (*models.ClassScheduleDetail, error) {
	schedule, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNoOverlap(ctx, schedule, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class schedule")
	}
	_ = s.cache.Invalidate(ctx, calendarPattern(schedule.RoomID))
	return s.Get(ctx, schedule.ID)
}

// Update replaces a class schedule.
func (s *ClassScheduleService) Update(ctx context.Context, id string, req ClassScheduleRequest) (*models.ClassScheduleDetail, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	schedule, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	schedule.ID = existing.ID
	schedule.CreatedAt = existing.CreatedAt
	if err := s.ensureNoOverlap(ctx, schedule, existing.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class schedule")
	}
	_ = s.cache.Invalidate(ctx, calendarPattern(existing.RoomID), calendarPattern(schedule.RoomID))
	return s.Get(ctx, id)
}

// Delete removes a class schedule.
func (s *ClassScheduleService) Delete(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class schedule")
	}
	_ = s.cache.Invalidate(ctx, calendarPattern(existing.RoomID))
	return nil
}

func (s *ClassScheduleService) build(ctx context.Context, req ClassScheduleRequest) (*models.ClassSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class schedule payload")
	}
	day, err := timeslot.ParseWeekday(req.DayOfWeek)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid day_of_week")
	}
	start, err := timeslot.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be HH:MM")
	}
	end, err := timeslot.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be HH:MM")
	}
	if !timeslot.NewRange(start, end).Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}

	if _, err := s.rooms.FindByID(ctx, req.RoomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	instructor, err := s.users.FindByID(ctx, req.InstructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	if instructor.Role == models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "students cannot teach classes")
	}

	return &models.ClassSchedule{
		RoomID:       req.RoomID,
		InstructorID: req.InstructorID,
		CourseCode:   strings.TrimSpace(req.CourseCode),
		CourseName:   strings.TrimSpace(req.CourseName),
		DayOfWeek:    day.String(),
		StartTime:    start,
		EndTime:      end,
	}, nil
}

func (s *ClassScheduleService) ensureNoOverlap(ctx context.Context, schedule *models.ClassSchedule, ignoreID string) error {
	day, _ := timeslot.ParseWeekday(schedule.DayOfWeek)
	existing, err := s.repo.ListByRoomAndDay(ctx, schedule.RoomID, day)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class schedule conflicts")
	}
	var conflicts []models.Conflict
	for _, item := range existing {
		if item.ID == ignoreID || !schedule.Range().Overlaps(item.Range()) {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			Kind:      models.ConflictKindClass,
			Title:     item.Title(),
			TimeRange: item.Range().String(),
			OwnerName: item.InstructorName,
		})
	}
	if len(conflicts) > 0 {
		return conflictError(conflicts)
	}
	return nil
}
