package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/internal/models"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
)

type roomRepository interface {
	List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	ExistsByNaturalKey(ctx context.Context, roomNumber, building, excludeID string) (bool, error)
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, room *models.Room) error
	SetAvailability(ctx context.Context, id string, available bool) error
	Delete(ctx context.Context, id string) error
}

// RoomRequest represents the payload for creating or replacing a room.
type RoomRequest struct {
	RoomNumber string `json:"room_number" validate:"required,max=20"`
	Building   string `json:"building" validate:"required,max=100"`
	Capacity   int    `json:"capacity" validate:"required,min=1,max=1000"`
	Type       string `json:"type" validate:"required,oneof=classroom lab conference"`
	Equipment  string `json:"equipment" validate:"omitempty,max=1000"`
	Available  *bool  `json:"available"`
}

// RoomAvailabilityRequest toggles whether a room accepts reservations.
type RoomAvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

// RoomService manages the room catalogue.
type RoomService struct {
	repo      roomRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoomService constructs a RoomService.
func NewRoomService(repo roomRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *RoomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns rooms with pagination metadata.
func (s *RoomService) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, *models.Pagination, error) {
	rooms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	return rooms, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a room by id.
func (s *RoomService) Get(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	return room, nil
}

// Create registers a new room. Room number and building are unique together.
func (s *RoomService) Create(ctx context.Context, req RoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	room := &models.Room{
		RoomNumber: strings.TrimSpace(req.RoomNumber),
		Building:   strings.TrimSpace(req.Building),
		Capacity:   req.Capacity,
		Type:       models.RoomType(req.Type),
		Equipment:  strings.TrimSpace(req.Equipment),
		Available:  true,
	}
	if req.Available != nil {
		room.Available = *req.Available
	}
	if err := s.ensureUnique(ctx, room.RoomNumber, room.Building, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create room")
	}
	return room, nil
}

// Update replaces a room's attributes.
func (s *RoomService) Update(ctx context.Context, id string, req RoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	room, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	room.RoomNumber = strings.TrimSpace(req.RoomNumber)
	room.Building = strings.TrimSpace(req.Building)
	room.Capacity = req.Capacity
	room.Type = models.RoomType(req.Type)
	room.Equipment = strings.TrimSpace(req.Equipment)
	if req.Available != nil {
		room.Available = *req.Available
	}
	if err := s.ensureUnique(ctx, room.RoomNumber, room.Building, room.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update room")
	}
	_ = s.cache.Invalidate(ctx, calendarPattern(room.ID))
	return room, nil
}

// SetAvailability opens or closes a room for new reservations. Existing
// reservations are left untouched.
func (s *RoomService) SetAvailability(ctx context.Context, id string, req RoomAvailabilityRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	room, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetAvailability(ctx, id, *req.Available); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update room availability")
	}
	room.Available = *req.Available
	_ = s.cache.Invalidate(ctx, calendarPattern(id))
	return room, nil
}

// Delete removes a room together with its schedules and reservations.
func (s *RoomService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete room")
	}
	_ = s.cache.Invalidate(ctx, calendarPattern(id))
	s.logger.Info("room deleted", zap.String("room_id", id))
	return nil
}

func (s *RoomService) ensureUnique(ctx context.Context, number, building, excludeID string) error {
	exists, err := s.repo.ExistsByNaturalKey(ctx, number, building, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "room "+number+" already exists in "+building)
	}
	return nil
}
