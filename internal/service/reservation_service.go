package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/internal/models"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
	"github.com/noah-isme/room-reservation-api/pkg/timeslot"
)

type reservationRepository interface {
	FindByID(ctx context.Context, id string) (*models.ReservationDetail, error)
	List(ctx context.Context, filter models.ReservationFilter) ([]models.ReservationDetail, int, error)
	ListUpcomingByUser(ctx context.Context, userID string, today timeslot.Date, now timeslot.TimeOfDay, statuses []models.ReservationStatus, limit int) ([]models.ReservationDetail, error)
	Create(ctx context.Context, res *models.Reservation) error
	Update(ctx context.Context, res *models.Reservation) error
	UpdateStatus(ctx context.Context, id string, status models.ReservationStatus, notes *string) error
	Delete(ctx context.Context, id string) error
}

type conflictChecker interface {
	Detect(ctx context.Context, c Candidate) ([]models.Conflict, error)
}

type roomLocker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type reservationNotifier interface {
	NotifyAdmins(event models.NotificationEvent, reservationID string)
	NotifyUser(event models.NotificationEvent, userID, reservationID string)
}

// ReservationRequest is the payload for creating or editing a reservation.
type ReservationRequest struct {
	RoomID    string  `json:"room_id" validate:"required"`
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string  `json:"start_time" validate:"required"`
	EndTime   string  `json:"end_time" validate:"required"`
	Purpose   string  `json:"purpose" validate:"required,max=255"`
	Course    *string `json:"course" validate:"omitempty,max=100"`
	YearLevel *string `json:"year_level" validate:"omitempty,max=20"`
	Block     *string `json:"block" validate:"omitempty,max=20"`
}

// ConflictCheckRequest asks whether a slot is free without writing anything.
type ConflictCheckRequest struct {
	RoomID               string `json:"room_id" validate:"required"`
	Date                 string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime            string `json:"start_time" validate:"required"`
	EndTime              string `json:"end_time" validate:"required"`
	ExcludeReservationID string `json:"exclude_reservation_id"`
}

// ConflictCheckResult reports the outcome of a dry-run check.
type ConflictCheckResult struct {
	Available bool              `json:"available"`
	Conflicts []models.Conflict `json:"conflicts"`
}

// UpdateReservationStatusRequest is the admin decision payload.
type UpdateReservationStatusRequest struct {
	Status     string  `json:"status" validate:"required,oneof=approved rejected cancelled"`
	AdminNotes *string `json:"admin_notes" validate:"omitempty,max=1000"`
}

// ReservationListRequest carries list filters. Statuses may name effective
// statuses such as active.
type ReservationListRequest struct {
	RoomID    string
	UserID    string
	DateFrom  string
	DateTo    string
	Statuses  []string
	Course    string
	YearLevel string
	Block     string
	Page      int
	PageSize  int
	SortOrder string
}

// ReservationService owns the reservation lifecycle.
type ReservationService struct {
	repo      reservationRepository
	rooms     roomFinder
	detector  conflictChecker
	locker    roomLocker
	cache     *CacheService
	notifier  reservationNotifier
	clock     Clock
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReservationService constructs the service.
func NewReservationService(repo reservationRepository, rooms roomFinder, detector conflictChecker, locker roomLocker, cache *CacheService, notifier reservationNotifier, clock Clock, validate *validator.Validate, logger *zap.Logger) *ReservationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ReservationService{
		repo:      repo,
		rooms:     rooms,
		detector:  detector,
		locker:    locker,
		cache:     cache,
		notifier:  notifier,
		clock:     clock,
		validator: validate,
		logger:    logger,
	}
}

// Create books a room as a pending reservation owned by the actor.
func (s *ReservationService) Create(ctx context.Context, req ReservationRequest, actor *models.JWTClaims) (*models.ReservationDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	candidate, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	res := &models.Reservation{
		RoomID:    candidate.RoomID,
		UserID:    actor.UserID,
		Date:      candidate.Date,
		StartTime: candidate.Start,
		EndTime:   candidate.End,
		Purpose:   strings.TrimSpace(req.Purpose),
		Status:    models.StatusPending,
		Course:    trimmed(req.Course),
		YearLevel: trimmed(req.YearLevel),
		Block:     trimmed(req.Block),
	}

	err = s.withSlotLock(ctx, candidate, func(ctx context.Context) error {
		if err := s.ensureFree(ctx, candidate); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, res); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reservation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCalendar(ctx, res.RoomID)
	s.notifyAdmins(models.EventReservationCreated, res.ID)
	s.logger.Info("reservation created",
		zap.String("reservation_id", res.ID),
		zap.String("room_id", res.RoomID),
		zap.String("date", res.Date.String()),
		zap.String("user_id", res.UserID),
	)
	return s.Get(ctx, res.ID, actor)
}

// Update edits a pending reservation owned by the actor, excluding the
// reservation itself from the conflict check.
func (s *ReservationService) Update(ctx context.Context, id string, req ReservationRequest, actor *models.JWTClaims) (*models.ReservationDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requester can edit this reservation")
	}
	if !CanEdit(existing.Reservation, s.clock.Now()) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only pending reservations can be edited")
	}

	candidate, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	candidate.ExcludeReservationID = existing.ID

	updated := existing.Reservation
	previousRoom := updated.RoomID
	updated.RoomID = candidate.RoomID
	updated.Date = candidate.Date
	updated.StartTime = candidate.Start
	updated.EndTime = candidate.End
	updated.Purpose = strings.TrimSpace(req.Purpose)
	updated.Course = trimmed(req.Course)
	updated.YearLevel = trimmed(req.YearLevel)
	updated.Block = trimmed(req.Block)

	err = s.withSlotLock(ctx, candidate, func(ctx context.Context) error {
		// an administrator may have decided on the request since it was read
		current, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if !CanEdit(current.Reservation, s.clock.Now()) {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "only pending reservations can be edited")
		}
		if err := s.ensureFree(ctx, candidate); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, &updated); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidTransition, "only pending reservations can be edited")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update reservation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCalendar(ctx, updated.RoomID)
	if previousRoom != updated.RoomID {
		s.invalidateCalendar(ctx, previousRoom)
	}
	s.notifyAdmins(models.EventReservationUpdated, updated.ID)
	return s.Get(ctx, updated.ID, actor)
}

// Cancel withdraws a reservation that has not started yet.
func (s *ReservationService) Cancel(ctx context.Context, id string, actor *models.JWTClaims) (*models.ReservationDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && existing.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requester or an administrator can cancel this reservation")
	}
	if !CanCancel(existing.Reservation, s.clock.Now()) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "reservation can no longer be cancelled")
	}

	if err := s.repo.UpdateStatus(ctx, id, models.StatusCancelled, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel reservation")
	}
	s.invalidateCalendar(ctx, existing.RoomID)
	if actor.IsAdmin() && existing.UserID != actor.UserID {
		s.notifyUser(models.EventReservationCancelled, existing.UserID, id)
	} else {
		s.notifyAdmins(models.EventReservationCancelled, id)
	}
	return s.Get(ctx, id, actor)
}

// UpdateStatus applies an administrator's decision. Approval re-runs conflict
// detection so that two overlapping pending requests cannot both be approved.
func (s *ReservationService) UpdateStatus(ctx context.Context, id string, req UpdateReservationStatusRequest, actor *models.JWTClaims) (*models.ReservationDetail, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can change reservation status")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	next := models.ReservationStatus(req.Status)
	if !CanTransition(existing.Status, next) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot change status from %s to %s", existing.Status, next))
	}
	now := s.clock.Now()
	if next == models.StatusCancelled && !CanCancel(existing.Reservation, now) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "reservation can no longer be cancelled")
	}

	write := func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, id, next, trimmed(req.AdminNotes)); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update reservation status")
		}
		return nil
	}

	if next == models.StatusApproved {
		if !existing.Date.On(existing.EndTime, now.Location()).After(now) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "reservation has already ended")
		}
		candidate := Candidate{
			RoomID:               existing.RoomID,
			Date:                 existing.Date,
			Start:                existing.StartTime,
			End:                  existing.EndTime,
			ExcludeReservationID: existing.ID,
			// other pending requests must not veto each other's approval
			Blocking: []models.ReservationStatus{models.StatusApproved},
		}
		err = s.withSlotLock(ctx, candidate, func(ctx context.Context) error {
			current, err := s.load(ctx, id)
			if err != nil {
				return err
			}
			if !CanTransition(current.Status, next) {
				return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot change status from %s to %s", current.Status, next))
			}
			if err := s.ensureFree(ctx, candidate); err != nil {
				return err
			}
			return write(ctx)
		})
	} else {
		err = write(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.invalidateCalendar(ctx, existing.RoomID)
	s.notifyUser(statusEvent(next), existing.UserID, id)
	s.logger.Info("reservation status changed",
		zap.String("reservation_id", id),
		zap.String("from", string(existing.Status)),
		zap.String("to", string(next)),
		zap.String("admin_id", actor.UserID),
	)
	return s.Get(ctx, id, actor)
}

// Delete removes a reservation. Non-admins may only delete their own history.
func (s *ReservationService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && existing.UserID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the requester or an administrator can delete this reservation")
	}
	if !CanDelete(existing.Reservation, actor.Role, s.clock.Now()) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "only completed, cancelled or rejected reservations can be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete reservation")
	}
	s.invalidateCalendar(ctx, existing.RoomID)
	return nil
}

// Get returns a reservation with its effective status.
func (s *ReservationService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ReservationDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && existing.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "reservation belongs to another user")
	}
	resolved := Resolve(*existing, s.clock.Now())
	return &resolved, nil
}

// List returns reservations visible to the actor with effective statuses.
func (s *ReservationService) List(ctx context.Context, req ReservationListRequest, actor *models.JWTClaims) ([]models.ReservationDetail, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.ReservationFilter{
		RoomID:    req.RoomID,
		UserID:    req.UserID,
		Course:    req.Course,
		YearLevel: req.YearLevel,
		Block:     req.Block,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortOrder: req.SortOrder,
	}
	if !actor.IsAdmin() {
		filter.UserID = actor.UserID
	}
	if req.DateFrom != "" {
		d, err := timeslot.ParseDate(req.DateFrom)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "date_from must be YYYY-MM-DD")
		}
		filter.DateFrom = &d
	}
	if req.DateTo != "" {
		d, err := timeslot.ParseDate(req.DateTo)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "date_to must be YYYY-MM-DD")
		}
		filter.DateTo = &d
	}

	wanted, err := parseStatuses(req.Statuses)
	if err != nil {
		return nil, nil, err
	}
	now := s.clock.Now()
	filter.Statuses = wanted
	filter.Today = timeslot.DateOf(now)
	filter.Now = timeslot.OfTime(now)

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reservations")
	}
	return ResolveAll(items, now), models.NewPagination(req.Page, req.PageSize, total), nil
}

// Upcoming lists the user's reservations from today on whose effective status
// is still pending, approved or active.
func (s *ReservationService) Upcoming(ctx context.Context, userID string, limit int) ([]models.ReservationDetail, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	now := s.clock.Now()
	items, err := s.repo.ListUpcomingByUser(ctx, userID, timeslot.DateOf(now), timeslot.OfTime(now), models.BlockingStatuses, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upcoming reservations")
	}
	out := make([]models.ReservationDetail, 0, len(items))
	for _, item := range ResolveAll(items, now) {
		switch item.Status {
		case models.StatusPending, models.StatusApproved, models.StatusActive:
			out = append(out, item)
		}
	}
	return out, nil
}

// CheckConflicts runs the detector without writing.
func (s *ReservationService) CheckConflicts(ctx context.Context, req ConflictCheckRequest) (*ConflictCheckResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict check payload")
	}
	candidate, err := parseCandidate(req.RoomID, req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	candidate.ExcludeReservationID = req.ExcludeReservationID

	conflicts, err := s.detector.Detect(ctx, candidate)
	if err != nil {
		return nil, detectionError(err)
	}
	return &ConflictCheckResult{Available: len(conflicts) == 0, Conflicts: conflicts}, nil
}

func (s *ReservationService) prepare(ctx context.Context, req ReservationRequest) (Candidate, error) {
	if err := s.validator.Struct(req); err != nil {
		return Candidate{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reservation payload")
	}
	candidate, err := parseCandidate(req.RoomID, req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return Candidate{}, err
	}

	now := s.clock.Now()
	if !candidate.Date.On(candidate.End, now.Location()).After(now) {
		return Candidate{}, appErrors.Clone(appErrors.ErrValidation, "reservation must end in the future")
	}

	room, err := s.rooms.FindByID(ctx, candidate.RoomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Candidate{}, appErrors.Clone(appErrors.ErrValidation, "room not found")
		}
		return Candidate{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	if !room.Available {
		return Candidate{}, appErrors.Clone(appErrors.ErrValidation, "room is not available for reservations")
	}
	return candidate, nil
}

func (s *ReservationService) ensureFree(ctx context.Context, c Candidate) error {
	conflicts, err := s.detector.Detect(ctx, c)
	if err != nil {
		return detectionError(err)
	}
	if len(conflicts) > 0 {
		return conflictError(conflicts)
	}
	return nil
}

func (s *ReservationService) withSlotLock(ctx context.Context, c Candidate, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	err := s.locker.WithLock(ctx, slotLockKey(c.RoomID, c.Date), fn)
	var appErr *appErrors.Error
	if err != nil && !errors.As(err, &appErr) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock room schedule")
	}
	return err
}

func (s *ReservationService) load(ctx context.Context, id string) (*models.ReservationDetail, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reservation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reservation")
	}
	return existing, nil
}

func (s *ReservationService) invalidateCalendar(ctx context.Context, roomID string) {
	_ = s.cache.Invalidate(ctx, calendarPattern(roomID))
}

func (s *ReservationService) notifyAdmins(event models.NotificationEvent, reservationID string) {
	if s.notifier != nil {
		s.notifier.NotifyAdmins(event, reservationID)
	}
}

func (s *ReservationService) notifyUser(event models.NotificationEvent, userID, reservationID string) {
	if s.notifier != nil {
		s.notifier.NotifyUser(event, userID, reservationID)
	}
}

func parseCandidate(roomID, date, start, end string) (Candidate, error) {
	d, err := timeslot.ParseDate(date)
	if err != nil {
		return Candidate{}, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}
	startAt, err := timeslot.ParseTimeOfDay(start)
	if err != nil {
		return Candidate{}, appErrors.Clone(appErrors.ErrValidation, "start_time must be HH:MM")
	}
	endAt, err := timeslot.ParseTimeOfDay(end)
	if err != nil {
		return Candidate{}, appErrors.Clone(appErrors.ErrValidation, "end_time must be HH:MM")
	}
	c := Candidate{RoomID: strings.TrimSpace(roomID), Date: d, Start: startAt, End: endAt}
	if !c.Range().Valid() {
		return Candidate{}, appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}
	return c, nil
}

// detectionError maps detector failures onto API errors. A missing room is the
// caller's mistake; every other lookup failure is reported as LOOKUP_FAILED.
func detectionError(err error) error {
	var lookup *LookupError
	if errors.As(err, &lookup) {
		if errors.Is(err, ErrRoomNotFound) {
			return appErrors.Clone(appErrors.ErrValidation, "room not found")
		}
		return appErrors.Wrap(err, appErrors.ErrLookup.Code, appErrors.ErrLookup.Status, appErrors.ErrLookup.Message)
	}
	return appErrors.FromError(err)
}

func conflictError(conflicts []models.Conflict) error {
	cause := &models.ReservationConflictError{Conflicts: conflicts}
	err := appErrors.WithDetails(appErrors.Clone(appErrors.ErrTimeConflict, cause.Error()), cause)
	err.Err = cause
	return err
}

func slotLockKey(roomID string, date timeslot.Date) string {
	return "room:" + roomID + ":" + date.String()
}

func statusEvent(status models.ReservationStatus) models.NotificationEvent {
	switch status {
	case models.StatusApproved:
		return models.EventReservationApproved
	case models.StatusRejected:
		return models.EventReservationRejected
	case models.StatusCancelled:
		return models.EventReservationCancelled
	}
	return models.EventReservationUpdated
}

func parseStatuses(raw []string) ([]models.ReservationStatus, error) {
	out := make([]models.ReservationStatus, 0, len(raw))
	for _, value := range raw {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		status := models.ReservationStatus(value)
		if !status.IsStored() && status != models.StatusActive {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status "+value)
		}
		out = append(out, status)
	}
	return out, nil
}

func containsStatus(list []models.ReservationStatus, s models.ReservationStatus) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
