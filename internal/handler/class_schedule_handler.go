package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/internal/service"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
	"github.com/noah-isme/room-reservation-api/pkg/response"
)

type classScheduleService interface {
	List(ctx context.Context, filter models.ClassScheduleFilter) ([]models.ClassScheduleDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.ClassScheduleDetail, error)
	Create(ctx context.Context, req service.ClassScheduleRequest) (*models.ClassScheduleDetail, error)
	Update(ctx context.Context, id string, req service.ClassScheduleRequest) (*models.ClassScheduleDetail, error)
	Delete(ctx context.Context, id string) error
}

// ClassScheduleHandler exposes class schedule CRUD endpoints.
type ClassScheduleHandler struct {
	service classScheduleService
}

// NewClassScheduleHandler constructs a class schedule handler.
func NewClassScheduleHandler(svc classScheduleService) *ClassScheduleHandler {
	return &ClassScheduleHandler{service: svc}
}

// List godoc
// @Summary List class schedules
// @Tags Class Schedules
// @Produce json
// @Param room_id query string false "Room ID"
// @Param instructor_id query string false "Instructor ID"
// @Param day_of_week query string false "Weekday name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /class-schedules [get]
func (h *ClassScheduleHandler) List(c *gin.Context) {
	filter := models.ClassScheduleFilter{
		RoomID:       c.Query("room_id"),
		InstructorID: c.Query("instructor_id"),
		DayOfWeek:    c.Query("day_of_week"),
		Page:         queryInt(c, "page", 1),
		PageSize:     queryInt(c, "limit", 20),
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get class schedule
// @Tags Class Schedules
// @Produce json
// @Param id path string true "Class schedule ID"
// @Success 200 {object} response.Envelope
// @Router /class-schedules/{id} [get]
func (h *ClassScheduleHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Create class schedule
// @Tags Class Schedules
// @Accept json
// @Produce json
// @Param payload body service.ClassScheduleRequest true "Class schedule payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /class-schedules [post]
func (h *ClassScheduleHandler) Create(c *gin.Context) {
	var req service.ClassScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update class schedule
// @Tags Class Schedules
// @Accept json
// @Produce json
// @Param id path string true "Class schedule ID"
// @Param payload body service.ClassScheduleRequest true "Class schedule payload"
// @Success 200 {object} response.Envelope
// @Router /class-schedules/{id} [put]
func (h *ClassScheduleHandler) Update(c *gin.Context) {
	var req service.ClassScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete class schedule
// @Tags Class Schedules
// @Param id path string true "Class schedule ID"
// @Success 204
// @Router /class-schedules/{id} [delete]
func (h *ClassScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
