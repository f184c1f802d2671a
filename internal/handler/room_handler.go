package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/internal/service"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
	"github.com/noah-isme/room-reservation-api/pkg/response"
)

type roomService interface {
	List(ctx context.Context, filter models.RoomFilter) ([]models.Room, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Room, error)
	Create(ctx context.Context, req service.RoomRequest) (*models.Room, error)
	Update(ctx context.Context, id string, req service.RoomRequest) (*models.Room, error)
	SetAvailability(ctx context.Context, id string, req service.RoomAvailabilityRequest) (*models.Room, error)
	Delete(ctx context.Context, id string) error
}

type roomCalendar interface {
	RoomDay(ctx context.Context, roomID, date string) (*models.RoomDay, error)
}

type roomExporter interface {
	Export(ctx context.Context, roomID, from, to, format string) (*service.ExportFile, error)
}

// RoomHandler exposes the room catalogue together with per-room calendar and
// export endpoints.
type RoomHandler struct {
	rooms    roomService
	calendar roomCalendar
	exporter roomExporter
}

// NewRoomHandler constructs a room handler.
func NewRoomHandler(rooms roomService, calendar roomCalendar, exporter roomExporter) *RoomHandler {
	return &RoomHandler{rooms: rooms, calendar: calendar, exporter: exporter}
}

// List godoc
// @Summary List rooms
// @Tags Rooms
// @Produce json
// @Param building query string false "Building"
// @Param type query string false "classroom, lab or conference"
// @Param available query bool false "Only rooms accepting reservations"
// @Param min_capacity query int false "Minimum capacity"
// @Param search query string false "Search room number or building"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /rooms [get]
func (h *RoomHandler) List(c *gin.Context) {
	filter := models.RoomFilter{
		Building:  c.Query("building"),
		Type:      models.RoomType(c.Query("type")),
		Available: queryBool(c, "available"),
		MinSeats:  queryInt(c, "min_capacity", 0),
		Search:    strings.TrimSpace(c.Query("search")),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "limit", 20),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	rooms, pagination, err := h.rooms.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, pagination)
}

// Get godoc
// @Summary Get room detail
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rooms/{id} [get]
func (h *RoomHandler) Get(c *gin.Context) {
	room, err := h.rooms.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// Create godoc
// @Summary Create room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param payload body service.RoomRequest true "Room payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rooms [post]
func (h *RoomHandler) Create(c *gin.Context) {
	var req service.RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	room, err := h.rooms.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, room)
}

// Update godoc
// @Summary Update room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param id path string true "Room ID"
// @Param payload body service.RoomRequest true "Room payload"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id} [put]
func (h *RoomHandler) Update(c *gin.Context) {
	var req service.RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	room, err := h.rooms.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// SetAvailability godoc
// @Summary Open or close a room for reservations
// @Tags Rooms
// @Accept json
// @Produce json
// @Param id path string true "Room ID"
// @Param payload body service.RoomAvailabilityRequest true "Availability"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id}/availability [patch]
func (h *RoomHandler) SetAvailability(c *gin.Context) {
	var req service.RoomAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	room, err := h.rooms.SetAvailability(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// Delete godoc
// @Summary Delete room
// @Tags Rooms
// @Param id path string true "Room ID"
// @Success 204
// @Router /rooms/{id} [delete]
func (h *RoomHandler) Delete(c *gin.Context) {
	if err := h.rooms.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Calendar godoc
// @Summary Room schedule for one day
// @Description Classes held on the date's weekday plus reservations on the date with their effective status.
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rooms/{id}/calendar [get]
func (h *RoomHandler) Calendar(c *gin.Context) {
	day, err := h.calendar.RoomDay(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, day, nil)
}

// Export godoc
// @Summary Download a room's reservations
// @Tags Rooms
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce text/calendar
// @Param id path string true "Room ID"
// @Param from query string false "First date (YYYY-MM-DD), defaults to today"
// @Param to query string false "Last date (YYYY-MM-DD), defaults to thirty days after from"
// @Param format query string false "csv, pdf, xlsx or ics"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /rooms/{id}/export [get]
func (h *RoomHandler) Export(c *gin.Context) {
	file, err := h.exporter.Export(c.Request.Context(), c.Param("id"), c.Query("from"), c.Query("to"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
