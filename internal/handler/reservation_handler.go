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

type reservationService interface {
	List(ctx context.Context, req service.ReservationListRequest, actor *models.JWTClaims) ([]models.ReservationDetail, *models.Pagination, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ReservationDetail, error)
	Upcoming(ctx context.Context, userID string, limit int) ([]models.ReservationDetail, error)
	CheckConflicts(ctx context.Context, req service.ConflictCheckRequest) (*service.ConflictCheckResult, error)
	Create(ctx context.Context, req service.ReservationRequest, actor *models.JWTClaims) (*models.ReservationDetail, error)
	Update(ctx context.Context, id string, req service.ReservationRequest, actor *models.JWTClaims) (*models.ReservationDetail, error)
	Cancel(ctx context.Context, id string, actor *models.JWTClaims) (*models.ReservationDetail, error)
	UpdateStatus(ctx context.Context, id string, req service.UpdateReservationStatusRequest, actor *models.JWTClaims) (*models.ReservationDetail, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

// ReservationHandler exposes the reservation lifecycle endpoints.
type ReservationHandler struct {
	service reservationService
}

// NewReservationHandler constructs a reservation handler.
func NewReservationHandler(svc reservationService) *ReservationHandler {
	return &ReservationHandler{service: svc}
}

// List godoc
// @Summary List reservations
// @Description Non-admin users only see their own reservations. Status filters accept effective statuses such as active and completed.
// @Tags Reservations
// @Produce json
// @Param room_id query string false "Room ID"
// @Param user_id query string false "Requester ID (admin only)"
// @Param date_from query string false "Earliest date (YYYY-MM-DD)"
// @Param date_to query string false "Latest date (YYYY-MM-DD)"
// @Param status query []string false "Effective statuses" collectionFormat(csv)
// @Param course query string false "Course"
// @Param year_level query string false "Year level"
// @Param block query string false "Block"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param order query string false "asc or desc by date"
// @Success 200 {object} response.Envelope
// @Router /reservations [get]
func (h *ReservationHandler) List(c *gin.Context) {
	req := service.ReservationListRequest{
		RoomID:    c.Query("room_id"),
		UserID:    c.Query("user_id"),
		DateFrom:  c.Query("date_from"),
		DateTo:    c.Query("date_to"),
		Statuses:  queryList(c, "status"),
		Course:    c.Query("course"),
		YearLevel: c.Query("year_level"),
		Block:     c.Query("block"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "limit", 20),
		SortOrder: c.Query("order"),
	}
	items, pagination, err := h.service.List(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Upcoming godoc
// @Summary List the caller's upcoming reservations
// @Tags Reservations
// @Produce json
// @Param limit query int false "Maximum items (default 10, max 50)"
// @Success 200 {object} response.Envelope
// @Router /reservations/upcoming [get]
func (h *ReservationHandler) Upcoming(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.service.Upcoming(c.Request.Context(), claims.UserID, queryInt(c, "limit", 10))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get reservation detail
// @Tags Reservations
// @Produce json
// @Param id path string true "Reservation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reservations/{id} [get]
func (h *ReservationHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// CheckConflicts godoc
// @Summary Dry-run conflict check
// @Description Reports every class or reservation overlapping the requested slot without booking it.
// @Tags Reservations
// @Accept json
// @Produce json
// @Param payload body service.ConflictCheckRequest true "Slot"
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /reservations/conflicts [post]
func (h *ReservationHandler) CheckConflicts(c *gin.Context) {
	var req service.ConflictCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.CheckConflicts(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Create godoc
// @Summary Request a reservation
// @Tags Reservations
// @Accept json
// @Produce json
// @Param payload body service.ReservationRequest true "Reservation payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reservations [post]
func (h *ReservationHandler) Create(c *gin.Context) {
	var req service.ReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Edit a pending reservation
// @Tags Reservations
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param payload body service.ReservationRequest true "Reservation payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reservations/{id} [patch]
func (h *ReservationHandler) Update(c *gin.Context) {
	var req service.ReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Cancel godoc
// @Summary Cancel a reservation
// @Tags Reservations
// @Produce json
// @Param id path string true "Reservation ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reservations/{id}/cancel [post]
func (h *ReservationHandler) Cancel(c *gin.Context) {
	item, err := h.service.Cancel(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// UpdateStatus godoc
// @Summary Approve, reject or cancel a reservation
// @Tags Reservations
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param payload body service.UpdateReservationStatusRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reservations/{id}/status [patch]
func (h *ReservationHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateReservationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete a reservation
// @Tags Reservations
// @Param id path string true "Reservation ID"
// @Success 204
// @Router /reservations/{id} [delete]
func (h *ReservationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
