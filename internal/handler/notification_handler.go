package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/room-reservation-api/internal/models"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
	"github.com/noah-isme/room-reservation-api/pkg/response"
)

type notificationLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
}

// NotificationHandler exposes the caller's reservation notices.
type NotificationHandler struct {
	repo notificationLister
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(repo notificationLister) *NotificationHandler {
	return &NotificationHandler{repo: repo}
}

// List godoc
// @Summary List my notifications
// @Tags Notifications
// @Produce json
// @Param limit query int false "Maximum items (default 20, max 100)"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit := queryInt(c, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	items, err := h.repo.ListByUser(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notifications"))
		return
	}
	if items == nil {
		items = []models.Notification{}
	}
	response.JSON(c, http.StatusOK, items, nil)
}
