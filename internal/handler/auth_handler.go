package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/pkg/response"
)

type accountService interface {
	CurrentUser(ctx context.Context, claims *models.JWTClaims) (*models.User, error)
}

// AuthHandler exposes the authenticated account.
type AuthHandler struct {
	service accountService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc accountService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Me godoc
// @Summary Current account
// @Description Returns the account behind the bearer token.
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.service.CurrentUser(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}
