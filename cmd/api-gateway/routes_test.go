package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/room-reservation-api/internal/handler"
	"github.com/noah-isme/room-reservation-api/internal/middleware"
	"github.com/noah-isme/room-reservation-api/internal/models"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
)

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerRoutes(r.Group("/api/v1"), routeHandlers{
		auth:          handler.NewAuthHandler(nil),
		rooms:         handler.NewRoomHandler(nil, nil, nil),
		schedules:     handler.NewClassScheduleHandler(nil),
		reservations:  handler.NewReservationHandler(nil),
		notifications: handler.NewNotificationHandler(nil),
	}, middleware.JWT(tokenStub{
		"student":    {UserID: "s-1", Role: models.RoleStudent},
		"instructor": {UserID: "i-1", Role: models.RoleInstructor},
	}))
	return r
}

func TestRouteTable(t *testing.T) {
	routes := map[string]bool{}
	for _, info := range newTestRouter().Routes() {
		routes[info.Method+" "+info.Path] = true
	}
	for _, want := range []string{
		"GET /api/v1/rooms/:id/calendar",
		"GET /api/v1/rooms/:id/export",
		"PATCH /api/v1/rooms/:id/availability",
		"GET /api/v1/reservations/upcoming",
		"POST /api/v1/reservations/conflicts",
		"PATCH /api/v1/reservations/:id/status",
		"POST /api/v1/reservations/:id/cancel",
		"DELETE /api/v1/class-schedules/:id",
	} {
		assert.True(t, routes[want], want)
	}
}

func TestRoutesEnforceRoles(t *testing.T) {
	r := newTestRouter()
	cases := []struct {
		method, path, token string
		status              int
	}{
		{http.MethodGet, "/api/v1/rooms", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/rooms", "instructor", http.StatusForbidden},
		{http.MethodPost, "/api/v1/reservations", "student", http.StatusForbidden},
		{http.MethodPatch, "/api/v1/reservations/r-1/status", "instructor", http.StatusForbidden},
		{http.MethodDelete, "/api/v1/class-schedules/c-1", "student", http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, "%s %s as %q", tc.method, tc.path, tc.token)
	}
}
