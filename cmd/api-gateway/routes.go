package main

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/room-reservation-api/internal/handler"
	"github.com/noah-isme/room-reservation-api/internal/middleware"
	"github.com/noah-isme/room-reservation-api/internal/models"
)

type routeHandlers struct {
	auth          *handler.AuthHandler
	rooms         *handler.RoomHandler
	schedules     *handler.ClassScheduleHandler
	reservations  *handler.ReservationHandler
	notifications *handler.NotificationHandler
}

func registerRoutes(api *gin.RouterGroup, h routeHandlers, auth gin.HandlerFunc) {
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	bookers := middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor)

	secured := api.Group("", auth)
	secured.GET("/auth/me", h.auth.Me)
	secured.GET("/notifications", h.notifications.List)

	rooms := secured.Group("/rooms")
	rooms.GET("", h.rooms.List)
	rooms.GET("/:id", h.rooms.Get)
	rooms.GET("/:id/calendar", h.rooms.Calendar)
	rooms.GET("/:id/export", h.rooms.Export)
	rooms.POST("", adminOnly, h.rooms.Create)
	rooms.PUT("/:id", adminOnly, h.rooms.Update)
	rooms.PATCH("/:id/availability", adminOnly, h.rooms.SetAvailability)
	rooms.DELETE("/:id", adminOnly, h.rooms.Delete)

	schedules := secured.Group("/class-schedules")
	schedules.GET("", h.schedules.List)
	schedules.GET("/:id", h.schedules.Get)
	schedules.POST("", adminOnly, h.schedules.Create)
	schedules.PUT("/:id", adminOnly, h.schedules.Update)
	schedules.DELETE("/:id", adminOnly, h.schedules.Delete)

	reservations := secured.Group("/reservations")
	reservations.GET("", h.reservations.List)
	reservations.GET("/upcoming", h.reservations.Upcoming)
	reservations.GET("/:id", h.reservations.Get)
	reservations.POST("/conflicts", bookers, h.reservations.CheckConflicts)
	reservations.POST("", bookers, h.reservations.Create)
	reservations.PATCH("/:id", bookers, h.reservations.Update)
	reservations.POST("/:id/cancel", bookers, h.reservations.Cancel)
	reservations.PATCH("/:id/status", adminOnly, h.reservations.UpdateStatus)
	reservations.DELETE("/:id", bookers, h.reservations.Delete)
}
