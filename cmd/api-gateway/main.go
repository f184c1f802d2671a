package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/room-reservation-api/api/swagger"
	"github.com/noah-isme/room-reservation-api/internal/handler"
	"github.com/noah-isme/room-reservation-api/internal/middleware"
	"github.com/noah-isme/room-reservation-api/internal/repository"
	"github.com/noah-isme/room-reservation-api/internal/service"
	"github.com/noah-isme/room-reservation-api/pkg/cache"
	"github.com/noah-isme/room-reservation-api/pkg/config"
	"github.com/noah-isme/room-reservation-api/pkg/database"
	"github.com/noah-isme/room-reservation-api/pkg/jobs"
	"github.com/noah-isme/room-reservation-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/room-reservation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/room-reservation-api/pkg/middleware/requestid"
)

// @title Room Reservation API
// @version 1.0.0
// @description Room booking with class-schedule aware conflict detection and an approval workflow.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := database.Migrate(ctx, db.DB, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Calendar.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, calendar cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	clock := service.SystemClock{Location: cfg.Location()}
	validate := validator.New()
	metrics := service.NewMetricsService()

	roomRepo := repository.NewRoomRepository(db)
	scheduleRepo := repository.NewClassScheduleRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Calendar.CacheTTL, logr, redisClient != nil)
	notifier := service.NewNotificationService(notificationRepo, userRepo, jobs.QueueConfig{
		Workers:      cfg.Notifications.Workers,
		BufferSize:   cfg.Notifications.BufferSize,
		MaxRetries:   cfg.Notifications.Retries,
		RetryDelay:   cfg.Notifications.RetryDelay,
		DrainTimeout: cfg.Notifications.DrainTime,
	}, logr)
	notifier.Start(ctx)
	defer notifier.Stop()

	detector := service.NewConflictDetector(roomRepo, scheduleRepo, reservationRepo, metrics, logr)
	authSvc := service.NewAuthService(userRepo, logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	roomSvc := service.NewRoomService(roomRepo, cacheSvc, validate, logr)
	scheduleSvc := service.NewClassScheduleService(scheduleRepo, roomRepo, userRepo, cacheSvc, validate, logr)
	reservationSvc := service.NewReservationService(reservationRepo, roomRepo, detector, repository.NewRoomLocker(db, logr), cacheSvc, notifier, clock, validate, logr)
	calendarSvc := service.NewCalendarService(roomRepo, scheduleRepo, reservationRepo, cacheSvc, cfg.Calendar.CacheTTL, clock, logr)
	exportSvc := service.NewExportService(roomRepo, reservationRepo, clock, logr)

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeHandlers{
		auth:          handler.NewAuthHandler(authSvc),
		rooms:         handler.NewRoomHandler(roomSvc, calendarSvc, exportSvc),
		schedules:     handler.NewClassScheduleHandler(scheduleSvc),
		reservations:  handler.NewReservationHandler(reservationSvc),
		notifications: handler.NewNotificationHandler(notificationRepo),
	}, middleware.JWT(authSvc))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
