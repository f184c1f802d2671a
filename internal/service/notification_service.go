package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/pkg/jobs"
)

const notificationJobType = "reservation_notification"

type notificationWriter interface {
	Create(ctx context.Context, n *models.Notification) error
}

type userDirectory interface {
	ListIDsByRole(ctx context.Context, role models.UserRole) ([]string, error)
}

type notificationPayload struct {
	Event         models.NotificationEvent
	ReservationID string
	UserID        string
}

// NotificationService dispatches reservation lifecycle notices in the
// background. Dispatch failures are logged and never reach the caller.
type NotificationService struct {
	repo   notificationWriter
	users  userDirectory
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService builds the dispatcher and its worker queue.
func NewNotificationService(repo notificationWriter, users userDirectory, cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	svc := &NotificationService{repo: repo, users: users, logger: logger}
	svc.queue = jobs.NewQueue("notifications", svc.handle, cfg)
	return svc
}

// Start launches the notification workers.
func (s *NotificationService) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.queue.Start(ctx)
}

// Stop halts the notification workers.
func (s *NotificationService) Stop() {
	if s == nil {
		return
	}
	s.queue.Stop()
}

// NotifyAdmins fans the event out to every administrator.
func (s *NotificationService) NotifyAdmins(event models.NotificationEvent, reservationID string) {
	s.enqueue(notificationPayload{Event: event, ReservationID: reservationID})
}

// NotifyUser sends the event to a single user.
func (s *NotificationService) NotifyUser(event models.NotificationEvent, userID, reservationID string) {
	if userID == "" {
		return
	}
	s.enqueue(notificationPayload{Event: event, ReservationID: reservationID, UserID: userID})
}

func (s *NotificationService) enqueue(payload notificationPayload) {
	if s == nil {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: notificationJobType, Payload: payload}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("notification dropped",
			zap.String("event", string(payload.Event)),
			zap.String("reservation_id", payload.ReservationID),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationPayload)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}

	recipients := []string{payload.UserID}
	if payload.UserID == "" {
		ids, err := s.users.ListIDsByRole(ctx, models.RoleAdmin)
		if err != nil {
			return fmt.Errorf("list admins: %w", err)
		}
		recipients = ids
	}

	for _, userID := range recipients {
		reservationID := payload.ReservationID
		n := &models.Notification{
			UserID:        userID,
			Event:         payload.Event,
			ReservationID: &reservationID,
		}
		if err := s.repo.Create(ctx, n); err != nil {
			return fmt.Errorf("store notification for %s: %w", userID, err)
		}
	}
	return nil
}
