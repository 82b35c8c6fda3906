package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stagehub/internship-api/internal/models"
	appErrors "github.com/stagehub/internship-api/pkg/errors"
	"github.com/stagehub/internship-api/pkg/jobs"
)

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id, userID string, readAt time.Time) error
	MarkAllRead(ctx context.Context, userID string, readAt time.Time) error
}

type userDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

// EmailSender delivers notification emails. Implementations should be safe
// for concurrent use; the queue workers call Send from multiple goroutines.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// EmailSenderFunc allows plain functions as senders.
type EmailSenderFunc func(ctx context.Context, to, subject, body string) error

// Send implements EmailSender.
func (f EmailSenderFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}

const transitionJobType = "request.transition"

// NotificationService fans transition events out to per-user notifications
// and optional emails. Events arrive through an in-memory queue, so delivery
// is asynchronous and at-least-once.
type NotificationService struct {
	store       notificationStore
	users       userDirectory
	internships internshipResolver
	email       EmailSender
	queue       *jobs.Queue
	logger      *zap.Logger
}

// NotificationServiceConfig tunes queue behaviour.
type NotificationServiceConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// NewNotificationService constructs the service and its backing queue. Call
// Start before dispatching events and Stop on shutdown.
func NewNotificationService(store notificationStore, users userDirectory, internships internshipResolver, email EmailSender, cfg NotificationServiceConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{
		store:       store,
		users:       users,
		internships: internships,
		email:       email,
		logger:      logger,
	}
	svc.queue = jobs.NewQueue("notifications", svc.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the queue workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Dispatch implements TransitionDispatcher by enqueueing the event. A full
// queue only costs a warning; the workflow write has already committed.
func (s *NotificationService) Dispatch(event models.TransitionEvent) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    transitionJobType,
		Payload: event,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue transition event",
			zap.String("request_id", event.RequestID), zap.Error(err))
	}
}

func (s *NotificationService) handleJob(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.TransitionEvent)
	if !ok {
		s.logger.Warn("dropping job with unexpected payload", zap.String("type", job.Type))
		return nil
	}
	return s.process(ctx, event)
}

// process resolves recipients for the event and writes one notification per
// recipient.
func (s *NotificationService) process(ctx context.Context, event models.TransitionEvent) error {
	kind, title, message := describeTransition(event)
	recipients, err := s.recipients(ctx, event)
	if err != nil {
		return err
	}
	for _, recipient := range recipients {
		notification := &models.Notification{
			UserID:    recipient.ID,
			RequestID: &event.RequestID,
			Kind:      kind,
			Title:     title,
			Message:   message,
		}
		if err := s.store.Create(ctx, notification); err != nil {
			return fmt.Errorf("store notification: %w", err)
		}
		s.sendEmail(ctx, recipient, title, message)
	}
	return nil
}

func (s *NotificationService) recipients(ctx context.Context, event models.TransitionEvent) ([]models.User, error) {
	switch event.ToStatus {
	case models.RequestStatusTutorReview:
		internship, err := s.internships.FindActiveByIntern(ctx, event.InternID)
		if err != nil {
			s.logger.Warn("no active internship for submitted request",
				zap.String("intern_id", event.InternID), zap.Error(err))
			return nil, nil
		}
		tutor, err := s.users.FindByID(ctx, internship.TutorID)
		if err != nil {
			return nil, fmt.Errorf("resolve tutor: %w", err)
		}
		return []models.User{*tutor}, nil
	case models.RequestStatusHRReview:
		return s.users.FindByRole(ctx, models.RoleHR)
	case models.RequestStatusFinanceReview:
		return s.users.FindByRole(ctx, models.RoleFinance)
	case models.RequestStatusApproved, models.RequestStatusRejected:
		intern, err := s.users.FindByID(ctx, event.InternID)
		if err != nil {
			return nil, fmt.Errorf("resolve intern: %w", err)
		}
		return []models.User{*intern}, nil
	}
	return nil, nil
}

func (s *NotificationService) sendEmail(ctx context.Context, recipient models.User, subject, body string) {
	if s.email == nil {
		return
	}
	if err := s.email.Send(ctx, recipient.Email, subject, body); err != nil {
		s.logger.Warn("failed to send notification email",
			zap.String("to", recipient.Email), zap.Error(err))
	}
}

func describeTransition(event models.TransitionEvent) (models.NotificationKind, string, string) {
	switch event.ToStatus {
	case models.RequestStatusTutorReview:
		return models.NotificationSubmitted,
			"New request awaiting your review",
			fmt.Sprintf("A %s request was submitted and needs tutor review.", event.RequestType)
	case models.RequestStatusHRReview:
		return models.NotificationStageAdvanced,
			"Request ready for HR review",
			fmt.Sprintf("A %s request passed tutor review and is waiting on HR.", event.RequestType)
	case models.RequestStatusFinanceReview:
		return models.NotificationStageAdvanced,
			"Request ready for finance review",
			fmt.Sprintf("A %s request passed HR review and is waiting on finance.", event.RequestType)
	case models.RequestStatusApproved:
		return models.NotificationApproved,
			"Your request was approved",
			fmt.Sprintf("Your %s request completed the approval chain.", event.RequestType)
	case models.RequestStatusRejected:
		message := fmt.Sprintf("Your %s request was rejected.", event.RequestType)
		if event.Reason != "" {
			message = fmt.Sprintf("Your %s request was rejected: %s", event.RequestType, event.Reason)
		}
		return models.NotificationRejected, "Your request was rejected", message
	}
	return models.NotificationStageAdvanced, "Request updated",
		fmt.Sprintf("A %s request moved to %s.", event.RequestType, event.ToStatus)
}

// List returns the actor's notifications with the unread count.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter, actor *models.JWTClaims) ([]models.Notification, int, error) {
	if actor == nil {
		return nil, 0, appErrors.ErrUnauthorized
	}
	filter.UserID = actor.UserID
	items, unread, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, unread, nil
}

// MarkRead flags one of the actor's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.store.MarkRead(ctx, id, actor.UserID, time.Now().UTC()); err != nil {
		return appErrors.ErrNotFound
	}
	return nil
}

// MarkAllRead flags every unread notification of the actor as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.store.MarkAllRead(ctx, actor.UserID, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return nil
}

// LogEmailSender writes emails to the log instead of sending. Used when SMTP
// delivery is disabled.
type LogEmailSender struct {
	Logger *zap.Logger
}

// Send implements EmailSender.
func (s *LogEmailSender) Send(_ context.Context, to, subject, _ string) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("email suppressed", zap.String("to", to), zap.String("subject", subject))
	return nil
}
