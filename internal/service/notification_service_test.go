package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stagehub/internship-api/internal/models"
)

type stubNotificationStore struct {
	mu      sync.Mutex
	created []models.Notification
}

func (s *stubNotificationStore) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, *n)
	return nil
}

func (s *stubNotificationStore) List(context.Context, models.NotificationFilter) ([]models.Notification, int, error) {
	return nil, 0, nil
}

func (s *stubNotificationStore) MarkRead(context.Context, string, string, time.Time) error {
	return nil
}

func (s *stubNotificationStore) MarkAllRead(context.Context, string, time.Time) error {
	return nil
}

type stubDirectory struct {
	byID   map[string]models.User
	byRole map[models.UserRole][]models.User
}

func (s *stubDirectory) FindByID(_ context.Context, id string) (*models.User, error) {
	user := s.byID[id]
	return &user, nil
}

func (s *stubDirectory) FindByRole(_ context.Context, role models.UserRole) ([]models.User, error) {
	return s.byRole[role], nil
}

func newNotificationFixture() (*NotificationService, *stubNotificationStore) {
	store := &stubNotificationStore{}
	directory := &stubDirectory{
		byID: map[string]models.User{
			"intern-1": {ID: "intern-1", Email: "intern@example.com", Role: models.RoleIntern},
			"tutor-1":  {ID: "tutor-1", Email: "tutor@example.com", Role: models.RoleTutor},
		},
		byRole: map[models.UserRole][]models.User{
			models.RoleHR: {
				{ID: "hr-1", Email: "hr1@example.com", Role: models.RoleHR},
				{ID: "hr-2", Email: "hr2@example.com", Role: models.RoleHR},
			},
			models.RoleFinance: {
				{ID: "fin-1", Email: "fin@example.com", Role: models.RoleFinance},
			},
		},
	}
	svc := NewNotificationService(store, directory, &stubInternships{tutorID: "tutor-1"}, nil, NotificationServiceConfig{}, nil)
	return svc, store
}

func TestNotificationFanOutToStageReviewers(t *testing.T) {
	svc, store := newNotificationFixture()
	ctx := context.Background()

	err := svc.process(ctx, models.TransitionEvent{
		RequestID:   "req-1",
		RequestType: models.RequestTypeConvention,
		InternID:    "intern-1",
		FromStatus:  models.RequestStatusTutorReview,
		ToStatus:    models.RequestStatusHRReview,
	})
	require.NoError(t, err)
	require.Len(t, store.created, 2)
	require.Equal(t, "hr-1", store.created[0].UserID)
	require.Equal(t, "hr-2", store.created[1].UserID)
	require.Equal(t, models.NotificationStageAdvanced, store.created[0].Kind)
}

func TestNotificationSubmitGoesToAssignedTutor(t *testing.T) {
	svc, store := newNotificationFixture()

	err := svc.process(context.Background(), models.TransitionEvent{
		RequestID:   "req-1",
		RequestType: models.RequestTypeLeave,
		InternID:    "intern-1",
		FromStatus:  models.RequestStatusDraft,
		ToStatus:    models.RequestStatusTutorReview,
	})
	require.NoError(t, err)
	require.Len(t, store.created, 1)
	require.Equal(t, "tutor-1", store.created[0].UserID)
	require.Equal(t, models.NotificationSubmitted, store.created[0].Kind)
}

func TestNotificationRejectionReachesInternWithReason(t *testing.T) {
	svc, store := newNotificationFixture()

	err := svc.process(context.Background(), models.TransitionEvent{
		RequestID:   "req-1",
		RequestType: models.RequestTypeConvention,
		InternID:    "intern-1",
		FromStatus:  models.RequestStatusHRReview,
		ToStatus:    models.RequestStatusRejected,
		Reason:      "budget exceeded",
	})
	require.NoError(t, err)
	require.Len(t, store.created, 1)
	require.Equal(t, "intern-1", store.created[0].UserID)
	require.Equal(t, models.NotificationRejected, store.created[0].Kind)
	require.Contains(t, store.created[0].Message, "budget exceeded")
}

func TestNotificationQueueDeliversAsync(t *testing.T) {
	svc, store := newNotificationFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Dispatch(models.TransitionEvent{
		RequestID:   "req-1",
		RequestType: models.RequestTypeLeave,
		InternID:    "intern-1",
		FromStatus:  models.RequestStatusHRReview,
		ToStatus:    models.RequestStatusApproved,
	})

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.created) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "intern-1", store.created[0].UserID)
}
