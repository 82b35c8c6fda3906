package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stagehub/internship-api/internal/dto"
	"github.com/stagehub/internship-api/internal/models"
	"github.com/stagehub/internship-api/internal/repository"
	appErrors "github.com/stagehub/internship-api/pkg/errors"
)

type stubRequestStore struct {
	mu       sync.Mutex
	requests map[string]*models.Request
	// forceConflict makes the next guarded write report zero rows even though
	// the row still exists, simulating a lost race.
	forceConflict bool
}

func newStubRequestStore() *stubRequestStore {
	return &stubRequestStore{requests: map[string]*models.Request{}}
}

func (s *stubRequestStore) Create(_ context.Context, request *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if request.ID == "" {
		request.ID = "req-" + request.Title
	}
	clone := *request
	s.requests[request.ID] = &clone
	return nil
}

func (s *stubRequestStore) GetByID(_ context.Context, id string) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *request
	return &clone, nil
}

func (s *stubRequestStore) List(_ context.Context, filter models.RequestFilter) ([]models.Request, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.Request
	for _, request := range s.requests {
		if filter.Scope.All ||
			(filter.Scope.OwnerID != "" && request.InternID == filter.Scope.OwnerID) ||
			(filter.Scope.StageStatus != "" && request.Status == filter.Scope.StageStatus) {
			matched = append(matched, *request)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (s *stubRequestStore) UpdateDraft(_ context.Context, request *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.requests[request.ID]
	if !ok || stored.Status != models.RequestStatusDraft {
		return sql.ErrNoRows
	}
	clone := *request
	s.requests[request.ID] = &clone
	return nil
}

func (s *stubRequestStore) ApplyTransition(_ context.Context, params repository.TransitionParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forceConflict {
		s.forceConflict = false
		return sql.ErrNoRows
	}
	stored, ok := s.requests[params.ID]
	if !ok || stored.Status != params.FromStatus {
		return sql.ErrNoRows
	}
	stored.Status = params.ToStatus
	if v, ok := params.SetColumns["tutor_approved_by"]; ok {
		id := v.(string)
		stored.TutorApprovedBy = &id
	}
	if v, ok := params.SetColumns["hr_approved_by"]; ok {
		id := v.(string)
		stored.HRApprovedBy = &id
	}
	if v, ok := params.SetColumns["finance_approved_by"]; ok {
		id := v.(string)
		stored.FinanceApprovedBy = &id
	}
	return nil
}

func (s *stubRequestStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.requests[id]
	if !ok || stored.Status != models.RequestStatusDraft {
		return sql.ErrNoRows
	}
	delete(s.requests, id)
	return nil
}

func (s *stubRequestStore) CountByStatus(_ context.Context) (map[models.RequestStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[models.RequestStatus]int{}
	for _, request := range s.requests {
		counts[request.Status]++
	}
	return counts, nil
}

func (s *stubRequestStore) status(t *testing.T, id string) models.RequestStatus {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[id]
	require.True(t, ok)
	return request.Status
}

type stubInternships struct {
	tutorID string
	missing bool
}

func (s *stubInternships) FindActiveByIntern(context.Context, string) (*models.Internship, error) {
	if s.missing {
		return nil, sql.ErrNoRows
	}
	return &models.Internship{TutorID: s.tutorID, Active: true}, nil
}

type stubAudit struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (s *stubAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *log)
	return nil
}

type capturedEvents struct {
	mu     sync.Mutex
	events []models.TransitionEvent
}

func (c *capturedEvents) Dispatch(event models.TransitionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func actor(id string, role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: role}
}

func newWorkflowFixture(t *testing.T) (*WorkflowService, *stubRequestStore, *capturedEvents, *stubAudit) {
	t.Helper()
	store := newStubRequestStore()
	events := &capturedEvents{}
	audit := &stubAudit{}
	svc := NewWorkflowService(store, &stubInternships{tutorID: "tutor-1"}, audit, nil,
		WithTransitionDispatcher(events),
		WithWorkflowClock(func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }),
	)
	return svc, store, events, audit
}

func createDraft(t *testing.T, svc *WorkflowService, reqType models.RequestType) *models.Request {
	t.Helper()
	request, err := svc.Create(context.Background(), dto.CreateRequestInput{
		Type:  reqType,
		Title: "placement paperwork",
	}, actor("intern-1", models.RoleIntern))
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusDraft, request.Status)
	return request
}

func TestWorkflowFullApprovalChain(t *testing.T) {
	svc, store, events, _ := newWorkflowFixture(t)
	ctx := context.Background()
	request := createDraft(t, svc, models.RequestTypeConvention)

	request, err := svc.Submit(ctx, request.ID, actor("intern-1", models.RoleIntern))
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusTutorReview, request.Status)
	require.NotNil(t, request.SubmittedAt)

	request, err = svc.Approve(ctx, request.ID, "looks fine", actor("tutor-1", models.RoleTutor))
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusHRReview, request.Status)
	require.NotNil(t, request.TutorApprovedBy)
	require.Equal(t, "tutor-1", *request.TutorApprovedBy)

	request, err = svc.Approve(ctx, request.ID, "", actor("hr-1", models.RoleHR))
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusFinanceReview, request.Status)
	require.Equal(t, "hr-1", *request.HRApprovedBy)

	request, err = svc.Approve(ctx, request.ID, "", actor("fin-1", models.RoleFinance))
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusApproved, request.Status)
	require.Equal(t, "fin-1", *request.FinanceApprovedBy)
	require.NotNil(t, request.FinalApprovedAt)

	require.Equal(t, models.RequestStatusApproved, store.status(t, request.ID))
	require.Len(t, events.events, 4)
	require.Equal(t, models.RequestStatusDraft, events.events[0].FromStatus)
	require.Equal(t, models.RequestStatusTutorReview, events.events[0].ToStatus)
	require.Equal(t, models.RequestStatusApproved, events.events[3].ToStatus)
	require.Equal(t, "fin-1", events.events[3].ActorID)
}

func TestWorkflowSkipsFinanceForNonFinancialTypes(t *testing.T) {
	svc, _, _, _ := newWorkflowFixture(t)
	ctx := context.Background()
	request := createDraft(t, svc, models.RequestTypeLeave)

	_, err := svc.Submit(ctx, request.ID, actor("intern-1", models.RoleIntern))
	require.NoError(t, err)
	_, err = svc.Approve(ctx, request.ID, "", actor("tutor-1", models.RoleTutor))
	require.NoError(t, err)

	final, err := svc.Approve(ctx, request.ID, "", actor("hr-1", models.RoleHR))
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusApproved, final.Status)
	require.NotNil(t, final.FinalApprovedAt)
	require.Nil(t, final.FinanceApprovedBy)
}

func TestWorkflowRejectRequiresReasonAndIsTerminal(t *testing.T) {
	svc, _, events, _ := newWorkflowFixture(t)
	ctx := context.Background()
	request := createDraft(t, svc, models.RequestTypeConvention)
	_, err := svc.Submit(ctx, request.ID, actor("intern-1", models.RoleIntern))
	require.NoError(t, err)

	_, err = svc.Reject(ctx, request.ID, "   ", "", actor("tutor-1", models.RoleTutor))
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))

	rejected, err := svc.Reject(ctx, request.ID, "missing signature", "", actor("tutor-1", models.RoleTutor))
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	require.Equal(t, "missing signature", *rejected.RejectionReason)
	require.Equal(t, "missing signature", events.events[len(events.events)-1].Reason)

	// No escape from a terminal status. Terminal actions surface under the
	// invalid-transition code with a finalized message.
	_, err = svc.Approve(ctx, request.ID, "", actor("hr-1", models.RoleHR))
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
	require.True(t, appErrors.Is(err, appErrors.ErrTerminalState))
	_, err = svc.Submit(ctx, request.ID, actor("intern-1", models.RoleIntern))
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestWorkflowInvalidTransitions(t *testing.T) {
	svc, _, _, _ := newWorkflowFixture(t)
	ctx := context.Background()
	request := createDraft(t, svc, models.RequestTypeConvention)

	_, err := svc.Approve(ctx, request.ID, "", actor("tutor-1", models.RoleTutor))
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	_, err = svc.Reject(ctx, request.ID, "nope", "", actor("hr-1", models.RoleHR))
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestWorkflowAuthorization(t *testing.T) {
	svc, _, _, _ := newWorkflowFixture(t)
	ctx := context.Background()
	request := createDraft(t, svc, models.RequestTypeConvention)

	// Only the owner submits.
	_, err := svc.Submit(ctx, request.ID, actor("intern-2", models.RoleIntern))
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Submit(ctx, request.ID, actor("intern-1", models.RoleIntern))
	require.NoError(t, err)

	// Role gate: HR cannot act on the tutor stage.
	_, err = svc.Approve(ctx, request.ID, "", actor("hr-1", models.RoleHR))
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	// Identity gate: a tutor who is not assigned to the intern.
	_, err = svc.Approve(ctx, request.ID, "", actor("tutor-9", models.RoleTutor))
	require.True(t, appErrors.Is(err, appErrors.ErrNotAssignedReviewer))

	advanced, err := svc.Approve(ctx, request.ID, "", actor("tutor-1", models.RoleTutor))
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusHRReview, advanced.Status)
	require.Equal(t, "tutor-1", *advanced.TutorApprovedBy)
}

func TestWorkflowAdminHasNoReviewOrCreatePower(t *testing.T) {
	svc, store, _, _ := newWorkflowFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.CreateRequestInput{
		Type:  models.RequestTypeLeave,
		Title: "admin paperwork",
	}, actor("admin-1", models.RoleAdmin))
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	request := createDraft(t, svc, models.RequestTypeConvention)
	_, err = svc.Submit(ctx, request.ID, actor("admin-1", models.RoleAdmin))
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Submit(ctx, request.ID, actor("intern-1", models.RoleIntern))
	require.NoError(t, err)

	// Stage attribution stays truthful: only the assigned tutor can act here.
	_, err = svc.Approve(ctx, request.ID, "", actor("admin-1", models.RoleAdmin))
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	_, err = svc.Reject(ctx, request.ID, "not applicable", "", actor("admin-1", models.RoleAdmin))
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	require.Equal(t, models.RequestStatusTutorReview, store.status(t, request.ID))
}

func TestWorkflowUnassignedInternBlocksTutorStage(t *testing.T) {
	store := newStubRequestStore()
	svc := NewWorkflowService(store, &stubInternships{missing: true}, &stubAudit{}, nil)
	ctx := context.Background()

	request := createDraft(t, svc, models.RequestTypeLeave)
	_, err := svc.Submit(ctx, request.ID, actor("intern-1", models.RoleIntern))
	require.NoError(t, err)

	_, err = svc.Approve(ctx, request.ID, "", actor("tutor-1", models.RoleTutor))
	require.True(t, appErrors.Is(err, appErrors.ErrNotAssignedReviewer))
}

func TestWorkflowVersionConflict(t *testing.T) {
	svc, store, _, _ := newWorkflowFixture(t)
	ctx := context.Background()
	request := createDraft(t, svc, models.RequestTypeConvention)
	_, err := svc.Submit(ctx, request.ID, actor("intern-1", models.RoleIntern))
	require.NoError(t, err)

	store.forceConflict = true
	_, err = svc.Approve(ctx, request.ID, "", actor("tutor-1", models.RoleTutor))
	require.True(t, appErrors.Is(err, appErrors.ErrVersionConflict))

	// The losing writer left the row untouched.
	require.Equal(t, models.RequestStatusTutorReview, store.status(t, request.ID))
}

func TestWorkflowGetNotFound(t *testing.T) {
	svc, _, _, _ := newWorkflowFixture(t)
	_, err := svc.Get(context.Background(), "missing", actor("admin-1", models.RoleAdmin))
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestWorkflowDraftEditing(t *testing.T) {
	svc, _, _, _ := newWorkflowFixture(t)
	ctx := context.Background()
	request := createDraft(t, svc, models.RequestTypeOther)

	title := "updated paperwork"
	updated, err := svc.UpdateDraft(ctx, request.ID, dto.UpdateDraftInput{Title: &title}, actor("intern-1", models.RoleIntern))
	require.NoError(t, err)
	require.Equal(t, title, updated.Title)

	// Stranger cannot edit someone else's draft.
	_, err = svc.UpdateDraft(ctx, request.ID, dto.UpdateDraftInput{Title: &title}, actor("intern-2", models.RoleIntern))
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Submit(ctx, request.ID, actor("intern-1", models.RoleIntern))
	require.NoError(t, err)

	// Submitted requests are no longer editable or deletable.
	_, err = svc.UpdateDraft(ctx, request.ID, dto.UpdateDraftInput{Title: &title}, actor("intern-1", models.RoleIntern))
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
	err = svc.DeleteDraft(ctx, request.ID, actor("intern-1", models.RoleIntern))
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestWorkflowAuditTrail(t *testing.T) {
	svc, _, _, audit := newWorkflowFixture(t)
	ctx := context.Background()
	request := createDraft(t, svc, models.RequestTypeLeave)
	_, err := svc.Submit(ctx, request.ID, actor("intern-1", models.RoleIntern))
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(audit.logs), 2)
	require.Equal(t, models.AuditActionRequestCreate, audit.logs[0].Action)
	require.Equal(t, models.AuditActionRequestTransition, audit.logs[1].Action)
}

func TestWorkflowListScoping(t *testing.T) {
	svc, _, _, _ := newWorkflowFixture(t)
	ctx := context.Background()
	request := createDraft(t, svc, models.RequestTypeLeave)
	_, err := svc.Submit(ctx, request.ID, actor("intern-1", models.RoleIntern))
	require.NoError(t, err)

	mine, total, err := svc.List(ctx, dto.RequestQuery{}, actor("intern-1", models.RoleIntern))
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, mine, 1)

	// HR only sees its stage queue; this request sits with the tutor.
	queue, total, err := svc.List(ctx, dto.RequestQuery{}, actor("hr-1", models.RoleHR))
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, queue)
}

func TestWorkflowGetStageVisibility(t *testing.T) {
	svc, _, _, _ := newWorkflowFixture(t)
	ctx := context.Background()
	request := createDraft(t, svc, models.RequestTypeConvention)

	// Drafts are visible to the owner only.
	_, err := svc.Get(ctx, request.ID, actor("hr-1", models.RoleHR))
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	_, err = svc.Get(ctx, request.ID, actor("fin-1", models.RoleFinance))
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	own, err := svc.Get(ctx, request.ID, actor("intern-1", models.RoleIntern))
	require.NoError(t, err)
	require.Equal(t, request.ID, own.ID)

	_, err = svc.Submit(ctx, request.ID, actor("intern-1", models.RoleIntern))
	require.NoError(t, err)

	// The assigned tutor sees it; later stages still do not.
	_, err = svc.Get(ctx, request.ID, actor("tutor-1", models.RoleTutor))
	require.NoError(t, err)
	_, err = svc.Get(ctx, request.ID, actor("tutor-9", models.RoleTutor))
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	_, err = svc.Get(ctx, request.ID, actor("hr-1", models.RoleHR))
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Approve(ctx, request.ID, "", actor("tutor-1", models.RoleTutor))
	require.NoError(t, err)

	// HR sees it once it reaches HR review; finance still waits.
	_, err = svc.Get(ctx, request.ID, actor("hr-1", models.RoleHR))
	require.NoError(t, err)
	_, err = svc.Get(ctx, request.ID, actor("fin-1", models.RoleFinance))
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Approve(ctx, request.ID, "", actor("hr-1", models.RoleHR))
	require.NoError(t, err)

	// Both review stages keep visibility once passed through.
	_, err = svc.Get(ctx, request.ID, actor("fin-1", models.RoleFinance))
	require.NoError(t, err)
	_, err = svc.Get(ctx, request.ID, actor("hr-1", models.RoleHR))
	require.NoError(t, err)
}

func TestWorkflowExportCoversAllPages(t *testing.T) {
	svc, _, _, _ := newWorkflowFixture(t)
	ctx := context.Background()
	for i := 0; i < 130; i++ {
		_, err := svc.Create(ctx, dto.CreateRequestInput{
			Type:  models.RequestTypeLeave,
			Title: fmt.Sprintf("paperwork %03d", i),
		}, actor("intern-1", models.RoleIntern))
		require.NoError(t, err)
	}

	data, err := svc.ExportCSV(ctx, dto.RequestQuery{}, actor("admin-1", models.RoleAdmin))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 131)
}
