package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stagehub/internship-api/internal/dto"
	"github.com/stagehub/internship-api/internal/models"
	"github.com/stagehub/internship-api/internal/repository"
	appErrors "github.com/stagehub/internship-api/pkg/errors"
	"github.com/stagehub/internship-api/pkg/export"
)

type requestStore interface {
	Create(ctx context.Context, request *models.Request) error
	GetByID(ctx context.Context, id string) (*models.Request, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error)
	UpdateDraft(ctx context.Context, request *models.Request) error
	ApplyTransition(ctx context.Context, params repository.TransitionParams) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[models.RequestStatus]int, error)
}

type internshipResolver interface {
	FindActiveByIntern(ctx context.Context, internID string) (*models.Internship, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// TransitionDispatcher receives every committed status change. Implementations
// must not block; the workflow service calls Dispatch inline after the write.
type TransitionDispatcher interface {
	Dispatch(event models.TransitionEvent)
}

// TransitionDispatcherFunc allows using plain functions.
type TransitionDispatcherFunc func(event models.TransitionEvent)

// Dispatch implements TransitionDispatcher.
func (f TransitionDispatcherFunc) Dispatch(event models.TransitionEvent) { f(event) }

// transitionRecorder hooks metrics into committed transitions.
type transitionRecorder interface {
	RecordTransition(from, to models.RequestStatus)
}

type requestListCache interface {
	GetList(ctx context.Context, key string) ([]models.Request, int, bool)
	SetList(ctx context.Context, key string, items []models.Request, total int)
	Invalidate(ctx context.Context)
}

// financeRequiredTypes lists the request types with financial impact. Only
// these pass through FINANCE_REVIEW; everything else finalizes at HR approval.
var financeRequiredTypes = map[models.RequestType]bool{
	models.RequestTypeConvention:  true,
	models.RequestTypeAttestation: true,
}

// transitionRule describes one edge of the request lifecycle. Roles lists the
// only roles allowed to fire the event from this status; there is no bypass.
type transitionRule struct {
	roles []models.UserRole
	next  func(request *models.Request) models.RequestStatus
}

type transitionKey struct {
	from  models.RequestStatus
	event models.RequestEvent
}

// transitionTable is the whole state machine. An absent key means the event is
// not allowed from that status.
var transitionTable = map[transitionKey]transitionRule{
	{models.RequestStatusDraft, models.RequestEventSubmit}: {
		roles: []models.UserRole{models.RoleIntern},
		next: func(*models.Request) models.RequestStatus {
			return models.RequestStatusTutorReview
		},
	},
	{models.RequestStatusTutorReview, models.RequestEventApprove}: {
		roles: []models.UserRole{models.RoleTutor},
		next: func(*models.Request) models.RequestStatus {
			return models.RequestStatusHRReview
		},
	},
	{models.RequestStatusTutorReview, models.RequestEventReject}: {
		roles: []models.UserRole{models.RoleTutor},
		next: func(*models.Request) models.RequestStatus {
			return models.RequestStatusRejected
		},
	},
	{models.RequestStatusHRReview, models.RequestEventApprove}: {
		roles: []models.UserRole{models.RoleHR},
		next: func(request *models.Request) models.RequestStatus {
			if financeRequiredTypes[request.Type] {
				return models.RequestStatusFinanceReview
			}
			return models.RequestStatusApproved
		},
	},
	{models.RequestStatusHRReview, models.RequestEventReject}: {
		roles: []models.UserRole{models.RoleHR},
		next: func(*models.Request) models.RequestStatus {
			return models.RequestStatusRejected
		},
	},
	{models.RequestStatusFinanceReview, models.RequestEventApprove}: {
		roles: []models.UserRole{models.RoleFinance},
		next: func(*models.Request) models.RequestStatus {
			return models.RequestStatusApproved
		},
	},
	{models.RequestStatusFinanceReview, models.RequestEventReject}: {
		roles: []models.UserRole{models.RoleFinance},
		next: func(*models.Request) models.RequestStatus {
			return models.RequestStatusRejected
		},
	},
}

// WorkflowService owns the request lifecycle: draft editing, the approval
// chain and the rejection escape. Every status change goes through a single
// guarded UPDATE so concurrent reviewers cannot double-apply a stage.
type WorkflowService struct {
	repo        requestStore
	internships internshipResolver
	audit       auditLogger
	dispatcher  TransitionDispatcher
	metrics     transitionRecorder
	cache       requestListCache
	logger      *zap.Logger
	now         func() time.Time
}

// WorkflowServiceOption configures the service.
type WorkflowServiceOption func(*WorkflowService)

// WithTransitionDispatcher sets the post-commit event consumer.
func WithTransitionDispatcher(d TransitionDispatcher) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if d != nil {
			s.dispatcher = d
		}
	}
}

// WithTransitionRecorder hooks a metrics recorder into commits.
func WithTransitionRecorder(r transitionRecorder) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithRequestListCache enables the listing cache.
func WithRequestListCache(c requestListCache) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithWorkflowClock overrides the time source, used in tests.
func WithWorkflowClock(now func() time.Time) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewWorkflowService constructs the service with defaults.
func NewWorkflowService(repo requestStore, internships internshipResolver, audit auditLogger, logger *zap.Logger, opts ...WorkflowServiceOption) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &WorkflowService{
		repo:        repo,
		internships: internships,
		audit:       audit,
		dispatcher:  TransitionDispatcherFunc(func(models.TransitionEvent) {}),
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create opens a new draft owned by the acting intern.
func (s *WorkflowService) Create(ctx context.Context, input dto.CreateRequestInput, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleIntern {
		return nil, appErrors.ErrForbidden
	}
	if err := validateRequestType(input.Type); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	priority := input.Priority
	if priority == "" {
		priority = models.RequestPriorityMedium
	}
	if err := validatePriority(priority); err != nil {
		return nil, err
	}
	dueDate, err := parseOptionalDate(input.DueDate)
	if err != nil {
		return nil, err
	}

	request := &models.Request{
		InternID:    actor.UserID,
		Type:        input.Type,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Priority:    priority,
		Status:      models.RequestStatusDraft,
		DueDate:     dueDate,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionRequestCreate,
		Resource:   "request",
		ResourceID: &request.ID,
	})
	s.invalidateCache(ctx)
	return request, nil
}

// UpdateDraft edits a draft in place. Only the owner may edit and only while
// the request has not been submitted.
func (s *WorkflowService) UpdateDraft(ctx context.Context, id string, input dto.UpdateDraftInput, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.InternID != actor.UserID && actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if request.Status != models.RequestStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only drafts can be edited")
	}

	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "title cannot be empty")
		}
		request.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		request.Description = strings.TrimSpace(*input.Description)
	}
	if input.Priority != nil {
		if err := validatePriority(*input.Priority); err != nil {
			return nil, err
		}
		request.Priority = *input.Priority
	}
	if input.DueDate != nil {
		dueDate, err := parseOptionalDate(input.DueDate)
		if err != nil {
			return nil, err
		}
		request.DueDate = dueDate
	}

	if err := s.repo.UpdateDraft(ctx, request); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.resolveWriteConflict(ctx, id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update draft")
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionRequestUpdate,
		Resource:   "request",
		ResourceID: &request.ID,
	})
	s.invalidateCache(ctx)
	return request, nil
}

// DeleteDraft removes an unsubmitted draft.
func (s *WorkflowService) DeleteDraft(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if request.InternID != actor.UserID && actor.Role != models.RoleAdmin {
		return appErrors.ErrForbidden
	}
	if request.Status != models.RequestStatusDraft {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "only drafts can be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.resolveWriteConflict(ctx, id)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete draft")
	}
	s.invalidateCache(ctx)
	return nil
}

// Submit moves a draft into the tutor review stage.
func (s *WorkflowService) Submit(ctx context.Context, id string, actor *models.JWTClaims) (*models.Request, error) {
	return s.applyEvent(ctx, id, models.RequestEventSubmit, "", "", actor)
}

// Approve advances a request one stage. The resulting status depends on the
// current stage and whether the request type carries financial impact.
func (s *WorkflowService) Approve(ctx context.Context, id string, comment string, actor *models.JWTClaims) (*models.Request, error) {
	return s.applyEvent(ctx, id, models.RequestEventApprove, "", comment, actor)
}

// Reject finalizes a request as REJECTED from any review stage. A non-empty
// reason is mandatory.
func (s *WorkflowService) Reject(ctx context.Context, id string, reason, comment string, actor *models.JWTClaims) (*models.Request, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	return s.applyEvent(ctx, id, models.RequestEventReject, strings.TrimSpace(reason), comment, actor)
}

// applyEvent is the single path every transition takes: load, resolve the
// rule, authorize the actor, fire the guarded update, then emit side effects.
func (s *WorkflowService) applyEvent(ctx context.Context, id string, event models.RequestEvent, reason, comment string, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return nil, appErrors.ErrTerminalState
	}

	rule, ok := transitionTable[transitionKey{request.Status, event}]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot %s a request in status %s", event, request.Status))
	}
	if err := s.authorize(ctx, request, rule, event, actor); err != nil {
		return nil, err
	}

	from := request.Status
	to := rule.next(request)
	now := s.now()

	params := repository.TransitionParams{
		ID:         request.ID,
		FromStatus: from,
		ToStatus:   to,
		SetColumns: s.stampColumns(request, from, to, event, reason, comment, actor, now),
	}
	if err := s.repo.ApplyTransition(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.resolveWriteConflict(ctx, id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transition")
	}

	s.applyStamps(request, from, to, event, reason, comment, actor, now)
	request.Status = to
	request.UpdatedAt = now

	s.afterCommit(ctx, request, from, to, reason, actor, now)
	return request, nil
}

// authorize checks both the role gate and, for owner and tutor stages, the
// identity binding. Stage actors must carry the stage's role; ADMIN has
// visibility everywhere but no review power, so attribution stays truthful.
func (s *WorkflowService) authorize(ctx context.Context, request *models.Request, rule transitionRule, event models.RequestEvent, actor *models.JWTClaims) error {
	allowed := false
	for _, role := range rule.roles {
		if actor.Role == role {
			allowed = true
			break
		}
	}
	if !allowed {
		return appErrors.ErrForbidden
	}

	switch {
	case event == models.RequestEventSubmit:
		if request.InternID != actor.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the owner can submit a request")
		}
	case request.Status == models.RequestStatusTutorReview:
		internship, err := s.internships.FindActiveByIntern(ctx, request.InternID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrNotAssignedReviewer
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve tutor assignment")
		}
		if internship.TutorID != actor.UserID {
			return appErrors.ErrNotAssignedReviewer
		}
	}
	return nil
}

// stampColumns returns the column writes a transition carries alongside the
// status change.
func (s *WorkflowService) stampColumns(request *models.Request, from, to models.RequestStatus, event models.RequestEvent, reason, comment string, actor *models.JWTClaims, now time.Time) map[string]interface{} {
	columns := map[string]interface{}{}
	if event == models.RequestEventReject {
		columns["rejection_reason"] = reason
	}
	if strings.TrimSpace(comment) != "" {
		columns["review_comment"] = strings.TrimSpace(comment)
	}
	switch from {
	case models.RequestStatusDraft:
		columns["submitted_at"] = now
	case models.RequestStatusTutorReview:
		if event == models.RequestEventApprove {
			columns["tutor_approved_by"] = actor.UserID
			columns["tutor_approved_at"] = now
		}
	case models.RequestStatusHRReview:
		if event == models.RequestEventApprove {
			columns["hr_approved_by"] = actor.UserID
			columns["hr_approved_at"] = now
		}
	case models.RequestStatusFinanceReview:
		if event == models.RequestEventApprove {
			columns["finance_approved_by"] = actor.UserID
			columns["finance_approved_at"] = now
		}
	}
	if to == models.RequestStatusApproved {
		columns["final_approved_at"] = now
	}
	return columns
}

// applyStamps mirrors stampColumns onto the in-memory struct after the write
// so handlers can return the fresh entity without a re-read.
func (s *WorkflowService) applyStamps(request *models.Request, from, to models.RequestStatus, event models.RequestEvent, reason, comment string, actor *models.JWTClaims, now time.Time) {
	if event == models.RequestEventReject {
		r := reason
		request.RejectionReason = &r
	}
	if strings.TrimSpace(comment) != "" {
		c := strings.TrimSpace(comment)
		request.ReviewComment = &c
	}
	ts := now
	switch from {
	case models.RequestStatusDraft:
		request.SubmittedAt = &ts
	case models.RequestStatusTutorReview:
		if event == models.RequestEventApprove {
			request.TutorApprovedBy = &actor.UserID
			request.TutorApprovedAt = &ts
		}
	case models.RequestStatusHRReview:
		if event == models.RequestEventApprove {
			request.HRApprovedBy = &actor.UserID
			request.HRApprovedAt = &ts
		}
	case models.RequestStatusFinanceReview:
		if event == models.RequestEventApprove {
			request.FinanceApprovedBy = &actor.UserID
			request.FinanceApprovedAt = &ts
		}
	}
	if to == models.RequestStatusApproved {
		request.FinalApprovedAt = &ts
	}
}

func (s *WorkflowService) afterCommit(ctx context.Context, request *models.Request, from, to models.RequestStatus, reason string, actor *models.JWTClaims, now time.Time) {
	s.dispatcher.Dispatch(models.TransitionEvent{
		RequestID:   request.ID,
		RequestType: request.Type,
		InternID:    request.InternID,
		FromStatus:  from,
		ToStatus:    to,
		ActorID:     actor.UserID,
		ActorRole:   actor.Role,
		Reason:      reason,
		OccurredAt:  now,
	})
	if s.metrics != nil {
		s.metrics.RecordTransition(from, to)
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionRequestTransition,
		Resource:   "request",
		ResourceID: &request.ID,
		NewValues:  []byte(fmt.Sprintf(`{"from":%q,"to":%q}`, from, to)),
	})
	s.invalidateCache(ctx)
	s.logger.Info("request transition",
		zap.String("request_id", request.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor_id", actor.UserID),
		zap.String("actor_role", string(actor.Role)),
	)
}

// Get returns a single request enforcing visibility rules.
func (s *WorkflowService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, request, actor); err != nil {
		return nil, err
	}
	return request, nil
}

// canView mirrors the listing scope: owners and assigned tutors see their
// requests, HR and finance only those that reached their stage, admins all.
func (s *WorkflowService) canView(ctx context.Context, request *models.Request, actor *models.JWTClaims) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleHR:
		if request.Status == models.RequestStatusHRReview || request.TutorApprovedBy != nil {
			return nil
		}
	case models.RoleFinance:
		if request.Status == models.RequestStatusFinanceReview ||
			(financeRequiredTypes[request.Type] && request.HRApprovedBy != nil) {
			return nil
		}
	case models.RoleIntern:
		if request.InternID == actor.UserID {
			return nil
		}
	case models.RoleTutor:
		internship, err := s.internships.FindActiveByIntern(ctx, request.InternID)
		if err == nil && internship.TutorID == actor.UserID {
			return nil
		}
	}
	return appErrors.ErrForbidden
}

// List returns the requests visible to the actor. Interns see their own,
// tutors their interns', HR and finance their current stage queues, and
// admins everything.
func (s *WorkflowService) List(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]models.Request, int, error) {
	if actor == nil {
		return nil, 0, appErrors.ErrUnauthorized
	}
	filter, err := s.buildFilter(query, actor)
	if err != nil {
		return nil, 0, err
	}

	cacheKey := listCacheKey(actor, query)
	if s.cache != nil {
		if items, total, ok := s.cache.GetList(ctx, cacheKey); ok {
			return items, total, nil
		}
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	if s.cache != nil {
		s.cache.SetList(ctx, cacheKey, items, total)
	}
	return items, total, nil
}

func (s *WorkflowService) buildFilter(query dto.RequestQuery, actor *models.JWTClaims) (models.RequestFilter, error) {
	filter := models.RequestFilter{
		Type:   models.RequestType(strings.ToUpper(strings.TrimSpace(query.Type))),
		Search: strings.TrimSpace(query.Search),
	}
	if filter.Type != "" {
		if err := validateRequestType(filter.Type); err != nil {
			return models.RequestFilter{}, err
		}
	}
	if query.Status != "" {
		for _, raw := range strings.Split(query.Status, ",") {
			status := models.RequestStatus(strings.ToUpper(strings.TrimSpace(raw)))
			if !validStatus(status) {
				return models.RequestFilter{}, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	pageSize := query.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	switch actor.Role {
	case models.RoleAdmin:
		filter.Scope.All = true
	case models.RoleIntern:
		filter.Scope.OwnerID = actor.UserID
	case models.RoleTutor:
		filter.Scope.TutorID = actor.UserID
	case models.RoleHR:
		filter.Scope.StageStatus = models.RequestStatusHRReview
	case models.RoleFinance:
		filter.Scope.StageStatus = models.RequestStatusFinanceReview
	default:
		return models.RequestFilter{}, appErrors.ErrForbidden
	}
	return filter, nil
}

// Stats aggregates request counts per status.
func (s *WorkflowService) Stats(ctx context.Context, actor *models.JWTClaims) (map[models.RequestStatus]int, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleHR {
		return nil, appErrors.ErrForbidden
	}
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate requests")
	}
	return counts, nil
}

// ExportCSV renders every request visible to the actor as a CSV file, paging
// through the full scope so the report is never truncated.
func (s *WorkflowService) ExportCSV(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]byte, error) {
	query.PageSize = 100
	var items []models.Request
	for page := 1; ; page++ {
		query.Page = page
		batch, total, err := s.List(ctx, query, actor)
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)
		if len(batch) == 0 || len(items) >= total {
			break
		}
	}

	dataset := export.Dataset{
		Headers: []string{"ID", "Intern", "Type", "Title", "Priority", "Status", "Submitted", "Finalized"},
	}
	for _, item := range items {
		row := map[string]string{
			"ID":       item.ID,
			"Intern":   item.InternID,
			"Type":     string(item.Type),
			"Title":    item.Title,
			"Priority": string(item.Priority),
			"Status":   string(item.Status),
		}
		if item.SubmittedAt != nil {
			row["Submitted"] = item.SubmittedAt.Format(time.RFC3339)
		}
		if item.FinalApprovedAt != nil {
			row["Finalized"] = item.FinalApprovedAt.Format(time.RFC3339)
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	exporter := export.NewCSVExporter()
	data, err := exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return data, nil
}

// load fetches and maps storage errors to domain errors.
func (s *WorkflowService) load(ctx context.Context, id string) (*models.Request, error) {
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

// resolveWriteConflict distinguishes a vanished row from a lost race after a
// guarded write affected zero rows.
func (s *WorkflowService) resolveWriteConflict(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return appErrors.ErrVersionConflict
}

func (s *WorkflowService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "workflow-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func (s *WorkflowService) invalidateCache(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func listCacheKey(actor *models.JWTClaims, query dto.RequestQuery) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%d|%d",
		actor.UserID, actor.Role, query.Status, query.Type, query.Search, query.Page, query.PageSize)
}

func validateRequestType(t models.RequestType) error {
	switch t {
	case models.RequestTypeConvention, models.RequestTypeExtension, models.RequestTypeLeave,
		models.RequestTypeAttestation, models.RequestTypeEvaluation, models.RequestTypeOther:
		return nil
	}
	return appErrors.Clone(appErrors.ErrValidation, "unsupported request type")
}

func validatePriority(p models.RequestPriority) error {
	switch p {
	case models.RequestPriorityLow, models.RequestPriorityMedium, models.RequestPriorityHigh, models.RequestPriorityUrgent:
		return nil
	}
	return appErrors.Clone(appErrors.ErrValidation, "unsupported priority")
}

func validStatus(s models.RequestStatus) bool {
	switch s {
	case models.RequestStatusDraft, models.RequestStatusSubmitted, models.RequestStatusTutorReview,
		models.RequestStatusHRReview, models.RequestStatusFinanceReview,
		models.RequestStatusApproved, models.RequestStatusRejected:
		return true
	}
	return false
}

func parseOptionalDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(*raw))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dates must use YYYY-MM-DD")
	}
	return &parsed, nil
}
