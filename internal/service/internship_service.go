package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stagehub/internship-api/internal/dto"
	"github.com/stagehub/internship-api/internal/models"
	appErrors "github.com/stagehub/internship-api/pkg/errors"
)

type internshipStore interface {
	Create(ctx context.Context, internship *models.Internship) error
	GetByID(ctx context.Context, id string) (*models.Internship, error)
	List(ctx context.Context, filter models.InternshipFilter) ([]models.Internship, error)
	Update(ctx context.Context, internship *models.Internship) error
}

type internshipUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// InternshipService manages intern placements and their tutor assignments.
type InternshipService struct {
	repo   internshipStore
	users  internshipUserLookup
	logger *zap.Logger
}

// NewInternshipService constructs the service.
func NewInternshipService(repo internshipStore, users internshipUserLookup, logger *zap.Logger) *InternshipService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InternshipService{repo: repo, users: users, logger: logger}
}

// Create binds an intern to a tutor after checking both accounts carry the
// expected roles.
func (s *InternshipService) Create(ctx context.Context, input dto.CreateInternshipInput) (*models.Internship, error) {
	if err := s.checkRole(ctx, input.InternID, models.RoleIntern); err != nil {
		return nil, err
	}
	if err := s.checkRole(ctx, input.TutorID, models.RoleTutor); err != nil {
		return nil, err
	}
	startDate, err := time.Parse("2006-01-02", strings.TrimSpace(input.StartDate))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startDate must use YYYY-MM-DD")
	}
	endDate, err := parseOptionalDate(input.EndDate)
	if err != nil {
		return nil, err
	}

	internship := &models.Internship{
		InternID:     input.InternID,
		TutorID:      input.TutorID,
		Organization: strings.TrimSpace(input.Organization),
		Subject:      strings.TrimSpace(input.Subject),
		StartDate:    startDate,
		EndDate:      endDate,
		Active:       true,
	}
	if err := s.repo.Create(ctx, internship); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create internship")
	}
	return internship, nil
}

// Get returns a placement by id.
func (s *InternshipService) Get(ctx context.Context, id string) (*models.Internship, error) {
	internship, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load internship")
	}
	return internship, nil
}

// List returns placements matching the filter.
func (s *InternshipService) List(ctx context.Context, filter models.InternshipFilter) ([]models.Internship, error) {
	internships, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list internships")
	}
	return internships, nil
}

// Update applies mutable placement fields.
func (s *InternshipService) Update(ctx context.Context, id string, input dto.UpdateInternshipInput) (*models.Internship, error) {
	internship, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.TutorID != nil {
		if err := s.checkRole(ctx, *input.TutorID, models.RoleTutor); err != nil {
			return nil, err
		}
		internship.TutorID = *input.TutorID
	}
	if input.Organization != nil {
		internship.Organization = strings.TrimSpace(*input.Organization)
	}
	if input.Subject != nil {
		internship.Subject = strings.TrimSpace(*input.Subject)
	}
	if input.EndDate != nil {
		endDate, err := parseOptionalDate(input.EndDate)
		if err != nil {
			return nil, err
		}
		internship.EndDate = endDate
	}
	if input.Active != nil {
		internship.Active = *input.Active
	}
	if err := s.repo.Update(ctx, internship); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update internship")
	}
	return internship, nil
}

func (s *InternshipService) checkRole(ctx context.Context, userID string, role models.UserRole) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "referenced user does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != role {
		return appErrors.Clone(appErrors.ErrValidation, "user does not hold the required role")
	}
	return nil
}
