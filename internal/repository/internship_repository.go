package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stagehub/internship-api/internal/models"
)

const internshipColumns = `id, intern_id, tutor_id, organization, subject, start_date, end_date, active, created_at, updated_at`

// InternshipRepository persists intern placement records.
type InternshipRepository struct {
	db *sqlx.DB
}

// NewInternshipRepository constructs the repository.
func NewInternshipRepository(db *sqlx.DB) *InternshipRepository {
	return &InternshipRepository{db: db}
}

// Create inserts a new internship row.
func (r *InternshipRepository) Create(ctx context.Context, internship *models.Internship) error {
	if internship.ID == "" {
		internship.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if internship.CreatedAt.IsZero() {
		internship.CreatedAt = now
	}
	internship.UpdatedAt = now
	const query = `INSERT INTO internships (id, intern_id, tutor_id, organization, subject, start_date, end_date, active, created_at, updated_at)
	VALUES (:id, :intern_id, :tutor_id, :organization, :subject, :start_date, :end_date, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, internship); err != nil {
		return fmt.Errorf("create internship: %w", err)
	}
	return nil
}

// GetByID fetches an internship by identifier.
func (r *InternshipRepository) GetByID(ctx context.Context, id string) (*models.Internship, error) {
	query := fmt.Sprintf(`SELECT %s FROM internships WHERE id = $1`, internshipColumns)
	var internship models.Internship
	if err := r.db.GetContext(ctx, &internship, query, id); err != nil {
		return nil, err
	}
	return &internship, nil
}

// FindActiveByIntern returns the active placement for an intern. The workflow
// engine calls this to resolve which tutor may review the intern's requests.
func (r *InternshipRepository) FindActiveByIntern(ctx context.Context, internID string) (*models.Internship, error) {
	query := fmt.Sprintf(`SELECT %s FROM internships WHERE intern_id = $1 AND active = TRUE ORDER BY start_date DESC LIMIT 1`, internshipColumns)
	var internship models.Internship
	if err := r.db.GetContext(ctx, &internship, query, internID); err != nil {
		return nil, err
	}
	return &internship, nil
}

// List returns internships matching the filter, newest first.
func (r *InternshipRepository) List(ctx context.Context, filter models.InternshipFilter) ([]models.Internship, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("SELECT %s FROM internships", internshipColumns))
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)

	if filter.InternID != "" {
		args = append(args, filter.InternID)
		conditions = append(conditions, fmt.Sprintf("intern_id = $%d", len(args)))
	}
	if filter.TutorID != "" {
		args = append(args, filter.TutorID)
		conditions = append(conditions, fmt.Sprintf("tutor_id = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY start_date DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var internships []models.Internship
	if err := r.db.SelectContext(ctx, &internships, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list internships: %w", err)
	}
	return internships, nil
}

// Update updates mutable placement fields.
func (r *InternshipRepository) Update(ctx context.Context, internship *models.Internship) error {
	internship.UpdatedAt = time.Now().UTC()
	const query = `UPDATE internships SET tutor_id = :tutor_id, organization = :organization, subject = :subject,
	 end_date = :end_date, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, internship); err != nil {
		return fmt.Errorf("update internship: %w", err)
	}
	return nil
}
