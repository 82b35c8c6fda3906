package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stagehub/internship-api/internal/models"
)

const requestColumns = `id, intern_id, type, title, description, priority, status,
       submitted_at, tutor_approved_by, tutor_approved_at, hr_approved_by, hr_approved_at,
       finance_approved_by, finance_approved_at, final_approved_at, rejection_reason, review_comment,
       due_date, created_at, updated_at`

// RequestRepository persists intern request workflow data.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request row.
func (r *RequestRepository) Create(ctx context.Context, request *models.Request) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.RequestStatusDraft
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	const query = `INSERT INTO requests
	(id, intern_id, type, title, description, priority, status, submitted_at, tutor_approved_by, tutor_approved_at,
	 hr_approved_by, hr_approved_at, finance_approved_by, finance_approved_at, final_approved_at,
	 rejection_reason, review_comment, due_date, created_at, updated_at)
	VALUES (:id, :intern_id, :type, :title, :description, :priority, :status, :submitted_at, :tutor_approved_by, :tutor_approved_at,
	 :hr_approved_by, :hr_approved_at, :finance_approved_by, :finance_approved_at, :final_approved_at,
	 :rejection_reason, :review_comment, :due_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM requests WHERE id = $1`, requestColumns)
	var request models.Request
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests visible under the filter scope, newest first, with the
// total count for pagination. Scope fields OR together; the remaining filter
// fields narrow the result.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error) {
	args := make([]interface{}, 0, 8)
	conditions := make([]string, 0, 4)

	if !filter.Scope.All {
		scopeParts := make([]string, 0, 3)
		if filter.Scope.OwnerID != "" {
			args = append(args, filter.Scope.OwnerID)
			scopeParts = append(scopeParts, fmt.Sprintf("intern_id = $%d", len(args)))
		}
		if filter.Scope.TutorID != "" {
			args = append(args, filter.Scope.TutorID)
			scopeParts = append(scopeParts, fmt.Sprintf(
				"intern_id IN (SELECT intern_id FROM internships WHERE tutor_id = $%d AND active = TRUE)", len(args)))
		}
		if filter.Scope.StageStatus != "" {
			args = append(args, filter.Scope.StageStatus)
			scopeParts = append(scopeParts, fmt.Sprintf("status = $%d", len(args)))
		}
		if len(scopeParts) == 0 {
			return []models.Request{}, 0, nil
		}
		conditions = append(conditions, "("+strings.Join(scopeParts, " OR ")+")")
	}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	listQuery := fmt.Sprintf("SELECT %s FROM requests%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		requestColumns, where, limit, offset)

	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM requests%s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}
	return requests, total, nil
}

// UpdateDraft persists edits to a request that is still in DRAFT. The status
// guard makes the write fail with sql.ErrNoRows if the request moved on.
func (r *RequestRepository) UpdateDraft(ctx context.Context, request *models.Request) error {
	request.UpdatedAt = time.Now().UTC()
	query := fmt.Sprintf(`UPDATE requests SET title = :title, description = :description, priority = :priority,
	 due_date = :due_date, updated_at = :updated_at WHERE id = :id AND status = '%s'`, models.RequestStatusDraft)
	result, err := r.db.NamedExecContext(ctx, query, request)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check draft update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TransitionParams groups the columns a single status transition may touch.
type TransitionParams struct {
	ID         string
	FromStatus models.RequestStatus
	ToStatus   models.RequestStatus
	SetColumns map[string]interface{}
}

// ApplyTransition moves a request from FromStatus to ToStatus in one guarded
// UPDATE. The status guard doubles as the optimistic concurrency check: a
// concurrent transition leaves zero rows affected and the caller gets
// sql.ErrNoRows to distinguish conflict from success.
func (r *RequestRepository) ApplyTransition(ctx context.Context, params TransitionParams) error {
	setParts := []string{"status = :status", "updated_at = :updated_at"}
	values := map[string]interface{}{
		"id":         params.ID,
		"status":     params.ToStatus,
		"updated_at": time.Now().UTC(),
	}
	for col, val := range params.SetColumns {
		setParts = append(setParts, fmt.Sprintf("%s = :%s", col, col))
		values[col] = val
	}
	query := fmt.Sprintf("UPDATE requests SET %s WHERE id = :id AND status = '%s'",
		strings.Join(setParts, ", "),
		params.FromStatus,
	)
	result, err := r.db.NamedExecContext(ctx, query, values)
	if err != nil {
		return fmt.Errorf("apply request transition: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a request row. Only drafts are ever deleted; the guard keeps
// a concurrently submitted request intact.
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM requests WHERE id = $1 AND status = '%s'", models.RequestStatusDraft)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check request delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus aggregates request counts per status for dashboards.
func (r *RequestRepository) CountByStatus(ctx context.Context) (map[models.RequestStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS count FROM requests GROUP BY status`
	rows := []struct {
		Status models.RequestStatus `db:"status"`
		Count  int                  `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count requests by status: %w", err)
	}
	counts := make(map[models.RequestStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
