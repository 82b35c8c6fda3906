package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/stagehub/internship-api/internal/models"
)

func newRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var requestTestColumns = []string{
	"id", "intern_id", "type", "title", "description", "priority", "status",
	"submitted_at", "tutor_approved_by", "tutor_approved_at", "hr_approved_by", "hr_approved_at",
	"finance_approved_by", "finance_approved_at", "final_approved_at", "rejection_reason", "review_comment",
	"due_date", "created_at", "updated_at",
}

func TestRequestRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	request := &models.Request{
		InternID:    "intern-1",
		Type:        models.RequestTypeConvention,
		Title:       "Internship agreement",
		Description: "Convention for spring placement",
		Priority:    models.RequestPriorityMedium,
	}
	require.NoError(t, repo.Create(context.Background(), request))
	require.NotEmpty(t, request.ID)
	require.Equal(t, models.RequestStatusDraft, request.Status)

	rows := sqlmock.NewRows(requestTestColumns).
		AddRow(request.ID, "intern-1", "CONVENTION", "Internship agreement", "Convention for spring placement", "MEDIUM", "DRAFT",
			nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, intern_id, type, title")).
		WithArgs(request.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	require.Equal(t, request.ID, found.ID)
	require.Equal(t, models.RequestStatusDraft, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListScopes(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)

	rows := sqlmock.NewRows(requestTestColumns).
		AddRow("req-1", "intern-1", "LEAVE", "Two days off", "", "LOW", "TUTOR_REVIEW",
			time.Now(), nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, intern_id, type, title")).
		WithArgs("tutor-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM requests")).
		WithArgs("tutor-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.RequestFilter{
		Scope: models.RequestScope{TutorID: "tutor-1"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.Equal(t, "req-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListEmptyScope(t *testing.T) {
	db, _, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	list, total, err := repo.List(context.Background(), models.RequestFilter{})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, list)
}

func TestRequestRepositoryApplyTransition(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.ApplyTransition(context.Background(), TransitionParams{
		ID:         "req-1",
		FromStatus: models.RequestStatusTutorReview,
		ToStatus:   models.RequestStatusHRReview,
		SetColumns: map[string]interface{}{
			"tutor_approved_by": "tutor-1",
			"tutor_approved_at": now,
		},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	// Zero rows means the guard lost the race.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.ApplyTransition(context.Background(), TransitionParams{
		ID:         "req-1",
		FromStatus: models.RequestStatusTutorReview,
		ToStatus:   models.RequestStatusHRReview,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRequestRepositoryUpdateDraftGuard(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET title")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateDraft(context.Background(), &models.Request{ID: "req-1", Title: "Edited"})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
