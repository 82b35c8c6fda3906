package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stagehub/internship-api/internal/models"
)

// DocumentRepository persists metadata for generated PDFs.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a document metadata row.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.GeneratedAt.IsZero() {
		doc.GeneratedAt = time.Now().UTC()
	}
	const query = `INSERT INTO documents (id, request_id, kind, file_path, file_size, generated_by, generated_at)
	VALUES (:id, :request_id, :kind, :file_path, :file_size, :generated_by, :generated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID fetches a document by identifier.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	const query = `SELECT id, request_id, kind, file_path, file_size, generated_by, generated_at FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByRequest returns the latest document of a kind for a request, if any.
func (r *DocumentRepository) FindByRequest(ctx context.Context, requestID string, kind models.DocumentKind) (*models.Document, error) {
	const query = `SELECT id, request_id, kind, file_path, file_size, generated_by, generated_at
	FROM documents WHERE request_id = $1 AND kind = $2 ORDER BY generated_at DESC LIMIT 1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, requestID, kind); err != nil {
		return nil, err
	}
	return &doc, nil
}
