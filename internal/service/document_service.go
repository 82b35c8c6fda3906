package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/stagehub/internship-api/internal/models"
	appErrors "github.com/stagehub/internship-api/pkg/errors"
	"github.com/stagehub/internship-api/pkg/export"
	"github.com/stagehub/internship-api/pkg/storage"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	FindByRequest(ctx context.Context, requestID string, kind models.DocumentKind) (*models.Document, error)
}

type documentRequestLoader interface {
	GetByID(ctx context.Context, id string) (*models.Request, error)
}

type documentUserLoader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// DocumentLink pairs document metadata with a time-limited download token.
type DocumentLink struct {
	Document  models.Document `json:"document"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// DocumentService issues official PDFs for approved requests and serves them
// through signed, expiring download tokens.
type DocumentService struct {
	docs        documentStore
	requests    documentRequestLoader
	users       documentUserLoader
	internships internshipResolver
	audit       auditLogger
	pdf         *export.PDFExporter
	files       *storage.LocalStorage
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
}

// NewDocumentService constructs the service.
func NewDocumentService(docs documentStore, requests documentRequestLoader, users documentUserLoader, internships internshipResolver, audit auditLogger, files *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		docs:        docs,
		requests:    requests,
		users:       users,
		internships: internships,
		audit:       audit,
		pdf:         export.NewPDFExporter(),
		files:       files,
		signer:      signer,
		logger:      logger,
	}
}

// Issue generates the official PDF for an approved request. Only CONVENTION
// and ATTESTATION requests produce documents, and only HR or admins issue
// them. Re-issuing returns a fresh link to the already generated file.
func (s *DocumentService) Issue(ctx context.Context, requestID string, actor *models.JWTClaims) (*DocumentLink, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleHR && actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if request.Status != models.RequestStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "documents are only issued for approved requests")
	}
	kind, ok := documentKindFor(request.Type)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "this request type has no document")
	}

	if existing, err := s.docs.FindByRequest(ctx, requestID, kind); err == nil {
		return s.link(existing)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up document")
	}

	data, err := s.render(ctx, request, kind)
	if err != nil {
		return nil, err
	}

	relPath := fmt.Sprintf("%s/%s.pdf", request.InternID, requestID)
	if _, err := s.files.Save(relPath, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}

	doc := &models.Document{
		RequestID:   requestID,
		Kind:        kind,
		FilePath:    relPath,
		FileSize:    int64(len(data)),
		GeneratedBy: actor.UserID,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document")
	}
	s.emitAudit(ctx, actor, doc)
	return s.link(doc)
}

// Download validates a signed token and opens the referenced file.
func (s *DocumentService) Download(ctx context.Context, token string) (*models.Document, *os.File, error) {
	documentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "token does not match document")
	}
	file, err := s.files.Open(doc.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document")
	}
	return doc, file, nil
}

func (s *DocumentService) render(ctx context.Context, request *models.Request, kind models.DocumentKind) ([]byte, error) {
	intern, err := s.users.FindByID(ctx, request.InternID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load intern")
	}

	fields := []export.LetterField{
		{Label: "Intern", Value: intern.FullName},
		{Label: "Email", Value: intern.Email},
		{Label: "Request", Value: request.Title},
	}
	if internship, err := s.internships.FindActiveByIntern(ctx, request.InternID); err == nil {
		fields = append(fields,
			export.LetterField{Label: "Organization", Value: internship.Organization},
			export.LetterField{Label: "Tutor", Value: internship.TutorID},
			export.LetterField{Label: "Start date", Value: internship.StartDate.Format("2006-01-02")},
		)
	}
	if request.FinalApprovedAt != nil {
		fields = append(fields, export.LetterField{Label: "Approved on", Value: request.FinalApprovedAt.Format("2006-01-02")})
	}

	var title string
	var paragraphs []string
	switch kind {
	case models.DocumentKindConvention:
		title = "Internship Convention"
		paragraphs = []string{
			fmt.Sprintf("This convention certifies that %s is engaged as an intern under the terms approved through the internal review chain.", intern.FullName),
			"All parties named above agree to the conditions described in the internship programme.",
		}
	case models.DocumentKindAttestation:
		title = "Internship Attestation"
		paragraphs = []string{
			fmt.Sprintf("This attestation certifies the internship of %s as validated by the tutor, human resources and finance departments.", intern.FullName),
		}
	}

	data, err := s.pdf.RenderLetter(title, fields, paragraphs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render document")
	}
	return data, nil
}

func (s *DocumentService) link(doc *models.Document) (*DocumentLink, error) {
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &DocumentLink{Document: *doc, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *DocumentService) emitAudit(ctx context.Context, actor *models.JWTClaims, doc *models.Document) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionDocumentIssue,
		Resource:   "document",
		ResourceID: &doc.ID,
		IPAddress:  "system",
		UserAgent:  "document-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func documentKindFor(t models.RequestType) (models.DocumentKind, bool) {
	switch t {
	case models.RequestTypeConvention:
		return models.DocumentKindConvention, true
	case models.RequestTypeAttestation:
		return models.DocumentKindAttestation, true
	}
	return "", false
}
