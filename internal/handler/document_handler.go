package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/stagehub/internship-api/internal/models"
	"github.com/stagehub/internship-api/internal/service"
	appErrors "github.com/stagehub/internship-api/pkg/errors"
	"github.com/stagehub/internship-api/pkg/response"
)

type documentService interface {
	Issue(ctx context.Context, requestID string, actor *models.JWTClaims) (*service.DocumentLink, error)
	Download(ctx context.Context, token string) (*models.Document, *os.File, error)
}

// DocumentHandler exposes document issuance and signed downloads.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Issue godoc
// @Summary Issue the official PDF for an approved request
// @Tags Documents
// @Produce json
// @Param id path string true "Request ID"
// @Success 201 {object} response.Envelope
// @Router /requests/{id}/document [post]
func (h *DocumentHandler) Issue(c *gin.Context) {
	link, err := h.service.Issue(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, link, nil)
}

// Download godoc
// @Summary Download a document via signed token
// @Tags Documents
// @Produce application/pdf
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Router /documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	doc, file, err := h.service.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s.pdf", doc.ID)))
	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)
	http.ServeContent(c.Writer, c.Request, doc.ID+".pdf", doc.GeneratedAt, file)
}
