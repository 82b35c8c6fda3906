package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/stagehub/internship-api/internal/dto"
	internalmiddleware "github.com/stagehub/internship-api/internal/middleware"
	"github.com/stagehub/internship-api/internal/models"
	"github.com/stagehub/internship-api/internal/service"
	appErrors "github.com/stagehub/internship-api/pkg/errors"
)

func TestWorkflowRoutesIntegration(t *testing.T) {
	router := buildWorkflowRouter()

	t.Run("create request success", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/requests", bytes.NewBufferString(`{"type":"CONVENTION","title":"Internship agreement"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleIntern))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusCreated, resp.Code)
		require.Contains(t, resp.Body.String(), `"status":"DRAFT"`)
	})

	t.Run("create request unauthorized", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/requests", bytes.NewBufferString(`{"type":"CONVENTION","title":"Internship agreement"}`))
		req.Header.Set("Content-Type", "application/json")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("create request invalid payload", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/requests", bytes.NewBufferString(`{"title":"missing type"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleIntern))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("approve success", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/requests/req-1/approve", nil)
		req.Header.Set("X-Test-Role", string(models.RoleTutor))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"status":"HR_REVIEW"`)
	})

	t.Run("reject requires reason", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/requests/req-1/reject", bytes.NewBufferString(`{"comment":"no reason"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleHR))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("stats forbidden for interns", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/requests/stats", nil)
		req.Header.Set("X-Test-Role", string(models.RoleIntern))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("stats success for hr", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/requests/stats", nil)
		req.Header.Set("X-Test-Role", string(models.RoleHR))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"HR_REVIEW"`)
	})

	t.Run("list success", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/requests?page=1&pageSize=10", nil)
		req.Header.Set("X-Test-Role", string(models.RoleIntern))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"pagination"`)
	})

	t.Run("document issue forbidden for tutors", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/requests/req-1/document", nil)
		req.Header.Set("X-Test-Role", string(models.RoleTutor))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("document issue success for hr", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/requests/req-1/document", nil)
		req.Header.Set("X-Test-Role", string(models.RoleHR))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusCreated, resp.Code)
		require.Contains(t, resp.Body.String(), `"token"`)
	})
}

func buildWorkflowRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if role := c.GetHeader("X-Test-Role"); role != "" {
			c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{
				UserID: "test-user",
				Role:   models.UserRole(role),
			})
		}
		c.Next()
	})

	requestHandler := NewRequestHandler(&workflowServiceIntegrationMock{})
	documentHandler := NewDocumentHandler(&documentServiceIntegrationMock{})

	secured := router.Group("")
	secured.Use(func(c *gin.Context) {
		if _, exists := c.Get(internalmiddleware.ContextUserKey); !exists {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	})
	secured.POST("/requests", requestHandler.Create)
	secured.GET("/requests", requestHandler.List)
	secured.GET("/requests/stats", internalmiddleware.RequireRoles(models.RoleHR, models.RoleAdmin), requestHandler.Stats)
	secured.POST("/requests/:id/approve", requestHandler.Approve)
	secured.POST("/requests/:id/reject", requestHandler.Reject)
	secured.POST("/requests/:id/document", internalmiddleware.RequireRoles(models.RoleHR, models.RoleAdmin), documentHandler.Issue)

	return router
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type workflowServiceIntegrationMock struct{}

func (workflowServiceIntegrationMock) Create(_ context.Context, input dto.CreateRequestInput, actor *models.JWTClaims) (*models.Request, error) {
	return &models.Request{
		ID:       "req-1",
		InternID: actor.UserID,
		Type:     input.Type,
		Title:    input.Title,
		Status:   models.RequestStatusDraft,
	}, nil
}

func (workflowServiceIntegrationMock) UpdateDraft(_ context.Context, id string, _ dto.UpdateDraftInput, _ *models.JWTClaims) (*models.Request, error) {
	return &models.Request{ID: id, Status: models.RequestStatusDraft}, nil
}

func (workflowServiceIntegrationMock) DeleteDraft(_ context.Context, _ string, _ *models.JWTClaims) error {
	return nil
}

func (workflowServiceIntegrationMock) Submit(_ context.Context, id string, _ *models.JWTClaims) (*models.Request, error) {
	return &models.Request{ID: id, Status: models.RequestStatusTutorReview}, nil
}

func (workflowServiceIntegrationMock) Approve(_ context.Context, id string, _ string, _ *models.JWTClaims) (*models.Request, error) {
	return &models.Request{ID: id, Status: models.RequestStatusHRReview}, nil
}

func (workflowServiceIntegrationMock) Reject(_ context.Context, id string, reason, _ string, _ *models.JWTClaims) (*models.Request, error) {
	if reason == "" {
		return nil, appErrors.ErrValidation
	}
	request := &models.Request{ID: id, Status: models.RequestStatusRejected}
	request.RejectionReason = &reason
	return request, nil
}

func (workflowServiceIntegrationMock) Get(_ context.Context, id string, _ *models.JWTClaims) (*models.Request, error) {
	if id == "missing" {
		return nil, appErrors.ErrNotFound
	}
	return &models.Request{ID: id, Status: models.RequestStatusTutorReview}, nil
}

func (workflowServiceIntegrationMock) List(_ context.Context, _ dto.RequestQuery, actor *models.JWTClaims) ([]models.Request, int, error) {
	return []models.Request{{ID: "req-1", InternID: actor.UserID, Status: models.RequestStatusDraft}}, 1, nil
}

func (workflowServiceIntegrationMock) Stats(_ context.Context, _ *models.JWTClaims) (map[models.RequestStatus]int, error) {
	return map[models.RequestStatus]int{
		models.RequestStatusHRReview: 2,
		models.RequestStatusApproved: 5,
	}, nil
}

func (workflowServiceIntegrationMock) ExportCSV(_ context.Context, _ dto.RequestQuery, _ *models.JWTClaims) ([]byte, error) {
	return []byte("id,status\n"), nil
}

type documentServiceIntegrationMock struct{}

func (documentServiceIntegrationMock) Issue(_ context.Context, requestID string, _ *models.JWTClaims) (*service.DocumentLink, error) {
	return &service.DocumentLink{
		Document: models.Document{
			ID:          "doc-1",
			RequestID:   requestID,
			Kind:        models.DocumentKindConvention,
			GeneratedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		},
		Token:     "signed-token",
		ExpiresAt: time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC),
	}, nil
}

func (documentServiceIntegrationMock) Download(_ context.Context, _ string) (*models.Document, *os.File, error) {
	return nil, nil, appErrors.ErrUnauthorized
}
