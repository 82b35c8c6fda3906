package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stagehub/internship-api/internal/dto"
	"github.com/stagehub/internship-api/internal/models"
	appErrors "github.com/stagehub/internship-api/pkg/errors"
	"github.com/stagehub/internship-api/pkg/response"
)

type internshipService interface {
	Create(ctx context.Context, input dto.CreateInternshipInput) (*models.Internship, error)
	Get(ctx context.Context, id string) (*models.Internship, error)
	List(ctx context.Context, filter models.InternshipFilter) ([]models.Internship, error)
	Update(ctx context.Context, id string, input dto.UpdateInternshipInput) (*models.Internship, error)
}

// InternshipHandler exposes placement management endpoints.
type InternshipHandler struct {
	service internshipService
}

// NewInternshipHandler constructs the handler.
func NewInternshipHandler(service internshipService) *InternshipHandler {
	return &InternshipHandler{service: service}
}

// Create godoc
// @Summary Create an intern placement
// @Tags Internships
// @Accept json
// @Produce json
// @Param payload body dto.CreateInternshipInput true "Internship payload"
// @Success 201 {object} response.Envelope
// @Router /internships [post]
func (h *InternshipHandler) Create(c *gin.Context) {
	var input dto.CreateInternshipInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid internship payload"))
		return
	}
	internship, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, internship, nil)
}

// List godoc
// @Summary List intern placements
// @Tags Internships
// @Produce json
// @Param internId query string false "Intern filter"
// @Param tutorId query string false "Tutor filter"
// @Success 200 {object} response.Envelope
// @Router /internships [get]
func (h *InternshipHandler) List(c *gin.Context) {
	pageSize := queryInt(c, "pageSize", 50)
	filter := models.InternshipFilter{
		InternID: c.Query("internId"),
		TutorID:  c.Query("tutorId"),
		Limit:    pageSize,
		Offset:   (queryInt(c, "page", 1) - 1) * pageSize,
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}
	internships, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, internships, nil)
}

// Get godoc
// @Summary Get an intern placement
// @Tags Internships
// @Produce json
// @Param id path string true "Internship ID"
// @Success 200 {object} response.Envelope
// @Router /internships/{id} [get]
func (h *InternshipHandler) Get(c *gin.Context) {
	internship, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, internship, nil)
}

// Update godoc
// @Summary Update an intern placement
// @Tags Internships
// @Accept json
// @Produce json
// @Param id path string true "Internship ID"
// @Param payload body dto.UpdateInternshipInput true "Placement changes"
// @Success 200 {object} response.Envelope
// @Router /internships/{id} [patch]
func (h *InternshipHandler) Update(c *gin.Context) {
	var input dto.UpdateInternshipInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid internship payload"))
		return
	}
	internship, err := h.service.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, internship, nil)
}
