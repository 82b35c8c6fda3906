package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stagehub/internship-api/internal/models"
	"github.com/stagehub/internship-api/pkg/response"
)

type notificationService interface {
	List(ctx context.Context, filter models.NotificationFilter, actor *models.JWTClaims) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id string, actor *models.JWTClaims) error
	MarkAllRead(ctx context.Context, actor *models.JWTClaims) error
}

// NotificationHandler exposes the caller's notification feed.
type NotificationHandler struct {
	service notificationService
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(service notificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List godoc
// @Summary List the caller's notifications
// @Tags Notifications
// @Produce json
// @Param unread query bool false "Unread only"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	filter := models.NotificationFilter{
		UnreadOnly: c.Query("unread") == "true",
		Limit:      queryInt(c, "pageSize", 50),
		Offset:     (queryInt(c, "page", 1) - 1) * queryInt(c, "pageSize", 50),
	}
	items, unread, err := h.service.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil, map[string]interface{}{"unreadCount": unread})
}

// MarkRead godoc
// @Summary Mark a notification as read
// @Tags Notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkAllRead godoc
// @Summary Mark every notification as read
// @Tags Notifications
// @Success 204
// @Router /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.service.MarkAllRead(c.Request.Context(), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
