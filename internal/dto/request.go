package dto

import "github.com/stagehub/internship-api/internal/models"

// CreateRequestInput contains the fields an intern supplies when opening a
// draft request.
type CreateRequestInput struct {
	Type        models.RequestType     `json:"type" binding:"required"`
	Title       string                 `json:"title" binding:"required,max=200"`
	Description string                 `json:"description"`
	Priority    models.RequestPriority `json:"priority"`
	DueDate     *string                `json:"dueDate"`
}

// UpdateDraftInput carries the editable fields of a draft. Nil pointers leave
// the stored value untouched.
type UpdateDraftInput struct {
	Title       *string                 `json:"title"`
	Description *string                 `json:"description"`
	Priority    *models.RequestPriority `json:"priority"`
	DueDate     *string                 `json:"dueDate"`
}

// DecisionInput carries an optional reviewer comment on approve.
type DecisionInput struct {
	Comment string `json:"comment"`
}

// RejectInput requires a non-empty rejection reason.
type RejectInput struct {
	Reason  string `json:"reason" binding:"required"`
	Comment string `json:"comment"`
}

// RequestQuery captures list query parameters for /requests.
type RequestQuery struct {
	Status   string `form:"status"`
	Type     string `form:"type"`
	Search   string `form:"search"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}
