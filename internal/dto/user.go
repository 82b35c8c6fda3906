package dto

import "github.com/stagehub/internship-api/internal/models"

// CreateUserInput is the admin payload for provisioning an account.
type CreateUserInput struct {
	Email    string          `json:"email" binding:"required,email"`
	FullName string          `json:"fullName" binding:"required"`
	Role     models.UserRole `json:"role" binding:"required"`
	Password string          `json:"password" binding:"required,min=6"`
}

// UpdateUserInput carries mutable user fields. Nil means unchanged.
type UpdateUserInput struct {
	FullName *string          `json:"fullName"`
	Role     *models.UserRole `json:"role"`
	Active   *bool            `json:"active"`
}

// UserQuery captures list query parameters for /users.
type UserQuery struct {
	Role     string `form:"role"`
	Search   string `form:"search"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}
