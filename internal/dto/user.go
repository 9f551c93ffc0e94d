package dto

import "github.com/noah-isme/ctp-enrollment-api/internal/models"

// CreateUserRequest is used by administrators to register accounts.
type CreateUserRequest struct {
	Name     string          `json:"name" validate:"required,max=100,nowhitespace"`
	Email    string          `json:"email" validate:"required,email,max=150"`
	Password string          `json:"password" validate:"required,min=8"`
	Role     models.UserRole `json:"role" validate:"required,oneof=admin standard"`
}

// UpdateUserRequest is used by administrators to modify accounts. An empty
// password leaves the current one untouched.
type UpdateUserRequest struct {
	Name     string          `json:"name" validate:"required,max=100,nowhitespace"`
	Email    string          `json:"email" validate:"required,email,max=150"`
	Password string          `json:"password" validate:"omitempty,min=8"`
	Role     models.UserRole `json:"role" validate:"required,oneof=admin standard"`
}

// ProfileRequest updates the caller's own name and email.
type ProfileRequest struct {
	Name  string `json:"name" validate:"required,max=100,nowhitespace"`
	Email string `json:"email" validate:"required,email,max=150"`
}

// UserListQuery binds the user list query string.
type UserListQuery struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Role      string `form:"role" binding:"omitempty,oneof=admin standard"`
	Search    string `form:"search"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// Filter converts the query into a repository filter.
func (q UserListQuery) Filter() models.UserFilter {
	filter := models.UserFilter{
		Page:      q.Page,
		PageSize:  q.PageSize,
		Search:    q.Search,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}
	if q.Role != "" {
		role := models.UserRole(q.Role)
		filter.Role = &role
	}
	return filter
}
