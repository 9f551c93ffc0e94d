package dto

import "github.com/noah-isme/ctp-enrollment-api/internal/models"

// EnrollmentRequest is the payload for creating or replacing an enrollment.
// Asset values are base64 image data URIs for new documents or previously
// stored URLs; on update an empty string removes the document and a missing
// key keeps it. ID is optional on create; clients that may retry a submission
// generate it so the retry resolves to the same record.
type EnrollmentRequest struct {
	ID                    string                      `json:"id,omitempty" validate:"omitempty,uuid"`
	FullName              string                      `json:"full_name" validate:"required,max=150"`
	BirthDate             string                      `json:"birth_date" validate:"required,datetime=2006-01-02"`
	Gender                string                      `json:"gender" validate:"required,oneof=M F"`
	MaritalStatus         string                      `json:"marital_status" validate:"required,oneof=single married free_union divorced widowed"`
	Cedula                string                      `json:"cedula" validate:"omitempty,max=20"`
	Department            string                      `json:"department" validate:"required,max=100"`
	Municipality          string                      `json:"municipality" validate:"required,max=100"`
	Community             string                      `json:"community" validate:"required,max=100"`
	Address               string                      `json:"address" validate:"required,max=255"`
	Phone                 string                      `json:"phone" validate:"required,max=20"`
	Email                 string                      `json:"email" validate:"omitempty,email,max=150"`
	AcademicLevel         string                      `json:"academic_level" validate:"required,max=100"`
	EmergencyName         string                      `json:"emergency_name" validate:"required,max=150"`
	EmergencyRelationship string                      `json:"emergency_relationship" validate:"required,max=50"`
	EmergencyPhone        string                      `json:"emergency_phone" validate:"required,max=20"`
	EmergencyAddress      string                      `json:"emergency_address" validate:"required,max=255"`
	Career                string                      `json:"career" validate:"required"`
	Assets                map[models.AssetKind]string `json:"assets,omitempty"`
}

// PrintedRequest toggles the printed flag.
type PrintedRequest struct {
	Printed *bool `json:"printed" validate:"required"`
}

// EnrollmentListQuery binds the listing query string.
type EnrollmentListQuery struct {
	Date      string `form:"date"`
	UserID    string `form:"user_id"`
	Career    string `form:"career"`
	Search    string `form:"search"`
	Documents string `form:"documents"`
	Printed   string `form:"printed"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}

// SubmissionResponse is returned by the public intake endpoint.
type SubmissionResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
