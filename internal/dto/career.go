package dto

import "github.com/noah-isme/ctp-enrollment-api/internal/models"

// CareerRequest holds the payload for creating or updating a career.
type CareerRequest struct {
	Name  string             `json:"name" validate:"required,max=150"`
	Shift models.CareerShift `json:"shift" validate:"required,oneof=day saturday sunday"`
}

// CareerActiveRequest toggles a career's availability.
type CareerActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}
