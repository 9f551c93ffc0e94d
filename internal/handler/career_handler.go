package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/ctp-enrollment-api/pkg/errors"
	"github.com/noah-isme/ctp-enrollment-api/pkg/response"
)

type careerService interface {
	List(ctx context.Context, filter models.CareerFilter) ([]models.Career, error)
	ListActive(ctx context.Context) ([]models.Career, error)
	Create(ctx context.Context, req dto.CareerRequest) (*models.Career, error)
	Update(ctx context.Context, id string, req dto.CareerRequest) (*models.Career, error)
	SetActive(ctx context.Context, id string, req dto.CareerActiveRequest) (*models.Career, error)
	Delete(ctx context.Context, id string) error
}

// CareerHandler exposes career management endpoints.
type CareerHandler struct {
	careers careerService
}

// NewCareerHandler constructs CareerHandler.
func NewCareerHandler(careers careerService) *CareerHandler {
	return &CareerHandler{careers: careers}
}

// List godoc
// @Summary List careers
// @Tags Careers
// @Produce json
// @Param active query bool false "Filter by availability"
// @Success 200 {object} response.Envelope
// @Router /careers [get]
func (h *CareerHandler) List(c *gin.Context) {
	var filter models.CareerFilter
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "active must be a boolean"))
			return
		}
		filter.Active = &active
	}
	careers, err := h.careers.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, careers, nil)
}

// ListPublic godoc
// @Summary Careers open for enrollment
// @Tags Public
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /public/careers [get]
func (h *CareerHandler) ListPublic(c *gin.Context) {
	careers, err := h.careers.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, careers, nil)
}

// Create godoc
// @Summary Create career
// @Tags Careers
// @Accept json
// @Produce json
// @Param payload body dto.CareerRequest true "Career payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /careers [post]
func (h *CareerHandler) Create(c *gin.Context) {
	var req dto.CareerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	career, err := h.careers.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, career)
}

// Update godoc
// @Summary Update career
// @Tags Careers
// @Accept json
// @Produce json
// @Param id path string true "Career ID"
// @Param payload body dto.CareerRequest true "Career payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /careers/{id} [put]
func (h *CareerHandler) Update(c *gin.Context) {
	var req dto.CareerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	career, err := h.careers.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, career, nil)
}

// SetActive godoc
// @Summary Toggle career availability
// @Tags Careers
// @Accept json
// @Produce json
// @Param id path string true "Career ID"
// @Param payload body dto.CareerActiveRequest true "Active flag"
// @Success 200 {object} response.Envelope
// @Router /careers/{id}/active [patch]
func (h *CareerHandler) SetActive(c *gin.Context) {
	var req dto.CareerActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	career, err := h.careers.SetActive(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, career, nil)
}

// Delete godoc
// @Summary Delete career
// @Tags Careers
// @Param id path string true "Career ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /careers/{id} [delete]
func (h *CareerHandler) Delete(c *gin.Context) {
	if err := h.careers.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
