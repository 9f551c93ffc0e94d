package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/ctp-enrollment-api/pkg/errors"
)

type careerServiceMock struct {
	lastFilter models.CareerFilter
	lastActive *bool
	createErr  error
	deleteErr  error
}

func (m *careerServiceMock) List(ctx context.Context, filter models.CareerFilter) ([]models.Career, error) {
	m.lastFilter = filter
	return []models.Career{{ID: "c-1", Name: "Informática", Active: true, EnrollmentCount: 4}}, nil
}

func (m *careerServiceMock) ListActive(ctx context.Context) ([]models.Career, error) {
	return []models.Career{{ID: "c-1", Name: "Informática", Active: true}}, nil
}

func (m *careerServiceMock) Create(ctx context.Context, req dto.CareerRequest) (*models.Career, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &models.Career{ID: "c-2", Name: req.Name, Shift: req.Shift, Active: true}, nil
}

func (m *careerServiceMock) Update(ctx context.Context, id string, req dto.CareerRequest) (*models.Career, error) {
	return &models.Career{ID: id, Name: req.Name, Shift: req.Shift}, nil
}

func (m *careerServiceMock) SetActive(ctx context.Context, id string, req dto.CareerActiveRequest) (*models.Career, error) {
	m.lastActive = req.Active
	return &models.Career{ID: id, Active: *req.Active}, nil
}

func (m *careerServiceMock) Delete(ctx context.Context, id string) error {
	return m.deleteErr
}

func TestCareerHandlerListActiveFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &careerServiceMock{}
	handler := NewCareerHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/careers?active=false", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastFilter.Active)
	assert.False(t, *mockSvc.lastFilter.Active)

	c, w = newGinContext(http.MethodGet, "/careers?active=maybe", nil)
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCareerHandlerPublicList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCareerHandler(&careerServiceMock{})

	c, w := newGinContext(http.MethodGet, "/public/careers", nil)
	handler.ListPublic(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Informática")
}

func TestCareerHandlerCreateDuplicate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCareerHandler(&careerServiceMock{createErr: appErrors.Clone(appErrors.ErrDuplicate, "career name already registered")})

	c, w := newGinContext(http.MethodPost, "/careers", []byte(`{"name":"Informática","shift":"day"}`))
	handler.Create(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "DUPLICATE")
}

func TestCareerHandlerSetActive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &careerServiceMock{}
	handler := NewCareerHandler(mockSvc)

	c, w := newGinContext(http.MethodPatch, "/careers/c-1/active", []byte(`{"active":false}`))
	c.Params = gin.Params{{Key: "id", Value: "c-1"}}
	handler.SetActive(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastActive)
	assert.False(t, *mockSvc.lastActive)
}

func TestCareerHandlerDeleteConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCareerHandler(&careerServiceMock{deleteErr: appErrors.Clone(appErrors.ErrConflict, "career has enrollments")})

	c, w := newGinContext(http.MethodDelete, "/careers/c-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "c-1"}}
	handler.Delete(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}
