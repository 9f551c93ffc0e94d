package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/internal/middleware"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/ctp-enrollment-api/pkg/errors"
)

type enrollmentServiceMock struct {
	created     *models.Enrollment
	createErr   error
	lastActor   *models.Actor
	lastRequest dto.EnrollmentRequest
	lastFilter  models.EnrollmentFilter
	printedID   string
	printed     bool
	deleteErr   error
}

func (m *enrollmentServiceMock) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.Enrollment{{ID: "e-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *enrollmentServiceMock) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	if id != "e-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return &models.Enrollment{ID: id}, nil
}

func (m *enrollmentServiceMock) Create(ctx context.Context, actor *models.Actor, req dto.EnrollmentRequest) (*models.Enrollment, error) {
	m.lastActor = actor
	m.lastRequest = req
	return m.created, m.createErr
}

func (m *enrollmentServiceMock) Update(ctx context.Context, actor *models.Actor, id string, req dto.EnrollmentRequest) (*models.Enrollment, error) {
	m.lastActor = actor
	m.lastRequest = req
	return &models.Enrollment{ID: id, FullName: req.FullName}, nil
}

func (m *enrollmentServiceMock) Delete(ctx context.Context, id string) error {
	return m.deleteErr
}

func (m *enrollmentServiceMock) MarkPrinted(ctx context.Context, id string, printed bool) error {
	m.printedID = id
	m.printed = printed
	return nil
}

func enrollmentPayload(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(dto.EnrollmentRequest{
		FullName: "Ana López",
		Career:   "Informática",
		Assets:   map[models.AssetKind]string{models.AssetSignature: "data:image/png;base64,AAAA"},
	})
	require.NoError(t, err)
	return body
}

func TestEnrollmentHandlerListBindsFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/enrollments?user_id=public&documents=without&date=2026-01-10&page=2", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.lastFilter.PublicOnly)
	assert.Equal(t, models.DocumentsWithout, mockSvc.lastFilter.Documents)
	require.NotNil(t, mockSvc.lastFilter.Date)
	assert.Equal(t, 2, mockSvc.lastFilter.Page)
}

func TestEnrollmentHandlerListRejectsDocumentsValue(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEnrollmentHandler(&enrollmentServiceMock{})

	c, w := newGinContext(http.MethodGet, "/enrollments?documents=some", nil)
	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerCreateUsesActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{created: &models.Enrollment{ID: "e-9"}}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/enrollments", enrollmentPayload(t))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Role: models.RoleStandard})
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mockSvc.lastActor)
	assert.Equal(t, "u-1", mockSvc.lastActor.UserID)
	assert.Equal(t, "data:image/png;base64,AAAA", mockSvc.lastRequest.Assets[models.AssetSignature])
}

func TestEnrollmentHandlerCreateRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEnrollmentHandler(&enrollmentServiceMock{})

	c, w := newGinContext(http.MethodPost, "/enrollments", enrollmentPayload(t))
	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEnrollmentHandlerSubmitIsAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{created: &models.Enrollment{ID: "e-7"}}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/public/enrollments", enrollmentPayload(t))
	handler.Submit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Nil(t, mockSvc.lastActor)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "e-7", envelope.Data["id"])
	assert.Equal(t, publicSubmissionMessage, envelope.Data["message"])
}

func TestEnrollmentHandlerSubmitMapsErrorTaxonomy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[*appErrors.Error]int{
		appErrors.Clone(appErrors.ErrDuplicate, "cedula already registered"): http.StatusConflict,
		appErrors.Clone(appErrors.ErrReference, "career not found"):          http.StatusUnprocessableEntity,
		appErrors.ErrAssetUpload:                                            http.StatusBadGateway,
	}
	for appErr, status := range cases {
		handler := NewEnrollmentHandler(&enrollmentServiceMock{createErr: appErr})
		c, w := newGinContext(http.MethodPost, "/public/enrollments", enrollmentPayload(t))
		handler.Submit(c)

		assert.Equal(t, status, w.Code, appErr.Code)
		var envelope responseEnvelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
		assert.Equal(t, appErr.Code, envelope.Error["code"])
	}
}

func TestEnrollmentHandlerSubmitRejectsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEnrollmentHandler(&enrollmentServiceMock{})

	c, w := newGinContext(http.MethodPost, "/public/enrollments", []byte("{"))
	handler.Submit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEnrollmentHandler(&enrollmentServiceMock{})

	c, w := newGinContext(http.MethodGet, "/enrollments/zzz", nil)
	c.Params = gin.Params{{Key: "id", Value: "zzz"}}
	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEnrollmentHandlerMarkPrinted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newGinContext(http.MethodPatch, "/enrollments/e-1/printed", []byte(`{"printed":true}`))
	c.Params = gin.Params{{Key: "id", Value: "e-1"}}
	handler.MarkPrinted(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "e-1", mockSvc.printedID)
	assert.True(t, mockSvc.printed)

	c, w = newGinContext(http.MethodPatch, "/enrollments/e-1/printed", []byte(`{}`))
	c.Params = gin.Params{{Key: "id", Value: "e-1"}}
	handler.MarkPrinted(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEnrollmentHandler(&enrollmentServiceMock{})

	c, w := newGinContext(http.MethodDelete, "/enrollments/e-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "e-1"}}
	handler.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
}
