package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-enrollment-api/internal/models"
)

type auditRecorder struct {
	logs []*models.AuditLog
	err  error
}

func (a *auditRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

func TestAuditRecordsSuccessfulMutations(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := &auditRecorder{}
	r := gin.New()
	r.DELETE("/careers/:id",
		withClaims(&models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}),
		Audit(recorder, nil, models.AuditActionCareerDelete, "career"),
		func(c *gin.Context) { c.Status(http.StatusNoContent) },
	)
	r.PUT("/careers/:id",
		Audit(recorder, nil, models.AuditActionCareerUpdate, "career"),
		func(c *gin.Context) { c.Status(http.StatusConflict) },
	)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/careers/c-1", nil))
	require.Len(t, recorder.logs, 1)
	log := recorder.logs[0]
	assert.Equal(t, models.AuditActionCareerDelete, log.Action)
	require.NotNil(t, log.UserID)
	assert.Equal(t, "admin-1", *log.UserID)
	require.NotNil(t, log.ResourceID)
	assert.Equal(t, "c-1", *log.ResourceID)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/careers/c-1", nil))
	assert.Len(t, recorder.logs, 1)
}

func TestAuditWriteFailureDoesNotAffectResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/users", Audit(&auditRecorder{err: errors.New("db down")}, nil, models.AuditActionUserCreate, "user"),
		func(c *gin.Context) { c.Status(http.StatusCreated) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
}
