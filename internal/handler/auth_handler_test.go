package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-enrollment-api/internal/middleware"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/ctp-enrollment-api/pkg/errors"
)

type authServiceMock struct {
	loginReq     models.LoginRequest
	client       models.ClientInfo
	loginErr     error
	logoutToken  string
	logoutUserID string
	passwordUser string
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest, client models.ClientInfo) (*models.LoginResponse, error) {
	m.loginReq = req
	m.client = client
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh", User: models.UserInfo{ID: "u1", Name: req.Identifier}}, nil
}

func (m *authServiceMock) RefreshToken(ctx context.Context, req models.RefreshTokenRequest, client models.ClientInfo) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil
}

func (m *authServiceMock) Logout(ctx context.Context, refreshToken, userID string, client models.ClientInfo) error {
	m.logoutToken = refreshToken
	m.logoutUserID = userID
	return nil
}

func (m *authServiceMock) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	m.passwordUser = userID
	return nil
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &authServiceMock{}
	handler := NewAuthHandler(svc)

	c, w := newGinContext(http.MethodPost, "/api/v1/auth/login", []byte(`{"identifier":"secretaria","password":"password"}`))
	c.Request.Header.Set("User-Agent", "station-1")
	handler.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "secretaria", svc.loginReq.Identifier)
	assert.Equal(t, "station-1", svc.client.UserAgent)

	var body responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "access", body.Data["access_token"])
}

func TestAuthHandlerLoginInvalidCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{loginErr: appErrors.ErrInvalidCredentials})

	c, w := newGinContext(http.MethodPost, "/api/v1/auth/login", []byte(`{"identifier":"x","password":"y"}`))
	handler.Login(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodPost, "/api/v1/auth/login", []byte(`{`))
	handler.Login(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerLogoutUsesClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &authServiceMock{}
	handler := NewAuthHandler(svc)

	c, w := newGinContext(http.MethodPost, "/api/v1/auth/logout", []byte(`{"refresh_token":"refresh"}`))
	handler.Logout(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodPost, "/api/v1/auth/logout", []byte(`{"refresh_token":"refresh"}`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleStandard})
	handler.Logout(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "refresh", svc.logoutToken)
	assert.Equal(t, "u1", svc.logoutUserID)

	c, w = newGinContext(http.MethodPost, "/api/v1/auth/logout", []byte(`{}`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1"})
	handler.Logout(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{})

	c, w := newGinContext(http.MethodGet, "/api/v1/auth/me", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Name: "digitador", Role: models.RoleStandard})
	handler.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "digitador", body.Data["name"])
	assert.Equal(t, "standard", body.Data["role"])
}
