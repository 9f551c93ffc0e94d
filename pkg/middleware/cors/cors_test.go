package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(opts Options, method, path, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(opts))
	r.Any("/*path", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, path, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSAllowedOrigin(t *testing.T) {
	opts := Options{AllowedOrigins: []string{"https://panel.ctp.edu.ni/"}}

	w := serve(opts, http.MethodGet, "/api/v1/enrollments", "https://panel.ctp.edu.ni")
	assert.Equal(t, "https://panel.ctp.edu.ni", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = serve(opts, http.MethodGet, "/api/v1/enrollments", "https://evil.example.com")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPublicPrefixAllowsAnyOrigin(t *testing.T) {
	opts := Options{AllowedOrigins: []string{"https://panel.ctp.edu.ni"}, PublicPrefixes: []string{"/api/v1/public"}}

	w := serve(opts, http.MethodPost, "/api/v1/public/enrollments", "https://ctp.edu.ni")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSPreflight(t *testing.T) {
	w := serve(Options{}, http.MethodOptions, "/api/v1/careers", "https://panel.ctp.edu.ni")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}
