package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizlens/internal/middleware"
)

func requestIDRouter(captured *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.GET("/ping", func(c *gin.Context) {
		*captured = middleware.GetRequestID(c)
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequestIDGeneratedWhenHeaderAbsent(t *testing.T) {
	var seen string
	r := requestIDRouter(&seen)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.NotEmpty(t, seen)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestRequestIDKeepsInboundHeader(t *testing.T) {
	var seen string
	r := requestIDRouter(&seen)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "proxy-assigned-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "proxy-assigned-id", seen)
	assert.Equal(t, "proxy-assigned-id", w.Header().Get("X-Request-ID"))
}
