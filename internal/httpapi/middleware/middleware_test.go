package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/suPer8Hu/kbchat/internal/telemetry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine() *gin.Engine {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := gin.New()
	r.Use(CORS(), RequestID(), Logger(log), Recovery(log))
	return r
}

func TestUserIdentity(t *testing.T) {
	r := newEngine()
	r.GET("/me", UserIdentity(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": UserID(c)})
	})

	cases := []struct {
		name   string
		header map[string]string
		status int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"non numeric", map[string]string{HeaderUserID: "abc"}, http.StatusBadRequest},
		{"zero", map[string]string{HeaderUserID: "0"}, http.StatusBadRequest},
		{"ok", map[string]string{HeaderUserID: "42"}, http.StatusOK},
		{"token is not identity", map[string]string{"Authorization": "Bearer abc"}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestPreflight(t *testing.T) {
	r := newEngine()
	r.OPTIONS("/documents", Preflight(http.MethodGet, http.MethodPost, http.MethodDelete))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/documents", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "GET, POST, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-User-Id")
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
}

func TestRequestIDPropagates(t *testing.T) {
	r := newEngine()
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = telemetry.RequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)
}

func TestRecoveryRendersJSON(t *testing.T) {
	r := newEngine()
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error","code":50000}`, w.Body.String())
}
