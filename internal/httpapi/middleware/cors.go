package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const allowHeaders = "Content-Type, Authorization, X-User-Id"

// CORS sets the wildcard origin on every response, errors included.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Next()
	}
}

// Preflight answers OPTIONS for a route that serves methods.
func Preflight(methods ...string) gin.HandlerFunc {
	allow := strings.Join(append(append([]string(nil), methods...), http.MethodOptions), ", ")
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Methods", allow)
		c.Header("Access-Control-Allow-Headers", allowHeaders)
		c.Header("Access-Control-Max-Age", "86400")
		c.AbortWithStatus(http.StatusOK)
	}
}
