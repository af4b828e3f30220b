package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kbchat/internal/common"
)

func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.ErrorContext(c.Request.Context(), "panic recovered",
					"panic", r, "path", c.Request.URL.Path, "stack", string(debug.Stack()))
				common.Fail(c, http.StatusInternalServerError, 50000, "Internal server error")
			}
		}()
		c.Next()
	}
}
