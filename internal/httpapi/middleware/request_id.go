package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/suPer8Hu/kbchat/internal/telemetry"
)

const (
	HeaderRequestID = "X-Request-Id"
	CtxRequestID    = "request_id"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		c.Set(CtxRequestID, rid)
		c.Header(HeaderRequestID, rid)
		c.Request = c.Request.WithContext(telemetry.WithRequestID(c.Request.Context(), rid))
		c.Next()
	}
}
