package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kbchat/internal/common"
)

const (
	HeaderUserID = "X-User-Id"
	CtxUserID    = "user_id"
)

// UserIdentity resolves the caller from the X-User-Id header.
func UserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if raw == "" {
			common.Fail(c, http.StatusUnauthorized, 40101, "Missing X-User-Id header")
			return
		}

		uid, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || uid == 0 {
			common.Fail(c, http.StatusBadRequest, 40001, "Invalid X-User-Id header")
			return
		}
		c.Set(CtxUserID, uid)
		c.Next()
	}
}

// UserID returns the identity set by UserIdentity.
func UserID(c *gin.Context) uint64 {
	return c.GetUint64(CtxUserID)
}
