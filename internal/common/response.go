package common

import (
	"github.com/gin-gonic/gin"
)

func OK(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{
		"error": msg,
		"code":  code,
	})
}

// Abort renders err as {"error", "code", "detail"?} and stops the chain.
func Abort(c *gin.Context, err error) {
	e := AsError(err)
	_ = c.Error(err)
	body := gin.H{
		"error": e.Message,
		"code":  e.Code,
	}
	if e.Detail != "" {
		body["detail"] = e.Detail
	}
	c.AbortWithStatusJSON(e.Status, body)
}
