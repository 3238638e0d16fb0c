package common

import (
	"github.com/gin-gonic/gin"
)

// Fail aborts the request with the standard failure envelope.
func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}
