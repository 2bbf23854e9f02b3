package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"devfolio/internal/errcode"
)

// Error 输出统一的错误响应，code 为业务错误码（见 internal/errcode）。
func Error(c *gin.Context, status int, code int, msg string) {
	c.JSON(status, gin.H{"code": code, "error": msg})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func Unauthorized(c *gin.Context) { Error(c, http.StatusUnauthorized, errcode.InvalidPayload, "unauthorized") }
func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, errcode.InvalidPayload, msg) }
func Forbidden(c *gin.Context, msg string) { Error(c, http.StatusForbidden, errcode.InvalidPayload, msg) }
func NotFound(c *gin.Context, msg string) { Error(c, http.StatusNotFound, errcode.ResourceMissing, msg) }
func Conflict(c *gin.Context, msg string) { Error(c, http.StatusConflict, errcode.Conflict, msg) }
func Internal(c *gin.Context, msg string) {
	Error(c, http.StatusInternalServerError, errcode.SystemError, msg)
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	value, ok := c.Get("userID")
	if !ok {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}
