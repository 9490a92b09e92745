// Package response writes the JSON envelope shared by every API endpoint.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type APIResponse[T any] struct {
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      T         `json:"data,omitempty"`
	Meta      any       `json:"meta,omitempty"`
	Error     any       `json:"error,omitempty"`
}

func envelope[T any](ctx *gin.Context, status int, message string) APIResponse[T] {
	return APIResponse[T]{
		Status:    status,
		Timestamp: time.Now().UTC(),
		RequestID: ctx.GetString("request_id"),
		Success:   status < http.StatusBadRequest,
		Message:   message,
	}
}

// Success writes data with an optional meta block. Status 0 means 200.
func Success[T any](ctx *gin.Context, status int, data T, message string, meta any) APIResponse[T] {
	if status == 0 {
		status = http.StatusOK
	}
	resp := envelope[T](ctx, status, message)
	resp.Data, resp.Meta = data, meta
	ctx.JSON(status, resp)
	return resp
}

// Error writes a failure with optional details. Status 0 means 400.
func Error(ctx *gin.Context, status int, message string, details any) APIResponse[any] {
	if status == 0 {
		status = http.StatusBadRequest
	}
	resp := envelope[any](ctx, status, message)
	resp.Error = details
	ctx.JSON(status, resp)
	return resp
}

// Abort is Error followed by ctx.Abort, for middleware.
func Abort(ctx *gin.Context, status int, message string, details any) {
	Error(ctx, status, message, details)
	ctx.Abort()
}
