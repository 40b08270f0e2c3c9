package utils

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JSONResponse defines the uniform structure for API responses.
type JSONResponse struct {
	Code    int         `json:"code"`
	Kind    ErrorKind   `json:"kind,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, 200, 0, "success", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Kind:    KindForStatus(status),
		Message: message,
	})
}

// Fail writes err as a structured failure. Internal errors are logged with their cause.
func Fail(ctx *gin.Context, err error) {
	appErr := AsAppError(err)
	if appErr.Kind == KindInternal {
		Logger.Error("request failed",
			zap.String("path", ctx.Request.URL.Path),
			zap.String("message", appErr.Message),
			zap.Error(appErr.Err),
		)
	}
	ctx.JSON(appErr.Kind.HTTPStatus(), JSONResponse{
		Code:    appErr.Code,
		Kind:    appErr.Kind,
		Message: appErr.Message,
	})
}
