package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
)

// ContextKeyErrorCode holds the API error code of the response, if any. The
// metrics middleware reads it after the handler chain has run.
const ContextKeyErrorCode = "errorCode"

// APIErrorResponse is the body of every non-2xx response
type APIErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
	Timestamp string            `json:"timestamp"`
	Path      string            `json:"path"`
}

func newErrorResponse(c *gin.Context, code, message string, details map[string]string) APIErrorResponse {
	c.Set(ContextKeyErrorCode, code)
	return APIErrorResponse{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      c.Request.URL.Path,
	}
}

// GetErrorCode returns the error code written for this request or ""
func GetErrorCode(c *gin.Context) string {
	return c.GetString(ContextKeyErrorCode)
}

// ErrorResponder maps service errors onto responses for one request
type ErrorResponder struct {
	ctx    *gin.Context
	logger *logging.Logger
}

func NewErrorResponder(ctx *gin.Context, logger *logging.Logger) *ErrorResponder {
	return &ErrorResponder{ctx: ctx, logger: logger}
}

// RespondWithError classifies err first; anything unrecognised is a 500.
func (r *ErrorResponder) RespondWithError(err error) {
	r.RespondWithAppError(errors.FromError(err))
}

func (r *ErrorResponder) RespondWithAppError(appErr *errors.AppError) {
	logAppError(r.logger, r.ctx, appErr)
	r.ctx.JSON(appErr.HTTPStatus, newErrorResponse(r.ctx, appErr.Code, appErr.Message, appErr.Details))
}

// AbortWithAppError is for middleware that rejects a request before any handler runs
func AbortWithAppError(c *gin.Context, appErr *errors.AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, newErrorResponse(c, appErr.Code, appErr.Message, appErr.Details))
}

// Business rejections (insufficient stock, wrong barcode) are routine on the
// warehouse floor and log at warn; only server faults log at error.
func logAppError(logger *logging.Logger, c *gin.Context, appErr *errors.AppError) {
	if logger == nil {
		return
	}
	level := slog.LevelWarn
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		level = slog.LevelError
	}

	attrs := []any{
		"code", appErr.Code,
		"status", appErr.HTTPStatus,
		"method", c.Request.Method,
		"route", c.FullPath(),
	}
	if appErr.Err != nil {
		attrs = append(attrs, "error", appErr.Err.Error())
	}
	for field, reason := range appErr.Details {
		attrs = append(attrs, "detail."+field, reason)
	}

	ctx := c.Request.Context()
	logger.WithContext(ctx).Log(ctx, level, appErr.Message, attrs...)
}
