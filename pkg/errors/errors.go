// Package errors defines the error taxonomy of the HTTP API. Every non-2xx
// response body carries one of the codes below; clients switch on the code,
// never on the message.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Generic codes
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "RESOURCE_NOT_FOUND"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeBadRequest         = "BAD_REQUEST"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Warehouse rule violations, answered with 409 via ErrConflictWithCode
const (
	CodeInsufficientStock         = "INSUFFICIENT_STOCK"
	CodeOverScan                  = "OVER_SCAN"
	CodeUnknownBarcodeForRoute    = "UNKNOWN_BARCODE_FOR_ROUTE"
	CodeBarcodeNotInCurrentOrder  = "BARCODE_NOT_IN_CURRENT_ORDER"
	CodeShelfNotEmpty             = "SHELF_NOT_EMPTY"
	CodeShelfHasChildren          = "SHELF_HAS_CHILDREN"
	CodeShelfInUse                = "SHELF_IN_USE"
	CodeCyclicReparent            = "CYCLIC_REPARENT"
	CodeRouteAlreadyActive        = "ROUTE_ALREADY_ACTIVE"
	CodeSessionAlreadyActive      = "SESSION_ALREADY_ACTIVE"
	CodeOrderIncomplete           = "ORDER_INCOMPLETE"
	CodeInvalidStateTransition    = "INVALID_STATE_TRANSITION"
	CodeConcurrentModification    = "CONCURRENT_MODIFICATION"
	CodeOrderNotFulfillable       = "ORDER_NOT_FULFILLABLE"
	CodeDuplicateShelfBarcode     = "DUPLICATE_SHELF_BARCODE"
	CodePackingShelfNotConfigured = "PACKING_SHELF_NOT_CONFIGURED"
)

// AppError is an error that already knows its HTTP status and API code.
// Details end up verbatim in the response body, so they hold identifiers and
// quantities, never internal error text.
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithDetails(details map[string]string) *AppError {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// Wrap keeps the cause for logs and errors.Is; it is not serialised
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

func NewAppError(code string, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func ErrValidation(message string) *AppError {
	return NewAppError(CodeValidationError, message, http.StatusBadRequest)
}

// ErrValidationWithFields carries one detail per offending request field
func ErrValidationWithFields(message string, fields map[string]string) *AppError {
	return ErrValidation(message).WithDetails(fields)
}

func ErrBadRequest(message string) *AppError {
	return NewAppError(CodeBadRequest, message, http.StatusBadRequest)
}

// ErrNotFound names the missing resource kind: "shelf", "route", ...
func ErrNotFound(resource string) *AppError {
	return NewAppError(CodeNotFound, resource+" not found", http.StatusNotFound)
}

func ErrNotFoundWithID(resource, id string) *AppError {
	return ErrNotFound(resource).WithDetail("id", id)
}

// ErrConflictWithCode reports a warehouse rule violation
func ErrConflictWithCode(code, message string) *AppError {
	return NewAppError(code, message, http.StatusConflict)
}

func ErrInternal(message string) *AppError {
	if message == "" {
		message = "an internal error occurred"
	}
	return NewAppError(CodeInternalError, message, http.StatusInternalServerError)
}

// ErrServiceUnavailable is used when a collaborator (order store, consumables)
// cannot be reached or its circuit is open
func ErrServiceUnavailable(service string) *AppError {
	return NewAppError(CodeServiceUnavailable, service+" is temporarily unavailable", http.StatusServiceUnavailable)
}

func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FromError returns the AppError inside err, or wraps err as a 500
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return ErrInternal("").Wrap(err)
}
