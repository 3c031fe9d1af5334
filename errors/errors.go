package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// AppError is the application-level error carried across layers.
// HTTPCode is kept so an API layer can map failures without re-classifying them.
type AppError struct {
	Raw       error
	HTTPCode  int
	Code      ErrorCode
	Message   string
	Details   map[string]string
	Timestamp time.Time
}

// Error implements error interface
func (e AppError) Error() string {
	if e.Raw != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code.String(), e.Message, e.Raw)
	}
	return fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
}

// Unwrap exposes the underlying error to errors.Is / errors.As
func (e AppError) Unwrap() error {
	return e.Raw
}

// WithDetail adds a detail to the error
func (e AppError) WithDetail(key, value string) AppError {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

// WithRaw attaches the underlying cause
func (e AppError) WithRaw(err error) AppError {
	e.Raw = err
	return e
}

// CodeOf returns the ErrorCode of the first AppError in err's chain
func CodeOf(err error) ErrorCode {
	var appErr AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrorCode_UNKNOWN
}

func newAppError(httpCode int, code ErrorCode, message string) AppError {
	return AppError{
		HTTPCode:  httpCode,
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// General Errors
func ErrInternal(err error) AppError {
	return newAppError(http.StatusInternalServerError, ErrorCode_INTERNAL, "Internal error").WithRaw(err)
}

func ErrInvalidArgument(message string) AppError {
	return newAppError(http.StatusBadRequest, ErrorCode_INVALID_ARGUMENT, message)
}

func ErrNotFound(resource string) AppError {
	return newAppError(http.StatusNotFound, ErrorCode_NOT_FOUND, fmt.Sprintf("%s not found", resource))
}

func ErrAlreadyExists(resource string) AppError {
	return newAppError(http.StatusConflict, ErrorCode_ALREADY_EXISTS, fmt.Sprintf("%s already exists", resource))
}

// Pipeline Errors
func ErrProcessingFailed(err error) AppError {
	return newAppError(http.StatusInternalServerError, ErrorCode_PROCESSING_FAILED, "Processing failed").WithRaw(err)
}

func ErrSchemaViolation(schema string, err error) AppError {
	return newAppError(http.StatusBadGateway, ErrorCode_SCHEMA_VIOLATION, "Completion payload violates schema").
		WithRaw(err).
		WithDetail("schema", schema)
}

func ErrStageFailed(stage string, err error) AppError {
	return newAppError(http.StatusUnprocessableEntity, ErrorCode_STAGE_FAILED, fmt.Sprintf("Stage %s failed", stage)).
		WithRaw(err).
		WithDetail("stage", stage)
}

func ErrUnsupportedFormat(mimeType string) AppError {
	return newAppError(http.StatusUnsupportedMediaType, ErrorCode_UNSUPPORTED_FORMAT, "Unsupported document format").
		WithDetail("mime_type", mimeType)
}

func ErrNotTrainable(resourceID string) AppError {
	return newAppError(http.StatusConflict, ErrorCode_NOT_TRAINABLE, "Content is not training-safe").
		WithDetail("resource_id", resourceID)
}

// Integration Errors
func ErrStorageFailed(operation string, err error) AppError {
	return newAppError(http.StatusInternalServerError, ErrorCode_INTEGRATION_STORAGE_FAILED,
		fmt.Sprintf("Storage operation failed: %s", operation)).WithRaw(err)
}

func ErrCacheFailed(operation string, err error) AppError {
	return newAppError(http.StatusInternalServerError, ErrorCode_INTEGRATION_CACHE_FAILED,
		fmt.Sprintf("Cache operation failed: %s", operation)).WithRaw(err)
}

func ErrExternalAPIFailed(service string, err error) AppError {
	return newAppError(http.StatusBadGateway, ErrorCode_INTEGRATION_EXTERNAL_API_FAILED,
		fmt.Sprintf("External API call failed: %s", service)).WithRaw(err)
}

// Database Errors
func ErrDBConnectionFailed(err error) AppError {
	return newAppError(http.StatusInternalServerError, ErrorCode_DB_CONNECTION_FAILED, "Database connection failed").WithRaw(err)
}

func ErrDBQueryFailed(query string, err error) AppError {
	return newAppError(http.StatusInternalServerError, ErrorCode_DB_QUERY_FAILED, "Database query failed").
		WithRaw(err).
		WithDetail("query", query)
}
