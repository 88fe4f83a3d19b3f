// Package dto defines the JSON shapes the dashboard API serves.
// Storage read models already carry JSON tags; the wrappers here add
// counts and the uniform error envelope.
package dto

import "github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/storage"

// APIError is the uniform error response shape.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrCodeNotFound      = "not_found"
	ErrCodeBadRequest    = "bad_request"
	ErrCodeInternalError = "internal_error"
)

// NotFoundError creates a not found error response.
func NotFoundError(resource string) APIError {
	return APIError{Code: ErrCodeNotFound, Message: resource + " not found"}
}

// BadRequestError creates a bad request error response.
func BadRequestError(message string) APIError {
	return APIError{Code: ErrCodeBadRequest, Message: message}
}

// InternalError creates an internal server error response.
func InternalError() APIError {
	return APIError{Code: ErrCodeInternalError, Message: "an internal error occurred"}
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status string `json:"status"`
}

// WeekListResponse lists stored snapshot headers, newest first.
type WeekListResponse struct {
	Weeks []storage.Snapshot `json:"weeks"`
	Count int                `json:"count"`
}
