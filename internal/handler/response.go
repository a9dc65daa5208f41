package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Machine readable error codes carried in the envelope.
const (
	CodeInvalidRequest   = "invalid_request"
	CodeNotFound         = "not_found"
	CodeStoreTimeout     = "store_timeout"
	CodeStoreUnavailable = "store_unavailable"
	CodeCancelled        = "cancelled"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeRateLimited      = "rate_limited"
	CodeInternal         = "internal"
)

// APIResponse describes the standard envelope returned by the API.
type APIResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Success sends a successful response using the shared envelope format.
func Success(c echo.Context, status int, message string, data any) error {
	if status == 0 {
		status = http.StatusOK
	}
	payload := APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	}
	return c.JSON(status, payload)
}

// Error sends an error response using the shared envelope format.
func Error(c echo.Context, status int, message string) error {
	return respondError(c, status, APIResponse{Message: message})
}

// FieldError reports a rejected request parameter.
func FieldError(c echo.Context, field, message string) error {
	return respondError(c, http.StatusBadRequest, APIResponse{Code: CodeInvalidRequest, Field: field, Message: message})
}

func respondError(c echo.Context, status int, payload APIResponse) error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	payload.Status = "error"
	if payload.Code == "" {
		payload.Code = defaultCode(status)
	}
	return c.JSON(status, payload)
}

func defaultCode(status int) string {
	switch {
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusServiceUnavailable:
		return CodeStoreTimeout
	case status == http.StatusBadGateway:
		return CodeStoreUnavailable
	case status == statusClientClosedRequest:
		return CodeCancelled
	case status == http.StatusUnauthorized:
		return CodeUnauthorized
	case status == http.StatusForbidden:
		return CodeForbidden
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status >= 400 && status < 500:
		return CodeInvalidRequest
	default:
		return CodeInternal
	}
}
