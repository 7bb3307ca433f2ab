// Package response defines the JSON envelope every API endpoint returns.
package response

import "net/http"

// Response is the envelope: data on success, error otherwise, meta on list endpoints
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorInfo carries a machine-readable code and a human message
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Meta describes one page of a list
type Meta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeUnprocessableEntity = "UNPROCESSABLE_ENTITY"
	ErrCodeTooManyRequests     = "TOO_MANY_REQUESTS"
	ErrCodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable  = "SERVICE_UNAVAILABLE"

	// Finance and webhook codes
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeDuplicateEntry      = "DUPLICATE_ENTRY"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeInvalidSignature    = "INVALID_SIGNATURE"
	ErrCodeFinanceModeMismatch = "FINANCE_MODE_MISMATCH"
	ErrCodeFinanceModeLocked   = "FINANCE_MODE_LOCKED"
	ErrCodeWebhookInFlight     = "WEBHOOK_IN_FLIGHT"
	ErrCodeSeatUnavailable     = "SEAT_UNAVAILABLE"
)

type codeInfo struct {
	status  int
	message string
}

var codes = map[string]codeInfo{
	ErrCodeBadRequest:          {http.StatusBadRequest, "Bad request"},
	ErrCodeUnauthorized:        {http.StatusUnauthorized, "Authentication required"},
	ErrCodeForbidden:           {http.StatusForbidden, "Access denied"},
	ErrCodeNotFound:            {http.StatusNotFound, "Resource not found"},
	ErrCodeConflict:            {http.StatusConflict, "Conflict"},
	ErrCodeUnprocessableEntity: {http.StatusUnprocessableEntity, "Request cannot be processed"},
	ErrCodeTooManyRequests:     {http.StatusTooManyRequests, "Too many requests, please try again later"},
	ErrCodePayloadTooLarge:     {http.StatusRequestEntityTooLarge, "Payload too large"},
	ErrCodeInternalError:       {http.StatusInternalServerError, "An internal error occurred"},
	ErrCodeServiceUnavailable:  {http.StatusServiceUnavailable, "Service temporarily unavailable"},
	ErrCodeValidationFailed:    {http.StatusBadRequest, "Validation failed"},
	ErrCodeDuplicateEntry:      {http.StatusConflict, "Already exists"},
	ErrCodeInvalidTransition:   {http.StatusConflict, "Invalid status transition"},
	ErrCodeInvalidSignature:    {http.StatusBadRequest, "Signature verification failed"},
	ErrCodeFinanceModeMismatch: {http.StatusConflict, "Finance mode mismatch"},
	ErrCodeFinanceModeLocked:   {http.StatusPreconditionFailed, "Finance mode change blocked"},
	ErrCodeWebhookInFlight:     {http.StatusConflict, "Webhook is being processed"},
	ErrCodeSeatUnavailable:     {http.StatusConflict, "Seat unavailable"},
}

// Status is the HTTP status conventionally paired with code; unknown codes are 500
func Status(code string) int {
	if info, ok := codes[code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Success wraps data in a success envelope
func Success(data any) *Response {
	return &Response{Success: true, Data: data}
}

// Error builds an error envelope. An empty message falls back to the code's default.
func Error(code, message string) *Response {
	return ErrorWithDetails(code, message, nil)
}

// ErrorWithDetails builds an error envelope with per-field or per-check details
func ErrorWithDetails(code, message string, details map[string]string) *Response {
	if message == "" {
		message = codes[code].message
	}
	return &Response{
		Error: &ErrorInfo{Code: code, Message: message, Details: details},
	}
}

// Paginated wraps one page of items
func Paginated(data any, page, perPage int, total int64) *Response {
	if perPage <= 0 {
		perPage = 1
	}
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return &Response{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: pages,
			HasNext:    page < pages,
		},
	}
}

func BadRequest(message string) *Response         { return Error(ErrCodeBadRequest, message) }
func Unauthorized(message string) *Response       { return Error(ErrCodeUnauthorized, message) }
func Forbidden(message string) *Response          { return Error(ErrCodeForbidden, message) }
func NotFound(message string) *Response           { return Error(ErrCodeNotFound, message) }
func Conflict(message string) *Response           { return Error(ErrCodeConflict, message) }
func InternalError(message string) *Response      { return Error(ErrCodeInternalError, message) }
func TooManyRequests(message string) *Response    { return Error(ErrCodeTooManyRequests, message) }
func ServiceUnavailable(message string) *Response { return Error(ErrCodeServiceUnavailable, message) }
