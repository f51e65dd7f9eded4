package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
	ErrCodeRateLimited        ErrorCode = "COMMON_016"
)

// Coherence Module Error Codes
const (
	ErrCodePipelineUnavailable ErrorCode = "COH_001"
	ErrCodeInvalidDocument     ErrorCode = "COH_002"
	ErrCodeInvalidWindow       ErrorCode = "COH_003"
	ErrCodeInvalidCluster      ErrorCode = "COH_004"
	ErrCodeAnalysisCancelled   ErrorCode = "COH_005"
	ErrCodeUnknownParagraph    ErrorCode = "COH_006"
)

// Infrastructure Error Codes
const (
	ErrCodeMessageQueue ErrorCode = "INFRA_001"
	ErrCodeStorage      ErrorCode = "INFRA_002"
)

// Aliases
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusForbidden,
	ErrCodeRateLimited:        http.StatusTooManyRequests,

	ErrCodePipelineUnavailable: http.StatusServiceUnavailable,
	ErrCodeInvalidDocument:     http.StatusBadRequest,
	ErrCodeInvalidWindow:       http.StatusBadRequest,
	ErrCodeInvalidCluster:      http.StatusBadRequest,
	ErrCodeAnalysisCancelled:   http.StatusRequestTimeout,
	ErrCodeUnknownParagraph:    http.StatusBadRequest,

	ErrCodeMessageQueue: http.StatusInternalServerError,
	ErrCodeStorage:      http.StatusBadGateway,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",
	ErrCodeRateLimited:        "rate limit exceeded",

	ErrCodePipelineUnavailable: "linguistic pipeline unavailable",
	ErrCodeInvalidDocument:     "invalid document",
	ErrCodeInvalidWindow:       "invalid processing window",
	ErrCodeInvalidCluster:      "invalid topic cluster definition",
	ErrCodeAnalysisCancelled:   "analysis cancelled",
	ErrCodeUnknownParagraph:    "unknown paragraph position",

	ErrCodeMessageQueue: "message queue error",
	ErrCodeStorage:      "object storage error",
}

// HTTPStatus returns the HTTP status for code, defaulting to 500.
func (c ErrorCode) HTTPStatus() int {
	if s, ok := ErrorCodeHTTPStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// DefaultMessage returns the registered default message for code.
func (c ErrorCode) DefaultMessage() string {
	if m, ok := ErrorCodeMessage[c]; ok {
		return m
	}
	return "unknown error"
}

// Module returns the module prefix of the code, e.g. "COH" for "COH_003".
func (c ErrorCode) Module() string {
	s := string(c)
	if i := strings.IndexByte(s, '_'); i > 0 {
		return s[:i]
	}
	return s
}
