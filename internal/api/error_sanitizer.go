package api

import (
	"strings"
)

// =============================================================================
// ERROR SANITIZER
// Ensures internal errors (DynamoDB details, transport internals, stack
// traces) are NEVER leaked to API consumers. All 5xx errors return generic
// safe messages while the full error is logged server-side by the caller.
// =============================================================================

// safeErrorMessage maps common internal error patterns to public-safe messages.
// For 400-level errors, the original message is typically fine (user input issues).
// For 500-level errors, this returns a generic safe message.
func safeErrorMessage(code int, internalErr error) string {
	if code < 500 {
		// 4xx errors are about user input - usually safe to expose
		if internalErr != nil {
			return internalErr.Error()
		}
		return "Bad request"
	}

	if internalErr == nil {
		return "An internal error occurred"
	}

	errStr := strings.ToLower(internalErr.Error())

	switch {
	case strings.Contains(errStr, "circuit breaker is open") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp"):
		return "Service temporarily unavailable"

	case strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context canceled"):
		return "Request timed out"

	case strings.Contains(errStr, "throttling") ||
		strings.Contains(errStr, "provisionedthroughputexceeded") ||
		strings.Contains(errStr, "resourcenotfoundexception") ||
		strings.Contains(errStr, "conditionalcheckfailed") ||
		strings.Contains(errStr, "describing table"):
		return "A storage error occurred"

	case strings.Contains(errStr, "json") ||
		strings.Contains(errStr, "unmarshal") ||
		strings.Contains(errStr, "marshal") ||
		strings.Contains(errStr, "decode") ||
		strings.Contains(errStr, "parse"):
		return "Invalid request format"

	case strings.Contains(errStr, "permission") ||
		strings.Contains(errStr, "access denied"):
		return "Access denied"

	default:
		return "An internal error occurred"
	}
}
