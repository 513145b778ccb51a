package opensearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ca-srg/prodsearch/internal/types"
)

type SearchError struct {
	Type       types.ErrorType `json:"type"`
	Message    string          `json:"message"`
	StatusCode int             `json:"status_code,omitempty"`
	Retryable  bool            `json:"retryable"`
	RetryAfter time.Duration   `json:"retry_after,omitempty"`
	Query      string          `json:"query,omitempty"`
	Suggestion string          `json:"suggestion,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Err        error           `json:"-"`
}

func (e *SearchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] %s (HTTP %d)", e.Type, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

func (e *SearchError) IsRetryable() bool {
	return e.Retryable
}

func NewSearchError(errType types.ErrorType, message string) *SearchError {
	return &SearchError{
		Type:      errType,
		Message:   message,
		Retryable: false,
		Timestamp: time.Now(),
	}
}

// ClassifyHTTPError maps a non-2xx OpenSearch response to a SearchError
func ClassifyHTTPError(statusCode int, body string) *SearchError {
	switch statusCode {
	case http.StatusBadRequest:
		return &SearchError{
			Type:       types.ErrorTypeOpenSearchQuery,
			Message:    fmt.Sprintf("query rejected by OpenSearch: %s", truncate(body, 300)),
			StatusCode: statusCode,
			Retryable:  false,
			Suggestion: "Check the index mapping for the fields referenced by the query.",
			Timestamp:  time.Now(),
		}
	case http.StatusUnauthorized:
		return &SearchError{
			Type:       types.ErrorTypeAuthentication,
			Message:    "authentication failed; check the OpenSearch credentials",
			StatusCode: statusCode,
			Retryable:  false,
			Suggestion: "Verify OPENSEARCH_AUTH and the matching credentials.",
			Timestamp:  time.Now(),
		}
	case http.StatusForbidden:
		return &SearchError{
			Type:       types.ErrorTypeAuthentication,
			Message:    "access denied; check IAM or role permissions",
			StatusCode: statusCode,
			Retryable:  false,
			Suggestion: "Grant the caller read access to the product index.",
			Timestamp:  time.Now(),
		}
	case http.StatusNotFound:
		return &SearchError{
			Type:       types.ErrorTypeValidation,
			Message:    "index or endpoint not found",
			StatusCode: statusCode,
			Retryable:  false,
			Suggestion: "Check OPENSEARCH_ENDPOINT and OPENSEARCH_INDEX.",
			Timestamp:  time.Now(),
		}
	case http.StatusRequestTimeout:
		return &SearchError{
			Type:       types.ErrorTypeNetworkTimeout,
			Message:    "request timed out",
			StatusCode: statusCode,
			Retryable:  true,
			RetryAfter: 5 * time.Second,
			Suggestion: "Check network connectivity and cluster load.",
			Timestamp:  time.Now(),
		}
	case http.StatusTooManyRequests:
		retryAfter := 10 * time.Second
		if strings.Contains(body, "retry after") {
			retryAfter = 30 * time.Second
		}
		return &SearchError{
			Type:       types.ErrorTypeRateLimit,
			Message:    "rate limit reached",
			StatusCode: statusCode,
			Retryable:  true,
			RetryAfter: retryAfter,
			Suggestion: "Lower the request rate or raise OPENSEARCH_RATE_LIMIT on the cluster side.",
			Timestamp:  time.Now(),
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &SearchError{
			Type:       types.ErrorTypeOpenSearchConnection,
			Message:    "OpenSearch server error",
			StatusCode: statusCode,
			Retryable:  true,
			RetryAfter: 10 * time.Second,
			Suggestion: "Check the cluster health.",
			Timestamp:  time.Now(),
		}
	default:
		return &SearchError{
			Type:       types.ErrorTypeUnknown,
			Message:    fmt.Sprintf("unexpected HTTP error: %s", truncate(body, 300)),
			StatusCode: statusCode,
			Retryable:  statusCode >= 500,
			RetryAfter: 5 * time.Second,
			Timestamp:  time.Now(),
		}
	}
}

// ClassifyConnectionError maps a transport failure to a SearchError
func ClassifyConnectionError(err error) *SearchError {
	var searchErr *SearchError
	if errors.As(err, &searchErr) {
		return searchErr
	}

	errMsg := err.Error()

	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(errMsg, "timeout") {
		return &SearchError{
			Type:       types.ErrorTypeNetworkTimeout,
			Message:    "connection to OpenSearch timed out",
			Retryable:  true,
			RetryAfter: 5 * time.Second,
			Suggestion: "Check network connectivity and the OpenSearch endpoint.",
			Timestamp:  time.Now(),
			Err:        err,
		}
	}

	if errors.Is(err, context.Canceled) {
		return &SearchError{
			Type:      types.ErrorTypeTimeout,
			Message:   "search canceled by caller",
			Retryable: false,
			Timestamp: time.Now(),
			Err:       err,
		}
	}

	if strings.Contains(errMsg, "connection refused") {
		return &SearchError{
			Type:       types.ErrorTypeOpenSearchConnection,
			Message:    "connection to OpenSearch refused",
			Retryable:  false,
			Suggestion: "Check the OpenSearch endpoint URL and port.",
			Timestamp:  time.Now(),
			Err:        err,
		}
	}

	if strings.Contains(errMsg, "no such host") {
		return &SearchError{
			Type:       types.ErrorTypeOpenSearchConnection,
			Message:    "OpenSearch host not found",
			Retryable:  false,
			Suggestion: "Check the host name in OPENSEARCH_ENDPOINT.",
			Timestamp:  time.Now(),
			Err:        err,
		}
	}

	return &SearchError{
		Type:       types.ErrorTypeUnknown,
		Message:    fmt.Sprintf("connection error: %v", err),
		Retryable:  true,
		RetryAfter: 10 * time.Second,
		Suggestion: "Check network connectivity.",
		Timestamp:  time.Now(),
		Err:        err,
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
