package transport

import (
	"errors"
	"fmt"
	"strings"
)

// StatusError reports an HTTP response with status >= 400.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP request failed with %s", e.Status)
}

// ContentTypeError reports a response whose Content-Type did not match what
// the caller expected.
type ContentTypeError struct {
	Expected string
	Got      string
}

func (e *ContentTypeError) Error() string {
	return fmt.Sprintf("unexpected content type: expected %s, got %s", e.Expected, e.Got)
}

// NetworkError wraps connection-level failures (DNS, refused connections,
// resets) so callers can tell them apart from server-reported errors.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// GraphQLErrorItem is one server-reported GraphQL error.
type GraphQLErrorItem struct {
	Message   string          `json:"message"`
	Path      []any           `json:"path,omitempty"`
	Locations []GraphQLErrLoc `json:"locations,omitempty"`
}

// GraphQLErrLoc is a line/column position inside the query document.
type GraphQLErrLoc struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// GraphQLError reports a GraphQL response whose errors list is non-empty.
// It is a hard failure of that one query, independent of the HTTP status.
type GraphQLError struct {
	Errors []GraphQLErrorItem
}

func (e *GraphQLError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		msgs = append(msgs, item.Message)
	}
	return "GraphQL request failed: " + strings.Join(msgs, "; ")
}

// IsRetryable reports whether the error is likely transient. Network
// failures and throttling/server-side statuses qualify; client errors and
// cancellation never do.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return false
}
