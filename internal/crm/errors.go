package crm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx answer from the CRM.
type APIError struct {
	Op            string // deal, associations, batch_read
	Status        int
	Category      string // e.g. OBJECT_NOT_FOUND, VALIDATION_ERROR
	Message       string
	CorrelationID string
}

func (e *APIError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("crm: %s: status %d (%s): %s", e.Op, e.Status, e.Category, e.Message)
	}
	return fmt.Sprintf("crm: %s: status %d: %s", e.Op, e.Status, e.Message)
}

// Retryable reports whether the same call may succeed later.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Failure describes an error well enough for a caller to decide on retries.
type Failure struct {
	Name      string
	Status    int
	Retryable bool
}

// Describe classifies err returned by a Client method.
func Describe(err error) Failure {
	var apiErr *APIError
	switch {
	case err == nil:
		return Failure{}
	case errors.As(err, &apiErr):
		name := apiErr.Category
		if name == "" {
			name = http.StatusText(apiErr.Status)
		}
		return Failure{Name: name, Status: apiErr.Status, Retryable: apiErr.Retryable()}
	case errors.Is(err, context.Canceled):
		return Failure{Name: "cancelled"}
	case errors.Is(err, context.DeadlineExceeded):
		return Failure{Name: "deadline_exceeded", Retryable: true}
	case errors.Is(err, ErrDecode):
		return Failure{Name: "decode_error"}
	default:
		return Failure{Name: "network_error", Retryable: true}
	}
}

// ErrDecode marks a 2xx response whose body was not usable JSON.
var ErrDecode = errors.New("crm: invalid response body")
