package ai

import (
	"errors"
	"fmt"
	"net"
)

// ProviderError carries the HTTP status and response-body detail of a
// failed provider call so callers can diagnose and classify it.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s request failed with status %d: %s", e.Provider, e.Status, e.Body)
	}
	return fmt.Sprintf("%s request failed with status %d: %v", e.Provider, e.Status, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether an LLM or embedding failure is worth a
// retry. Rate limits (429) and server-side errors (5xx) are transient,
// as is any network-level failure; other client errors are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Status == 429 || pe.Status >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
