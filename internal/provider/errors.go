package provider

import (
	"errors"
	"fmt"
)

// ErrNotImplemented is returned by a ProviderClient capability the provider
// does not (yet) offer — notably FetchManifest, a documented stub on some
// deployments. Callers fall back rather than retry it.
var ErrNotImplemented = errors.New("provider capability not implemented")

// StatusCodeError wraps a provider HTTP response whose status fell outside
// 2xx, carrying the status code so the retry executor can consult its
// RetryableStatusCodes set (it implements retry.StatusError).
type StatusCodeError struct {
	Status int
	Body   string
}

func (e *StatusCodeError) Error() string {
	return fmt.Sprintf("provider responded %d: %s", e.Status, e.Body)
}

func (e *StatusCodeError) StatusCode() int { return e.Status }
