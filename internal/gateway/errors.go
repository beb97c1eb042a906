package gateway

import "fmt"

// apiError is a non-2xx response from a provider API. The body is kept
// for logs only; it never reaches clients.
type apiError struct {
	provider string
	model    string
	status   int
	body     string
}

// Error implements the error interface.
func (e *apiError) Error() string {
	if e.body != "" {
		return fmt.Sprintf("%s/%s API error: HTTP %d: %s", e.provider, e.model, e.status, e.body)
	}
	return fmt.Sprintf("%s/%s API error: HTTP %d", e.provider, e.model, e.status)
}
