package scrape

import "fmt"

// ProviderError means the scraping provider answered but reported a failure,
// either through a non-success HTTP status or a success=false body.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("scrape provider error: %d - %s", e.StatusCode, e.Message)
}

// NetworkError means the request never produced a provider response:
// DNS, TLS, connection reset or timeout.
type NetworkError struct {
	Message string
}

func (e *NetworkError) Error() string {
	return "scrape network error: " + e.Message
}
