package httputil

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTimeout is applied to every outbound API client.
const DefaultTimeout = 10 * time.Second

// NewClient returns a resty client with the shared defaults used by all
// adapters. Retries are left off; no outbound call in this service is retried.
func NewClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(DefaultTimeout)
}
