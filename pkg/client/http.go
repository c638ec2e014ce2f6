package client

import (
	"crypto"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds every request to the node.
const DefaultTimeout = 10 * time.Second

// Config holds the node addresses and API security settings.
type Config struct {
	// Address of the node's public HTTP interface.
	Address string
	// InternalAddress is used for /internal endpoints when they are bound separately. Defaults to Address.
	InternalAddress string
	// APIKey signs the bearer tokens. Security is disabled when nil.
	APIKey      crypto.Signer
	APIUser     string
	APIAudience string
	Timeout     time.Duration
}

func (c Config) internalAddress() string {
	if c.InternalAddress != "" {
		return c.InternalAddress
	}
	return c.Address
}

// HTTPRequestDoer defines the Do method of the http.Client interface.
type HTTPRequestDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// AuthorizationTokenGenerator creates a bearer token per request.
type AuthorizationTokenGenerator func() (string, error)

// httpRequestDoerAdapter wraps a request function so it can be used where HTTPRequestDoer is required.
type httpRequestDoerAdapter struct {
	fn func(req *http.Request) (*http.Response, error)
}

func (w httpRequestDoerAdapter) Do(req *http.Request) (*http.Response, error) {
	return w.fn(req)
}

// CreateHTTPClient creates an HTTP client for the node with the configured timeout.
// When an API key is configured every request carries a freshly signed bearer token.
func CreateHTTPClient(cfg Config) (HTTPRequestDoer, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	if cfg.APIKey == nil {
		return client, nil
	}
	if cfg.APIUser == "" || cfg.APIAudience == "" {
		return nil, fmt.Errorf("API user and audience are required with an API key")
	}

	generator := createTokenGenerator(cfg)
	return httpRequestDoerAdapter{fn: func(req *http.Request) (*http.Response, error) {
		token, err := generator()
		if err != nil {
			return nil, fmt.Errorf("failed to generate authorization token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return client.Do(req)
	}}, nil
}

// StatusError is returned when the node answers with an unexpected status code.
type StatusError struct {
	Code     int
	Expected int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned HTTP %d (expected: %d), body: %s", e.Code, e.Expected, e.Body)
}

// TestResponseCode checks whether the returned HTTP status code matches the expected code.
// If it doesn't match it returns a *StatusError containing both codes and the response body.
func TestResponseCode(expectedStatusCode int, response *http.Response) error {
	if response.StatusCode != expectedStatusCode {
		responseData, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return &StatusError{Code: response.StatusCode, Expected: expectedStatusCode, Body: string(responseData)}
	}
	return nil
}
