package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nuts-foundation/nuts-monitor/internal/logging"
	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
	"github.com/nuts-foundation/nuts-monitor/pkg/ports"
	"github.com/oapi-codegen/runtime"
)

var _ ports.NodeClient = (*HTTPClient)(nil)

// HTTPClient reads from the public and internal HTTP interfaces of a Nuts node.
type HTTPClient struct {
	config Config
	doer   HTTPRequestDoer
	logger *slog.Logger
}

// Option configures the HTTPClient.
type Option func(*HTTPClient)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

// WithDoer replaces the HTTP client, e.g. with an httptest server's client.
func WithDoer(doer HTTPRequestDoer) Option {
	return func(c *HTTPClient) {
		c.doer = doer
	}
}

// New creates a client for the configured node.
func New(cfg Config, opts ...Option) (*HTTPClient, error) {
	c := &HTTPClient{
		config: cfg,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.doer == nil {
		doer, err := CreateHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
		c.doer = doer
	}
	return c, nil
}

// Config returns the client configuration.
func (c *HTTPClient) Config() Config {
	return c.config
}

func (c *HTTPClient) get(ctx context.Context, base, path string, query ...string) (*http.Response, error) {
	url := strings.TrimSuffix(base, "/") + path
	if len(query) > 0 {
		url += "?" + strings.Join(query, "&")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Node request", "url", url)
	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return resp, nil
}

func decode[T any](resp *http.Response, expected ...int) (*T, error) {
	defer resp.Body.Close()

	ok := false
	for _, code := range expected {
		ok = ok || resp.StatusCode == code
	}
	if !ok {
		return nil, TestResponseCode(expected[0], resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("received incorrect response from node: %w: %s", err, body)
	}
	return &result, nil
}

// CheckHealth returns the node's health. A node that is DOWN answers 503 with a health body.
func (c *HTTPClient) CheckHealth(ctx context.Context) (*domain.Health, error) {
	resp, err := c.get(ctx, c.config.Address, "/health")
	if err != nil {
		return nil, err
	}
	return decode[domain.Health](resp, http.StatusOK, http.StatusServiceUnavailable)
}

// Diagnostics returns the node's diagnostics.
func (c *HTTPClient) Diagnostics(ctx context.Context) (*domain.Diagnostics, error) {
	resp, err := c.get(ctx, c.config.Address, "/status/diagnostics")
	if err != nil {
		return nil, err
	}
	return decode[domain.Diagnostics](resp, http.StatusOK)
}

// PeerDiagnostics returns the diagnostics per peer ID.
func (c *HTTPClient) PeerDiagnostics(ctx context.Context) (map[string]domain.PeerDiagnostics, error) {
	resp, err := c.get(ctx, c.config.internalAddress(), "/internal/network/v1/diagnostics/peers")
	if err != nil {
		return map[string]domain.PeerDiagnostics{}, err
	}
	result, err := decode[map[string]domain.PeerDiagnostics](resp, http.StatusOK)
	if err != nil {
		return map[string]domain.PeerDiagnostics{}, err
	}
	if *result == nil {
		return map[string]domain.PeerDiagnostics{}, nil
	}
	return *result, nil
}

// DIDDocument resolves a DID through the node's VDR.
func (c *HTTPClient) DIDDocument(ctx context.Context, did string) (*domain.DIDResolutionResult, error) {
	pathParam, err := runtime.StyleParamWithLocation("simple", false, "did", runtime.ParamLocationPath, did)
	if err != nil {
		return nil, err
	}
	resp, err := c.get(ctx, c.config.internalAddress(), "/internal/vdr/v1/did/"+pathParam)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, did)
	}
	return decode[domain.DIDResolutionResult](resp, http.StatusOK)
}

// ListTransactions returns transactions in a certain range according to LC value.
func (c *HTTPClient) ListTransactions(ctx context.Context, start, end int) ([]string, error) {
	startParam, err := runtime.StyleParamWithLocation("form", true, "start", runtime.ParamLocationQuery, start)
	if err != nil {
		return nil, err
	}
	endParam, err := runtime.StyleParamWithLocation("form", true, "end", runtime.ParamLocationQuery, end)
	if err != nil {
		return nil, err
	}

	resp, err := c.get(ctx, c.config.internalAddress(), "/internal/network/v1/transaction", startParam, endParam)
	if err != nil {
		return nil, err
	}
	result, err := decode[[]string](resp, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return *result, nil
}
