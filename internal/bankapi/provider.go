// Package bankapi queries bank aggregators for recent transactions so the
// polling path can reconcile without waiting for a webhook.
package bankapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/learnhub/payrecon/pkg/config"
	pkgerrors "github.com/learnhub/payrecon/pkg/errors"
)

const (
	maxResponseBytes  int64 = 4 << 20
	errorBodyReadSize int64 = 1024
	defaultPageSize         = 50
)

// Window bounds a transaction lookup.
type Window struct {
	From time.Time
	To   time.Time
}

// Provider lists raw transaction payloads for the configured account. The
// payload is handed to the normalizer unchanged.
type Provider interface {
	Name() string
	ListTransactions(ctx context.Context, window Window) (json.RawMessage, error)
}

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the same request may succeed later.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable reports whether err is a transient provider failure: a timeout,
// a transport error or a retryable status.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}

// Option configures optional client behavior.
type Option func(*httpClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *httpClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithBaseURL overrides the provider base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *httpClient) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// New builds the provider selected by cfg. It returns nil when polling
// lookups are disabled.
func New(cfg config.BankAPIConfig, opts ...Option) (Provider, error) {
	switch cfg.ProviderName() {
	case config.BankProviderNone:
		return nil, nil
	case config.BankProviderSepay:
		provider, err := NewSepay(cfg, opts...)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case config.BankProviderCasso:
		provider, err := NewCasso(cfg, opts...)
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported bank api provider %q", cfg.Provider))
	}
}

type httpClient struct {
	name     string
	client   *http.Client
	baseURL  string
	apiKey   string
	account  string
	pageSize int
}

func newHTTPClient(name, defaultBaseURL string, cfg config.BankAPIConfig, opts []Option) (*httpClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s api key is required", name))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	c := &httpClient{
		name:     name,
		client:   &http.Client{Timeout: timeout},
		baseURL:  defaultBaseURL,
		apiKey:   apiKey,
		account:  strings.TrimSpace(cfg.AccountNumber),
		pageSize: pageSize,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		c.baseURL = strings.TrimRight(base, "/")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *httpClient) get(ctx context.Context, path string, query map[string]string, authorize func(*http.Request)) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("build %s request", c.name))
	}
	q := req.URL.Query()
	for k, v := range query {
		if v != "" {
			q.Set(k, v)
		}
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("execute %s request", c.name))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadSize))
		statusErr := &StatusError{Provider: c.name, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, statusErr, fmt.Sprintf("%s transaction list failed", c.name))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("read %s response", c.name))
	}
	if !json.Valid(body) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("%s returned invalid json", c.name))
	}
	return json.RawMessage(body), nil
}
