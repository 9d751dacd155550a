package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/grocery-storefront/internal/ids"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	ResourceUsers      = "users"
	ResourceProducts   = "products"
	ResourceOrders     = "orders"
	ResourceDeliveries = "deliveries"
	ResourcePayments   = "payments"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	maxErrorBody      = 4 << 10
)

// TokenSource supplies the bearer credential. An empty token sends no Authorization header.
type TokenSource interface {
	Token() string
}

// IdempotentPayload is implemented by create payloads that carry a deduplication key.
type IdempotentPayload interface {
	IdempotencyKey() string
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	// RetryMax is the number of extra attempts for reads after a transient failure.
	RetryMax             int
	RetryInitialInterval time.Duration
	HTTPClient           *http.Client
}

// Client is the REST CRUD client for the storefront backend.
type Client struct {
	baseURL      *url.URL
	http         *http.Client
	tokens       TokenSource
	retryMax     int
	retryInitial time.Duration
}

func New(cfg Config, tokens TokenSource) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: invalid base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("apiclient: base url %q must be absolute", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	retryInitial := cfg.RetryInitialInterval
	if retryInitial <= 0 {
		retryInitial = 200 * time.Millisecond
	}

	return &Client{
		baseURL:      base,
		http:         httpClient,
		tokens:       tokens,
		retryMax:     max(cfg.RetryMax, 0),
		retryInitial: retryInitial,
	}, nil
}

// List decodes the entities of resource into out, which must point to a slice.
func (c *Client) List(ctx context.Context, resource string, filter url.Values, out any) error {
	path := "/" + resource
	if len(filter) > 0 {
		path += "?" + filter.Encode()
	}

	status, body, err := c.read(ctx, path)
	if err != nil {
		return fmt.Errorf("apiclient: list %s: %w", resource, err)
	}

	raw, err := unwrapList(resource, status, body)
	if err != nil {
		return fmt.Errorf("apiclient: list %s: %w", resource, err)
	}
	return decode(raw, out, resource)
}

func (c *Client) Get(ctx context.Context, resource string, id ids.ID, out any) error {
	status, body, err := c.read(ctx, entityPath(resource, id))
	if err != nil {
		return fmt.Errorf("apiclient: get %s %s: %w", resource, id, err)
	}

	raw, err := unwrapObject(resource, status, body)
	if err != nil {
		return fmt.Errorf("apiclient: get %s %s: %w", resource, id, err)
	}
	return decode(raw, out, resource)
}

// Create is never retried: a retried POST may create a second entity.
func (c *Client) Create(ctx context.Context, resource string, payload, out any) error {
	header := http.Header{}
	if p, ok := payload.(IdempotentPayload); ok && p.IdempotencyKey() != "" {
		header.Set(IdempotencyHeader, p.IdempotencyKey())
	}

	status, body, err := c.do(ctx, http.MethodPost, "/"+resource, payload, header)
	if err != nil {
		return fmt.Errorf("apiclient: create %s: %w", resource, err)
	}
	if out == nil {
		return nil
	}

	raw, err := unwrapObject(resource, status, body)
	if err != nil {
		return fmt.Errorf("apiclient: create %s: %w", resource, err)
	}
	return decode(raw, out, resource)
}

// Update sends a partial update.
func (c *Client) Update(ctx context.Context, resource string, id ids.ID, payload, out any) error {
	status, body, err := c.do(ctx, http.MethodPatch, entityPath(resource, id), payload, nil)
	if err != nil {
		return fmt.Errorf("apiclient: update %s %s: %w", resource, id, err)
	}
	if out == nil {
		return nil
	}

	raw, err := unwrapObject(resource, status, body)
	if err != nil {
		return fmt.Errorf("apiclient: update %s %s: %w", resource, id, err)
	}
	return decode(raw, out, resource)
}

func (c *Client) Delete(ctx context.Context, resource string, id ids.ID) error {
	status, body, err := c.do(ctx, http.MethodDelete, entityPath(resource, id), nil, nil)
	if err != nil {
		return fmt.Errorf("apiclient: delete %s %s: %w", resource, id, err)
	}

	if len(bytes.TrimSpace(body)) > 0 && bytes.TrimSpace(body)[0] == '{' {
		fields, err := decodeFields(body)
		if err != nil {
			return fmt.Errorf("apiclient: delete %s %s: %w", resource, id, err)
		}
		if err := checkSuccess(fields, status); err != nil {
			return fmt.Errorf("apiclient: delete %s %s: %w", resource, id, err)
		}
	}
	return nil
}

// read issues a GET, retrying transient failures with exponential backoff. Authorization-class and
// other 4xx failures are returned immediately.
func (c *Client) read(ctx context.Context, path string) (int, []byte, error) {
	type result struct {
		status int
		body   []byte
	}

	operation := func() (result, error) {
		status, body, err := c.do(ctx, http.MethodGet, path, nil, nil)
		if err != nil {
			if !retryable(ctx, err) {
				return result{}, backoff.Permanent(err)
			}
			return result{}, err
		}
		return result{status: status, body: body}, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInitial

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.retryMax+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Str("path", path).Dur("retry_in", next).Msg("apiclient: retrying read")
		}),
	)
	if err != nil {
		return 0, nil, err
	}
	return res.status, res.body, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var rf *RequestFailed
	if errors.As(err, &rf) {
		return rf.Transient()
	}
	// Transport error: connection refused, reset, timeout.
	return true
}

func (c *Client) do(ctx context.Context, method, path string, payload any, header http.Header) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("apiclient: response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, nil, &RequestFailed{Status: resp.StatusCode, Message: errorMessage(body)}
	}
	return resp.StatusCode, body, nil
}

func errorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err == nil {
			if msg := messageOf(fields); msg != "" {
				return msg
			}
		}
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(body)
}

func decode(raw json.RawMessage, out any, resource string) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("apiclient: decode %s: %w: %v", resource, ErrMalformedResponse, err)
	}
	return nil
}

func entityPath(resource string, id ids.ID) string {
	return "/" + resource + "/" + url.PathEscape(id.String())
}
