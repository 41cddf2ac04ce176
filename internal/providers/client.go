package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/mixtape-app/mixtape/internal/shared"
	"golang.org/x/time/rate"
)

// ClientOpts tunes the shared provider HTTP client.
type ClientOpts struct {
	Retries        int     // transient retry attempts (default 3)
	RequestsPerSec float64 // rate limit toward the provider (default 5)
	Burst          int     // limiter burst (default 1)
	Timeout        time.Duration
	HTTPClient     *http.Client // overrides the retrying client when set, used by tests
}

// Client is the HTTP plumbing every adapter shares: a retrying client for
// network and 5xx failures plus a per-adapter rate limiter. 429 responses are
// not retried here; they surface as [shared.RateLimitedError] so the engine
// can pause all in-flight work for the job.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a provider HTTP client rooted at baseURL.
func NewClient(baseURL string, opts ClientOpts) *Client {
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 5.0
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		retryClient := retryablehttp.NewClient()
		retryClient.RetryMax = opts.Retries
		retryClient.HTTPClient.Timeout = opts.Timeout
		retryClient.Logger = nil
		retryClient.CheckRetry = transientRetryPolicy
		httpClient = retryClient.StandardClient()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
	}
}

// transientRetryPolicy retries network errors and 5xx responses only. Rate
// limit responses are handed back to the caller untouched.
func transientRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp != nil && resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

// Do performs a rate-limited, authenticated request and decodes the JSON
// response into result when non-nil. Extra headers supplement the bearer
// token (Apple Music sends its user token alongside the developer token).
func (c *Client) Do(ctx context.Context, method, endpoint, token string, headers map[string]string, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	apiURL := c.baseURL + endpoint

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// statusError maps a non-2xx provider response onto the error taxonomy.
func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &shared.RateLimitedError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: status %d", shared.ErrTokenExpired, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", shared.ErrPlaylistNotFound, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", shared.ErrProviderUnavailable, resp.StatusCode, snippet)
	default:
		return fmt.Errorf("provider API error: status %d: %s", resp.StatusCode, snippet)
	}
}

// retryAfter parses the Retry-After header, defaulting to one second.
func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return time.Second
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return time.Second
}
