// Package api is the HTTP/JSON client for the intake API: participants,
// relationships, involvement history, allegations and person search.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hpungsan/intake/internal/config"
	"github.com/hpungsan/intake/internal/errors"
	"github.com/hpungsan/intake/internal/logging"
)

const (
	// DefaultTimeout is the default request timeout
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum response body size (10MB)
	MaxResponseSize = 10 * 1024 * 1024
)

// Options configures a Client.
type Options struct {
	BaseURL string `validate:"required,url"`

	// Timeout bounds each request; 0 uses DefaultTimeout
	Timeout time.Duration `validate:"gte=0"`

	// RequestsPerSecond of 0 disables rate limiting
	RequestsPerSecond float64 `validate:"gte=0"`
	Burst             int     `validate:"gte=0"`

	// HTTPClient overrides the transport (tests); its Timeout is left alone
	HTTPClient *http.Client `validate:"-"`

	Logger *zap.Logger `validate:"-"`
}

// OptionsFromConfig maps application config onto client options.
func OptionsFromConfig(cfg *config.Config, logger *zap.Logger) Options {
	return Options{
		BaseURL:           cfg.APIBaseURL,
		Timeout:           time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.RequestBurst,
		Logger:            logger,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Client talks to the intake API. It never retries.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("api client: %v", err))
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("api client: %v", err))
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	limit, burst := rate.Inf, opts.Burst
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		base:    base,
		http:    hc,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logging.OrNop(opts.Logger),
	}, nil
}

// do sends one request and decodes a 2xx JSON response into out (if non-nil).
// 403 maps to FORBIDDEN, any other non-2xx to REQUEST_FAILED with the decoded
// body as details, and transport failures to REQUEST_FAILED with status 502.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.NewRequestFailed(0, fmt.Sprintf("%s %s: %v", method, path, err), nil)
	}

	u := *c.base
	u.RawPath = c.base.EscapedPath() + path
	unescaped, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return errors.NewInternal(err)
	}
	u.Path = unescaped
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.NewInternal(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return errors.NewInternal(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("api request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return errors.NewRequestFailed(0, fmt.Sprintf("%s %s: %v", method, path, err), nil)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return errors.NewRequestFailed(0, fmt.Sprintf("%s %s: read body: %v", method, path, err), nil)
	}
	if len(data) > MaxResponseSize {
		return errors.NewRequestFailed(0, fmt.Sprintf("%s %s: response body too large", method, path), nil)
	}

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode == http.StatusForbidden {
		return errors.NewForbidden("")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewRequestFailed(resp.StatusCode,
			fmt.Sprintf("%s %s: %s", method, path, http.StatusText(resp.StatusCode)),
			errorDetails(data))
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.NewRequestFailed(resp.StatusCode, fmt.Sprintf("%s %s: invalid response: %v", method, path, err), nil)
	}
	return nil
}

// errorDetails decodes an error response body. Object bodies are returned
// as-is so callers keep field-level errors; anything else is wrapped.
func errorDetails(data []byte) map[string]any {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err == nil {
		return obj
	}
	var v any
	if err := json.Unmarshal(data, &v); err == nil {
		return map[string]any{"body": v}
	}
	return map[string]any{"body": string(data)}
}
