// Copyright (c) 2025 Tidechat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the HTTP client for OpenAI-compatible completion
// servers: streaming and non-streaming chat completions, model listing, and
// the health probe.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize caps non-streaming response bodies.
	MaxResponseSize = 10 * 1024 * 1024

	// requestsPerSecond / requestBurst configure the per-client limiter.
	// Generous for interactive use; it exists to stop a runaway caller from
	// hammering a backend.
	requestsPerSecond = 5
	requestBurst      = 10
)

// Sentinel errors for common failure classes. Wrapped errors carry backend
// detail; compare with errors.Is.
var (
	ErrNoBody        = errors.New("response carries no body")
	ErrAuthFailed    = errors.New("authentication failed")
	ErrRateLimited   = errors.New("rate limited")
	ErrModelNotFound = errors.New("model not found")
)

// APIError is a non-success response from a backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
}

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// sharedHTTPClient serves bounded (non-streaming) requests.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
	Timeout: DefaultTimeout,
}

// sharedStreamingClient has no timeout; streaming lifetime is controlled by
// the request context. A stalled upstream blocks until the caller cancels.
var sharedStreamingClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// Config identifies one backend endpoint. APIKey is passed through as a
// bearer credential, never validated locally.
type Config struct {
	ServerID string
	BaseURL  string
	APIKey   string
}

// Client talks to a single configured backend.
type Client struct {
	cfg     Config
	limiter *rate.Limiter
	log     zerolog.Logger
}

// New creates a client for one backend endpoint.
func New(cfg Config, log zerolog.Logger) *Client {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		log:     log.With().Str("server", cfg.ServerID).Logger(),
	}
}

// ServerID returns the configured backend identifier.
func (c *Client) ServerID() string {
	return c.cfg.ServerID
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "tidechat/0.3.0")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

// logResponse logs status and duration only; never headers or bodies.
func (c *Client) logResponse(req *http.Request, status int, d time.Duration) {
	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", status).
		Dur("duration", d).
		Msg("api request")
}

// =============================================================================
// STREAMING COMPLETIONS
// =============================================================================

// Stream issues a streaming chat-completions request and hands back the
// response body for the caller to pump. A non-success status or a missing
// body fails here, before any record is decoded; cancellation of ctx aborts
// the request and subsequent body reads.
func (c *Client) Stream(ctx context.Context, chatReq ChatRequest) (io.ReadCloser, error) {
	chatReq.Stream = true

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	start := time.Now()
	resp, err := sharedStreamingClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	c.logResponse(req, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		resp.Body.Close()
		return nil, c.handleErrorResponse(resp.StatusCode, errBody)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, ErrNoBody
	}

	return resp.Body, nil
}

// =============================================================================
// NON-STREAMING COMPLETIONS
// =============================================================================

// Complete issues a non-streaming request and returns the response object
// verbatim, shape untouched.
func (c *Client) Complete(ctx context.Context, chatReq ChatRequest) (json.RawMessage, error) {
	chatReq.Stream = false

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(respBody), nil
}

// =============================================================================
// MODELS AND HEALTH
// =============================================================================

// ListModels retrieves the models the backend advertises.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var parsed modelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}
	return parsed.Data, nil
}

// Health probes the backend health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	_, err = c.do(req)
	return err
}

// =============================================================================
// INTERNALS
// =============================================================================

// do runs a bounded request, returning the body on success or a classified
// error on failure.
func (c *Client) do(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logResponse(req, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp.StatusCode, body)
	}
	return body, nil
}

// handleErrorResponse converts a non-success response into a typed error,
// keeping whatever detail the backend offered.
func (c *Client) handleErrorResponse(status int, body []byte) error {
	var parsed apiErrorResponse
	msg := strings.TrimSpace(string(body))
	code := ""
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
		code = parsed.Error.Code
	}

	apiErr := &APIError{Status: status, Code: code, Message: msg}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthFailed, apiErr.Message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrModelNotFound, apiErr.Message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
	default:
		return apiErr
	}
}
