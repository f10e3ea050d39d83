// Package provider is the HTTP client for the hosted inference service.
// The service runs the model and hands back whatever output shape that
// model produces; this client returns it undecoded beyond JSON.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.replicate.com"

// Error is a failure reported by the inference service or its transport.
type Error struct {
	Status  int    // HTTP status, 0 for transport failures
	Message string // provider detail, suitable for display
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider: %s (status %d)", e.Message, e.Status)
	}
	return "provider: " + e.Message
}

type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New builds a client. An empty token is allowed: the service rejects the
// calls and that rejection surfaces as a normal provider error, so a
// misconfigured deployment still serves readable failures.
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type predictionRequest struct {
	Input map[string]any `json:"input"`
}

type predictionResponse struct {
	Output any    `json:"output"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Run executes the named model with the given input and returns its raw
// output. The shape of the output (string, list of strings, anything else)
// is entirely model-defined and is not interpreted here.
func (c *Client) Run(ctx context.Context, model string, input map[string]any) (any, error) {
	body, err := json.Marshal(predictionRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("provider: marshal prediction request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/models/%s/predictions", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider: build prediction request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	// Block until the prediction finishes instead of polling.
	req.Header.Set("Prefer", "wait")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	var pr predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, &Error{Status: resp.StatusCode, Message: "decode prediction response: " + err.Error()}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &Error{Status: resp.StatusCode, Message: errorDetail(pr, resp.StatusCode)}
	}
	if pr.Status == "failed" || pr.Status == "canceled" {
		return nil, &Error{Status: resp.StatusCode, Message: errorDetail(pr, resp.StatusCode)}
	}

	return pr.Output, nil
}

func errorDetail(pr predictionResponse, status int) string {
	for _, s := range []string{pr.Error, pr.Detail, pr.Title} {
		if s != "" {
			return s
		}
	}
	return fmt.Sprintf("request failed with status %d", status)
}
