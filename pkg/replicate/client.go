// Package replicate is a minimal client for the Replicate predictions
// API, covering exactly what the tweetforge pipeline needs: create a
// prediction for a model, wait for it to finish, and return its output.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL  = "https://api.replicate.com/v1"
	defaultTimeout  = 5 * time.Minute
	defaultPollWait = time.Second
)

// Client talks to the Replicate API. It is safe for concurrent use.
type Client struct {
	apiToken string
	baseURL  string
	http     *http.Client
	pollWait time.Duration
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used for testing.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.http = httpClient }
}

// WithPollInterval overrides the wait between prediction status polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollWait = d }
}

// NewClient creates a Client authenticated with apiToken.
func NewClient(apiToken string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		apiToken: apiToken,
		baseURL:  defaultBaseURL,
		http:     &http.Client{Timeout: defaultTimeout},
		pollWait: defaultPollWait,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// prediction is the subset of the API's prediction resource we consume.
type prediction struct {
	ID     string            `json:"id"`
	Status string            `json:"status"`
	Output any               `json:"output"`
	Error  any               `json:"error"`
	URLs   map[string]string `json:"urls"`
}

// Run creates a prediction for model and blocks until it reaches a
// terminal status, returning the decoded output value. The model is
// either "owner/name" or "owner/name:version"; versioned models go
// through the generic predictions endpoint. The request carries
// Prefer: wait so short predictions return synchronously; longer ones
// are polled until done or ctx is cancelled.
func (c *Client) Run(ctx context.Context, model string, input map[string]any) (any, error) {
	if c.apiToken == "" {
		return nil, fmt.Errorf("replicate: api token is empty")
	}

	var (
		url  string
		body map[string]any
	)
	if idx := strings.LastIndex(model, ":"); idx >= 0 {
		url = c.baseURL + "/predictions"
		body = map[string]any{"version": model[idx+1:], "input": input}
	} else {
		url = c.baseURL + "/models/" + model + "/predictions"
		body = map[string]any{"input": input}
	}

	pred, err := c.createPrediction(ctx, url, body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("prediction created", "model", model, "id", pred.ID, "status", pred.Status)

	for !isTerminal(pred.Status) {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("replicate: prediction %s interrupted: %w", pred.ID, ctx.Err())
		case <-time.After(c.pollWait):
		}
		pred, err = c.getPrediction(ctx, pred)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("prediction polled", "id", pred.ID, "status", pred.Status)
	}

	if pred.Status != "succeeded" {
		return nil, fmt.Errorf("replicate: prediction %s %s: %v", pred.ID, pred.Status, pred.Error)
	}
	return pred.Output, nil
}

func (c *Client) createPrediction(ctx context.Context, url string, body map[string]any) (*prediction, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("replicate: cannot encode prediction request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("replicate: cannot build prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "wait")
	return c.doPrediction(req)
}

func (c *Client) getPrediction(ctx context.Context, pred *prediction) (*prediction, error) {
	url := pred.URLs["get"]
	if url == "" {
		url = c.baseURL + "/predictions/" + pred.ID
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("replicate: cannot build poll request: %w", err)
	}
	return c.doPrediction(req)
}

func (c *Client) doPrediction(req *http.Request) (*prediction, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate: request failed: %w", err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("replicate: cannot read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("replicate: api returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var pred prediction
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&pred); err != nil {
		return nil, fmt.Errorf("replicate: cannot decode prediction: %w", err)
	}
	return &pred, nil
}

func isTerminal(status string) bool {
	switch status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}
