package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
	"github.com/DevRickLin/social-reactor/internal/service"
)

// Client is the HTTP client for the agent daemon's API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// TweetResult is the tweet an action produced
type TweetResult struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ============ Pass-through Actions ============

// Tweet publishes a standalone tweet
func (c *Client) Tweet(ctx context.Context, text string) (*TweetResult, error) {
	var result struct {
		Tweet TweetResult `json:"tweet"`
	}
	if err := c.send(ctx, http.MethodPost, "/tweet", map[string]string{"text": text}, &result); err != nil {
		return nil, err
	}
	return &result.Tweet, nil
}

// Quote quote-tweets id with comment
func (c *Client) Quote(ctx context.Context, id, comment string) (*TweetResult, error) {
	var result struct {
		Tweet TweetResult `json:"tweet"`
	}
	path := fmt.Sprintf("/quote/%s", url.PathEscape(id))
	if err := c.send(ctx, http.MethodPost, path, map[string]string{"comment": comment}, &result); err != nil {
		return nil, err
	}
	return &result.Tweet, nil
}

// Like likes a tweet
func (c *Client) Like(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodPost, fmt.Sprintf("/like/%s", url.PathEscape(id)), nil, nil)
}

// Retweet retweets a tweet
func (c *Client) Retweet(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodPost, fmt.Sprintf("/retweet/%s", url.PathEscape(id)), nil, nil)
}

// ============ Jobs ============

// GetJobs lists the scheduled jobs
func (c *Client) GetJobs(ctx context.Context) ([]service.JobStatus, error) {
	var result struct {
		Jobs []service.JobStatus `json:"jobs"`
	}
	if err := c.send(ctx, http.MethodGet, "/api/jobs", nil, &result); err != nil {
		return nil, err
	}
	return result.Jobs, nil
}

// RunJob starts a firing now. It reports false when the job is already running.
func (c *Client) RunJob(ctx context.Context, name string) (bool, error) {
	err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/jobs/%s/run", url.PathEscape(name)), nil, nil)
	var herr *HTTPError
	if errors.As(err, &herr) && herr.Status == http.StatusConflict {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ============ Watermarks ============

// GetWatermarks lists the agent's watermarks
func (c *Client) GetWatermarks(ctx context.Context) ([]domain.Watermark, error) {
	var result struct {
		Watermarks []domain.Watermark `json:"watermarks"`
	}
	if err := c.send(ctx, http.MethodGet, "/api/watermarks", nil, &result); err != nil {
		return nil, err
	}
	return result.Watermarks, nil
}

// ============ HTTP Helpers ============

// HTTPError is a non-2xx answer from the daemon
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(e.Body), &envelope) == nil && envelope.Error != "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, envelope.Error)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

func (c *Client) send(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &HTTPError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
