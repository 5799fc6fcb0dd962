// Package remote delivers claimed status batches to the sync service over HTTP.
package remote

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

	"articlesync/internal/config"
	"articlesync/internal/syncengine"
)

const userAgent = "articlesync/0.1.0"

const maxErrorBody = 2048

// ErrNotConfigured is returned when no remote endpoint is set.
var ErrNotConfigured = errors.New("remote sync endpoint not configured")

// StatusError reports a non-2xx response from the sync service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("sync service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("sync service returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the same request later may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type statusRequest struct {
	Status     string   `json:"status"`
	Flag       bool     `json:"flag"`
	ArticleIDs []string `json:"articleIds"`
}

// Client posts status batches to the sync service.
type Client struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewClient builds a client from configuration.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg == nil || !cfg.RemoteConfigured() {
		return nil, ErrNotConfigured
	}
	timeout := time.Duration(cfg.Remote.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Remote.BaseURL, "/") + cfg.Remote.StatusesPath,
		token:    strings.TrimSpace(cfg.Remote.APIToken),
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Endpoint returns the URL batches are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// SendStatuses posts one batch. Empty batches are skipped.
func (c *Client) SendStatuses(ctx context.Context, batch syncengine.Batch) error {
	if c == nil || c.client == nil {
		return ErrNotConfigured
	}
	if len(batch.ArticleIDs) == 0 {
		return nil
	}

	body, err := json.Marshal(statusRequest{
		Status:     batch.Key.String(),
		Flag:       batch.Flag,
		ArticleIDs: batch.ArticleIDs,
	})
	if err != nil {
		return fmt.Errorf("encode status batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send status batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
