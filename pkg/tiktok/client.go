// Package tiktok implements the source adapter: it pulls the trending feed
// from the TikTok web API and normalizes video authors into profile records.
package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/lisanmuaddib/trendscout/pkg/retry"
	"github.com/sirupsen/logrus"
)

// ClientOption allows for customization of the client
type ClientOption func(*Client)

type Client struct {
	config   *Config
	http     *http.Client
	retryCfg retry.Config
	logger   *logrus.Logger
}

// NewClient creates a new TikTok API client. Every page fetch is retried
// with the provided retry configuration.
func NewClient(config *Config, retryCfg retry.Config, opts ...ClientOption) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := retryCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	client := &Client{
		config:   config,
		http:     &http.Client{},
		retryCfg: retryCfg,
		logger:   config.Logger,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

func (c *Client) makeRequest(ctx context.Context, endpoint string, query url.Values) (*http.Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	if c.config.MSToken != "" {
		query.Set("msToken", c.config.MSToken)
	}

	fullURL := c.config.BaseURL + endpoint + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Referer", "https://www.tiktok.com/")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	return resp, nil
}

// handleResponse checks for API errors in the response
func (c *Client) handleResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}

	var errResp struct {
		StatusCode int    `json:"statusCode"`
		StatusMsg  string `json:"statusMsg"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("tiktok api error: status=%d body=%s", resp.StatusCode, string(body))
	}

	c.logger.WithFields(logrus.Fields{
		"status_code":     resp.StatusCode,
		"api_status_code": errResp.StatusCode,
		"message":         errResp.StatusMsg,
	}).Error("TikTok API error")

	return fmt.Errorf("tiktok api error: status=%d code=%d message=%s",
		resp.StatusCode, errResp.StatusCode, errResp.StatusMsg)
}
