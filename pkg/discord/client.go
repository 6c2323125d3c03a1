// Package discord implements the publisher: it delivers one announcement per
// qualifying profile to a Discord channel, either directly or inside a
// per-profile thread.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lisanmuaddib/trendscout/pkg/retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ClientOption allows for customization of the client
type ClientOption func(*Client)

type Client struct {
	config   *Config
	http     *http.Client
	retryCfg retry.Config
	limiter  *rate.Limiter
	logger   *logrus.Logger
}

// NewClient creates a new Discord REST client. Outbound calls are retried
// with the provided retry configuration, and successive publishes are spaced
// by the configured post delay.
func NewClient(config *Config, retryCfg retry.Config, opts ...ClientOption) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := retryCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	limit := rate.Inf
	if config.PostDelay > 0 {
		limit = rate.Every(config.PostDelay)
	}

	client := &Client{
		config:   config,
		http:     &http.Client{},
		retryCfg: retryCfg,
		limiter:  rate.NewLimiter(limit, 1),
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

func (c *Client) makeRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
		c.logger.WithField("request_body", string(jsonBody)).Debug("Request payload")
	}

	fullURL := c.config.BaseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bot "+c.config.BotToken)

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
		Message string `json:"message"`
		Code    int    `json:"code"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("discord api error: status=%d body=%s", resp.StatusCode, string(body))
	}

	c.logger.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"error_code":  errResp.Code,
		"message":     errResp.Message,
	}).Error("Discord API error")

	return fmt.Errorf("discord api error: status=%d code=%d message=%s",
		resp.StatusCode, errResp.Code, errResp.Message)
}

// createMessage posts a message with a single embed to the given channel or
// thread.
func (c *Client) createMessage(ctx context.Context, channelID string, embed Embed) (*Message, error) {
	endpoint := fmt.Sprintf("/channels/%s/messages", channelID)

	resp, err := c.makeRequest(ctx, http.MethodPost, endpoint, CreateMessageRequest{
		Embeds: []Embed{embed},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.handleResponse(resp); err != nil {
		return nil, err
	}

	var msg Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("failed to decode message response: %w", err)
	}

	return &msg, nil
}

// createThread creates a public thread in the configured channel.
func (c *Client) createThread(ctx context.Context, name string) (*Thread, error) {
	endpoint := fmt.Sprintf("/channels/%s/threads", c.config.ChannelID)

	resp, err := c.makeRequest(ctx, http.MethodPost, endpoint, CreateThreadRequest{
		Name:                name,
		AutoArchiveDuration: c.config.AutoArchiveMinutes,
		Type:                ThreadTypePublic,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.handleResponse(resp); err != nil {
		return nil, err
	}

	var thread Thread
	if err := json.NewDecoder(resp.Body).Decode(&thread); err != nil {
		return nil, fmt.Errorf("failed to decode thread response: %w", err)
	}

	return &thread, nil
}
