// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/OCAP2/globeview/pkg/core"
)

// maxImageBytes bounds the response body of a badge request.
const maxImageBytes = 4 << 20

// Config holds the image service endpoint.
type Config struct {
	URL     string        `json:"url" mapstructure:"url"`
	APIKey  string        `json:"apiKey" mapstructure:"apiKey"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// Client handles communication with the badge image service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewFromConfig creates a client for the configured service.
func NewFromConfig(cfg Config) *Client {
	return New(cfg.URL, cfg.APIKey).WithTimeout(cfg.Timeout)
}

// WithTimeout replaces the HTTP timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.httpClient.Timeout = d
	}
	return c
}

// BadgeLabel is the text drawn on a cluster badge.
func BadgeLabel(memberCount int) string {
	return fmt.Sprintf("%d Locations", memberCount)
}

type badgeRequest struct {
	Label  string `json:"label"`
	Count  int    `json:"count"`
	Accent string `json:"accent"`
}

type badgeResponse struct {
	Image string `json:"image"`
}

// Healthcheck checks if the image service is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// GenerateBadge renders the "<n> Locations" badge in the given accent color
// and returns the image as a URI.
func (c *Client) GenerateBadge(ctx context.Context, memberCount int, accent string) (core.ImageHandle, error) {
	body, err := json.Marshal(badgeRequest{
		Label:  BadgeLabel(memberCount),
		Count:  memberCount,
		Accent: accent,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode badge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/badges", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("badge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("badge request returned status %d", resp.StatusCode)
	}

	var out badgeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxImageBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode badge response: %w", err)
	}
	if out.Image == "" {
		return "", fmt.Errorf("badge response for %d members has no image", memberCount)
	}
	return core.ImageHandle(out.Image), nil
}
