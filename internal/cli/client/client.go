package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/castline-dev/castline/internal/gate"
)

// Client represents an HTTP client for the Castline API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new API client. token may be empty for anonymous calls.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// GateResult is the server's answer for a navigation
type GateResult struct {
	gate.Decision
	RedirectURL string `json:"redirect_url"`
	Onboarding  struct {
		UserNeedsOnboarding    bool `json:"user_needs_onboarding"`
		HasCompletedOnboarding bool `json:"has_completed_onboarding"`
		NeedsOnboarding        bool `json:"needs_onboarding"`
	} `json:"onboarding"`
}

// EvaluateGate asks the server what the gate decides for a navigation
func (c *Client) EvaluateGate(mode, path, from string) (*GateResult, error) {
	q := url.Values{}
	if mode != "" {
		q.Set("mode", mode)
	}
	if path != "" {
		q.Set("path", path)
	}
	if from != "" {
		q.Set("from", from)
	}

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/gate?%s", c.baseURL, q.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gate evaluation failed (status %d): %s", resp.StatusCode, string(body))
	}

	var result GateResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}
