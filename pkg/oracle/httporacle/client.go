// Package httporacle talks to a remote inference service that hosts the
// tag estimation model.
//
// The service accepts POST {url}/estimate?strategy=plausible|top with a PNG
// body and answers with {"category": [["tag", confidence], ...]}.
package httporacle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mwantia/illustag/pkg/oracle"
)

const maxErrorBody = 512

type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a client for the service at baseURL.
// A zero timeout leaves inference unbounded.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid oracle url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid oracle url scheme '%s'", u.Scheme)
	}

	return &Client{
		endpoint: u.String() + "/estimate",
		http:     &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Estimate(ctx context.Context, img image.Image, strategy oracle.Strategy) (oracle.Result, error) {
	if _, err := oracle.ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	if err := png.Encode(&body, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"?strategy="+url.QueryEscape(string(strategy)), &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("oracle responded with %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var result oracle.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode oracle response: %w", err)
	}

	return result, nil
}
