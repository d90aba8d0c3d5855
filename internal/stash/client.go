// Package stash talks to the stash service's share endpoints: exporting
// a stash as a JSON payload on the sending side and importing one on the
// receiving side.
package stash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const requestTimeout = 30 * time.Second

// 1 MiB is far above any real exported stash; it bounds reads from a
// misbehaving server.
const maxResponseBytes = 1 << 20

// Client calls the stash service over HTTP.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	log     *logrus.Entry
}

// NewClient builds a client for the stash service at baseURL. The token
// is optional; when set it is sent as a bearer credential.
func NewClient(baseURL, token string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: requestTimeout},
		log:     logger.WithField("component", "stash"),
	}
}

// FetchPayload exports the stash with the given ID as its share payload.
// The body is returned verbatim; the caller must not depend on any
// particular field layout inside it.
func (c *Client) FetchPayload(ctx context.Context, id string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/share/payload/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stash request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("stash response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stash returned %d: %s", resp.StatusCode, errorReason(body))
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("stash returned invalid JSON for %q", id)
	}

	c.log.WithFields(logrus.Fields{"stash": id, "bytes": len(body)}).Debug("payload fetched")
	return json.RawMessage(body), nil
}

// ImportPayload submits a received payload for import and returns the
// new stash's ID. The payload bytes are posted exactly as received.
func (c *Client) ImportPayload(ctx context.Context, payload json.RawMessage) (string, error) {
	endpoint := c.baseURL + "/share/import"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("stash request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("stash response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s", errorReason(body))
	}

	var result struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("stash response: %w", err)
	}
	if !result.Success {
		return "", fmt.Errorf("%s", errorReason(body))
	}

	c.log.WithField("stash", result.ID).Debug("payload imported")
	return result.ID, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// errorReason pulls the service's error message out of a failure body,
// falling back to a generic reason when there is none.
func errorReason(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return "stash service rejected the request"
}
