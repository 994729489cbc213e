// Package dspace provides a client for the DSpace REST API.
package dspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// HTTPError is a non-2xx response from the DSpace server. Body carries the
// remote error text so it can be forwarded in result messages.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("DSpace returned status %d: %s", e.StatusCode, e.Body)
}

// IsTimeout reports whether err was caused by the DSpace server exceeding the
// configured timeout, as opposed to an HTTP error response or other transport
// failure.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Client is an authenticated DSpace REST API client. Login stores the session
// cookie on the client's jar; a client is created once per batch and reused.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a DSpace client. Every request is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
	}
}

// BaseURL returns the configured DSpace API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login authenticates and stores the session cookie for subsequent calls.
func (c *Client) Login(ctx context.Context, user, password string) error {
	form := url.Values{}
	form.Set("email", user)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("DSpace login failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.httpError(resp)
	}

	slog.Debug("Logged in to DSpace", "baseURL", c.baseURL, "user", user)
	return nil
}

// Status checks that the DSpace server is reachable and reporting okay.
// No authentication required.
func (c *Client) Status(ctx context.Context) error {
	var status struct {
		Okay bool `json:"okay"`
	}
	if err := c.getJSON(ctx, "/status", &status); err != nil {
		return err
	}
	if !status.Okay {
		return fmt.Errorf("DSpace at '%s' reported not okay", c.baseURL)
	}
	return nil
}

// GetCollectionByHandle resolves a collection handle to its UUID.
func (c *Client) GetCollectionByHandle(ctx context.Context, handle string) (string, error) {
	var collection collectionResponse
	if err := c.getJSON(ctx, "/handle/"+handle, &collection); err != nil {
		return "", err
	}
	return collection.UUID, nil
}

// CreateItem posts an item's metadata into a collection. On success the
// repository-assigned UUID, handle and lastModified are filled in on item.
func (c *Client) CreateItem(ctx context.Context, collectionUUID string, item *Item) error {
	payload, err := json.Marshal(struct {
		Metadata []MetadataEntry `json:"metadata"`
	}{Metadata: item.Metadata})
	if err != nil {
		return fmt.Errorf("failed to marshal item metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/collections/"+collectionUUID+"/items", strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("failed to create item request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("item post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.httpError(resp)
	}

	var posted itemResponse
	if err := json.NewDecoder(resp.Body).Decode(&posted); err != nil {
		return fmt.Errorf("failed to decode item response: %w", err)
	}

	item.UUID = posted.UUID
	item.Handle = posted.Handle
	item.LastModified = posted.LastModified

	slog.Debug("Posted item to DSpace", "handle", item.Handle, "uuid", item.UUID)
	return nil
}

// AttachBitstream streams a payload into a new bitstream on an item. On
// success the repository-assigned UUID and checksum are filled in on bs.
func (c *Client) AttachBitstream(ctx context.Context, itemUUID string, bs *Bitstream, payload io.Reader) error {
	endpoint := c.baseURL + "/items/" + itemUUID + "/bitstreams?name=" + url.QueryEscape(bs.Name)
	if bs.Description != "" {
		endpoint += "&description=" + url.QueryEscape(bs.Description)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return fmt.Errorf("failed to create bitstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bitstream post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.httpError(resp)
	}

	var posted bitstreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&posted); err != nil {
		return fmt.Errorf("failed to decode bitstream response: %w", err)
	}

	bs.UUID = posted.UUID
	bs.CheckSum = posted.CheckSum

	slog.Debug("Posted bitstream to DSpace", "name", bs.Name, "uuid", bs.UUID, "item", itemUUID)
	return nil
}

// DeleteItem removes an item from the repository.
func (c *Client) DeleteItem(ctx context.Context, uuid string) error {
	return c.delete(ctx, "/items/"+uuid)
}

// DeleteBitstream removes a bitstream from the repository.
func (c *Client) DeleteBitstream(ctx context.Context, uuid string) error {
	return c.delete(ctx, "/bitstreams/"+uuid)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("DSpace GET %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.httpError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response for %s: %w", path, err)
	}
	return nil
}

func (c *Client) delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("DSpace DELETE %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.httpError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) httpError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
