package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TokenRegistrar is the slice of the booking API the notification session
// needs: telling the server which push token addresses this device.
type TokenRegistrar interface {
	RegisterPushToken(ctx context.Context, credential, token string) error
	UnregisterPushToken(ctx context.Context, credential string) error
}

// Client makes REST calls to the booking backend.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client targeting the given base URL
// (e.g. "http://127.0.0.1:8080").
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// RegisterPushToken submits the device's push token, bound to the bearer
// credential. Any non-2xx status is an error.
func (c *Client) RegisterPushToken(ctx context.Context, credential, token string) error {
	body := map[string]string{"pushToken": token}
	return c.do(ctx, http.MethodPost, "/api/push-token", credential, body)
}

// UnregisterPushToken removes the device's push token registration.
func (c *Client) UnregisterPushToken(ctx context.Context, credential string) error {
	return c.do(ctx, http.MethodDelete, "/api/push-token", credential, nil)
}

func (c *Client) do(ctx context.Context, method, path, credential string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, string(respBody))
	}
	return nil
}
