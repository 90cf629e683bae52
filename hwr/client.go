package hwr

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultURL is the iink batch endpoint.
const DefaultURL = "https://cloud.myscript.com/api/v4.0/iink/batch"

// Client is a remote recognizer speaking the iink batch protocol.
type Client struct {
	URL            string
	ApplicationKey string
	HMACKey        string
	HTTP           *http.Client
}

// NewClient returns a client for url; an empty url uses DefaultURL.
func NewClient(url, applicationKey, hmacKey string, timeout time.Duration) (*Client, error) {
	if applicationKey == "" {
		return nil, fmt.Errorf("recognizer application key is required")
	}
	if hmacKey == "" {
		return nil, fmt.Errorf("recognizer hmac key is required")
	}
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		URL:            url,
		ApplicationKey: applicationKey,
		HMACKey:        hmacKey,
		HTTP:           &http.Client{Timeout: timeout},
	}, nil
}

// Sign returns the hex HMAC-SHA512 of data keyed by applicationKey+hmacKey.
func Sign(applicationKey, hmacKey string, data []byte) string {
	mac := hmac.New(sha512.New, []byte(applicationKey+hmacKey))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// SendRequest posts a signed batch body and returns the response body.
func (c *Client) SendRequest(ctx context.Context, data []byte, mimeType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", mimeType+", application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("applicationKey", c.ApplicationKey)
	req.Header.Set("hmac", Sign(c.ApplicationKey, c.HMACKey, data))

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: Status %d, Response: %s", res.StatusCode, string(body))
	}

	return body, nil
}
