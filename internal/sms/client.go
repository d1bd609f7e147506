// Package sms delivers one-time codes to customers over the bulk-SMS provider's
// OTP route.
package sms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://www.smslocal.com/dev/bulkV2"
	sendTimeout    = 15 * time.Second

	// cap on how much of an error response body ends up in the returned error
	errBodyLimit = 512
)

// payload is the provider's OTP-route message shape.
type payload struct {
	Route     string `json:"route"`
	Numbers   string `json:"numbers"`
	Variables string `json:"variables"`
	SenderID  string `json:"sender_id,omitempty"`
}

// Client posts OTP messages to the provider. The zero value is not usable;
// construct with NewClient.
type Client struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
}

// NewClient returns a client for the given API key. baseURL and sender are
// optional; an empty baseURL selects the provider default.
func NewClient(apiKey, baseURL, sender string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: sendTimeout},
	}
}

// SendOTP delivers code to phone (digits only, country code included). The code
// value never appears in returned errors.
func (c *Client) SendOTP(phone, code string) error {
	if c.APIKey == "" {
		return fmt.Errorf("sms: no API key configured")
	}
	raw, err := json.Marshal(payload{
		Route:     "otp",
		Numbers:   phone,
		Variables: code,
		SenderID:  c.Sender,
	})
	if err != nil {
		return fmt.Errorf("sms: encode message: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		return fmt.Errorf("sms: provider returned %d: %s", resp.StatusCode, snippet)
	}
	return nil
}
