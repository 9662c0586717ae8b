// Package captcha verifies CAPTCHA tokens with hCaptcha.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultVerifyURL is hCaptcha's siteverify endpoint.
const DefaultVerifyURL = "https://hcaptcha.com/siteverify"

// ErrRejected is returned when the provider judged the token invalid.
var ErrRejected = errors.New("captcha token rejected")

// Config holds hCaptcha client settings.
type Config struct {
	Secret     string
	VerifyURL  string
	Timeout    time.Duration
	MaxRetries uint
}

// Client calls the siteverify endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a client. Zero fields in cfg get defaults.
func NewClient(cfg Config) *Client {
	if cfg.VerifyURL == "" {
		cfg.VerifyURL = DefaultVerifyURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify checks token for the client at remoteIP. Transport failures and
// 5xx responses are retried; a negative verdict is returned as ErrRejected
// without retrying.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) error {
	if c.cfg.Secret == "" {
		return errors.New("captcha secret not configured")
	}
	if token == "" {
		return ErrRejected
	}

	form := url.Values{}
	form.Set("secret", c.cfg.Secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	body := form.Encode()

	operation := func() (verifyResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.VerifyURL, strings.NewReader(body))
		if err != nil {
			return verifyResponse{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.http.Do(req)
		if err != nil {
			return verifyResponse{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return verifyResponse{}, fmt.Errorf("captcha provider returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return verifyResponse{}, backoff.Permanent(fmt.Errorf("captcha provider returned %d", resp.StatusCode))
		}

		var out verifyResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return verifyResponse{}, backoff.Permanent(fmt.Errorf("failed to decode captcha response: %w", err))
		}
		return out, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	out, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.cfg.MaxRetries),
	)
	if err != nil {
		return fmt.Errorf("captcha verification failed: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("%w: %s", ErrRejected, strings.Join(out.ErrorCodes, ","))
	}
	return nil
}
