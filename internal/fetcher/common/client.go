// SPDX-License-Identifier: AGPL-3.0-only
package common

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const maxBodySize = 10 << 20

// Client is the outbound HTTP client shared by every provider. Requests are
// paced by a token bucket so one sync pass cannot burst a provider.
type Client struct {
	HTTPClient *http.Client
}

type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

func NewClient(timeout time.Duration, rps float64, burst int) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &Client{
		HTTPClient: &http.Client{
			Timeout: timeout,
			Transport: &limitedTransport{
				base:    http.DefaultTransport,
				limiter: rate.NewLimiter(limit, burst),
			},
		},
	}
}

// BearerHTTPClient returns an *http.Client sharing the limiter that sends
// token on every request. It is what the generated Google clients are given.
func (c *Client) BearerHTTPClient(token string) *http.Client {
	base := c.HTTPClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Timeout: c.HTTPClient.Timeout,
		Transport: &oauth2.Transport{
			Base:   base,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
		},
	}
}

// ErrorDecoder turns a provider error payload into an error. It returns nil
// when the payload does not describe an error.
type ErrorDecoder func(status int, body []byte) error

func (c *Client) do(req *http.Request, decode ErrorDecoder, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if decode != nil {
		if err := decode(resp.StatusCode, body); err != nil {
			return err
		}
	}
	if resp.StatusCode >= 400 {
		return &ProviderError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, decode ErrorDecoder, out any) error {
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, decode, out)
}

func (c *Client) PostForm(ctx context.Context, endpoint string, form url.Values, decode ErrorDecoder, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, decode, out)
}

func (c *Client) PostJSON(ctx context.Context, endpoint string, bearer string, payload any, decode ErrorDecoder, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return c.do(req, decode, out)
}

func (c *Client) GetBearerJSON(ctx context.Context, endpoint string, query url.Values, bearer string, decode ErrorDecoder, out any) error {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	return c.do(req, decode, out)
}
