// Package rest performs the request/response half of the chat client's
// network I/O. It executes the pure wire.Request values built upstream and
// folds transport faults and non-2xx statuses into failures.
package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/chatwire/chatwire/internal/wire"
	"github.com/chatwire/chatwire/pkg/failure"
	"github.com/chatwire/chatwire/pkg/result"
)

// Client executes requests against one base URL.
type Client struct {
	base   *url.URL
	client *http.Client
}

// New creates a client for the given base URL. A nil http.Client falls back
// to http.DefaultClient.
func New(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: u, client: hc}, nil
}

// Do executes one request and returns the raw response body. Non-2xx
// statuses fail with the status code and a response excerpt; the body is
// still read so the excerpt can help diagnose server-side errors.
func (c *Client) Do(ctx context.Context, req wire.Request) result.Result[[]byte] {
	const op = "rest.Do"

	u := c.base.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return result.Err[[]byte](failure.Unknown(op, err))
	}
	for name, values := range req.Header {
		httpReq.Header[name] = values
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return result.Err[[]byte](failure.Network(op, fmt.Sprintf("%s %s failed", req.Method, u.Path), err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return result.Err[[]byte](failure.Network(op, "reading response body failed", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("%s %s returned %d: %s", req.Method, u.Path, resp.StatusCode, excerpt(data))
		return result.Err[[]byte](failure.Network(op, msg, nil))
	}
	return result.Ok(data)
}

// PutBinary uploads a payload to an absolute URL, as handed out by the
// file service. The client's base URL is not involved.
func (c *Client) PutBinary(ctx context.Context, rawURL, contentType string, payload []byte) result.Result[struct{}] {
	const op = "rest.PutBinary"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, rawURL, bytes.NewReader(payload))
	if err != nil {
		return result.Err[struct{}](failure.Unknown(op, err))
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return result.Err[struct{}](failure.Network(op, "upload PUT failed", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return result.Err[struct{}](failure.Network(op, "reading upload response failed", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("upload PUT returned %d: %s", resp.StatusCode, excerpt(data))
		return result.Err[struct{}](failure.Network(op, msg, nil))
	}
	return result.Ok(struct{}{})
}

// excerpt trims a response body down to a log-friendly size.
func excerpt(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
