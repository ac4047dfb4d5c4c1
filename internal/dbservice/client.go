// Package dbservice is a client for the CILogon OA4MP dbService getUser action, which maps
// an IdP, eppn, name and email to a stable CILogon user identifier.
package dbservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout = 30 * time.Second
	servicePath    = "/oauth2/dbService"
	userUIDPrefix  = "user_uid"
	maxBodyBytes   = 1 << 20
)

var lineBreak = regexp.MustCompile(`\r\n|\n|\r`)

// ErrBodyTooLarge is returned when a dbService response exceeds 1 MiB.
var ErrBodyTooLarge = errors.New("dbservice: response body too large")

// GetUserParams are the per-call getUser query parameters. The idp parameter comes from the Client.
type GetUserParams struct {
	FirstName string
	LastName  string
	Email     string
	EPPN      string
}

// StatusError is returned when dbService answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dbservice: request failed status=%d body=%s", e.StatusCode, e.Body)
}

// Client calls dbService over HTTP.
type Client struct {
	BaseURL    string
	IDP        string
	HTTPClient *http.Client
}

// NewClient returns a client for the dbService at baseURL, sending idp as the IdP entity ID.
// timeout <= 0 uses 30s. Requests are traced through the otelhttp transport.
func NewClient(baseURL, idp string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		IDP:     idp,
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// GetUser issues one getUser call and returns the decoded user_uid values in response order.
// A 200 response without user_uid lines returns no values and no error.
func (c *Client) GetUser(ctx context.Context, p GetUserParams) ([]string, error) {
	body, err := c.get(ctx, p)
	if err != nil {
		return nil, err
	}
	return ParseUserUIDs(body), nil
}

func (c *Client) get(ctx context.Context, p GetUserParams) (string, error) {
	q := url.Values{}
	q.Set("action", "getUser")
	q.Set("idp", c.IDP)
	q.Set("first_name", p.FirstName)
	q.Set("last_name", p.LastName)
	q.Set("email", p.Email)
	q.Set("eppn", p.EPPN)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+servicePath+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		if len(b) > maxBodyBytes {
			b = b[:maxBodyBytes]
		}
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if len(b) > maxBodyBytes {
		return "", fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, maxBodyBytes)
	}
	return string(b), nil
}

// ParseUserUIDs collects the value of every line starting with user_uid. The value is the
// field after the first '=' (up to any further '='), percent-decoded with '+' read as space.
// Lines without '=' and empty values are ignored. A value that fails to decode is kept as sent.
func ParseUserUIDs(body string) []string {
	var out []string
	for _, line := range lineBreak.Split(body, -1) {
		if !strings.HasPrefix(line, userUIDPrefix) {
			continue
		}
		fields := strings.Split(line, "=")
		if len(fields) < 2 {
			continue
		}
		v, err := url.QueryUnescape(fields[1])
		if err != nil {
			v = fields[1]
		}
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
