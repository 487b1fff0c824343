package procon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrFetchFailed marks a network or HTTP-level failure reaching the device.
// Distinct from ErrMalformedResponse so callers can tell "device unreachable"
// from "device sent garbage"; retry cadence is the caller's business.
var ErrFetchFailed = errors.New("device fetch failed")

func fetchFailedf(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrFetchFailed, fmt.Sprintf(format, a...))
}

const (
	statePath  = "/GetState.csv"
	writePath  = "/usrcfg.cgi"
	defTimeout = 10 * time.Second
)

type ClientConfig struct {
	Host     string
	Port     int
	Username string // empty disables basic auth entirely
	Password string
	Timeout  time.Duration
}

// Client talks HTTP to one ProCon.IP unit. It holds no device state; every
// call is a plain request/response exchange.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	port := cfg.Port
	if port == 0 {
		port = 80
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defTimeout
	}
	return &Client{
		baseURL:  fmt.Sprintf("http://%s:%d", cfg.Host, port),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the device's web root, also used as configuration_url in
// the discovery device block.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchState gets /GetState.csv and decodes it. HTTP and transport errors
// wrap ErrFetchFailed; decode errors wrap ErrMalformedResponse.
func (c *Client) FetchState(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statePath, nil)
	if err != nil {
		return nil, fetchFailedf("build request: %v", err)
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fetchFailedf("get %s: %v", statePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fetchFailedf("get %s: HTTP %d", statePath, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetchFailedf("read body: %v", err)
	}
	return ParseSnapshot(string(body))
}

// WriteRelays posts the complete ENA relay pattern. The device does not
// accept per-relay deltas, so both integers always carry all 8/16 bits.
func (c *Client) WriteRelays(ctx context.Context, manualBits, onBits uint16) error {
	payload := fmt.Sprintf("ENA=%d,%d&MANUAL=1", manualBits, onBits)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+writePath, strings.NewReader(payload))
	if err != nil {
		return fetchFailedf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fetchFailedf("post %s: %v", writePath, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fetchFailedf("post %s: HTTP %d", writePath, resp.StatusCode)
	}
	return nil
}

// Some firmware rejects requests carrying an Authorization header when no
// credentials are configured, so the header is omitted entirely then.
func (c *Client) setAuth(req *http.Request) {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}
