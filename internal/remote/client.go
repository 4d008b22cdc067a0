// Package remote talks to a Seafile server over its HTTP api2 interface.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"github.com/skyline93/seacache/internal/errors"
)

// Config holds all information needed to talk to a server.
type Config struct {
	Server string
	Token  string

	Timeout       time.Duration
	MaxRetries    uint64
	RetryInterval time.Duration
	// OfflineProbe is how long the client reports itself offline after a
	// transport failure before it tries the network again.
	OfflineProbe time.Duration
}

// NewConfig returns a new config with default options applied.
func NewConfig() Config {
	return Config{
		Timeout:       60 * time.Second,
		MaxRetries:    3,
		RetryInterval: 500 * time.Millisecond,
		OfflineProbe:  30 * time.Second,
	}
}

// Client is a Seafile api2 client. It keeps track of connectivity: a
// transport failure marks it offline for a while.
type Client struct {
	cfg    Config
	server string
	http   *http.Client

	mu           sync.RWMutex
	offlineSince time.Time
}

// New returns a client for cfg.Server.
func New(cfg Config) (*Client, error) {
	if cfg.Server == "" {
		return nil, errors.New("server URL is empty")
	}
	u, err := url.Parse(cfg.Server)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid server URL %q", cfg.Server)
	}

	def := NewConfig()
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = def.RetryInterval
	}
	if cfg.OfflineProbe == 0 {
		cfg.OfflineProbe = def.OfflineProbe
	}

	return &Client{
		cfg:    cfg,
		server: strings.TrimRight(cfg.Server, "/") + "/",
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        16,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}, nil
}

// Online reports whether the server is believed reachable.
func (c *Client) Online() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offlineSince.IsZero() || time.Since(c.offlineSince) >= c.cfg.OfflineProbe
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasOnline := c.offlineSince.IsZero()
	switch {
	case online && !wasOnline:
		log.Infof("server %v is back online", c.server)
		c.offlineSince = time.Time{}
	case !online:
		if wasOnline {
			log.Warnf("server %v is unreachable", c.server)
		}
		c.offlineSince = time.Now()
	}
}

// StatusError is returned for responses with an error status code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Body)
}

type response struct {
	header http.Header
	body   []byte
}

func (c *Client) url(path string, query url.Values) string {
	u := c.server + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// roundTrip performs req. Transport failures are reported as
// ErrNetworkUnavailable, error status codes as *StatusError.
func (c *Client) roundTrip(req *http.Request) (*response, error) {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Token "+c.cfg.Token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		c.setOnline(false)
		return nil, errors.WithMessage(errors.ErrNetworkUnavailable, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()
	c.setOnline(true)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode >= 400 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return &response{header: resp.Header, body: body}, nil
}

func retryable(err error) bool {
	if errors.Is(err, errors.ErrNetworkUnavailable) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 500
}

// get runs an idempotent GET, retrying transport failures and server errors
// with exponential backoff.
func (c *Client) get(ctx context.Context, op, path string, query url.Values) (*response, error) {
	return c.getURL(ctx, op, c.url(path, query))
}

func (c *Client) getURL(ctx context.Context, op, u string) (*response, error) {
	var resp *response
	fn := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err = c.roundTrip(req)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryInterval
	err := backoff.RetryNotify(fn, backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.MaxRetries), ctx),
		func(err error, d time.Duration) {
			log.Debugf("%v: retrying in %v: %v", op, d, err)
		})
	if err != nil {
		return nil, errors.Remote(op, err)
	}
	return resp, nil
}

// send runs a request with a form body. Mutations are never retried.
func (c *Client) send(ctx context.Context, op, method, path string, query, form url.Values) (*response, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.roundTrip(req)
	if err != nil {
		return nil, errors.Remote(op, err)
	}
	return resp, nil
}

// unquote strips the JSON quotes the server puts around plain string
// responses like download links.
func unquote(b []byte) string {
	return string(bytes.Trim(bytes.TrimSpace(b), `"`))
}
