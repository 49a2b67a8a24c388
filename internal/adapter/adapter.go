// Package adapter queries the three upstream map-service protocols (WFS,
// ArcGIS REST, OGC API Features) and normalizes their responses into a
// common feature shape.
package adapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"golang.org/x/time/rate"
)

// Status classifies the outcome of an upstream query.
type Status string

const (
	StatusOK      Status = "ok"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// Feature is one upstream feature mapped to the common shape.
type Feature struct {
	Properties map[string]any
	Geometry   geom.T
}

// Result is the outcome of a single layer query.
type Result struct {
	Status   Status
	Features []Feature
}

// Client is the shared upstream HTTP client. Requests are rate limited per
// host so a request fanning out over many datasets cannot hammer a single
// service.
type Client struct {
	http    *http.Client
	mu      sync.Mutex
	limiter map[string]*rate.Limiter
}

const perHostRate = 10

// NewClient creates a client with the given upstream timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: make(map[string]*rate.Limiter),
	}
}

// Do executes the request, classifying failures. The returned status is
// StatusOK only for an HTTP 200; the body is returned alongside.
func (c *Client) Do(req *http.Request) ([]byte, Status, error) {
	if err := c.hostLimiter(req.URL).Wait(req.Context()); err != nil {
		return nil, classify(err), eris.Wrap(err, "adapter: rate limit wait")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err), eris.Wrap(err, "adapter: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err), eris.Wrap(err, "adapter: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return body, StatusError, eris.Errorf("adapter: unexpected status %d", resp.StatusCode)
	}
	return body, StatusOK, nil
}

func (c *Client) hostLimiter(u *url.URL) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	host := u.Hostname()
	l, ok := c.limiter[host]
	if !ok {
		l = rate.NewLimiter(perHostRate, perHostRate)
		c.limiter[host] = l
	}
	return l
}

// classify maps a transport error to a result status. Deadline and network
// timeouts are a distinct outcome from other failures.
func classify(err error) Status {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return StatusTimeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusTimeout
	}
	return StatusError
}
