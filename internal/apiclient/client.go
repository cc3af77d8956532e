// Package apiclient talks to the pixurebyte scan API. Requests carry the
// stored bearer token; an expired access token is refreshed once per 401 and
// concurrent refreshes are collapsed into a single call.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/fish-not-phish/pixurebyte/internal/metrics"
	"github.com/fish-not-phish/pixurebyte/internal/store"
)

const (
	DefaultBaseURL = "http://127.0.0.1:8000/api"
	maxBodyBytes   = 10 * 1024 * 1024
	refreshTimeout = 15 * time.Second
)

var ErrNotAuthenticated = errors.New("not authenticated: run `pixure login` first")

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  int // requests per second, 0 disables limiting
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	Logger     *zap.SugaredLogger
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  store.TokenStore
	limiter *rate.Limiter
	refresh singleflight.Group
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
}

func New(opts Options, tokens store.TokenStore) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		}
	}
	if tokens == nil {
		tokens = store.NewMemoryTokens("", "")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
		tokens:  tokens,
		metrics: opts.Metrics,
		log:     log,
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimit)
	}
	return c
}

// Tokens returns the credential store the client reads from.
func (c *Client) Tokens() store.TokenStore { return c.tokens }

// Do sends a JSON request to endpoint (relative to the base URL) and decodes
// a JSON response into out when out is non-nil. Any non-2xx response is
// returned as *APIError.
func (c *Client) Do(ctx context.Context, method, endpoint string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	status, body, err := c.send(ctx, method, endpoint, payload, c.tokens.Access())
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if access, ok := c.refreshAccess(ctx); ok {
			status, body, err = c.send(ctx, method, endpoint, payload, access)
			if err != nil {
				return err
			}
		}
	}
	if status < 200 || status > 299 {
		return &APIError{StatusCode: status, Body: strings.TrimSpace(string(body))}
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, endpoint, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, payload []byte, access string) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(method, 0, time.Since(start))
		return 0, nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.metrics.ObserveRequest(method, resp.StatusCode, time.Since(start))
	if err != nil {
		return 0, nil, fmt.Errorf("read %s %s: %w", method, endpoint, err)
	}
	c.log.Debugw("api request", "method", method, "endpoint", endpoint, "status", resp.StatusCode, "elapsed", time.Since(start))
	return resp.StatusCode, body, nil
}

type refreshIn struct {
	Refresh string `json:"refresh"`
}

type refreshOut struct {
	Access string `json:"access"`
}

// refreshAccess exchanges the refresh token for a new access token. Callers
// that arrive while a refresh is in flight wait for and share its result.
func (c *Client) refreshAccess(ctx context.Context) (string, bool) {
	ch := c.refresh.DoChan("refresh", func() (any, error) {
		// shared by every waiting caller, so it must outlive the one that started it
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		refresh := c.tokens.Refresh()
		if refresh == "" {
			return "", ErrNotAuthenticated
		}
		payload, err := json.Marshal(refreshIn{Refresh: refresh})
		if err != nil {
			return "", err
		}
		status, body, err := c.send(ctx, http.MethodPost, "/token/refresh", payload, "")
		if err != nil {
			return "", err
		}
		if status < 200 || status > 299 {
			return "", errors.New("failed to refresh token")
		}
		var out refreshOut
		if err := json.Unmarshal(body, &out); err != nil || out.Access == "" {
			return "", errors.New("failed to refresh token")
		}
		if err := c.tokens.SetAccess(out.Access); err != nil {
			return "", err
		}
		return out.Access, nil
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return "", false
	}
	c.metrics.ObserveRefresh(res.Err == nil)
	if res.Err != nil {
		c.log.Debugw("token refresh failed", "error", res.Err)
		return "", false
	}
	return res.Val.(string), true
}

// FetchSnapshot downloads the raw HTML snapshot a scan stored. Snapshot URLs
// point at public storage, so no credentials are sent.
func (c *Client) FetchSnapshot(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build snapshot request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch snapshot: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}
	return string(body), nil
}
