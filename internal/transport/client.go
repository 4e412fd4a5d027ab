package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// maxManualRedirects bounds the manual redirect-following loop in Do, which
// exists only so the last intermediate response body can be captured
// (net/http's CheckRedirect hook does not expose response bodies).
const maxManualRedirects = 10

// Client is the interface for the HTTP transport layer. All injection
// testing flows go through this interface.
type Client interface {
	// Do sends an HTTP request and returns the response.
	Do(ctx context.Context, req *Request) (*Response, error)

	// SetProxy configures an HTTP/SOCKS5 proxy for all subsequent requests.
	SetProxy(proxyURL string) error

	// SetRateLimit sets the maximum requests per second.
	SetRateLimit(rps float64)

	// Stats returns transport statistics.
	Stats() *TransportStats
}

// TransportStats holds aggregate statistics for the transport client.
type TransportStats struct {
	TotalRequests int64
	TotalDuration time.Duration
	AvgDuration   time.Duration
}

// ClientOptions holds configuration for creating a new DefaultClient.
type ClientOptions struct {
	// Timeout is the default timeout for all requests.
	Timeout time.Duration

	// ProxyURL is the proxy URL (HTTP or SOCKS5).
	ProxyURL string

	// FollowRedirects controls whether redirects are followed.
	FollowRedirects bool

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// RandomUserAgent enables random User-Agent header selection.
	RandomUserAgent bool

	// MaxRPS is the maximum requests per second (0 = unlimited).
	MaxRPS float64
}

// DefaultClient is the default implementation of the Client interface,
// backed by net/http.
type DefaultClient struct {
	httpClient      *http.Client
	opts            ClientOptions
	limiter         *rate.Limiter
	mu              sync.RWMutex
	totalRequests   int64
	totalDurationNs int64
	nextUID         atomic.Uint64
}

// NewClient creates a new DefaultClient with the given options.
func NewClient(opts ClientOptions) (*DefaultClient, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.InsecureSkipVerify,
		},
		// Enable HTTP/2 by default via ForceAttemptHTTP2
		ForceAttemptHTTP2: true,
	}

	// Configure proxy if provided.
	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	}

	// Redirects are always followed manually in Do (see followRedirects),
	// so that the body of each intermediate redirect response can be
	// captured and tied to the originating request's UID.
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	dc := &DefaultClient{
		httpClient: client,
		opts:       opts,
	}

	// Configure rate limiter if specified.
	if opts.MaxRPS > 0 {
		dc.limiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), 1)
	}

	return dc, nil
}

// Do sends an HTTP request and returns the response. It applies rate
// limiting, timing measurement, custom headers, cookies, and optional
// per-request overrides. Every call is assigned a monotonically
// increasing request UID (Response.RequestUID); if redirects are
// followed, the body of the last intermediate redirect response is
// captured as Response.RedirectBody.
func (c *DefaultClient) Do(ctx context.Context, req *Request) (*Response, error) {
	uid := c.nextUID.Add(1)

	follow := c.opts.FollowRedirects
	if req.FollowRedirects != nil {
		follow = *req.FollowRedirects
	}

	httpClient := c.httpClient
	if req.Timeout > 0 {
		cc := *c.httpClient
		cc.Timeout = req.Timeout
		httpClient = &cc
	}

	start := time.Now()
	var redirectBody *string
	var httpResp *http.Response
	var err error

	current := req
	for hop := 0; ; hop++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		httpResp, err = c.roundTrip(ctx, httpClient, current)
		if err != nil {
			return nil, err
		}

		if !follow || !isRedirect(httpResp.StatusCode) || hop >= maxManualRedirects {
			break
		}

		location := httpResp.Header.Get("Location")
		if location == "" {
			break
		}
		nextURL, err := resolveRedirect(current.URL, location)
		if err != nil {
			break
		}

		// Capture this intermediate hop's body before discarding it; the
		// final response exposes only the *last* redirect body, per the
		// Requester contract (spec §6 lastRedirectMsg).
		body, readErr := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if readErr == nil {
			s := string(body)
			redirectBody = &s
		}

		next := current.Clone()
		next.URL = nextURL
		next.Method = http.MethodGet
		next.Body = ""
		current = next
	}
	duration := time.Since(start)
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	protocol := fmt.Sprintf("HTTP/%d.%d", httpResp.ProtoMajor, httpResp.ProtoMinor)

	resp := &Response{
		StatusCode:    httpResp.StatusCode,
		Headers:       httpResp.Header,
		Body:          body,
		ContentLength: httpResp.ContentLength,
		Duration:      duration,
		URL:           httpResp.Request.URL.String(),
		Protocol:      protocol,
		RequestUID:    uid,
		RedirectBody:  redirectBody,
	}

	c.mu.Lock()
	c.totalRequests++
	c.totalDurationNs += duration.Nanoseconds()
	c.mu.Unlock()

	return resp, nil
}

// roundTrip builds and issues a single stdlib HTTP request for req,
// without following redirects (CheckRedirect always returns
// http.ErrUseLastResponse, see NewClient).
func (c *DefaultClient) roundTrip(ctx context.Context, httpClient *http.Client, req *Request) (*http.Response, error) {
	var bodyReader io.Reader
	if req.Body != "" {
		bodyReader = strings.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	for name, value := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	if c.opts.RandomUserAgent && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", RandomUserAgent())
	}

	httpResp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	return httpResp, nil
}

// isRedirect reports whether status is one of the HTTP redirect codes
// net/http itself would have auto-followed.
func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

// resolveRedirect resolves a Location header value against the URL that
// produced it.
func resolveRedirect(baseURL, location string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// SetProxy configures an HTTP or SOCKS5 proxy for subsequent requests.
func (c *DefaultClient) SetProxy(proxyURL string) error {
	parsedURL, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid proxy URL: missing scheme or host")
	}

	transport, ok := c.httpClient.Transport.(*http.Transport)
	if !ok {
		return fmt.Errorf("cannot set proxy: transport is not *http.Transport")
	}

	transport.Proxy = http.ProxyURL(parsedURL)
	return nil
}

// SetRateLimit sets the maximum number of requests per second.
// A value of 0 or less disables rate limiting.
func (c *DefaultClient) SetRateLimit(rps float64) {
	if rps <= 0 {
		c.limiter = nil
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
}

// Stats returns aggregate transport statistics.
func (c *DefaultClient) Stats() *TransportStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := &TransportStats{
		TotalRequests: c.totalRequests,
		TotalDuration: time.Duration(c.totalDurationNs),
	}
	if c.totalRequests > 0 {
		stats.AvgDuration = time.Duration(c.totalDurationNs / c.totalRequests)
	}
	return stats
}
