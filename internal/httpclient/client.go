package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/torosent/querymeter/internal/tracing"
)

// DefaultMaxGetLength is the longest encoded parameter string sent as a GET.
const DefaultMaxGetLength = 4096

// MaxResponseBytes caps how much of a response body is read.
const MaxResponseBytes = 32 << 20

type BasicAuth struct {
	Username string
	Password string
}

type Options struct {
	Endpoint     string
	Headers      map[string]string
	BasicAuth    *BasicAuth
	Propagate    bool
	MaxGetLength int
}

type RequestBuilder struct {
	endpoint     string
	headers      http.Header
	auth         *BasicAuth
	propagate    bool
	maxGetLength int
}

func NewRequestBuilder(opts Options) (*RequestBuilder, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint %q must use http or https", endpoint)
	}
	if u.RawQuery != "" {
		return nil, fmt.Errorf("endpoint %q must not carry a query string", endpoint)
	}

	headers, err := validateHeaders(opts.Headers)
	if err != nil {
		return nil, err
	}

	maxGet := opts.MaxGetLength
	if maxGet <= 0 {
		maxGet = DefaultMaxGetLength
	}

	return &RequestBuilder{
		endpoint:     endpoint,
		headers:      headers,
		auth:         opts.BasicAuth,
		propagate:    opts.Propagate,
		maxGetLength: maxGet,
	}, nil
}

func validateHeaders(in map[string]string) (http.Header, error) {
	headers := http.Header{}
	for key, value := range in {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		headers.Set(canonicalKey, value)
	}
	return headers, nil
}

// Endpoint returns the URL requests are sent to.
func (b *RequestBuilder) Endpoint() string {
	return b.endpoint
}

// Build creates a request carrying the already-encoded params.
func (b *RequestBuilder) Build(ctx context.Context, encoded string) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		req *http.Request
		err error
	)
	if len(encoded) > b.maxGetLength {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, strings.NewReader(encoded))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
			req.ContentLength = int64(len(encoded))
			req.GetBody = func() (io.ReadCloser, error) {
				return io.NopCloser(strings.NewReader(encoded)), nil
			}
		}
	} else {
		target := b.endpoint
		if encoded != "" {
			target += "?" + encoded
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}
	if err != nil {
		return nil, err
	}

	for key, values := range b.headers {
		for _, val := range values {
			req.Header.Add(key, val)
		}
	}
	req.Header.Set("Accept", "application/json")
	if b.auth != nil && b.auth.Username != "" {
		req.SetBasicAuth(b.auth.Username, b.auth.Password)
	}
	if b.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}
	return req, nil
}

// ReadBody reads at most MaxResponseBytes from resp and closes it.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(body) > MaxResponseBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", MaxResponseBytes)
	}
	return body, nil
}

func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
