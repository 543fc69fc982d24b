// Package solr submits query requests to a Solr request handler over HTTP
// and maps the JSON response onto query.Response.
package solr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/torosent/querymeter/internal/httpclient"
	"github.com/torosent/querymeter/internal/query"
)

// ErrMalformedResponse is returned when the body is not a Solr JSON document.
var ErrMalformedResponse = errors.New("malformed solr response")

// RemoteError is an HTTP error status returned by Solr.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("solr returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("solr returned HTTP %d: %s", e.StatusCode, e.Message)
}

type Options struct {
	BaseURL      string
	Handler      string
	QueryType    string
	Headers      map[string]string
	Username     string
	Password     string
	ExtraParams  []query.Param
	Timeout      time.Duration
	Propagate    bool
	MaxGetLength int
	// HTTPClient overrides the pooled client built from Timeout.
	HTTPClient *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	http      *http.Client
	builder   *httpclient.RequestBuilder
	queryType string
	params    []query.Param
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("solr base URL is required")
	}
	handler := opts.Handler
	if handler == "" {
		handler = "/select"
	}
	if !strings.HasPrefix(handler, "/") {
		handler = "/" + handler
	}

	var auth *httpclient.BasicAuth
	if opts.Username != "" {
		auth = &httpclient.BasicAuth{Username: opts.Username, Password: opts.Password}
	}
	builder, err := httpclient.NewRequestBuilder(httpclient.Options{
		Endpoint:     base + handler,
		Headers:      opts.Headers,
		BasicAuth:    auth,
		Propagate:    opts.Propagate,
		MaxGetLength: opts.MaxGetLength,
	})
	if err != nil {
		return nil, err
	}

	client := opts.HTTPClient
	if client == nil {
		client = httpclient.NewClient(opts.Timeout)
	}

	return &Client{
		http:      client,
		builder:   builder,
		queryType: opts.QueryType,
		params:    append([]query.Param(nil), opts.ExtraParams...),
	}, nil
}

// Endpoint returns the handler URL queries are sent to.
func (c *Client) Endpoint() string {
	return c.builder.Endpoint()
}

// ExtraParameters returns a copy of the static parameters.
func (c *Client) ExtraParameters() []query.Param {
	return append([]query.Param(nil), c.params...)
}

func (c *Client) QueryType() string {
	return c.queryType
}

// Submit sends req and parses the response. A nil error always comes with a
// non-nil response.
func (c *Client) Submit(ctx context.Context, req *query.Request) (*query.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	params := req.Values()
	if !hasParam(params, "wt") {
		params = append(params, query.Param{Key: "wt", Value: "json"})
	}

	httpReq, err := c.builder.Build(ctx, query.EncodeParams(params))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return parseResponse(body)
}

func hasParam(params []query.Param, key string) bool {
	for _, p := range params {
		if p.Key == key {
			return true
		}
	}
	return false
}

func parseResponse(body []byte) (*query.Response, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedResponse
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, ErrMalformedResponse
	}

	out := &query.Response{
		NumFound: doc.Get("response.numFound").Int(),
		QTime:    doc.Get("responseHeader.QTime").Int(),
		Status:   int(doc.Get("responseHeader.status").Int()),
	}
	if header := doc.Get("responseHeader"); header.IsObject() {
		if m, ok := header.Value().(map[string]interface{}); ok {
			out.Header = m
		}
	}
	if !doc.Get("response").Exists() {
		// grouped responses report their total under grouped.<field>.matches
		doc.Get("grouped").ForEach(func(_, group gjson.Result) bool {
			out.NumFound = group.Get("matches").Int()
			return false
		})
	}
	return out, nil
}

func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "error.msg"); msg.Exists() {
			return msg.String()
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}
