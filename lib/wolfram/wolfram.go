// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wolfram is the HTTP client for the upstream query API.
//
// One [Client.PerformQuery] call asks for the step-by-step state of
// every listed result identifier at once. Pods the API chose to compute
// lazily come back with a deferred reference, which
// [Client.FetchDeferred] resolves with a second request.
//
// Every request waits on a token-bucket limiter first, so a burst of
// distinct queries cannot trip the API's own throttling.
package wolfram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bureau-foundation/moresteps/lib/envelope"
	"github.com/bureau-foundation/moresteps/lib/errs"
	"github.com/bureau-foundation/moresteps/lib/netutil"
	"github.com/bureau-foundation/moresteps/lib/version"
)

// DefaultBaseURL is the query endpoint of the public API.
const DefaultBaseURL = "https://api.wolframalpha.com/v2/query"

// stepByStepState is appended to a result identifier to form the pod
// state that expands the step-by-step solution.
const stepByStepState = "__Step-by-step solution"

// Config configures a Client.
type Config struct {
	// BaseURL is the query endpoint. Empty means DefaultBaseURL.
	BaseURL string

	// HTTPClient performs requests. Nil means a client with Timeout.
	HTTPClient *http.Client

	// Timeout bounds one request when HTTPClient is nil. Zero means
	// 30 seconds.
	Timeout time.Duration

	// Rate and Burst configure the request limiter. A zero Rate
	// disables limiting.
	Rate  rate.Limit
	Burst int

	Logger *slog.Logger
}

// Client issues queries against the upstream API. Safe for concurrent
// use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Query is one multi-result request.
type Query struct {
	AppID       string
	Input       string
	ResultIDs   []string
	Assumptions []string

	// Deferred lets the API answer expensive pods with a reference
	// instead of computing them inline.
	Deferred bool

	// IncludePodID restricts the response to the requested pods.
	IncludePodID bool
}

// New validates config and returns a Client.
func New(config Config) (*Client, error) {
	base := config.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q: scheme must be http or https", base)
	}
	if config.Rate < 0 {
		return nil, fmt.Errorf("rate must not be negative, got %v", config.Rate)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.Rate > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(config.Rate, burst)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    parsed,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// PerformQuery requests the step-by-step pods named by query.ResultIDs.
//
// A response the API marks unsuccessful is returned as an
// *errs.UpstreamError carrying the API's code and message. A request
// that never got an answer is an *errs.TransportError.
func (c *Client) PerformQuery(ctx context.Context, query Query) (*envelope.QueryResult, error) {
	if len(query.ResultIDs) == 0 {
		return nil, errors.New("query needs at least one result identifier")
	}

	params := url.Values{}
	params.Set("appid", query.AppID)
	params.Set("input", query.Input)
	params.Set("format", "image")
	params.Set("output", "json")
	for _, resultID := range query.ResultIDs {
		params.Add("podstate", resultID+stepByStepState)
		if query.IncludePodID {
			params.Add("includepodid", resultID)
		}
	}
	for _, assumption := range query.Assumptions {
		params.Add("assumption", assumption)
	}
	if query.Deferred {
		params.Set("async", "true")
	}

	target := *c.baseURL
	target.RawQuery = params.Encode()

	c.logger.Debug("api query",
		"query", query.Input,
		"result_ids", query.ResultIDs,
		"assumptions", len(query.Assumptions),
		"deferred", query.Deferred,
	)
	return c.get(ctx, target.String(), "query")
}

// FetchDeferred resolves a deferred pod reference from an earlier
// response. The reference must be an absolute http or https URL.
func (c *Client) FetchDeferred(ctx context.Context, reference string) (*envelope.QueryResult, error) {
	parsed, err := url.Parse(reference)
	if err != nil {
		return nil, fmt.Errorf("parsing deferred reference: %w", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("deferred reference %q is not an absolute http URL", reference)
	}
	c.logger.Debug("api deferred fetch", "host", parsed.Host)
	return c.get(ctx, parsed.String(), "deferred fetch")
}

func (c *Client) get(ctx context.Context, target, op string) (*envelope.QueryResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", op, err)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", version.UserAgent())

	response, err := c.httpClient.Do(request)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &errs.TransportError{Op: op, Err: redact(err)}
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		return nil, &errs.UpstreamError{
			StatusCode: response.StatusCode,
			Message:    netutil.ErrorBody(response.Body),
		}
	}

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, &errs.TransportError{Op: op, Err: fmt.Errorf("reading response body: %w", err)}
	}
	return decodeResult(body)
}

// wireResponse is the outer JSON document. Query responses wrap the
// result in "queryresult"; deferred fetches may return the pods bare.
type wireResponse struct {
	QueryResult *wireResult    `json:"queryresult"`
	Pods        []envelope.Pod `json:"pods"`
}

type wireResult struct {
	Success bool           `json:"success"`
	Host    string         `json:"host"`
	Pods    []envelope.Pod `json:"pods"`

	// Error is false on success and an object on failure.
	Error json.RawMessage `json:"error"`
}

type wireError struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"msg"`
}

func decodeResult(body []byte) (*envelope.QueryResult, error) {
	var document wireResponse
	if err := json.Unmarshal(body, &document); err != nil {
		return nil, &errs.UpstreamError{Message: fmt.Sprintf("malformed response: %v", err)}
	}

	if document.QueryResult == nil {
		if document.Pods == nil {
			return nil, &errs.UpstreamError{Message: "response has neither queryresult nor pods"}
		}
		return &envelope.QueryResult{Success: true, Pods: document.Pods}, nil
	}

	wire := document.QueryResult
	apiError, err := parseError(wire.Error)
	if err != nil {
		return nil, &errs.UpstreamError{Message: fmt.Sprintf("malformed error record: %v", err)}
	}
	if !wire.Success {
		if apiError == nil {
			return nil, &errs.UpstreamError{}
		}
		return nil, &errs.UpstreamError{Code: apiError.Code, Message: apiError.Message}
	}
	return &envelope.QueryResult{
		Success: true,
		Host:    wire.Host,
		Pods:    wire.Pods,
	}, nil
}

// parseError decodes the error field. The API sends false (or omits the
// field) when there is no error and reports codes as either numbers or
// strings.
func parseError(raw json.RawMessage) (*envelope.APIError, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("false")) || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var record wireError
	if err := json.Unmarshal(trimmed, &record); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(string(record.Code))
	if strings.HasPrefix(code, `"`) {
		if err := json.Unmarshal(record.Code, &code); err != nil {
			return nil, fmt.Errorf("decoding code: %w", err)
		}
	}
	return &envelope.APIError{Code: code, Message: record.Message}, nil
}

// redact strips the query string from URL errors so the API credential
// never reaches a log line or a wire error.
func redact(err error) error {
	var urlError *url.Error
	if errors.As(err, &urlError) {
		if parsed, parseErr := url.Parse(urlError.URL); parseErr == nil {
			parsed.RawQuery = ""
			return &url.Error{Op: urlError.Op, URL: parsed.String(), Err: urlError.Err}
		}
	}
	return err
}
