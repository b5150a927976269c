// Package transport implements the HTTP execution layer the GitLab API
// client is built on: request customizer chains for auth injection,
// content-type validation, cancellation-aware body streaming and the
// GraphQL request envelope.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"github.com/rs/zerolog"
)

const (
	jsonMIMEType = "application/json"
	userAgent    = "gitlab-sync agent"
	graphQLPath  = "/api/graphql"
)

var jsonMIMETypeRegex = regexp.MustCompile(`^application/json\s*(?:;.*)?$`)

// Doer abstracts the underlying HTTP client for testing.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request describes a plain HTTP call. Location may be an absolute URL or a
// path relative to the server base URL.
type Request struct {
	Method   string // defaults to GET
	Location string
	Progress ProgressFunc
}

// Response is a streaming HTTP response. Body reads observe the request
// context and must be closed by the caller.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// ContentType returns the response Content-Type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// GraphQLRequest is the request envelope posted to /api/graphql.
type GraphQLRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Client executes HTTP and GraphQL requests against one GitLab server.
type Client interface {
	// Execute performs a plain HTTP request and returns the streaming
	// response. Customizers run in order: session-level first, then the
	// per-call one.
	Execute(ctx context.Context, req Request, customizer RequestCustomizer) (*Response, error)

	// ExecuteJSON performs a GET, validates the response is JSON and
	// decodes the body into out.
	ExecuteJSON(ctx context.Context, location string, out any, customizer RequestCustomizer) error

	// Query posts a GraphQL request and decodes the data field into out.
	// A response with a non-empty errors list fails with *GraphQLError.
	Query(ctx context.Context, req GraphQLRequest, out any, customizer RequestCustomizer) error
}

// HTTPTransport is the net/http backed Client implementation.
//
// It deliberately carries no request timeout: the caller's context is the
// only cancellation horizon, observed on every body read.
type HTTPTransport struct {
	base    *url.URL
	doer    Doer
	session []RequestCustomizer
	logger  zerolog.Logger
}

// New creates a transport for the given server base URL.
func New(serverURL string, logger zerolog.Logger) (*HTTPTransport, error) {
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server URL: %w", err)
	}
	return &HTTPTransport{
		base:   base,
		doer:   &http.Client{},
		logger: logger.With().Str("component", "transport").Str("server", serverURL).Logger(),
	}, nil
}

// SetDoer replaces the underlying HTTP client (for testing).
func (t *HTTPTransport) SetDoer(d Doer) { t.doer = d }

// AddSessionCustomizer registers a customizer applied to every request made
// through this transport, before the per-call customizer.
func (t *HTTPTransport) AddSessionCustomizer(c RequestCustomizer) {
	t.session = append(t.session, c)
}

func (t *HTTPTransport) Execute(ctx context.Context, req Request, customizer RequestCustomizer) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target, err := t.resolve(req.Location)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	t.applyCustomizers(httpReq, customizer)

	resp, err := t.do(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	body := struct {
		io.Reader
		io.Closer
	}{
		Reader: newMonitoredReader(ctx, resp.Body, resp.ContentLength, req.Progress),
		Closer: resp.Body,
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (t *HTTPTransport) ExecuteJSON(ctx context.Context, location string, out any, customizer RequestCustomizer) error {
	resp, err := t.Execute(ctx, Request{Location: location}, chain(customizer, CustomizerFunc(func(r *http.Request) {
		r.Header.Set("Accept", jsonMIMEType)
	})))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkJSONContentType(resp.ContentType()); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (t *HTTPTransport) Query(ctx context.Context, req GraphQLRequest, out any, customizer RequestCustomizer) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding GraphQL request: %w", err)
	}

	target, err := t.resolve(graphQLPath)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Content-Type", jsonMIMEType)
	httpReq.Header.Set("Accept", jsonMIMEType)
	t.applyCustomizers(httpReq, customizer)

	resp, err := t.do(ctx, httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkJSONContentType(resp.Header.Get("Content-Type")); err != nil {
		return err
	}

	var envelope struct {
		Data   json.RawMessage    `json:"data"`
		Errors []GraphQLErrorItem `json:"errors"`
	}
	body := newMonitoredReader(ctx, resp.Body, resp.ContentLength, nil)
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("decoding GraphQL response: %w", err)
	}

	if len(envelope.Errors) > 0 {
		return &GraphQLError{Errors: envelope.Errors}
	}
	if envelope.Data == nil {
		return errors.New("invalid GraphQL response: data and errors are null")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decoding GraphQL data: %w", err)
	}
	return nil
}

// do runs the request and classifies failures: caller cancellation is
// returned as the context error, everything else connection-level becomes a
// *NetworkError. Status >= 400 becomes a *StatusError.
func (t *HTTPTransport) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := t.doer.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &NetworkError{Err: err}
	}
	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp, nil
}

func (t *HTTPTransport) resolve(location string) (string, error) {
	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parsing request location %q: %w", location, err)
	}
	return t.base.ResolveReference(ref).String(), nil
}

func (t *HTTPTransport) applyCustomizers(req *http.Request, customizer RequestCustomizer) {
	for _, c := range t.session {
		c.Customize(req)
	}
	if customizer != nil {
		customizer.Customize(req)
	}
}

func checkJSONContentType(contentType string) error {
	if contentType != "" && !jsonMIMETypeRegex.MatchString(contentType) {
		return &ContentTypeError{Expected: jsonMIMEType, Got: contentType}
	}
	return nil
}

func chain(customizers ...RequestCustomizer) RequestCustomizer {
	return CustomizerFunc(func(req *http.Request) {
		for _, c := range customizers {
			if c != nil {
				c.Customize(req)
			}
		}
	})
}
