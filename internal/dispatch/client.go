package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const endpointQuery = "/api/query"

// Dispatcher sends one query to the answering service.
type Dispatcher interface {
	Dispatch(ctx context.Context, userIdentity, query string) Result
}

type Kind int

const (
	KindSuccess Kind = iota
	KindRefused
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRefused:
		return "refused"
	case KindUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// Result is the normalized outcome of a dispatch. Answer is set for
// KindSuccess, Message for KindRefused and Err for KindUnavailable.
type Result struct {
	Kind    Kind
	Answer  string
	Message string
	Err     error
}

func Success(answer string) Result  { return Result{Kind: KindSuccess, Answer: answer} }
func Refused(message string) Result { return Result{Kind: KindRefused, Message: message} }
func Unavailable(err error) Result  { return Result{Kind: KindUnavailable, Err: err} }

func (r Result) OK() bool { return r.Kind == KindSuccess }

type QueryRequest struct {
	Username string `json:"username"`
	Query    string `json:"query"`
}

type QueryResponse struct {
	Success *bool   `json:"success"`
	Answer  *string `json:"answer,omitempty"`
	Message string  `json:"message,omitempty"`
}

// Client talks to the answering service over HTTP. It does not retry and
// does not cache; the http.Client timeout bounds every call.
type Client struct {
	httpClient *http.Client
	server     string
}

func NewClient(server string, timeout time.Duration) (*Client, error) {
	normalized, err := NormalizeServerURL(server)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		server:     normalized,
	}, nil
}

// NormalizeServerURL adds a scheme when missing and strips any path or
// trailing slash.
func NormalizeServerURL(server string) (string, error) {
	server = strings.TrimSpace(server)
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
}

func (c *Client) Server() string {
	return c.server
}

func (c *Client) Dispatch(ctx context.Context, userIdentity, query string) Result {
	body, err := json.Marshal(QueryRequest{Username: userIdentity, Query: query})
	if err != nil {
		return Unavailable(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+endpointQuery, bytes.NewReader(body))
	if err != nil {
		return Unavailable(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Unavailable(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Unavailable(fmt.Errorf("failed to read response: %w", err))
	}

	// The status code is not trusted on its own: a parseable envelope with
	// success=false is a refusal even when the service answered 4xx/5xx.
	var qr QueryResponse
	if err := json.Unmarshal(raw, &qr); err != nil {
		return Unavailable(fmt.Errorf("malformed response (HTTP %d): %w", resp.StatusCode, err))
	}
	if qr.Success == nil {
		return Unavailable(fmt.Errorf("response has no success flag (HTTP %d)", resp.StatusCode))
	}
	if !*qr.Success {
		return Refused(qr.Message)
	}
	if qr.Answer == nil {
		return Unavailable(fmt.Errorf("response signalled success without an answer (HTTP %d)", resp.StatusCode))
	}
	return Success(*qr.Answer)
}
