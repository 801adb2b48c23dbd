// Package health reports whether the REST API behind the dashboard answers.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/furisto/switchboard/shared"
)

const (
	DefaultBaseURL = "http://localhost:8080"
	DefaultTimeout = 5 * time.Second

	MessageHealthy = "API is healthy"
	MessageNonOK   = "API returned non-OK status"
)

// Result is the outcome of one probe. It is also the JSON body of the
// health endpoint.
type Result struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message"`
}

type Option func(*Probe)

func WithHTTPClient(client *http.Client) Option {
	return func(p *Probe) {
		p.client = client
	}
}

type Probe struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

func NewProbe(baseURL string, timeout time.Duration, opts ...Option) *Probe {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	p := &Probe{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Probe) URL() string {
	return p.baseURL + "/health"
}

// Check issues one GET against the health endpoint. Failures are reported
// in the result, never as an error.
func (p *Probe) Check(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.check(ctx)
	if err != nil {
		slog.WarnContext(ctx, "api health check failed", "url", p.URL(), "error", err)
		return Result{Healthy: false, Message: fmt.Sprintf("Failed to connect to API: %v", err)}
	}
	return result
}

func (p *Probe) check(ctx context.Context) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL(), nil)
	if err != nil {
		return Result{}, shared.Wrap(shared.ErrorSourceProbe, err, "invalid health url")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.DebugContext(ctx, "api health check returned non-ok status", "status", resp.StatusCode)
		return Result{Healthy: false, Message: MessageNonOK}, nil
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, shared.Wrap(shared.ErrorSourceProbe, err, "invalid health response")
	}

	if body.Message == "" {
		body.Message = MessageHealthy
	}
	return Result{Healthy: true, Message: body.Message}, nil
}
