// Package client talks to the external agent service.
package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"connectrpc.com/connect"

	v1 "github.com/furisto/switchboard/api/go/v1"
	"github.com/furisto/switchboard/backend/stream"
	"github.com/furisto/switchboard/shared/resilience"
)

type Config struct {
	// Address of the agent service. Defaults to DefaultAddress.
	Address  string
	Protocol Protocol

	// BreakerThreshold is the number of consecutive failed calls after which
	// calls are rejected for BreakerReset. Zero disables the breaker.
	BreakerThreshold int
	BreakerReset     time.Duration
}

type Option func(*Client)

func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithHTTPClient(httpClient connect.HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithMetrics(metrics *stream.Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// Client owns the connection to the agent service. It is created once, held
// for the lifetime of the process and shared by all calls; each call opens
// its own stream over it.
type Client struct {
	address    string
	protocol   Protocol
	token      string
	httpClient connect.HTTPClient
	breaker    *resilience.CircuitBreaker
	metrics    *stream.Metrics
	now        func() time.Time

	once    sync.Once
	agent   *connect.Client[v1.AgentRequest, v1.AgentResponse]
	connErr error
}

func New(cfg Config, opts ...Option) *Client {
	address := cfg.Address
	if address == "" {
		address = DefaultAddress
	}

	protocol := cfg.Protocol
	if protocol == "" {
		protocol = ProtocolGRPC
	}

	c := &Client{
		address:  address,
		protocol: protocol,
		breaker:  resilience.NewCircuitBreaker(address, cfg.BreakerThreshold, cfg.BreakerReset),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) Address() string {
	return c.address
}

// Connect builds the connection handle on first use and returns the same
// handle afterwards. It never dials, so an unreachable service only shows up
// once a call is made. It fails only for a malformed address or protocol.
func (c *Client) Connect() (*connect.Client[v1.AgentRequest, v1.AgentResponse], error) {
	c.once.Do(func() {
		if err := c.protocol.Validate(); err != nil {
			c.connErr = err
			return
		}

		ep, err := parseAddress(c.address)
		if err != nil {
			c.connErr = err
			return
		}

		httpClient := c.httpClient
		if httpClient == nil {
			httpClient = newHTTPClient(ep)
		}

		options := []connect.ClientOption{
			connect.WithCodec(v1.Codec{}),
		}
		switch c.protocol {
		case ProtocolGRPC:
			options = append(options, connect.WithGRPC())
		case ProtocolGRPCWeb:
			options = append(options, connect.WithGRPCWeb())
		}
		if c.token != "" {
			options = append(options, connect.WithInterceptors(&tokenInterceptor{token: c.token}))
		}

		c.agent = connect.NewClient[v1.AgentRequest, v1.AgentResponse](
			httpClient,
			ep.baseURL+v1.AgentServiceStreamAgentResponseProcedure,
			options...,
		)

		slog.Debug("agent client initialized",
			"address", c.address,
			"protocol", c.protocol,
		)
	})

	return c.agent, c.connErr
}

// StreamAgentResponse sends query to the agent and returns its responses.
func (c *Client) StreamAgentResponse(ctx context.Context, query, conversationID string) *stream.Stream {
	return c.Call(ctx, v1.NewAgentRequest(query, conversationID, c.now()))
}

// Call opens one server stream for req. The call runs until the agent ends
// the stream, ctx is cancelled or the returned stream is closed. Failures,
// including failing to open the call, arrive as a final error response.
func (c *Client) Call(ctx context.Context, req *v1.AgentRequest) *stream.Stream {
	callCtx, cancel := context.WithCancel(ctx)
	opts := []stream.Option{
		stream.WithCancel(cancel),
		stream.WithMetrics(c.metrics),
		stream.WithClock(c.now),
	}

	agent, err := c.Connect()
	if err != nil {
		cancel()
		return stream.Failed(err, opts...)
	}

	if err := c.breaker.Check(); err != nil {
		slog.WarnContext(ctx, "agent call rejected", "address", c.address, "error", err)
		cancel()
		return stream.Failed(err, opts...)
	}

	s := stream.New(opts...)
	go func() {
		recv, err := agent.CallServerStream(callCtx, connect.NewRequest(req))
		if err != nil {
			slog.ErrorContext(ctx, "failed to open agent stream", "address", c.address, "error", err)
			c.recordResult(err)
			s.Fail(err)
			return
		}
		s.Pump(recv, c.recordResult)
	}()

	return s
}

// recordResult feeds the breaker. Only failures that suggest the service is
// unreachable or broken count against it.
func (c *Client) recordResult(err error) {
	if err == nil {
		c.breaker.RecordResult(nil)
		return
	}

	slog.Debug("agent stream finished with error", "address", c.address, "error", err)
	if errors.Is(err, context.Canceled) {
		return
	}

	switch connect.CodeOf(err) {
	case connect.CodeUnavailable, connect.CodeDeadlineExceeded, connect.CodeInternal, connect.CodeUnknown:
		c.breaker.RecordResult(err)
	case connect.CodeCanceled:
	default:
		c.breaker.RecordResult(nil)
	}
}
