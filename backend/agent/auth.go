package agent

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

type TransportType string

const (
	TransportUnix TransportType = "unix"
	TransportTCP  TransportType = "tcp"
)

type transportKey struct{}

func TransportFromContext(ctx context.Context) TransportType {
	transport, ok := ctx.Value(transportKey{}).(TransportType)
	if !ok {
		return ""
	}
	return transport
}

func WithTransport(ctx context.Context, transport TransportType) context.Context {
	return context.WithValue(ctx, transportKey{}, transport)
}

// ConnContext tags each connection's context with its transport so that
// local unix socket callers skip token checks. Use as http.Server.ConnContext.
func ConnContext(ctx context.Context, conn net.Conn) context.Context {
	if conn.LocalAddr().Network() == "unix" {
		return WithTransport(ctx, TransportUnix)
	}
	return WithTransport(ctx, TransportTCP)
}

// AuthInterceptor rejects calls that do not carry the expected bearer token.
type AuthInterceptor struct {
	token string
}

var _ connect.Interceptor = (*AuthInterceptor)(nil)

func NewAuthInterceptor(token string) *AuthInterceptor {
	return &AuthInterceptor{token: token}
}

func (a *AuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if err := a.authenticate(ctx, req.Header()); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (a *AuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (a *AuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, shc connect.StreamingHandlerConn) error {
		if err := a.authenticate(ctx, shc.RequestHeader()); err != nil {
			return err
		}
		return next(ctx, shc)
	}
}

func (a *AuthInterceptor) authenticate(ctx context.Context, header http.Header) error {
	if TransportFromContext(ctx) == TransportUnix {
		return nil
	}

	authHeader := header.Get("Authorization")
	if authHeader == "" {
		return connect.NewError(connect.CodeUnauthenticated, errors.New("missing authorization header"))
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return connect.NewError(connect.CodeUnauthenticated, errors.New("invalid authorization format"))
	}

	if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(a.token)) != 1 {
		return connect.NewError(connect.CodeUnauthenticated, errors.New("invalid token"))
	}

	return nil
}
