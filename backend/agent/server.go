package agent

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/furisto/switchboard/shared/listener"
)

// Server hosts a Responder as the agent service.
type Server struct {
	handler http.Handler
}

func NewServer(respond Responder, opts ...HandlerOption) *Server {
	mux := http.NewServeMux()
	mux.Handle(NewHandler(respond, opts...))

	return &Server{
		handler: h2c.NewHandler(mux, &http2.Server{}),
	}
}

// Handler serves HTTP/1.1, HTTP/2 and cleartext HTTP/2 requests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on l until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	server := &http.Server{
		Handler:           s.handler,
		ConnContext:       ConnContext,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.InfoContext(ctx, "agent service listening", "address", l.Addr().String(), "network", l.Addr().Network())
	return listener.Serve(ctx, server, l, listener.DefaultShutdownTimeout)
}
