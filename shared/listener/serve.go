package listener

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultShutdownTimeout bounds how long in-flight requests may run after
// the serve context ends.
const DefaultShutdownTimeout = 8 * time.Second

// Serve runs server on l until ctx ends, then shuts it down gracefully.
func Serve(ctx context.Context, server *http.Server, l net.Listener, shutdownTimeout time.Duration) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		err := server.Serve(l)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		slog.Debug("shutting down http server", "address", l.Addr().String())
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown http server", "error", err)
			return err
		}
		return nil
	})

	return group.Wait()
}
