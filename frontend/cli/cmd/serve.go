package cmd

import (
	"fmt"
	"log/slog"

	"github.com/posthog/posthog-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/furisto/switchboard/api/go/client"
	"github.com/furisto/switchboard/backend/api"
	"github.com/furisto/switchboard/backend/health"
	"github.com/furisto/switchboard/backend/stream"
	"github.com/furisto/switchboard/frontend/cli/pkg/fail"
	"github.com/furisto/switchboard/shared/listener"
)

type serveOptions struct {
	HTTPAddress string
	UnixSocket  string
}

func NewServeCmd() *cobra.Command {
	var options serveOptions

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API the dashboard talks to",
		GroupID: "system",
		Args:    cobra.NoArgs,
		Long: `Run the HTTP API behind the dashboard. It streams chat answers from the
agent service as NDJSON and reports the health of the REST API.

Listening follows this order:
  - --listen-unix or --listen-http if given
  - a socket passed in by systemd or launchd
  - server.listen_unix or server.listen_http from the configuration`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd.Context())

			httpAddress, unixSocket := options.HTTPAddress, options.UnixSocket
			if httpAddress == "" && unixSocket == "" && !listener.SocketActivated() {
				httpAddress, unixSocket = cfg.Server.ListenHTTP, cfg.Server.ListenUnix
			}

			provider, err := listener.DetectProvider(httpAddress, unixSocket)
			if err != nil {
				return fmt.Errorf("failed to detect listener provider: %w", err)
			}

			l, err := provider.Create()
			if err != nil {
				return fail.EnhanceError(fmt.Errorf("failed to create listener: %w", err), map[string]any{"path": unixSocket})
			}
			defer provider.Close()

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			metrics := stream.NewMetrics(registry)

			agentClient, err := getAgentClient(cmd.Context(), client.WithMetrics(metrics))
			if err != nil {
				return fail.EnhanceError(err, nil)
			}

			serverOpts := []api.Option{
				api.WithLogger(slog.Default()),
				api.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
				api.WithRegistry(registry),
				api.WithStreamMetrics(metrics),
			}

			if cfg.Analytics.PosthogKey != "" {
				analyticsClient, err := posthog.NewWithConfig(cfg.Analytics.PosthogKey, posthog.Config{
					Endpoint: cfg.Analytics.PosthogEndpoint,
				})
				if err != nil {
					return fail.EnhanceError(fmt.Errorf("failed to create analytics client: %w", err), nil)
				}
				defer analyticsClient.Close()
				serverOpts = append(serverOpts, api.WithAnalytics(analyticsClient))
			}

			var checker api.HealthChecker = getHealthChecker(cmd.Context())
			if cfg.API.CacheTTL > 0 {
				checker, err = health.NewCachedChecker(checker, cfg.API.CacheTTL)
				if err != nil {
					return fmt.Errorf("failed to create health cache: %w", err)
				}
			}

			server := api.New(agentClient, checker, serverOpts...)

			slog.Info("serving dashboard api",
				"activation", provider.ActivationType(),
				"agent", agentClient.Address(),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s (%s)\n", l.Addr(), provider.ActivationType())

			return server.Serve(cmd.Context(), l)
		},
	}

	cmd.Flags().StringVar(&options.HTTPAddress, "listen-http", "", "tcp address to listen on")
	cmd.Flags().StringVar(&options.UnixSocket, "listen-unix", "", "unix socket to listen on")
	cmd.MarkFlagsMutuallyExclusive("listen-http", "listen-unix")

	return cmd
}
