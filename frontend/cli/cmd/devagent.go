package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/furisto/switchboard/backend/agent"
	"github.com/furisto/switchboard/shared/listener"
)

type devAgentOptions struct {
	Listen string
	Unix   string
	Token  string
	Delay  time.Duration
}

func NewDevAgentCmd() *cobra.Command {
	var options devAgentOptions

	cmd := &cobra.Command{
		Use:     "devagent",
		Short:   "Run a development agent service that echoes queries back",
		GroupID: "system",
		Args:    cobra.NoArgs,
		Long: `Run a small agent service speaking the same streaming contract as the
production agent. Every answer is a thought, an echo tool call and the query
streamed back word by word. Use it to develop against the dashboard without a
real agent backend.`,
		Example: `  # Serve on the default agent address
  switchboard devagent

  # Require a bearer token
  switchboard devagent --token s3cret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := listener.DetectProvider(options.Listen, options.Unix)
			if err != nil {
				return fmt.Errorf("failed to detect listener provider: %w", err)
			}

			l, err := provider.Create()
			if err != nil {
				return fmt.Errorf("failed to create listener: %w", err)
			}
			defer provider.Close()

			var opts []agent.HandlerOption
			if options.Token != "" {
				opts = append(opts, agent.WithToken(options.Token))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Development agent listening on %s\n", l.Addr())
			return agent.NewServer(agent.Echo(options.Delay), opts...).Serve(cmd.Context(), l)
		},
	}

	cmd.Flags().StringVar(&options.Listen, "listen", "localhost:50051", "tcp address to listen on")
	cmd.Flags().StringVar(&options.Unix, "listen-unix", "", "unix socket to listen on instead of tcp")
	cmd.Flags().StringVar(&options.Token, "token", "", "bearer token callers must present")
	cmd.Flags().DurationVar(&options.Delay, "delay", 50*time.Millisecond, "pause between streamed words")

	return cmd
}
