package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	v1 "github.com/furisto/switchboard/api/go/v1"
	"github.com/furisto/switchboard/backend/stream"
	"github.com/furisto/switchboard/frontend/cli/pkg/fail"
	"github.com/furisto/switchboard/frontend/cli/pkg/terminal"
)

type OutputFormat string

const (
	OutputFormatText     OutputFormat = "text"
	OutputFormatJSON     OutputFormat = "json"
	OutputFormatMarkdown OutputFormat = "markdown"
)

func (f *OutputFormat) String() string {
	if f == nil {
		return ""
	}
	return string(*f)
}

func (f *OutputFormat) Set(v string) error {
	for _, format := range []OutputFormat{OutputFormatText, OutputFormatJSON, OutputFormatMarkdown} {
		if v == string(format) {
			*f = format
			return nil
		}
	}
	return errors.New(`must be one of "text", "json", or "markdown"`)
}

func (f *OutputFormat) Type() string {
	return "format"
}

type chatOptions struct {
	ConversationID string
	Output         OutputFormat
	Width          int
}

func NewChatCmd() *cobra.Command {
	options := chatOptions{Output: OutputFormatText}

	cmd := &cobra.Command{
		Use:     "chat <query>...",
		Short:   "Ask the agent a question and stream its answer",
		GroupID: "core",
		Args:    cobra.MinimumNArgs(1),
		Example: `  # Stream an answer to the terminal
  switchboard chat "What changed in the last release?"

  # Continue a conversation
  switchboard chat --conversation 7f1c0a52-5c1e-4c55-9c39-0f1c7ad3e5c2 "And before that?"

  # Emit the raw NDJSON records the dashboard receives
  switchboard chat --output json "Summarize the incident"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return errors.New("query must not be empty")
			}

			conversationID := options.ConversationID
			if conversationID == "" {
				conversationID = uuid.NewString()
			}

			agent, err := getAgentClient(cmd.Context())
			if err != nil {
				return fail.EnhanceError(err, nil)
			}

			events := agent.StreamAgentResponse(cmd.Context(), query, conversationID)
			defer events.Close()

			tracker := &streamTracker{src: events}
			out := cmd.OutOrStdout()

			switch options.Output {
			case OutputFormatJSON:
				err = stream.Copy(cmd.Context(), out, tracker, nil)
			case OutputFormatMarkdown:
				err = printMarkdown(cmd.Context(), out, tracker, options.Width)
			default:
				err = printText(cmd.Context(), out, tracker)
			}
			if err != nil {
				return err
			}

			if tracker.failure != "" {
				return fail.NewAgentError(agent.Address(), tracker.failure)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&options.ConversationID, "conversation", "", "conversation to continue (default: a new conversation)")
	cmd.Flags().VarP(&options.Output, "output", "o", `output format: "text", "json" or "markdown"`)
	cmd.Flags().IntVar(&options.Width, "width", 100, "word wrap width for markdown output")

	return cmd
}

func printText(ctx context.Context, w io.Writer, src stream.Source) error {
	printer := terminal.NewChatPrinter(w)
	defer printer.Finish()

	return drain(ctx, src, printer.Print)
}

// printMarkdown shows progress as it happens and renders the collected
// answer once the agent is done.
func printMarkdown(ctx context.Context, w io.Writer, src stream.Source, width int) error {
	printer := terminal.NewChatPrinter(w)
	printer.Quiet = true

	var answer strings.Builder
	err := drain(ctx, src, func(resp *v1.AgentResponse) {
		if chunk, ok := resp.Event.(v1.EventChunk); ok {
			answer.WriteString(chunk.Text)
		}
		printer.Print(resp)
	})
	if err != nil {
		return err
	}

	if answer.Len() == 0 {
		return nil
	}

	rendered, err := terminal.RenderMarkdown(answer.String(), width)
	if err != nil {
		return fmt.Errorf("failed to render answer: %w", err)
	}
	_, err = fmt.Fprintln(w, rendered)
	return err
}

func drain(ctx context.Context, src stream.Source, fn func(*v1.AgentResponse)) error {
	for {
		resp, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fn(resp)
	}
}

// streamTracker remembers the last error event a source produced.
type streamTracker struct {
	src     stream.Source
	failure string
}

func (t *streamTracker) Next(ctx context.Context) (*v1.AgentResponse, error) {
	resp, err := t.src.Next(ctx)
	if err == nil {
		if event, ok := resp.Event.(v1.EventError); ok {
			t.failure = event.Message
		}
	}
	return resp, err
}
