// Package agent implements a development agent service that speaks the same
// streaming contract as the production agent backend.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	v1 "github.com/furisto/switchboard/api/go/v1"
)

// Responder produces the events for one request. Returning an error ends the
// stream with that error after the events already sent.
type Responder func(ctx context.Context, req *v1.AgentRequest, send func(v1.Event) error) error

type handlerOptions struct {
	token string
	now   func() time.Time
}

type HandlerOption func(*handlerOptions)

// WithToken requires callers to present token as a bearer token.
func WithToken(token string) HandlerOption {
	return func(o *handlerOptions) {
		o.token = token
	}
}

func WithClock(now func() time.Time) HandlerOption {
	return func(o *handlerOptions) {
		o.now = now
	}
}

// NewHandler returns the path and handler serving StreamAgentResponse with
// respond.
func NewHandler(respond Responder, opts ...HandlerOption) (string, http.Handler) {
	options := handlerOptions{now: time.Now}
	for _, opt := range opts {
		opt(&options)
	}

	handlerOpts := []connect.HandlerOption{
		connect.WithCodec(v1.Codec{}),
	}
	if options.token != "" {
		handlerOpts = append(handlerOpts, connect.WithInterceptors(NewAuthInterceptor(options.token)))
	}

	return v1.AgentServiceStreamAgentResponseProcedure, connect.NewServerStreamHandler(
		v1.AgentServiceStreamAgentResponseProcedure,
		func(ctx context.Context, req *connect.Request[v1.AgentRequest], stream *connect.ServerStream[v1.AgentResponse]) error {
			if strings.TrimSpace(req.Msg.Query) == "" {
				return connect.NewError(connect.CodeInvalidArgument, errors.New("query must not be empty"))
			}

			slog.DebugContext(ctx, "agent request received",
				"conversation_id", req.Msg.ConversationID,
				"source", req.Msg.Metadata[v1.MetadataSource],
			)

			return respond(ctx, req.Msg, func(event v1.Event) error {
				return stream.Send(&v1.AgentResponse{
					Event:     event,
					Timestamp: options.now().UnixMilli(),
				})
			})
		},
		handlerOpts...,
	)
}

// Echo answers every query by thinking about it, calling an echo tool and
// streaming the query back word by word, pausing delay between chunks.
func Echo(delay time.Duration) Responder {
	return func(ctx context.Context, req *v1.AgentRequest, send func(v1.Event) error) error {
		if err := send(v1.EventThought{Text: fmt.Sprintf("The user said %q, I will echo it back.", req.Query)}); err != nil {
			return err
		}

		callID := uuid.NewString()
		if err := send(v1.EventToolCall{ToolCall: v1.ToolCall{
			ToolName:   "echo",
			ToolInput:  fmt.Sprintf(`{"id":%q,"text":%q}`, callID, req.Query),
			ToolOutput: req.Query,
			Status:     "completed",
		}}); err != nil {
			return err
		}

		for _, word := range strings.SplitAfter(req.Query, " ") {
			if delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
			if err := send(v1.EventChunk{Text: word}); err != nil {
				return err
			}
		}

		return send(v1.EventDone{Done: true})
	}
}
