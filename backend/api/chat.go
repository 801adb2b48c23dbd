package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	v1 "github.com/furisto/switchboard/api/go/v1"
	"github.com/furisto/switchboard/backend/analytics"
	"github.com/furisto/switchboard/backend/stream"
)

const maxChatRequestBytes = 1 << 20

type chatRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id"`
}

// handleChat streams the agent's answer to a query as NDJSON, one record per
// event, flushed as it arrives.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatRequestBytes))
	if err := decoder.Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	ctx := r.Context()
	logger := s.logger.With(
		"request_id", middleware.GetReqID(ctx),
		"conversation_id", req.ConversationID,
	)

	started := time.Now()
	analytics.EmitChatStarted(s.analytics, req.ConversationID)

	// A client disconnect cancels ctx, which ends the pull and closes the
	// stream, cancelling the agent call.
	events := s.agent.StreamAgentResponse(ctx, req.Query, req.ConversationID)
	defer events.Close()

	counted := &countingSource{src: events}
	defer func() {
		events, last := counted.snapshot()
		analytics.EmitChatFinished(s.analytics, req.ConversationID, last, events, time.Since(started))
	}()

	w.Header().Set("Content-Type", stream.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	flush := func() {
		if err := rc.Flush(); err != nil {
			logger.Debug("failed to flush chat response", "error", err)
		}
	}
	flush()

	if err := stream.Copy(ctx, w, counted, flush, stream.WithBridgeMetrics(s.metrics)); err != nil {
		if ctx.Err() != nil {
			logger.Debug("chat client went away", "error", err)
		} else {
			logger.Error("chat stream aborted", "error", err)
		}
		// Headers are already sent; aborting is the only way to tell the
		// client the body is incomplete.
		panic(http.ErrAbortHandler)
	}
}

// countingSource counts the events pulled through it and remembers the kind
// of the last one.
type countingSource struct {
	src stream.Source

	mu     sync.Mutex
	events int
	last   string
}

func (c *countingSource) Next(ctx context.Context) (*v1.AgentResponse, error) {
	resp, err := c.src.Next(ctx)
	if err == nil {
		c.mu.Lock()
		c.events++
		c.last = resp.Kind()
		c.mu.Unlock()
	}
	return resp, err
}

func (c *countingSource) snapshot() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events, c.last
}
