package v1

import (
	"strconv"
	"time"
)

const (
	// AgentServiceName is the fully-qualified name of the agent service.
	AgentServiceName = "proto.AgentService"

	// AgentServiceStreamAgentResponseProcedure is the path of the server-streamed
	// StreamAgentResponse RPC.
	AgentServiceStreamAgentResponseProcedure = "/proto.AgentService/StreamAgentResponse"
)

const (
	MetadataTimestamp = "timestamp"
	MetadataSource    = "source"

	SourceWeb = "web"
)

// AgentRequest is a single user query sent to the agent service.
type AgentRequest struct {
	Query          string
	ConversationID string
	Metadata       map[string]string
}

// NewAgentRequest builds a request stamped with the submission time and the
// web source tag.
func NewAgentRequest(query, conversationID string, now time.Time) *AgentRequest {
	return &AgentRequest{
		Query:          query,
		ConversationID: conversationID,
		Metadata: map[string]string{
			MetadataTimestamp: strconv.FormatInt(now.UnixMilli(), 10),
			MetadataSource:    SourceWeb,
		},
	}
}

// AgentResponse is one unit of streamed agent output. Timestamp is in unix
// milliseconds.
type AgentResponse struct {
	Event     Event
	Timestamp int64
}

// NewErrorResponse builds the terminal error event that stands in for a
// transport failure.
func NewErrorResponse(message string, now time.Time) *AgentResponse {
	return &AgentResponse{
		Event:     EventError{Message: message},
		Timestamp: now.UnixMilli(),
	}
}

// Event is the payload of an AgentResponse. Exactly one of the Event* types
// below implements it, so a response never carries more than one case.
type Event interface {
	isAgentEvent()
}

type EventChunk struct {
	Text string
}

type EventToolCall struct {
	ToolCall
}

type EventThought struct {
	Text string
}

type EventError struct {
	Message string
}

type EventDone struct {
	Done bool
}

func (EventChunk) isAgentEvent()    {}
func (EventToolCall) isAgentEvent() {}
func (EventThought) isAgentEvent()  {}
func (EventError) isAgentEvent()    {}
func (EventDone) isAgentEvent()     {}

// ToolCall describes one tool invocation surfaced mid-stream.
type ToolCall struct {
	ToolName   string `json:"tool_name"`
	ToolInput  string `json:"tool_input"`
	ToolOutput string `json:"tool_output"`
	Status     string `json:"status"`
}

const (
	KindChunk    = "chunk"
	KindToolCall = "tool_call"
	KindThought  = "thought"
	KindError    = "error"
	KindDone     = "done"
	KindEmpty    = "empty"
)

// Kind returns the wire name of the populated event case.
func Kind(e Event) string {
	switch e.(type) {
	case EventChunk:
		return KindChunk
	case EventToolCall:
		return KindToolCall
	case EventThought:
		return KindThought
	case EventError:
		return KindError
	case EventDone:
		return KindDone
	}
	return KindEmpty
}

// Kind returns the wire name of the response's event case.
func (r *AgentResponse) Kind() string {
	if r == nil {
		return KindEmpty
	}
	return Kind(r.Event)
}
