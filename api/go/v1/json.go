package v1

import (
	"encoding/json"
	"errors"
	"fmt"
)

type eventJSON struct {
	Chunk    *string   `json:"chunk,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
	Thought  *string   `json:"thought,omitempty"`
	Error    *string   `json:"error,omitempty"`
	Done     *bool     `json:"done,omitempty"`
}

type responseJSON struct {
	Event     *eventJSON `json:"event,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

var errMultipleEventCases = errors.New("event has more than one case set")

// MarshalJSON encodes r as one NDJSON record. Text fields are emitted as
// valid UTF-8: invalid byte sequences in chunk, thought, error or tool call
// text become U+FFFD, so such text does not survive the record byte for byte
// even though the protobuf codec carries it unchanged.
func (r AgentResponse) MarshalJSON() ([]byte, error) {
	out := responseJSON{Timestamp: r.Timestamp}

	switch e := r.Event.(type) {
	case nil:
	case EventChunk:
		out.Event = &eventJSON{Chunk: &e.Text}
	case EventToolCall:
		out.Event = &eventJSON{ToolCall: &e.ToolCall}
	case EventThought:
		out.Event = &eventJSON{Thought: &e.Text}
	case EventError:
		out.Event = &eventJSON{Error: &e.Message}
	case EventDone:
		out.Event = &eventJSON{Done: &e.Done}
	default:
		return nil, fmt.Errorf("unsupported event type %T", r.Event)
	}

	return json.Marshal(out)
}

func (r *AgentResponse) UnmarshalJSON(data []byte) error {
	var in responseJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	r.Timestamp = in.Timestamp
	r.Event = nil
	if in.Event == nil {
		return nil
	}

	set := 0
	if in.Event.Chunk != nil {
		r.Event = EventChunk{Text: *in.Event.Chunk}
		set++
	}
	if in.Event.ToolCall != nil {
		r.Event = EventToolCall{ToolCall: *in.Event.ToolCall}
		set++
	}
	if in.Event.Thought != nil {
		r.Event = EventThought{Text: *in.Event.Thought}
		set++
	}
	if in.Event.Error != nil {
		r.Event = EventError{Message: *in.Event.Error}
		set++
	}
	if in.Event.Done != nil {
		r.Event = EventDone{Done: *in.Event.Done}
		set++
	}

	if set > 1 {
		r.Event = nil
		return errMultipleEventCases
	}
	return nil
}
