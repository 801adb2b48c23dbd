package v1

import (
	"fmt"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the agent service messages.
const (
	agentRequestQuery          protowire.Number = 1
	agentRequestConversationID protowire.Number = 2
	agentRequestMetadata       protowire.Number = 3

	mapEntryKey   protowire.Number = 1
	mapEntryValue protowire.Number = 2

	agentResponseChunk     protowire.Number = 1
	agentResponseToolCall  protowire.Number = 2
	agentResponseThought   protowire.Number = 3
	agentResponseError     protowire.Number = 4
	agentResponseDone      protowire.Number = 5
	agentResponseTimestamp protowire.Number = 6

	toolCallName   protowire.Number = 1
	toolCallInput  protowire.Number = 2
	toolCallOutput protowire.Number = 3
	toolCallStatus protowire.Number = 4
)

// CodecName is the name connect registers the codec under. It replaces the
// default proto codec, which only accepts generated messages.
const CodecName = "proto"

// Codec encodes agent service messages in protobuf binary format.
type Codec struct{}

func (Codec) Name() string {
	return CodecName
}

func (Codec) Marshal(msg any) ([]byte, error) {
	switch m := msg.(type) {
	case *AgentRequest:
		return m.MarshalProto(), nil
	case *AgentResponse:
		return m.MarshalProto()
	}
	return nil, fmt.Errorf("codec: cannot marshal %T", msg)
}

func (Codec) Unmarshal(data []byte, msg any) error {
	switch m := msg.(type) {
	case *AgentRequest:
		return m.UnmarshalProto(data)
	case *AgentResponse:
		return m.UnmarshalProto(data)
	}
	return fmt.Errorf("codec: cannot unmarshal into %T", msg)
}

func (r *AgentRequest) MarshalProto() []byte {
	var b []byte
	if r.Query != "" {
		b = appendString(b, agentRequestQuery, r.Query)
	}
	if r.ConversationID != "" {
		b = appendString(b, agentRequestConversationID, r.ConversationID)
	}

	keys := make([]string, 0, len(r.Metadata))
	for k := range r.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		var entry []byte
		entry = appendString(entry, mapEntryKey, k)
		entry = appendString(entry, mapEntryValue, r.Metadata[k])
		b = protowire.AppendTag(b, agentRequestMetadata, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

func (r *AgentRequest) UnmarshalProto(b []byte) error {
	*r = AgentRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == agentRequestQuery && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			r.Query = v
			return n, nil
		case num == agentRequestConversationID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			r.ConversationID = v
			return n, nil
		case num == agentRequestMetadata && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			key, value, err := consumeMapEntry(v)
			if err != nil {
				return 0, err
			}
			if r.Metadata == nil {
				r.Metadata = make(map[string]string)
			}
			r.Metadata[key] = value
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (r *AgentResponse) MarshalProto() ([]byte, error) {
	var b []byte
	switch e := r.Event.(type) {
	case nil:
	case EventChunk:
		b = appendString(b, agentResponseChunk, e.Text)
	case EventToolCall:
		b = protowire.AppendTag(b, agentResponseToolCall, protowire.BytesType)
		b = protowire.AppendBytes(b, e.ToolCall.marshalProto())
	case EventThought:
		b = appendString(b, agentResponseThought, e.Text)
	case EventError:
		b = appendString(b, agentResponseError, e.Message)
	case EventDone:
		b = protowire.AppendTag(b, agentResponseDone, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(e.Done))
	default:
		return nil, fmt.Errorf("codec: unsupported event type %T", r.Event)
	}

	if r.Timestamp != 0 {
		b = protowire.AppendTag(b, agentResponseTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.Timestamp))
	}
	return b, nil
}

// UnmarshalProto decodes a response. When several event cases are present on
// the wire the last one wins, as with any protobuf oneof.
func (r *AgentResponse) UnmarshalProto(b []byte) error {
	*r = AgentResponse{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == agentResponseChunk && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			r.Event = EventChunk{Text: v}
			return n, nil
		case num == agentResponseToolCall && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			var tc ToolCall
			if err := tc.unmarshalProto(v); err != nil {
				return 0, err
			}
			r.Event = EventToolCall{ToolCall: tc}
			return n, nil
		case num == agentResponseThought && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			r.Event = EventThought{Text: v}
			return n, nil
		case num == agentResponseError && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			r.Event = EventError{Message: v}
			return n, nil
		case num == agentResponseDone && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.Event = EventDone{Done: protowire.DecodeBool(v)}
			return n, nil
		case num == agentResponseTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.Timestamp = int64(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (t ToolCall) marshalProto() []byte {
	var b []byte
	if t.ToolName != "" {
		b = appendString(b, toolCallName, t.ToolName)
	}
	if t.ToolInput != "" {
		b = appendString(b, toolCallInput, t.ToolInput)
	}
	if t.ToolOutput != "" {
		b = appendString(b, toolCallOutput, t.ToolOutput)
	}
	if t.Status != "" {
		b = appendString(b, toolCallStatus, t.Status)
	}
	return b
}

func (t *ToolCall) unmarshalProto(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}

		var dst *string
		switch num {
		case toolCallName:
			dst = &t.ToolName
		case toolCallInput:
			dst = &t.ToolInput
		case toolCallOutput:
			dst = &t.ToolOutput
		case toolCallStatus:
			dst = &t.Status
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}

		v, n := protowire.ConsumeString(b)
		*dst = v
		return n, nil
	})
}

func consumeMapEntry(b []byte) (key, value string, err error) {
	err = consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == mapEntryKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			key = v
			return n, nil
		case num == mapEntryValue && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			value = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return key, value, err
}

// consumeFields walks the fields of an encoded message. fn consumes the value
// of a single field and returns the number of bytes read, or a negative
// protowire error code.
func consumeFields(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}
