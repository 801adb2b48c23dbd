// Package analytics emits product usage events to PostHog.
package analytics

import (
	"log/slog"
	"time"

	"github.com/posthog/posthog-go"
)

// Enqueuer is the part of posthog.Client used here.
type Enqueuer interface {
	Enqueue(posthog.Message) error
}

var _ Enqueuer = (posthog.Client)(nil)

func EmitChatStarted(client Enqueuer, conversationID string) {
	emit(client, posthog.Capture{
		DistinctId: "user",
		Event:      "chat_started",
		Properties: map[string]interface{}{
			"conversation_id": conversationID,
		},
	})
}

// EmitChatFinished records how a chat stream ended. outcome is the kind of
// the last event delivered.
func EmitChatFinished(client Enqueuer, conversationID string, outcome string, events int, duration time.Duration) {
	emit(client, posthog.Capture{
		DistinctId: "user",
		Event:      "chat_finished",
		Properties: map[string]interface{}{
			"conversation_id": conversationID,
			"outcome":         outcome,
			"events":          events,
			"duration_ms":     duration.Milliseconds(),
		},
	})
}

func emit(client Enqueuer, capture posthog.Capture) {
	if client == nil {
		return
	}
	if err := client.Enqueue(capture); err != nil {
		slog.Debug("failed to enqueue analytics event", "event", capture.Event, "error", err)
	}
}
