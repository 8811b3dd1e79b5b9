package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/screenrelay/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time encoder, session and job state events",
		Tags:        []string{"events"},
	}, map[string]any{
		"encoder-resolved":  events.EncoderResolvedEvent{},
		"encoder-failed":    events.EncoderFailedEvent{},
		"session-started":   events.SessionStartedEvent{},
		"session-ended":     events.SessionEndedEvent{},
		"job-state-changed": events.JobStateChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.EncoderResolvedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.EncoderFailedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionEndedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.JobStateChangedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		forwardEvents(ctx, eventCh, send)
	})
}

// forwardEvents sends events until the client goes away or a send fails.
func forwardEvents(ctx context.Context, eventCh <-chan any, send sse.Sender) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventCh:
			if err := send.Data(event); err != nil {
				return
			}
		}
	}
}
