package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/operately/pagedata/internal/logging"
	"github.com/operately/pagedata/internal/revalidate"
)

const heartbeatInterval = 15 * time.Second

// Observe registers a handler that runs once the key's refetch handlers have returned
type Observe func(key string, handler revalidate.Handler) (unsubscribe func())

type staleEvent struct {
	Key          string `json:"key"`
	SubscriberID string `json:"subscriberId"`
}

func writeEvent(w io.Writer, rc *http.ResponseController, event string, data staleEvent) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, encoded)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return rc.Flush()
}

// MakeEventsHandler streams a "stale" server-sent event each time the key is notified.
// The subscription lives as long as the connection.
func MakeEventsHandler(
	observe Observe,
	allowedOrigins *AllowedOrigins,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildPortMiddleware("events", readLimits, allowedOrigins, rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key := r.URL.Query().Get("key")
		if key == "" {
			writeErrorResponse(w, http.StatusBadRequest, "missing key")
			return
		}

		subscriberID := uuid.NewString()
		ctx = logging.AddMetaToContext(ctx,
			slog.String("key", key),
			slog.String("subscriberID", subscriberID),
		)
		logger := logging.FromContext(ctx)

		// Notifications arriving while one is pending are merged
		stale := make(chan struct{}, 1)
		unsubscribe := observe(key, func(ctx context.Context) {
			select {
			case stale <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()

		metrics.openStreams.Add(ctx, 1)
		defer metrics.openStreams.Add(ctx, -1)

		rc := http.NewResponseController(w)
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		event := staleEvent{Key: key, SubscriberID: subscriberID}
		err := writeEvent(w, rc, "subscribed", event)
		if err != nil {
			logger.WarnContext(ctx, "Failed to start event stream", "error", err.Error())
			return
		}
		logger.InfoContext(ctx, "Event stream opened")

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.InfoContext(ctx, "Event stream closed")
				return
			case <-stale:
				err := writeEvent(w, rc, "stale", event)
				if err != nil {
					logger.WarnContext(ctx, "Failed to write stale event", "error", err.Error())
					return
				}
			case <-heartbeat.C:
				_, err := io.WriteString(w, ": heartbeat\n\n")
				if err == nil {
					err = rc.Flush()
				}
				if err != nil {
					logger.WarnContext(ctx, "Failed to write heartbeat", "error", err.Error())
					return
				}
			}
		}
	}

	return middleware(handler)
}
