package ports_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/operately/pagedata/internal/ports"
	"github.com/operately/pagedata/internal/revalidate"
	"github.com/stretchr/testify/require"
)

type sseEvent struct {
	name string
	data map[string]string
}

func readEvent(t *testing.T, scanner *bufio.Scanner) sseEvent {
	t.Helper()

	event := sseEvent{}
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event.name != "" {
				return event
			}
		case strings.HasPrefix(line, "event: "):
			event.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event.data))
		}
	}
	require.NoError(t, scanner.Err())
	t.Fatal("Event stream ended")
	return event
}

func TestMakeEventsHandler(t *testing.T) {
	t.Parallel()

	t.Run("streams stale events until the client disconnects", func(t *testing.T) {
		t.Parallel()

		bus := revalidate.NewBus()
		key := "v3-GoalPage-goal-1"

		server := httptest.NewServer(ports.MakeEventsHandler(bus.Observe, newAllowedOrigins(t), testLogger, noopMiddleware))
		defer server.Close()

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, "GET", server.URL+"/v1/events?key="+key, nil)
		require.NoError(t, err)
		resp, err := server.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

		scanner := bufio.NewScanner(resp.Body)

		subscribed := readEvent(t, scanner)
		require.Equal(t, "subscribed", subscribed.name)
		require.Equal(t, key, subscribed.data["key"])
		subscriberID := subscribed.data["subscriberId"]
		require.NotEmpty(t, subscriberID)

		require.Equal(t, 1, bus.Observers(key))

		require.Equal(t, 1, bus.Notify(t.Context(), key))
		stale := readEvent(t, scanner)
		require.Equal(t, "stale", stale.name)
		require.Equal(t, key, stale.data["key"])
		require.Equal(t, subscriberID, stale.data["subscriberId"])

		// Other keys are not streamed
		require.Equal(t, 0, bus.Notify(t.Context(), "v3-GoalPage-goal-2"))

		cancel()
		require.Eventually(t, func() bool {
			return bus.Observers(key) == 0
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("stale is sent once the refetch has returned", func(t *testing.T) {
		t.Parallel()

		bus := revalidate.NewBus()
		key := "v3-CompanyPage"

		server := httptest.NewServer(ports.MakeEventsHandler(bus.Observe, newAllowedOrigins(t), testLogger, noopMiddleware))
		defer server.Close()

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, "GET", server.URL+"/v1/events?key="+key, nil)
		require.NoError(t, err)
		resp, err := server.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		require.Equal(t, "subscribed", readEvent(t, scanner).name)

		// Registered after the stream, still runs before it
		var refetched atomic.Bool
		unsubscribe := bus.Subscribe(key, func(ctx context.Context) {
			time.Sleep(20 * time.Millisecond)
			refetched.Store(true)
		})
		defer unsubscribe()

		require.Equal(t, 2, bus.Notify(t.Context(), key))
		require.True(t, refetched.Load())

		stale := readEvent(t, scanner)
		require.Equal(t, "stale", stale.name)
		require.True(t, refetched.Load())
	})

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()

		bus := revalidate.NewBus()
		handler := ports.MakeEventsHandler(bus.Observe, newAllowedOrigins(t), testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/v1/events", nil))

		require.Equal(t, http.StatusBadRequest, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"missing key"}`, w.Body.String())
		require.Empty(t, bus.Keys())
	})
}
