package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsogoo/chimege-transcribe/internal/jobstore"
)

func newTestNotifier() (*Notifier, *[]time.Duration) {
	var slept []time.Duration
	n := NewNotifier()
	n.sleep = func(d time.Duration) { slept = append(slept, d) }
	return n, &slept
}

func TestNotifyDeliversPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, slept := newTestNotifier()
	n.Notify(context.Background(), "job-7", jobstore.StatusComplete, srv.URL, map[string]any{
		"duration_seconds": 42.5,
	})

	assert.Empty(t, *slept)
	assert.Equal(t, "job-7", got["job_id"])
	assert.Equal(t, "complete", got["status"])
	assert.Equal(t, 42.5, got["duration_seconds"])
}

func TestNotifyRetriesWithBackoffThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, slept := newTestNotifier()
	n.Notify(context.Background(), "job-8", jobstore.StatusConverting, srv.URL, nil)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *slept)
}

func TestNotifyGivesUpAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n, slept := newTestNotifier()
	// Must return normally; exhaustion is logged, not raised.
	n.Notify(context.Background(), "job-9", jobstore.StatusFailed, srv.URL, map[string]any{
		"error_message": "normalize failed",
	})

	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, *slept, 2)
}

func TestNotifyUnreachableEndpoint(t *testing.T) {
	n, slept := newTestNotifier()
	n.Notify(context.Background(), "job-10", jobstore.StatusAccepted, "http://127.0.0.1:1/callback", nil)
	assert.Len(t, *slept, 2)
}
