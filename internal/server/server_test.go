package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsogoo/chimege-transcribe/internal/jobstore"
	"github.com/tsogoo/chimege-transcribe/internal/notify"
	"github.com/tsogoo/chimege-transcribe/internal/pipeline"
	"github.com/tsogoo/chimege-transcribe/internal/worker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRunner struct {
	mu   sync.Mutex
	jobs []pipeline.Job
	done chan struct{}
}

func newStubRunner() *stubRunner {
	return &stubRunner{done: make(chan struct{}, 16)}
}

func (r *stubRunner) Run(_ context.Context, job pipeline.Job) {
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *stubRunner) wait(t *testing.T) pipeline.Job {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(time.Second):
		t.Fatal("runner was never invoked")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[len(r.jobs)-1]
}

func newTestServer(t *testing.T, pool *worker.Pool) (*Server, *stubRunner, jobstore.Store) {
	t.Helper()
	store, err := jobstore.New(jobstore.Config{})
	require.NoError(t, err)
	runner := newStubRunner()
	srv := New(Config{}, store, pool, runner, notify.NewHub())
	return srv, runner, store
}

func submitBody(jobID string) []byte {
	body, _ := json.Marshal(map[string]string{
		"job_id":       jobID,
		"audio_url":    "https://example.com/audio.mp3",
		"callback_url": "https://example.com/callback",
	})
	return body
}

func doRequest(srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.routes().ServeHTTP(rec, req)
	return rec
}

func TestProcessAcceptsAndQueues(t *testing.T) {
	pool := worker.NewPool(1, 4)
	pool.Start()
	defer pool.Stop()

	srv, runner, store := newTestServer(t, pool)

	rec := doRequest(srv, http.MethodPost, "/process", submitBody("job-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp["job_id"])
	assert.Equal(t, "processing", resp["status"])

	job := runner.wait(t)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, "https://example.com/audio.mp3", job.AudioSourceURL)
	assert.Equal(t, "https://example.com/callback", job.CallbackURL)

	// accepted was written before the worker picked the job up; by now the
	// stub runner has left it untouched.
	assert.Equal(t, jobstore.StatusAccepted, store.GetStatus(context.Background(), "job-1"))
}

func TestProcessRejectsMalformedBody(t *testing.T) {
	pool := worker.NewPool(1, 4)
	pool.Start()
	defer pool.Stop()

	srv, _, _ := newTestServer(t, pool)

	for name, body := range map[string][]byte{
		"not json":       []byte("nope"),
		"missing job_id": []byte(`{"audio_url":"a","callback_url":"b"}`),
		"missing urls":   []byte(`{"job_id":"x"}`),
		"empty callback": []byte(`{"job_id":"x","audio_url":"a","callback_url":""}`),
	} {
		rec := doRequest(srv, http.MethodPost, "/process", body)
		assert.Equalf(t, http.StatusBadRequest, rec.Code, "case %q", name)
	}
}

func TestProcessRejectsDuplicateInFlightJob(t *testing.T) {
	pool := worker.NewPool(1, 4)
	pool.Start()
	defer pool.Stop()

	srv, _, store := newTestServer(t, pool)
	require.NoError(t, store.SetStatus(context.Background(), "job-1", jobstore.StatusTranscribing))

	rec := doRequest(srv, http.MethodPost, "/process", submitBody("job-1"))
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "transcribing", resp["status"])
}

func TestProcessAllowsResubmitAfterTerminalStatus(t *testing.T) {
	pool := worker.NewPool(1, 4)
	pool.Start()
	defer pool.Stop()

	srv, runner, store := newTestServer(t, pool)
	require.NoError(t, store.SetStatus(context.Background(), "job-1", jobstore.StatusFailed))

	rec := doRequest(srv, http.MethodPost, "/process", submitBody("job-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	runner.wait(t)
}

func TestProcessConcurrentDuplicateSubmissions(t *testing.T) {
	pool := worker.NewPool(2, 32)
	pool.Start()
	defer pool.Stop()

	srv, _, _ := newTestServer(t, pool)
	router := srv.routes()

	const n = 16
	codes := make(chan int, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader(submitBody("job-dup")))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(rec, req)
			codes <- rec.Code
		}()
	}
	close(start)
	wg.Wait()
	close(codes)

	accepted, conflicted := 0, 0
	for code := range codes {
		switch code {
		case http.StatusOK:
			accepted++
		case http.StatusConflict:
			conflicted++
		}
	}
	assert.Equal(t, 1, accepted, "exactly one submission may win")
	assert.Equal(t, n-1, conflicted)
}

func TestProcessQueueFull(t *testing.T) {
	// Unstarted pool with a single queue slot: first submission queues,
	// second is rejected with 503 and the job marked failed.
	pool := worker.NewPool(1, 1)
	srv, _, store := newTestServer(t, pool)

	rec := doRequest(srv, http.MethodPost, "/process", submitBody("job-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/process", submitBody("job-2"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, jobstore.StatusFailed, store.GetStatus(context.Background(), "job-2"))
}

func TestStatusEndpoint(t *testing.T) {
	pool := worker.NewPool(1, 4)
	srv, _, store := newTestServer(t, pool)
	require.NoError(t, store.SetStatus(context.Background(), "job-1", jobstore.StatusDiarizing))

	rec := doRequest(srv, http.MethodGet, "/status/job-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "diarizing", resp["status"])
}

func TestStatusUnknownJob(t *testing.T) {
	pool := worker.NewPool(1, 4)
	srv, _, _ := newTestServer(t, pool)

	rec := doRequest(srv, http.MethodGet, "/status/never-seen", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unknown", resp["status"])
}

func TestHealthReportsQueue(t *testing.T) {
	pool := worker.NewPool(3, 8)
	srv, _, _ := newTestServer(t, pool)

	rec := doRequest(srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, float64(0), resp["queue_depth"])
	assert.Equal(t, float64(3), resp["workers"])
}
