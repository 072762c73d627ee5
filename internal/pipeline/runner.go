package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tsogoo/chimege-transcribe/internal/fetch"
	"github.com/tsogoo/chimege-transcribe/internal/jobstore"
	"github.com/tsogoo/chimege-transcribe/internal/locale"
	"github.com/tsogoo/chimege-transcribe/internal/metrics"
	"github.com/tsogoo/chimege-transcribe/internal/segment"
	"github.com/tsogoo/chimege-transcribe/internal/transcribe"
)

// Job identifies one transcription request. Immutable once accepted.
type Job struct {
	ID             string
	AudioSourceURL string
	CallbackURL    string
}

// Media normalizes audio and extracts chunk slices.
type Media interface {
	Normalize(ctx context.Context, in, out string) (durationSeconds float64, err error)
	Extract(ctx context.Context, wav string, start, end float64, out string) error
}

// Diarizer produces speaker turns for a normalized track.
type Diarizer interface {
	Diarize(ctx context.Context, wavPath string) ([]segment.Segment, error)
}

// Notifier delivers status payloads to the job's callback endpoint.
type Notifier interface {
	Notify(ctx context.Context, jobID string, status jobstore.Status, callbackURL string, extra map[string]any)
}

// Publisher fans status updates out to live subscribers.
type Publisher interface {
	Publish(jobID string, status jobstore.Status)
}

// TranscriberFactory builds the transcription provider. Construction is
// deferred to run time so a missing credential fails the job that needed it
// instead of the whole process.
type TranscriberFactory func() (transcribe.Transcriber, error)

// Deps are the collaborators one Runner drives. MinioFetcher may be nil when
// no object store is configured.
type Deps struct {
	Store          jobstore.Store
	Notifier       Notifier
	Hub            Publisher
	Fetcher        fetch.Fetcher
	MinioFetcher   fetch.Fetcher
	Media          Media
	Diarizer       Diarizer
	NewTranscriber TranscriberFactory
	Locale         *locale.Bundle
	Metrics        *metrics.Metrics
}

// Runner drives one job through fetch, normalize, diarize, transcribe, merge
// and report. Every run gets a private workspace that is removed whether the
// run succeeds or fails.
type Runner struct {
	deps Deps

	gapSeconds      float64
	maxChunkSeconds float64
}

func New(deps Deps) *Runner {
	return &Runner{
		deps:            deps,
		gapSeconds:      segment.DefaultGapSeconds,
		maxChunkSeconds: segment.DefaultMaxChunkSeconds,
	}
}

// Run executes the whole pipeline for one job. It never returns an error:
// every failure path ends in a terminal failed status with an error message
// attached to the failure notification.
func (r *Runner) Run(ctx context.Context, job Job) {
	log := logrus.WithField("job_id", job.ID)
	r.deps.Metrics.JobsStarted.Inc()

	workDir := filepath.Join(os.TempDir(), "transcribe-"+uuid.NewString())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		r.fail(ctx, job, log, fmt.Errorf("create workspace: %w", err))
		return
	}
	defer os.RemoveAll(workDir)

	// converting: fetch the source and normalize it to 16kHz mono wav.
	r.setStatus(ctx, job, jobstore.StatusConverting, nil)
	stageStart := time.Now()

	rawPath := filepath.Join(workDir, "raw_audio")
	if err := r.fetcherFor(job.AudioSourceURL).Fetch(ctx, job.AudioSourceURL, rawPath); err != nil {
		r.fail(ctx, job, log, &StageError{Stage: "converting", Err: err})
		return
	}

	wavPath := filepath.Join(workDir, "audio.wav")
	duration, err := r.deps.Media.Normalize(ctx, rawPath, wavPath)
	if err != nil {
		r.fail(ctx, job, log, &StageError{Stage: "converting", Err: err})
		return
	}
	r.observeStage("converting", stageStart)
	log.Infof("converted, duration=%.1fs", duration)

	// diarizing: speaker turns, then shape them for the STT input limit.
	r.setStatus(ctx, job, jobstore.StatusDiarizing, nil)
	stageStart = time.Now()

	turns, err := r.deps.Diarizer.Diarize(ctx, wavPath)
	if err != nil {
		r.fail(ctx, job, log, &StageError{Stage: "diarizing", Err: err})
		return
	}
	log.Infof("diarization found %d segments", len(turns))

	chunks := segment.SplitOversized(
		segment.MergeAdjacent(turns, r.gapSeconds),
		r.maxChunkSeconds,
	)
	r.observeStage("diarizing", stageStart)
	log.Infof("%d chunks after merge/split", len(chunks))

	// transcribing: per-chunk, isolating individual failures.
	r.setStatus(ctx, job, jobstore.StatusTranscribing, nil)
	stageStart = time.Now()

	transcriber, err := r.deps.NewTranscriber()
	if err != nil {
		r.fail(ctx, job, log, &StageError{Stage: "transcribing", Err: err})
		return
	}

	results := make([]segment.Chunk, 0, len(chunks))
	for i, chunk := range chunks {
		segPath := filepath.Join(workDir, fmt.Sprintf("seg_%d.wav", i))
		if err := r.deps.Media.Extract(ctx, wavPath, chunk.Start, chunk.End, segPath); err != nil {
			r.fail(ctx, job, log, &StageError{Stage: "transcribing", Err: err})
			return
		}

		text, err := transcriber.Transcribe(ctx, segPath)
		switch {
		case err != nil:
			// One bad chunk must not sink the job; record the sentinel and
			// keep going. Chunk results are never retried.
			log.Errorf("segment %d transcription failed: %v", i, err)
			r.deps.Metrics.Chunks.WithLabelValues("failed").Inc()
			results = append(results, newChunk(chunk, r.deps.Locale.ChunkFailed()))
		case text == "":
			r.deps.Metrics.Chunks.WithLabelValues("empty").Inc()
		default:
			r.deps.Metrics.Chunks.WithLabelValues("ok").Inc()
			results = append(results, newChunk(chunk, text))
		}
	}
	r.observeStage("transcribing", stageStart)

	r.deps.Metrics.JobsCompleted.Inc()
	r.setStatus(ctx, job, jobstore.StatusComplete, map[string]any{
		"result":           map[string]any{"segments": r.assignSpeakerNames(results)},
		"duration_seconds": duration,
	})
	log.Infof("complete, %d segments", len(results))
}

// setStatus records the transition before any delivery attempt so status
// queries reflect true progress even when every callback fails.
func (r *Runner) setStatus(ctx context.Context, job Job, status jobstore.Status, extra map[string]any) {
	if err := r.deps.Store.SetStatus(ctx, job.ID, status); err != nil {
		logrus.WithField("job_id", job.ID).Errorf("status write failed: %v", err)
	}
	r.deps.Hub.Publish(job.ID, status)
	r.deps.Notifier.Notify(ctx, job.ID, status, job.CallbackURL, extra)
}

func (r *Runner) fail(ctx context.Context, job Job, log *logrus.Entry, err error) {
	log.Errorf("job failed: %v", err)
	r.deps.Metrics.JobsFailed.Inc()
	r.setStatus(ctx, job, jobstore.StatusFailed, map[string]any{
		"error_message": err.Error(),
	})
}

func (r *Runner) fetcherFor(rawURL string) fetch.Fetcher {
	if fetch.IsObjectURL(rawURL) && r.deps.MinioFetcher != nil {
		return r.deps.MinioFetcher
	}
	return r.deps.Fetcher
}

func (r *Runner) observeStage(stage string, start time.Time) {
	r.deps.Metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// assignSpeakerNames maps raw diarization labels to display names in order of
// first appearance across the final chunk sequence.
func (r *Runner) assignSpeakerNames(chunks []segment.Chunk) []segment.Chunk {
	names := make(map[string]string)
	named := make([]segment.Chunk, len(chunks))
	for i, c := range chunks {
		display, ok := names[c.Speaker]
		if !ok {
			display = r.deps.Locale.SpeakerName(len(names) + 1)
			names[c.Speaker] = display
		}
		c.Speaker = display
		named[i] = c
	}
	return named
}

func newChunk(seg segment.Segment, text string) segment.Chunk {
	return segment.Chunk{
		Speaker: seg.Speaker,
		Start:   round2(seg.Start),
		End:     round2(seg.End),
		Text:    text,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
