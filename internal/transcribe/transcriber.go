package transcribe

import (
	"context"
	"fmt"
)

// Transcriber converts one audio chunk into text. Failures are recoverable at
// chunk granularity; the pipeline substitutes a sentinel for a failed chunk
// instead of aborting the job.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// Config selects the transcription provider.
type Config struct {
	Provider   string `yaml:"provider"` // "chimege" or "whisper"
	ChimegeURL string `yaml:"chimege_url"`
}

// New builds the configured provider. Constructors read their credentials
// from the environment and fail when they are missing, so a misconfigured
// deployment surfaces as a job failure the first time transcription is
// attempted rather than at startup.
func New(cfg Config) (Transcriber, error) {
	switch cfg.Provider {
	case "", "chimege":
		return NewChimegeTranscriber(cfg.ChimegeURL)
	case "whisper":
		return NewWhisperTranscriber()
	default:
		return nil, fmt.Errorf("unknown transcription provider: %s", cfg.Provider)
	}
}
