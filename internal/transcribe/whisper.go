package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// WhisperTranscriber is an alternative provider backed by the OpenAI Whisper
// API, useful for non-Mongolian deployments.
type WhisperTranscriber struct {
	client *openai.Client
}

func NewWhisperTranscriber() (*WhisperTranscriber, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	return &WhisperTranscriber{client: openai.NewClient(key)}, nil
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, wavPath string) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: wavPath,
	})
	if err != nil {
		return "", fmt.Errorf("whisper request: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
