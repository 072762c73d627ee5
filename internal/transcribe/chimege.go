package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultChimegeURL is the Chimege speech-to-text endpoint for Mongolian.
const DefaultChimegeURL = "https://api.chimege.com/v1.2/transcribe"

// ChimegeTranscriber uploads wav chunks to the Chimege STT API. The API caps
// input duration at 15 seconds, which is why the pipeline splits oversized
// segments before calling it.
type ChimegeTranscriber struct {
	apiURL string
	token  string
	client *http.Client
}

func NewChimegeTranscriber(apiURL string) (*ChimegeTranscriber, error) {
	token := os.Getenv("CHIMEGE_LONG_TOKEN")
	if token == "" {
		token = os.Getenv("CHIMEGE_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("CHIMEGE_TOKEN or CHIMEGE_LONG_TOKEN not set")
	}
	if apiURL == "" {
		apiURL = DefaultChimegeURL
	}
	return &ChimegeTranscriber{
		apiURL: apiURL,
		token:  token,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (t *ChimegeTranscriber) Transcribe(ctx context.Context, wavPath string) (string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", wavPath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finish multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL, &body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("token", t.token)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chimege request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chimege status %d: %s", resp.StatusCode, string(raw))
	}

	// Response body is the Mongolian text itself, UTF-8 encoded.
	return strings.TrimSpace(string(raw)), nil
}
