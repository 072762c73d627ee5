package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/tsogoo/chimege-transcribe/internal/segment"
)

// Diarizer partitions an audio track into speaker-attributed spans. Failure
// is fatal to the job; any retrying belongs to the service itself.
type Diarizer interface {
	Diarize(ctx context.Context, wavPath string) ([]segment.Segment, error)
}

type diarizeResponse struct {
	Segments []segment.Segment `json:"segments"`
}

// Client talks to a pyannote-style inference service over HTTP. The service
// loads trusted model checkpoints on its side; this client only authenticates
// and parses the result. No request timeout: diarization of long recordings
// legitimately takes minutes.
type Client struct {
	serviceURL string
	token      string
	httpClient *http.Client
}

func NewClient(serviceURL, token string) *Client {
	return &Client{
		serviceURL: serviceURL,
		token:      token,
		httpClient: &http.Client{},
	}
}

// Diarize uploads the wav and returns the speaker turns sorted by start time,
// so downstream shaping can rely on temporal order regardless of how the
// service emits them.
func (c *Client) Diarize(ctx context.Context, wavPath string) ([]segment.Segment, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", wavPath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL, &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("diarization request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("diarization service status %d: %s", resp.StatusCode, string(b))
	}

	var dr diarizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("decode diarization response: %w", err)
	}

	sort.Slice(dr.Segments, func(i, j int) bool {
		return dr.Segments[i].Start < dr.Segments[j].Start
	})
	return dr.Segments, nil
}
