package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// runner abstracts external process execution so tests can stub ffmpeg.
type runner interface {
	run(ctx context.Context, name string, args ...string) (stdout string, err error)
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%s: %w (%s)", name, err, lastLine(stderr.String()))
	}
	return stdout.String(), nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

// FFmpeg normalizes audio and extracts segment slices by shelling out to
// ffmpeg/ffprobe.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	runner      runner
}

func New(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, runner: execRunner{}}
}

// Normalize converts in to 16kHz mono WAV at out and returns the track
// duration in seconds.
func (f *FFmpeg) Normalize(ctx context.Context, in, out string) (float64, error) {
	if _, err := f.runner.run(ctx, f.ffmpegPath, normalizeArgs(in, out)...); err != nil {
		return 0, fmt.Errorf("convert to wav: %w", err)
	}

	probeOut, err := f.runner.run(ctx, f.ffprobePath, probeArgs(out)...)
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(probeOut), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(probeOut), err)
	}
	return duration, nil
}

// Extract writes the [start, end) slice of wav to out, re-encoded to 16kHz
// mono WAV for the transcription API.
func (f *FFmpeg) Extract(ctx context.Context, wav string, start, end float64, out string) error {
	if _, err := f.runner.run(ctx, f.ffmpegPath, extractArgs(wav, start, end, out)...); err != nil {
		return fmt.Errorf("extract segment: %w", err)
	}
	return nil
}

func normalizeArgs(in, out string) []string {
	return []string{
		"-y", "-i", in,
		"-ar", "16000", "-ac", "1", "-f", "wav",
		out,
	}
}

func probeArgs(file string) []string {
	return []string{
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		file,
	}
}

func extractArgs(in string, start, end float64, out string) []string {
	return []string{
		"-y", "-i", in,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(end - start),
		"-ar", "16000", "-ac", "1", "-f", "wav",
		out,
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
