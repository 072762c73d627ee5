package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestWav(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seg_0.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF fake"), 0o644))
	return path
}

func TestNewChimegeTranscriberRequiresToken(t *testing.T) {
	t.Setenv("CHIMEGE_TOKEN", "")
	t.Setenv("CHIMEGE_LONG_TOKEN", "")
	_, err := NewChimegeTranscriber("")
	assert.ErrorContains(t, err, "not set")
}

func TestNewChimegeTranscriberPrefersLongToken(t *testing.T) {
	t.Setenv("CHIMEGE_TOKEN", "short")
	t.Setenv("CHIMEGE_LONG_TOKEN", "long")
	tr, err := NewChimegeTranscriber("")
	require.NoError(t, err)
	assert.Equal(t, "long", tr.token)
	assert.Equal(t, DefaultChimegeURL, tr.apiURL)
}

func TestChimegeTranscribe(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("token")
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		_, _, err := r.FormFile("file")
		require.NoError(t, err)
		w.Write([]byte("  Сайн байна уу \n"))
	}))
	defer srv.Close()

	t.Setenv("CHIMEGE_LONG_TOKEN", "tok-123")
	tr, err := NewChimegeTranscriber(srv.URL)
	require.NoError(t, err)

	text, err := tr.Transcribe(context.Background(), writeTestWav(t))
	require.NoError(t, err)
	assert.Equal(t, "tok-123", gotToken)
	assert.Equal(t, "Сайн байна уу", text)
}

func TestChimegeTranscribeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	t.Setenv("CHIMEGE_LONG_TOKEN", "tok")
	tr, err := NewChimegeTranscriber(srv.URL)
	require.NoError(t, err)

	_, err = tr.Transcribe(context.Background(), writeTestWav(t))
	assert.ErrorContains(t, err, "status 429")
}

func TestNewProviderSelection(t *testing.T) {
	t.Setenv("CHIMEGE_LONG_TOKEN", "tok")
	t.Setenv("OPENAI_API_KEY", "")

	tr, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &ChimegeTranscriber{}, tr)

	_, err = New(Config{Provider: "whisper"})
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	_, err = New(Config{Provider: "vosk"})
	assert.ErrorContains(t, err, "unknown transcription provider")
}
