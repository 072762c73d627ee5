package locale

import (
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Bundle localizes the user-facing strings that end up in transcripts: the
// per-job speaker display names and the sentinel text recorded for a chunk
// whose transcription failed. The production deployment is Mongolian; the
// mechanism itself is language-agnostic.
type Bundle struct {
	localizer *i18n.Localizer
}

// New builds a bundle for the given BCP 47 language tag ("mn" or "en").
// Unknown or empty tags fall back to Mongolian.
func New(lang string) *Bundle {
	bundle := i18n.NewBundle(language.MustParse("mn"))

	bundle.AddMessages(language.MustParse("mn"),
		&i18n.Message{ID: "speaker_name", Other: "Илтгэгч {{.Number}}"},
		&i18n.Message{ID: "chunk_failed", Other: "[Алдаа: текст таних боломжгүй]"},
	)
	bundle.AddMessages(language.English,
		&i18n.Message{ID: "speaker_name", Other: "Speaker {{.Number}}"},
		&i18n.Message{ID: "chunk_failed", Other: "[Error: could not transcribe]"},
	)

	if lang == "" {
		lang = "mn"
	}
	return &Bundle{localizer: i18n.NewLocalizer(bundle, lang)}
}

// SpeakerName returns the display name for the nth distinct speaker
// (1-based) encountered in a job's final chunk order.
func (b *Bundle) SpeakerName(n int) string {
	name, err := b.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    "speaker_name",
		TemplateData: map[string]any{"Number": n},
	})
	if err != nil {
		return "speaker_name"
	}
	return name
}

// ChunkFailed returns the sentinel text recorded for a chunk whose
// transcription attempt failed.
func (b *Bundle) ChunkFailed() string {
	text, err := b.localizer.Localize(&i18n.LocalizeConfig{MessageID: "chunk_failed"})
	if err != nil {
		return "chunk_failed"
	}
	return text
}
