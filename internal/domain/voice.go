package domain

import "strings"

// Parameter bounds accepted by the synthesis endpoint.
const (
	MinSpeakingRate = 0.25
	MaxSpeakingRate = 4.0
	DefaultRate     = 1.0

	MinPitch     = -20.0
	MaxPitch     = 20.0
	DefaultPitch = 0.0
)

// AudioEncodingMP3 is the only encoding requested from the service.
const AudioEncodingMP3 = "MP3"

// VoiceCatalogEntry is one synthesizable voice.
type VoiceCatalogEntry struct {
	ID       string
	LocaleID string
}

// HasLocale reports whether the voice id is prefixed by the locale code.
func (v VoiceCatalogEntry) HasLocale(locale string) bool {
	return locale != "" && strings.HasPrefix(v.ID, locale)
}

// SynthesisParameters are the validated knobs for one synthesis.
// Rate and pitch always come out of the params mapper, already clamped.
type SynthesisParameters struct {
	LocaleID       string
	VoiceID        string
	SpeakingRate   float64
	PitchSemitones float64
	StyleToken     string // empty means no style
}

// InputMode selects how the text is sent to the service.
type InputMode int

const (
	InputPlainText InputMode = iota
	InputSSML
)

// String returns the wire field name of the mode.
func (m InputMode) String() string {
	switch m {
	case InputPlainText:
		return "text"
	case InputSSML:
		return "ssml"
	default:
		return "unknown"
	}
}

// VoiceSelector identifies the voice in a request.
type VoiceSelector struct {
	LocaleID string
	VoiceID  string
}

// SynthesisRequest is an immutable, fully built request. In SSML mode the
// rate and pitch are embedded in the markup and are not sent again in the
// audio config.
type SynthesisRequest struct {
	InputMode       InputMode
	Payload         string
	Voice           VoiceSelector
	AudioEncoding   string
	SpeakingRate    float64
	Pitch           float64
	SampleRateHertz int // 0 lets the service choose
}

// ExportResult describes a completed export.
type ExportResult struct {
	Destination string
	Bytes       int
}
