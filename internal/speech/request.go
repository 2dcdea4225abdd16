package speech

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hammamikhairi/vicvoix/internal/domain"
	"github.com/hammamikhairi/vicvoix/internal/params"
)

// Compile-time interface check.
var _ domain.RequestBuilder = (*Builder)(nil)

var styleToken = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// xmlEscaper neutralises the five XML special characters.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML makes text safe to embed in SSML markup.
func EscapeXML(text string) string {
	return xmlEscaper.Replace(text)
}

// ValidStyle reports whether s can be used as a style token. The empty
// token means no style.
func ValidStyle(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || styleToken.MatchString(s)
}

// Builder validates input text and assembles synthesis requests.
type Builder struct {
	maxChars   int
	sampleRate int
}

// NewBuilder creates a request builder. maxChars <= 0 falls back to
// DefaultMaxChars; sampleRate 0 leaves the rate to the service.
func NewBuilder(maxChars, sampleRate int) *Builder {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Builder{maxChars: maxChars, sampleRate: sampleRate}
}

// MaxChars returns the configured input limit.
func (b *Builder) MaxChars() int { return b.maxChars }

// Build returns an SSML request when a style token is set, a plain-text
// request otherwise. Text length is counted in runes.
func (b *Builder) Build(text string, voice domain.VoiceCatalogEntry, p domain.SynthesisParameters) (domain.SynthesisRequest, error) {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return domain.SynthesisRequest{}, fmt.Errorf("%w: text is empty", domain.ErrValidation)
	}
	if n > b.maxChars {
		return domain.SynthesisRequest{}, fmt.Errorf("%w: text has %d characters, limit is %d", domain.ErrValidation, n, b.maxChars)
	}
	if voice.ID == "" {
		return domain.SynthesisRequest{}, fmt.Errorf("%w: no voice", domain.ErrValidation)
	}

	locale := voice.LocaleID
	if locale == "" {
		locale = p.LocaleID
	}

	req := domain.SynthesisRequest{
		InputMode:       domain.InputPlainText,
		Payload:         text,
		Voice:           domain.VoiceSelector{LocaleID: locale, VoiceID: voice.ID},
		AudioEncoding:   domain.AudioEncodingMP3,
		SpeakingRate:    params.ClampRate(p.SpeakingRate),
		Pitch:           params.ClampPitch(p.PitchSemitones),
		SampleRateHertz: b.sampleRate,
	}

	if style := strings.TrimSpace(p.StyleToken); style != "" {
		if !styleToken.MatchString(style) {
			return domain.SynthesisRequest{}, fmt.Errorf("%w: bad style token %q", domain.ErrValidation, style)
		}
		req.InputMode = domain.InputSSML
		req.Payload = buildSSML(text, style, req.SpeakingRate, req.Pitch)
	}
	return req, nil
}

// buildSSML wraps escaped text in a style and prosody pair.
func buildSSML(text, style string, rate, pitch float64) string {
	return fmt.Sprintf(
		`<speak><google:style name="%s"><prosody rate="%.2f" pitch="%+.2fst">%s</prosody></google:style></speak>`,
		style, rate, pitch, EscapeXML(text),
	)
}

// ── Wire format ──────────────────────────────────────────────────

type synthesizeBody struct {
	Input       inputBody   `json:"input"`
	Voice       voiceBody   `json:"voice"`
	AudioConfig audioConfig `json:"audioConfig"`
}

type inputBody struct {
	Text string `json:"text,omitempty"`
	SSML string `json:"ssml,omitempty"`
}

type voiceBody struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
}

type audioConfig struct {
	AudioEncoding   string   `json:"audioEncoding"`
	SpeakingRate    *float64 `json:"speakingRate,omitempty"`
	Pitch           *float64 `json:"pitch,omitempty"`
	SampleRateHertz int      `json:"sampleRateHertz,omitempty"`
}

// encodeRequest renders the JSON body of text:synthesize. Rate and pitch
// only travel in audioConfig for plain-text input.
func encodeRequest(req domain.SynthesisRequest) ([]byte, error) {
	body := synthesizeBody{
		Voice: voiceBody{LanguageCode: req.Voice.LocaleID, Name: req.Voice.VoiceID},
		AudioConfig: audioConfig{
			AudioEncoding:   req.AudioEncoding,
			SampleRateHertz: req.SampleRateHertz,
		},
	}
	switch req.InputMode {
	case domain.InputSSML:
		body.Input.SSML = req.Payload
	default:
		body.Input.Text = req.Payload
		rate, pitch := req.SpeakingRate, req.Pitch
		body.AudioConfig.SpeakingRate = &rate
		body.AudioConfig.Pitch = &pitch
	}
	return json.Marshal(body)
}
