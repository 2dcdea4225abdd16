package speech

import "time"

// DefaultLocale is the single locale the form works with.
const DefaultLocale = "fr-FR"

// DefaultBaseURL is the Google Cloud Text-to-Speech REST root.
const DefaultBaseURL = "https://texttospeech.googleapis.com"

// DefaultMaxChars is the input limit enforced by the form and the builder.
const DefaultMaxChars = 5000

// DefaultSampleRate matches the playback device's output rate.
const DefaultSampleRate = 24000

// DefaultHTTPTimeout bounds a single REST call.
const DefaultHTTPTimeout = 30 * time.Second

// Env var names for the API credentials.
const (
	EnvAPIKey       = "TTS_API_KEY"
	EnvPrefixedKey  = "VICVOIX_API_KEY"
	defaultUA       = "VicVoix/1.0"
	maxErrorBodyLen = 512
)

// Styles accepted inside <google:style name="...">. The empty string
// means plain text with prosody in the audio config.
var Styles = []string{"", "lively", "calm", "empathetic", "apologetic", "firm"}
