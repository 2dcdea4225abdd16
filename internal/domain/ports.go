package domain

import (
	"context"
	"io"
)

// VoiceLister fetches the voice catalog for a locale.
type VoiceLister interface {
	FetchVoices(ctx context.Context, localeID string) ([]VoiceCatalogEntry, error)
}

// Synthesizer turns a built request into raw audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)
}

// RequestBuilder validates input and assembles a SynthesisRequest.
type RequestBuilder interface {
	Build(text string, voice VoiceCatalogEntry, params SynthesisParameters) (SynthesisRequest, error)
}

// Player owns at most one playback resource. Load releases whatever was
// loaded before; Release is idempotent.
type Player interface {
	Load(audio []byte) error
	Release()
	State() PlaybackState
}

// Destination is a writable sink chosen by the user.
type Destination interface {
	io.WriteCloser
	Name() string
}

// DestinationPicker asks the host for a place to save audio. It returns
// ErrCancelled when the user dismisses the prompt.
type DestinationPicker interface {
	Choose(ctx context.Context, suggestedName string) (Destination, error)
}

// Exporter persists audio into a destination.
type Exporter interface {
	Export(ctx context.Context, dst Destination, audio []byte) (ExportResult, error)
}

// Notifier delivers user-visible messages. Implementations can write to
// stdout or to the terminal UI.
type Notifier interface {
	Notify(ctx context.Context, message string) error
	NotifyUrgent(ctx context.Context, message string) error
}
