package domain

// SessionStatus is the orchestrator's lifecycle state. At most one
// non-idle status is active at a time.
type SessionStatus int

const (
	StatusIdle SessionStatus = iota
	StatusLoadingVoices
	StatusGenerating
	StatusAwaitingExportDestination
)

// String returns a human-readable session status.
func (s SessionStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoadingVoices:
		return "loading voices"
	case StatusGenerating:
		return "generating"
	case StatusAwaitingExportDestination:
		return "awaiting destination"
	default:
		return "unknown"
	}
}

// PlaybackState tracks the playback controller.
type PlaybackState int

const (
	PlaybackIdle PlaybackState = iota
	PlaybackPreparing
	PlaybackPlaying
	PlaybackPaused
	PlaybackCompleted
)

// String returns a human-readable playback state.
func (p PlaybackState) String() string {
	switch p {
	case PlaybackIdle:
		return "idle"
	case PlaybackPreparing:
		return "preparing"
	case PlaybackPlaying:
		return "playing"
	case PlaybackPaused:
		return "paused"
	case PlaybackCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// SessionState is a read-only snapshot of the orchestrator.
type SessionState struct {
	Status          SessionStatus
	Voices          []VoiceCatalogEntry
	SelectedVoiceID string
	RateControl     int
	PitchControl    int
	ControlMax      int
	Params          SynthesisParameters
	LastAudioBytes  int
	Playback        PlaybackState
	Closed          bool
}

// Busy reports whether a user-triggered operation is in flight.
func (s SessionState) Busy() bool { return s.Status != StatusIdle }
