package session

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// Constraints mirrors the capture request the interview screen makes.
type Constraints struct {
	Video  bool
	Audio  bool
	Width  int
	Height int
}

// DefaultConstraints matches the original capture request: 720p video
// plus audio.
func DefaultConstraints() Constraints {
	return Constraints{Video: true, Audio: true, Width: 1280, Height: 720}
}

// Stream is a live local capture. The adapter owns the underlying
// devices; Stop releases them and must be safe to call once per stream.
type Stream interface {
	Tracks() []webrtc.TrackLocal
	SetAudioEnabled(enabled bool)
	SetVideoEnabled(enabled bool)
	// AudioLevel reports the instantaneous input level in [0,1] for the
	// avatar mouth animation. Implementations without metering return 0.
	AudioLevel() float64
	Stop()
}

// MediaDevices acquires local capture. Acquire blocks on the permission
// prompt; denial is an error, not a panic.
type MediaDevices interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// Segment is one recognized chunk of candidate speech.
type Segment struct {
	Text  string
	Final bool
}

// Transcriber streams speech recognition for the candidate's audio.
type Transcriber interface {
	Start(ctx context.Context, onSegment func(Segment)) error
	Stop()
}

// Synthesizer speaks interviewer lines out loud.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// SecureUI is the exclusive interview mode: full-screen, scroll lock and
// a synthetic history entry intercepting back-navigation. ArmUnloadPrompt
// requests a native "are you sure" prompt; the environment may ignore it,
// which is why the attempt lock never depends on teardown running.
type SecureUI interface {
	Enter(ctx context.Context) error
	Exit()
	ArmUnloadPrompt() (disarm func())
}

// Signaling is the controller's view of the relay channel.
type Signaling interface {
	Send(env Envelope) error
	Receive() <-chan Inbound
	Close() error
}
