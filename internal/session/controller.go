// Package session owns the per-candidate interview lifecycle:
// preflight checklist, secure-mode entry, media capture, negotiation via
// the signaling relay, transcription and termination, with the
// one-attempt ledger lock enforced along the way.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/hiregen/coordinator/internal/domain"
	"github.com/hiregen/coordinator/internal/ledger"
	"github.com/hiregen/coordinator/internal/relay"
)

// Negotiator is the offer-side peer connection. The pion implementation
// lives in internal/adapters/rtc.
type Negotiator interface {
	OnICECandidate(fn func(webrtc.ICECandidateInit))
	CreateOffer() (string, error)
	ApplyAnswer(sdp string) error
	AddRemoteCandidate(ci webrtc.ICECandidateInit) error
	Close()
}

// AttemptPolicy names when the durable attempt lock is written. The
// shared teardown path makes cancel and finish look identical; this
// makes the choice explicit instead of an accident of shared code.
type AttemptPolicy int

const (
	// AttemptConsumedOnStart writes the lock when the session starts;
	// cancellation and normal finish are equivalent afterwards.
	AttemptConsumedOnStart AttemptPolicy = iota
	// AttemptConsumedOnFinishOnly defers the durable write to a normal
	// finish; a cancelled session keeps only the tab-local lock.
	AttemptConsumedOnFinishOnly
)

// DefaultChecklist is the fixed preflight acknowledgement list.
var DefaultChecklist = []string{
	"I confirm camera & microphone access and I will not leave the interview intentionally.",
	"My surroundings are quiet and my camera shows face, body and hands clearly.",
	"I closed all other applications. Esc/back will cancel the interview.",
}

const DefaultGreeting = "Hello and welcome. Please introduce yourself in 1 minute."

var (
	ErrAlreadyAttempted    = errors.New("interview already attempted")
	ErrChecklistIncomplete = errors.New("preflight checklist incomplete")
	ErrAttemptCheckPending = errors.New("attempt status check still pending")
	ErrNotAuthenticated    = errors.New("candidate not authenticated")
	ErrWrongPhase          = errors.New("session not in a startable phase")
)

// Result is handed to OnFinish when the session ends.
type Result struct {
	Cancelled  bool
	Transcript []domain.TranscriptEntry
}

type Config struct {
	RoomID    domain.RoomID
	AuthToken string
	Checklist []string
	Greeting  string
	Policy    AttemptPolicy
}

// Deps are the session's collaborators. All of them are explicit: core
// logic never reads ambient global state.
type Deps struct {
	Ledger        *ledger.Client
	Devices       MediaDevices
	Transcriber   Transcriber
	Synthesizer   Synthesizer
	UI            SecureUI
	DialSignaling func(ctx context.Context) (Signaling, error)
	NewNegotiator func(tracks []webrtc.TrackLocal) (Negotiator, error)
	OnFinish      func(Result)
	OnMouth       func(scale float64)
}

// Controller drives one mounted session through
// Idle -> Preflight -> Negotiating -> Live -> Terminating -> Ended.
type Controller struct {
	cfg        Config
	deps       Deps
	transcript *Transcript

	mu          sync.Mutex
	phase       Phase
	checklist   []bool
	checking    bool
	attempted   bool
	authBlocked bool

	stream       Stream
	sig          Signaling
	neg          Negotiator
	disarmUnload func()
	stopLipSync  func()
	unwatch      func()
	recvCancel   context.CancelFunc
	sttRunning   bool
}

func New(cfg Config, deps Deps) *Controller {
	if len(cfg.Checklist) == 0 {
		cfg.Checklist = DefaultChecklist
	}
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	return &Controller{
		cfg:        cfg,
		deps:       deps,
		transcript: NewTranscript(),
		phase:      PhaseIdle,
		checklist:  make([]bool, len(cfg.Checklist)),
	}
}

// Mount begins the asynchronous attempt-status check. The start action
// stays disabled ("checking") until it resolves, but the checklist
// remains interactive throughout.
func (c *Controller) Mount(ctx context.Context) {
	c.mu.Lock()
	c.checking = true
	c.mu.Unlock()

	go func() {
		attempted, err := c.deps.Ledger.HasAttempted(ctx)
		c.mu.Lock()
		c.checking = false
		if err != nil {
			// No identity after retries: block Start rather than guess.
			c.authBlocked = true
		} else if attempted {
			c.attempted = true
		}
		c.mu.Unlock()
		if err != nil {
			log.Warn().Err(err).Str("module", "session").Msg("attempt status check failed")
			return
		}
		log.Info().Str("module", "session").Bool("attempted", attempted).Msg("attempt status resolved")

		unwatch, err := c.deps.Ledger.Watch(ctx, func(attempted bool) {
			if !attempted {
				return
			}
			c.mu.Lock()
			c.attempted = true
			c.mu.Unlock()
		})
		if err != nil {
			return
		}
		c.mu.Lock()
		if c.phase == PhaseTerminating || c.phase == PhaseEnded {
			// Teardown already captured (and missed) the watch slot;
			// installing now would leak the subscription.
			c.mu.Unlock()
			unwatch()
			return
		}
		c.unwatch = unwatch
		c.mu.Unlock()
	}()
}

// SetChecklistItem records one preflight acknowledgement. All items true
// moves Idle to Preflight; unchecking moves back.
func (c *Controller) SetChecklistItem(i int, acknowledged bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.checklist) {
		return
	}
	c.checklist[i] = acknowledged
	if c.phase != PhaseIdle && c.phase != PhasePreflight {
		return
	}
	if c.allCheckedLocked() {
		c.phase = PhasePreflight
	} else {
		c.phase = PhaseIdle
	}
}

func (c *Controller) allCheckedLocked() bool {
	for _, ok := range c.checklist {
		if !ok {
			return false
		}
	}
	return true
}

// StartState reports whether the start control is enabled and the label
// it should carry.
func (c *Controller) StartState() (enabled bool, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.attempted || c.deps.Ledger.Locked():
		return false, "Interview Already Taken"
	case c.checking:
		return false, "Checking..."
	case c.authBlocked:
		return false, "Sign In Required"
	case !c.allCheckedLocked() || c.phase != PhasePreflight:
		return false, "Start Interview"
	default:
		return true, "Start Interview"
	}
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) Transcript() *Transcript {
	return c.transcript
}

// Start runs the Preflight -> Negotiating transition: optimistic attempt
// lock first, then exclusive UI mode, media capture, signaling and the
// negotiation offer. A media failure aborts back to Idle with the UI
// released — but the attempt stays consumed.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.phase != PhasePreflight:
		if c.phase == PhaseIdle {
			c.mu.Unlock()
			return ErrChecklistIncomplete
		}
		c.mu.Unlock()
		return ErrWrongPhase
	case c.checking:
		c.mu.Unlock()
		return ErrAttemptCheckPending
	case c.authBlocked:
		c.mu.Unlock()
		return ErrNotAuthenticated
	case c.attempted || c.deps.Ledger.Locked():
		c.mu.Unlock()
		return ErrAlreadyAttempted
	}
	// The UI lock never waits on the network: lock synchronously, then
	// reconcile the durable record in the background.
	c.attempted = true
	c.deps.Ledger.LockLocal()
	c.phase = PhaseNegotiating
	c.mu.Unlock()

	if c.cfg.Policy == AttemptConsumedOnStart {
		go func() {
			_ = c.deps.Ledger.MarkAttempted(context.WithoutCancel(ctx))
		}()
	}

	if err := c.deps.UI.Enter(ctx); err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("secure mode entry degraded")
	}
	disarm := c.deps.UI.ArmUnloadPrompt()

	stream, err := c.deps.Devices.Acquire(ctx, DefaultConstraints())
	if err != nil {
		disarm()
		c.deps.UI.Exit()
		c.mu.Lock()
		// Only a still-negotiating session falls back to Idle; a session
		// cancelled while the prompt was open stays ended.
		if c.phase == PhaseNegotiating {
			c.phase = PhaseIdle
		}
		c.mu.Unlock()
		c.transcript.Append(domain.SpeakerSystem, "Please allow camera and microphone to continue the interview.")
		return fmt.Errorf("media acquisition: %w", err)
	}

	// Acquire blocks on the permission prompt, and cancellation is legal
	// while it is open. Termination ran with nothing to release, so the
	// just-acquired resources are released here and nothing starts up.
	c.mu.Lock()
	if c.phase != PhaseNegotiating {
		c.mu.Unlock()
		disarm()
		stream.Stop()
		log.Info().Str("module", "session").Msg("session ended during media acquisition")
		return nil
	}
	c.stream = stream
	c.disarmUnload = disarm
	c.stopLipSync = startLipSync(ctx, stream, c.deps.OnMouth)
	c.mu.Unlock()
	c.transcript.Append(domain.SpeakerSystem, "Camera and microphone enabled")

	c.connectAndOffer(ctx, stream)
	c.startTranscription(ctx)

	c.transcript.Append(domain.SpeakerInterviewer, c.cfg.Greeting)
	go func() {
		if err := c.deps.Synthesizer.Speak(ctx, c.cfg.Greeting); err != nil {
			log.Warn().Err(err).Str("module", "session").Msg("greeting speech failed")
		}
	}()

	return nil
}

// connectAndOffer opens the signaling channel, joins the room and sends
// the offer. Failures are reported into the transcript; nothing retries
// automatically and the candidate must cancel explicitly.
func (c *Controller) connectAndOffer(ctx context.Context, stream Stream) {
	sig, err := c.deps.DialSignaling(ctx)
	if err != nil {
		c.reportNegotiationFailure(err)
		return
	}

	meta, _ := json.Marshal(joinMeta{Token: c.cfg.AuthToken})
	if err := sig.Send(Envelope{Type: relay.TypeJoin, RoomID: c.cfg.RoomID, Meta: meta}); err != nil {
		c.reportNegotiationFailure(err)
		_ = sig.Close()
		return
	}
	c.transcript.Append(domain.SpeakerSystem, "Connected to signaling server")

	neg, err := c.deps.NewNegotiator(stream.Tracks())
	if err != nil {
		c.reportNegotiationFailure(err)
		_ = sig.Close()
		return
	}

	neg.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		payload, err := json.Marshal(candidatePayload{
			Candidate: ci.Candidate,
			SDPMid:    ci.SDPMid,
			SDPMLine:  ci.SDPMLineIndex,
		})
		if err != nil {
			return
		}
		if err := sig.Send(Envelope{Type: relay.TypeICECandidate, RoomID: c.cfg.RoomID, Payload: payload}); err != nil {
			log.Debug().Err(err).Str("module", "session").Msg("candidate send skipped")
		}
	})

	sdp, err := neg.CreateOffer()
	if err != nil {
		c.reportNegotiationFailure(err)
		neg.Close()
		_ = sig.Close()
		return
	}
	payload, _ := json.Marshal(sdpPayload{SDP: sdp})
	if err := sig.Send(Envelope{Type: relay.TypeOffer, RoomID: c.cfg.RoomID, Payload: payload}); err != nil {
		c.reportNegotiationFailure(err)
	} else {
		c.transcript.Append(domain.SpeakerSystem, "Published local tracks, offer sent to signaling")
	}

	recvCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.sig = sig
	c.neg = neg
	c.recvCancel = cancel
	c.mu.Unlock()
	go c.recvLoop(recvCtx, sig)
}

func (c *Controller) startTranscription(ctx context.Context) {
	err := c.deps.Transcriber.Start(ctx, func(seg Segment) {
		if !seg.Final {
			return
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			return
		}
		c.transcript.Append(domain.SpeakerCandidate, text)
	})
	if err != nil {
		c.transcript.Append(domain.SpeakerSystem, "Speech recognition is not available for this session.")
		log.Warn().Err(err).Str("module", "session").Msg("transcription start failed")
		return
	}
	c.mu.Lock()
	c.sttRunning = true
	c.mu.Unlock()
	c.transcript.Append(domain.SpeakerSystem, "Transcription started")
}

func (c *Controller) recvLoop(ctx context.Context, sig Signaling) {
	for {
		select {
		case <-ctx.Done():
			return
		case fwd, ok := <-sig.Receive():
			if !ok {
				return
			}
			c.handleInbound(fwd)
		}
	}
}

func (c *Controller) handleInbound(fwd Inbound) {
	c.mu.Lock()
	neg := c.neg
	c.mu.Unlock()

	switch fwd.Type {
	case relay.TypeAnswer:
		var p sdpPayload
		if err := json.Unmarshal(fwd.Payload, &p); err != nil || p.SDP == "" {
			log.Warn().Str("module", "session").Msg("dropping malformed answer")
			return
		}
		if neg == nil {
			return
		}
		if err := neg.ApplyAnswer(p.SDP); err != nil {
			c.reportNegotiationFailure(err)
			return
		}
		c.mu.Lock()
		if c.phase == PhaseNegotiating {
			c.phase = PhaseLive
		}
		c.mu.Unlock()
		c.transcript.Append(domain.SpeakerSystem, "Received answer from server")
	case relay.TypeICECandidate:
		var p candidatePayload
		if err := json.Unmarshal(fwd.Payload, &p); err != nil || p.Candidate == "" {
			return
		}
		if neg == nil {
			return
		}
		ci := webrtc.ICECandidateInit{
			Candidate:     p.Candidate,
			SDPMid:        p.SDPMid,
			SDPMLineIndex: p.SDPMLine,
		}
		if err := neg.AddRemoteCandidate(ci); err != nil {
			log.Warn().Err(err).Str("module", "session").Msg("add ice candidate")
		}
	case relay.TypeError:
		var p errorPayload
		_ = json.Unmarshal(fwd.Payload, &p)
		c.transcript.Append(domain.SpeakerSystem, fmt.Sprintf("Signaling error: %s", p.Message))
	default:
		log.Warn().Str("module", "session").Str("type", string(fwd.Type)).Msg("unexpected inbound signal")
	}
}

func (c *Controller) reportNegotiationFailure(err error) {
	log.Error().Err(err).Str("module", "session").Msg("negotiation failure")
	c.transcript.Append(domain.SpeakerSystem, fmt.Sprintf("Signaling connection error: %v", err))
}

// SetMicEnabled flips the candidate's audio tracks during a session.
func (c *Controller) SetMicEnabled(on bool) {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream != nil {
		stream.SetAudioEnabled(on)
	}
}

// SetCamEnabled flips the candidate's video tracks during a session.
func (c *Controller) SetCamEnabled(on bool) {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream != nil {
		stream.SetVideoEnabled(on)
	}
}

// Cancel ends the session as cancelled. Escape, back-navigation and the
// Cancel control all land here; repeated triggers are no-ops once
// termination has begun.
func (c *Controller) Cancel(ctx context.Context) {
	c.terminate(ctx, true)
}

// Finish ends the session normally.
func (c *Controller) Finish(ctx context.Context) {
	c.terminate(ctx, false)
}

func (c *Controller) HandleEscape(ctx context.Context)         { c.Cancel(ctx) }
func (c *Controller) HandleBackNavigation(ctx context.Context) { c.Cancel(ctx) }

func (c *Controller) terminate(ctx context.Context, cancelled bool) {
	c.mu.Lock()
	if c.phase != PhaseNegotiating && c.phase != PhaseLive {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseTerminating
	stream := c.stream
	sig := c.sig
	neg := c.neg
	disarm := c.disarmUnload
	stopLip := c.stopLipSync
	unwatch := c.unwatch
	recvCancel := c.recvCancel
	sttRunning := c.sttRunning
	c.stream, c.sig, c.neg = nil, nil, nil
	c.disarmUnload, c.stopLipSync, c.unwatch, c.recvCancel = nil, nil, nil, nil
	c.sttRunning = false
	c.mu.Unlock()

	log.Info().Str("module", "session").Bool("cancelled", cancelled).Msg("terminating session")

	runTeardown([]teardownStep{
		{"stop transcription", func() {
			if sttRunning {
				c.deps.Transcriber.Stop()
			}
		}},
		{"close negotiation", func() {
			if recvCancel != nil {
				recvCancel()
			}
			if neg != nil {
				neg.Close()
			}
			if sig != nil {
				_ = sig.Close()
			}
		}},
		{"stop media", func() {
			if stopLip != nil {
				stopLip()
			}
			if stream != nil {
				stream.Stop()
			}
		}},
		{"release exclusive ui", func() {
			if disarm != nil {
				disarm()
			}
			c.deps.UI.Exit()
		}},
		{"stop ledger watch", func() {
			if unwatch != nil {
				unwatch()
			}
		}},
	})

	if cancelled {
		c.transcript.Append(domain.SpeakerSystem, "Interview cancelled")
	} else {
		c.transcript.Append(domain.SpeakerSystem, "Interview finished")
	}

	// The durable lock was already set entering Negotiating under the
	// default policy; this re-upsert is idempotent. Under the
	// finish-only policy a cancelled session keeps just the local lock.
	if c.cfg.Policy == AttemptConsumedOnStart || !cancelled {
		writeCtx := context.WithoutCancel(ctx)
		go func() {
			_ = c.deps.Ledger.MarkAttempted(writeCtx)
		}()
	}

	c.mu.Lock()
	c.phase = PhaseEnded
	c.mu.Unlock()

	if c.deps.OnFinish != nil {
		c.deps.OnFinish(Result{Cancelled: cancelled, Transcript: c.transcript.Entries()})
	}
}
