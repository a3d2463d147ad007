// Package pedal drives the request/response protocol against the connected
// pedal and keeps the patch model in sync with it.
package pedal

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pedalhost/midi"
	"pedalhost/state"
	"pedalhost/sysex"
)

// ErrTimeout reports that the pedal stayed silent past the retry budget.
// The session is forced to Disconnected; the coordinator treats it like a
// detach and keeps polling for reattachment.
var ErrTimeout = errors.New("pedal reply timeout")

// ErrNotConnected reports a command issued while no pedal session is up.
var ErrNotConnected = errors.New("pedal not connected")

// State is the session's protocol phase.
type State int

const (
	Disconnected State = iota
	AwaitingPatchReply
	Ready
	AwaitingToggleAck
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case AwaitingPatchReply:
		return "awaiting-patch-reply"
	case Ready:
		return "ready"
	case AwaitingToggleAck:
		return "awaiting-toggle-ack"
	default:
		return "invalid"
	}
}

// Session owns the transport port to the pedal. All methods must be called
// from the coordinator goroutine; the only concurrency inside the session
// is the reply timer, which posts back into the coordinator mailbox via
// submitTimeout instead of touching state directly.
type Session struct {
	model *state.Model
	log   *zap.Logger

	timeout time.Duration
	retries int

	// submitTimeout posts a timer expiry into the coordinator mailbox.
	// The generation argument guards against stale timers: expiries for an
	// older generation are dropped by HandleTimeout.
	submitTimeout func(gen uint64)
	// notify is called with every new snapshot.
	notify func(*state.PatchSnapshot)

	port    midi.Port
	st      State
	attempt int
	gen     uint64
	timer   *time.Timer
}

// NewSession creates a session around the shared patch model.
func NewSession(model *state.Model, timeout time.Duration, retries int,
	submitTimeout func(gen uint64), notify func(*state.PatchSnapshot), log *zap.Logger) *Session {
	return &Session{
		model:         model,
		timeout:       timeout,
		retries:       retries,
		submitTimeout: submitTimeout,
		notify:        notify,
		log:           log,
		st:            Disconnected,
	}
}

// State returns the current protocol phase.
func (s *Session) State() State {
	return s.st
}

// Snapshot returns the current patch snapshot, or nil before the first
// full-chain reply.
func (s *Session) Snapshot() *state.PatchSnapshot {
	return s.model.Snapshot()
}

// Connect takes ownership of the port, runs the pedal's init sequence and
// requests the current patch. On any init failure the port is closed before
// returning: the session is still Disconnected at that point, so no later
// Disconnect call would release it.
func (s *Session) Connect(port midi.Port) error {
	if s.st != Disconnected {
		return fmt.Errorf("connect in state %s", s.st)
	}
	s.port = port

	// Handshake and editor mode first: the firmware ignores slot toggles
	// until parameter-edit is enabled.
	if err := port.Send(sysex.Handshake()); err != nil {
		s.teardown()
		return fmt.Errorf("handshake: %w", err)
	}
	if err := port.Send(sysex.ParameterEditEnable()); err != nil {
		s.teardown()
		return fmt.Errorf("enable parameter edit: %w", err)
	}
	if err := s.sendPatchRequest(); err != nil {
		s.teardown()
		return err
	}
	return nil
}

// RequestRefresh re-queries the full chain. Only valid once Ready; a refresh
// while a request is already in flight is a no-op.
func (s *Session) RequestRefresh() error {
	switch s.st {
	case Disconnected:
		return ErrNotConnected
	case AwaitingPatchReply:
		return nil
	}
	return s.sendPatchRequest()
}

func (s *Session) sendPatchRequest() error {
	if err := s.port.Send(sysex.RequestCurrentPatch()); err != nil {
		return fmt.Errorf("request patch: %w", err)
	}
	s.st = AwaitingPatchReply
	s.attempt = 0
	s.armTimer()
	return nil
}

// SetSlotEnabled toggles one slot. The model is updated optimistically
// before the pedal confirms: the vendor protocol has no distinguishable
// ack, so the pedal is treated as source of truth only at the next
// full-chain query. An out-of-range index fails with state.ErrUnknownSlot
// without sending anything.
func (s *Session) SetSlotEnabled(index int, enabled bool) error {
	if s.st != Ready && s.st != AwaitingToggleAck {
		return ErrNotConnected
	}
	snap, err := s.model.ApplySlotToggle(index, enabled)
	if err != nil {
		return err
	}
	if err := s.port.Send(sysex.SetSlotEnabled(index, enabled)); err != nil {
		return fmt.Errorf("toggle slot %d: %w", index, err)
	}
	s.st = AwaitingToggleAck
	s.log.Debug("slot toggled", zap.Int("slot", index), zap.Bool("enabled", enabled))
	if s.notify != nil {
		s.notify(snap)
	}
	return nil
}

// HandleFrame processes one inbound SysEx frame. Malformed frames are
// logged and dropped without a state transition.
func (s *Session) HandleFrame(frame []byte) {
	if s.st == Disconnected {
		return
	}
	ev, err := sysex.Decode(frame)
	if err != nil {
		s.log.Warn("dropping malformed frame", zap.Int("bytes", len(frame)), zap.Error(err))
		return
	}

	switch ev := ev.(type) {
	case sysex.PatchReply:
		s.cancelTimer()
		snap := s.model.ApplyFullChain(ev.PatchName, ev.Slots)
		s.st = Ready
		s.log.Info("patch chain updated",
			zap.String("patch", snap.PatchName), zap.Int("slots", len(snap.Slots)))
		if s.notify != nil {
			s.notify(snap)
		}
	case sysex.Unrecognized:
		if ev.Foreign {
			s.log.Debug("ignoring foreign sysex", zap.Uint8("manufacturer", ev.MessageType))
		} else {
			s.log.Debug("unrecognized message type", zap.Uint8("type", ev.MessageType))
		}
		s.ackIfAwaiting()
	default:
		// Echoes of our own command set; nothing to apply.
		s.ackIfAwaiting()
	}
}

// ackIfAwaiting treats any reply as confirmation of an outstanding toggle.
func (s *Session) ackIfAwaiting() {
	if s.st == AwaitingToggleAck {
		s.st = Ready
	}
}

// HandleTimeout processes a reply-timer expiry posted through the mailbox.
// Stale generations are ignored, which makes timer cancellation race-free:
// cancelTimer bumps the generation before any queued expiry can run.
// Returns ErrTimeout once the retry budget is exhausted; the session is
// then Disconnected and the port closed.
func (s *Session) HandleTimeout(gen uint64) error {
	if gen != s.gen || s.st != AwaitingPatchReply {
		return nil
	}
	if s.attempt < s.retries {
		s.attempt++
		s.log.Warn("patch reply timed out, resending",
			zap.Int("attempt", s.attempt), zap.Int("retries", s.retries))
		if err := s.port.Send(sysex.RequestCurrentPatch()); err != nil {
			s.log.Warn("resend failed", zap.Error(err))
		}
		s.armTimer()
		return nil
	}
	s.log.Error("pedal silent past retry budget, presuming gone")
	s.teardown()
	return ErrTimeout
}

// Disconnect releases the port and resets the session. Safe on every exit
// path, including repeated calls.
func (s *Session) Disconnect() {
	if s.st == Disconnected {
		return
	}
	// Best effort: leave editor mode so the pedal's own UI unlocks.
	_ = s.port.Send(sysex.ParameterEditDisable())
	s.teardown()
}

func (s *Session) teardown() {
	s.cancelTimer()
	_ = s.port.Close()
	s.port = nil
	s.st = Disconnected
	s.model.Clear()
}

func (s *Session) armTimer() {
	s.cancelTimer()
	gen := s.gen
	s.timer = time.AfterFunc(s.timeout, func() {
		s.submitTimeout(gen)
	})
}

func (s *Session) cancelTimer() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
