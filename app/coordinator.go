// Package app wires device discovery, the pedal session and the footswitch
// dispatcher together and forwards every patch change to the render sink.
package app

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pedalhost/config"
	"pedalhost/footswitch"
	"pedalhost/midi"
	"pedalhost/pedal"
	"pedalhost/render"
	"pedalhost/state"
)

// DeviceSource is the coordinator's view of the device watcher.
type DeviceSource interface {
	Events() <-chan midi.Event
	Forget(role midi.Role)
}

// PortOpener opens transport ports for matched endpoints. Abstracted so
// tests can substitute in-memory ports.
type PortOpener interface {
	OpenSysEx(ep midi.Endpoint, onFrame func([]byte)) (midi.Port, error)
	OpenNotes(ep midi.Endpoint, onNote func(note, velocity uint8)) (midi.Port, error)
}

type systemOpener struct {
	log *zap.Logger
}

func (o systemOpener) OpenSysEx(ep midi.Endpoint, onFrame func([]byte)) (midi.Port, error) {
	return midi.OpenSysExPort(ep, onFrame, o.log)
}

func (o systemOpener) OpenNotes(ep midi.Endpoint, onNote func(note, velocity uint8)) (midi.Port, error) {
	return midi.OpenNotePort(ep, onNote, o.log)
}

// Mailbox events. Every asynchronous source (watcher poll loop, pedal reply
// stream, footswitch note stream, reply timer) is funneled into one ordered
// queue; the Run goroutine is the only writer of session state and the
// patch model.
type event interface{}

type evPedalFrame struct{ frame []byte }
type evPedalTimeout struct{ gen uint64 }
type evFootswitchNote struct{ note, velocity uint8 }

// Coordinator owns the pedal session and footswitch dispatcher lifecycles.
type Coordinator struct {
	cfg    *config.Config
	source DeviceSource
	opener PortOpener
	sink   render.Sink
	log    *zap.Logger

	events     chan event
	model      *state.Model
	session    *pedal.Session
	dispatcher *footswitch.Dispatcher
	sessionID  string
}

// New builds a coordinator using the real MIDI transport.
func New(cfg *config.Config, source DeviceSource, sink render.Sink, log *zap.Logger) *Coordinator {
	return newCoordinator(cfg, source, systemOpener{log: log}, sink, log)
}

func newCoordinator(cfg *config.Config, source DeviceSource, opener PortOpener, sink render.Sink, log *zap.Logger) *Coordinator {
	c := &Coordinator{
		cfg:        cfg,
		source:     source,
		opener:     opener,
		sink:       sink,
		log:        log,
		events:     make(chan event, 128),
		model:      state.NewModel(),
		dispatcher: footswitch.NewDispatcher(footswitch.BindingsFromConfig(cfg.Bindings), log),
	}
	c.session = pedal.NewSession(c.model, cfg.ReplyTimeout(), cfg.ReplyRetries,
		func(gen uint64) { c.submit(evPedalTimeout{gen: gen}) },
		func(snap *state.PatchSnapshot) { c.render(snap) },
		log)
	return c
}

// submit posts an event into the mailbox without ever blocking the caller:
// MIDI reads must drain promptly or the device side overruns. Overflow is
// logged and dropped.
func (c *Coordinator) submit(ev event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn("event queue full, dropping event")
	}
}

// Run processes the mailbox until the context is cancelled. Blocking.
func (c *Coordinator) Run(ctx context.Context) error {
	c.render(nil)

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case dev, ok := <-c.source.Events():
			if !ok {
				c.shutdown()
				return nil
			}
			c.handleDeviceEvent(dev)
		case ev := <-c.events:
			c.handleEvent(ev)
		}
	}
}

func (c *Coordinator) handleDeviceEvent(dev midi.Event) {
	switch {
	case dev.Type == midi.Attached && dev.Role == midi.RolePedal:
		c.attachPedal(dev.Endpoint)
	case dev.Type == midi.Attached && dev.Role == midi.RoleFootswitch:
		c.attachFootswitch(dev.Endpoint)
	case dev.Type == midi.Detached && dev.Role == midi.RolePedal:
		c.detachPedal()
	case dev.Type == midi.Detached && dev.Role == midi.RoleFootswitch:
		c.log.Info("footswitch detached")
		c.dispatcher.Close()
	}
}

func (c *Coordinator) handleEvent(ev event) {
	switch ev := ev.(type) {
	case evPedalFrame:
		c.session.HandleFrame(ev.frame)
	case evPedalTimeout:
		if err := c.session.HandleTimeout(ev.gen); err != nil {
			// Detach-equivalent: clear the stale view and let the next
			// poll re-emit Attached if the pedal is in fact still there.
			c.log.Warn("pedal connectivity lost", zap.String("session", c.sessionID), zap.Error(err))
			c.source.Forget(midi.RolePedal)
			c.render(nil)
		}
	case evFootswitchNote:
		c.handleFootswitchNote(ev.note, ev.velocity)
	}
}

func (c *Coordinator) attachPedal(ep midi.Endpoint) {
	if c.session.State() != pedal.Disconnected {
		c.session.Disconnect()
	}
	port, err := c.opener.OpenSysEx(ep, func(frame []byte) {
		c.submit(evPedalFrame{frame: frame})
	})
	if err != nil {
		c.log.Error("open pedal ports failed", zap.String("in", ep.InPort), zap.Error(err))
		c.source.Forget(midi.RolePedal)
		return
	}
	c.sessionID = uuid.NewString()
	c.log.Info("pedal attached", zap.String("session", c.sessionID), zap.String("in", ep.InPort))
	if err := c.session.Connect(port); err != nil {
		c.log.Error("pedal connect failed", zap.String("session", c.sessionID), zap.Error(err))
		c.session.Disconnect()
		c.source.Forget(midi.RolePedal)
	}
}

func (c *Coordinator) attachFootswitch(ep midi.Endpoint) {
	port, err := c.opener.OpenNotes(ep, func(note, velocity uint8) {
		c.submit(evFootswitchNote{note: note, velocity: velocity})
	})
	if err != nil {
		c.log.Error("open footswitch port failed", zap.String("in", ep.InPort), zap.Error(err))
		c.source.Forget(midi.RoleFootswitch)
		return
	}
	c.log.Info("footswitch attached", zap.String("in", ep.InPort))
	c.dispatcher.Attach(port)
}

func (c *Coordinator) detachPedal() {
	c.log.Info("pedal detached", zap.String("session", c.sessionID))
	c.session.Disconnect()
	c.render(nil)
}

func (c *Coordinator) handleFootswitchNote(note, velocity uint8) {
	cmd, ok := c.dispatcher.Resolve(note, velocity)
	if !ok {
		return
	}
	if c.session.State() == pedal.Disconnected {
		// A footswitch with no pedal is informational, not an error.
		c.log.Info("footswitch pressed with no pedal attached", zap.Uint8("note", note))
		return
	}
	if err := c.session.SetSlotEnabled(cmd.Slot, cmd.Enabled); err != nil {
		c.log.Warn("footswitch command rejected",
			zap.Uint8("note", note), zap.Int("slot", cmd.Slot), zap.Error(err))
	}
}

// render pushes the snapshot to the sink. Sinks are responsible for their
// own asynchrony; a short synchronous call is allowed here.
func (c *Coordinator) render(snap *state.PatchSnapshot) {
	if err := c.sink.Render(snap); err != nil {
		c.log.Warn("render failed", zap.Error(err))
	}
}

func (c *Coordinator) shutdown() {
	c.session.Disconnect()
	c.dispatcher.Close()
	c.render(nil)
}
