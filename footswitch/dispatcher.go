// Package footswitch translates controller note events into pedal slot
// commands through a static binding table.
package footswitch

import (
	"go.uber.org/zap"

	"pedalhost/config"
	"pedalhost/midi"
)

// Action is what a binding does to its slot.
type Action int

const (
	ActionEnable Action = iota
	ActionBypass
)

// Binding maps a MIDI note to a slot action. The table is loaded once at
// startup and read-only during a session.
type Binding struct {
	Note   uint8
	Action Action
	Slot   int
}

// Command is a resolved footswitch press, ready for the pedal session.
type Command struct {
	Slot    int
	Enabled bool
}

// BindingsFromConfig converts the config table, dropping nothing: config
// validation already rejected unknown actions.
func BindingsFromConfig(bindings []config.Binding) []Binding {
	out := make([]Binding, 0, len(bindings))
	for _, b := range bindings {
		action := ActionEnable
		if b.Action == config.ActionBypass {
			action = ActionBypass
		}
		out = append(out, Binding{Note: b.Note, Action: action, Slot: b.Slot})
	}
	return out
}

// Dispatcher owns the transport port to the footswitch controller and the
// binding table. Resolution is pure; the coordinator mediates the actual
// pedal command so the dispatcher never holds a reference that could dangle
// after a pedal detach.
type Dispatcher struct {
	bindings []Binding
	log      *zap.Logger
	port     midi.Port
}

func NewDispatcher(bindings []Binding, log *zap.Logger) *Dispatcher {
	return &Dispatcher{bindings: bindings, log: log}
}

// Resolve looks up a note event in the binding table. First match wins;
// unmapped notes and releases (velocity 0) resolve to nothing. Only
// note-on with non-zero velocity triggers, matching momentary-footswitch
// behavior so releases never double-fire.
func (d *Dispatcher) Resolve(note, velocity uint8) (Command, bool) {
	if velocity == 0 {
		return Command{}, false
	}
	for _, b := range d.bindings {
		if b.Note != note {
			continue
		}
		return Command{Slot: b.Slot, Enabled: b.Action == ActionEnable}, true
	}
	d.log.Debug("unmapped footswitch note", zap.Uint8("note", note))
	return Command{}, false
}

// Attach hands the dispatcher its open port. Any previous port is closed.
func (d *Dispatcher) Attach(port midi.Port) {
	if d.port != nil {
		_ = d.port.Close()
	}
	d.port = port
}

// Connected reports whether a footswitch port is currently attached.
func (d *Dispatcher) Connected() bool {
	return d.port != nil
}

// Close releases the port if one is attached.
func (d *Dispatcher) Close() {
	if d.port != nil {
		_ = d.port.Close()
		d.port = nil
	}
}
