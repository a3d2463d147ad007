// Package midi provides device discovery and transport ports over the
// system's MIDI endpoints.
package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
	"go.uber.org/zap"
)

// Role identifies which hardware a matched endpoint belongs to.
type Role int

const (
	RolePedal Role = iota
	RoleFootswitch
)

func (r Role) String() string {
	switch r {
	case RolePedal:
		return "pedal"
	case RoleFootswitch:
		return "footswitch"
	default:
		return "unknown"
	}
}

// Signature matches a role against enumerated port names.
type Signature struct {
	Role     Role
	Keywords []string
}

// Endpoint is one matched input/output port pair. OutPort may be empty for
// input-only devices like the footswitch controller.
type Endpoint struct {
	Role    Role
	InPort  string
	OutPort string
}

// EventType distinguishes attach from detach.
type EventType int

const (
	Attached EventType = iota
	Detached
)

// Event is emitted when a known device appears or disappears.
type Event struct {
	Type     EventType
	Role     Role
	Endpoint Endpoint // populated for Attached
}

// Enumerator lists the MIDI port names currently visible to the system.
// The watcher only depends on names so tests can fake enumeration.
type Enumerator interface {
	InPortNames() []string
	OutPortNames() []string
}

type systemEnumerator struct{}

func (systemEnumerator) InPortNames() []string {
	ins := gomidi.GetInPorts()
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

func (systemEnumerator) OutPortNames() []string {
	outs := gomidi.GetOutPorts()
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	return names
}

// Watcher polls the enumerated MIDI endpoints on a fixed interval and emits
// edge-triggered attach/detach events: exactly one event per transition, no
// matter how often a poll sees the same set.
type Watcher struct {
	enum     Enumerator
	sigs     []Signature
	interval time.Duration
	events   chan Event
	log      *zap.Logger

	mu      sync.Mutex
	present map[Role]Endpoint
}

// NewWatcher creates a watcher over the system's MIDI endpoints.
func NewWatcher(sigs []Signature, interval time.Duration, log *zap.Logger) *Watcher {
	return newWatcher(systemEnumerator{}, sigs, interval, log)
}

func newWatcher(enum Enumerator, sigs []Signature, interval time.Duration, log *zap.Logger) *Watcher {
	return &Watcher{
		enum:     enum,
		sigs:     sigs,
		interval: interval,
		events:   make(chan Event, 16),
		log:      log,
		present:  make(map[Role]Endpoint),
	}
}

// Events returns the channel of attach/detach events. It is closed when Run
// returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Forget drops a role from the observed set so the next poll re-emits
// Attached if the device is still enumerated. The coordinator uses this
// after a connectivity timeout, where the device is presumed gone even
// though the OS still lists it.
func (w *Watcher) Forget(role Role) {
	w.mu.Lock()
	delete(w.present, role)
	w.mu.Unlock()
}

// Run starts the polling loop. Blocking; run in a goroutine.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.scan()

	for {
		select {
		case <-ctx.Done():
			close(w.events)
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *Watcher) scan() {
	ins := w.enum.InPortNames()
	outs := w.enum.OutPortNames()

	seen := make(map[Role]Endpoint)
	for _, sig := range w.sigs {
		in, ok := matchPort(ins, sig.Keywords)
		if !ok {
			continue
		}
		out, _ := matchPort(outs, sig.Keywords)
		seen[sig.Role] = Endpoint{Role: sig.Role, InPort: in, OutPort: out}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for role, ep := range seen {
		prev, was := w.present[role]
		if was && prev.InPort == ep.InPort {
			continue
		}
		if was {
			// Same role on a different port: the device was swapped
			// between polls. Surface it as a full detach/attach cycle.
			w.log.Info("device port changed", zap.Stringer("role", role),
				zap.String("old", prev.InPort), zap.String("new", ep.InPort))
			w.emit(Event{Type: Detached, Role: role})
		} else {
			w.log.Info("device attached", zap.Stringer("role", role), zap.String("in", ep.InPort))
		}
		w.present[role] = ep
		w.emit(Event{Type: Attached, Role: role, Endpoint: ep})
	}

	for role := range w.present {
		if _, still := seen[role]; !still {
			w.log.Info("device detached", zap.Stringer("role", role))
			delete(w.present, role)
			w.emit(Event{Type: Detached, Role: role})
		}
	}
}

func (w *Watcher) emit(ev Event) {
	select {
	case w.events <- ev:
	default:
		w.log.Warn("device event dropped, consumer too slow", zap.Stringer("role", ev.Role))
	}
}

// matchPort returns the first port name containing one of the keywords,
// case-insensitively.
func matchPort(names, keywords []string) (string, bool) {
	for _, name := range names {
		lowered := strings.ToLower(name)
		for _, kw := range keywords {
			if strings.Contains(lowered, strings.ToLower(kw)) {
				return name, true
			}
		}
	}
	return "", false
}
