package midi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEnumerator struct {
	ins  []string
	outs []string
}

func (f *fakeEnumerator) InPortNames() []string  { return f.ins }
func (f *fakeEnumerator) OutPortNames() []string { return f.outs }

func testSignatures() []Signature {
	return []Signature{
		{Role: RolePedal, Keywords: []string{"MS-60B+"}},
		{Role: RoleFootswitch, Keywords: []string{"CHOCOLATE"}},
	}
}

func drainEvents(w *Watcher) []Event {
	var events []Event
	for {
		select {
		case ev := <-w.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestScanEmitsAttachOncePerDevice(t *testing.T) {
	enum := &fakeEnumerator{
		ins:  []string{"Midi Through 14:0", "ZOOM MS-60B+ MIDI 1", "CHOCOLATE MIDI 1"},
		outs: []string{"Midi Through 14:0", "ZOOM MS-60B+ MIDI 1"},
	}
	w := newWatcher(enum, testSignatures(), time.Second, zap.NewNop())

	w.scan()
	events := drainEvents(w)
	require.Len(t, events, 2)

	byRole := map[Role]Event{}
	for _, ev := range events {
		byRole[ev.Role] = ev
	}
	pedal := byRole[RolePedal]
	assert.Equal(t, Attached, pedal.Type)
	assert.Equal(t, "ZOOM MS-60B+ MIDI 1", pedal.Endpoint.InPort)
	assert.Equal(t, "ZOOM MS-60B+ MIDI 1", pedal.Endpoint.OutPort)

	fs := byRole[RoleFootswitch]
	assert.Equal(t, Attached, fs.Type)
	assert.Empty(t, fs.Endpoint.OutPort, "footswitch is input-only")

	// Same enumeration again: no new events.
	w.scan()
	w.scan()
	assert.Empty(t, drainEvents(w))
}

func TestScanEmitsDetachOnDisappear(t *testing.T) {
	enum := &fakeEnumerator{ins: []string{"ZOOM MS-60B+ MIDI 1"}, outs: []string{"ZOOM MS-60B+ MIDI 1"}}
	w := newWatcher(enum, testSignatures(), time.Second, zap.NewNop())

	w.scan()
	drainEvents(w)

	enum.ins = nil
	enum.outs = nil
	w.scan()

	events := drainEvents(w)
	require.Len(t, events, 1)
	assert.Equal(t, Detached, events[0].Type)
	assert.Equal(t, RolePedal, events[0].Role)

	w.scan()
	assert.Empty(t, drainEvents(w), "detach must be edge-triggered")
}

func TestScanPortChangeCyclesDevice(t *testing.T) {
	enum := &fakeEnumerator{ins: []string{"ZOOM MS-60B+ MIDI 1"}, outs: []string{"ZOOM MS-60B+ MIDI 1"}}
	w := newWatcher(enum, testSignatures(), time.Second, zap.NewNop())

	w.scan()
	drainEvents(w)

	enum.ins = []string{"ZOOM MS-60B+ MIDI 2"}
	enum.outs = []string{"ZOOM MS-60B+ MIDI 2"}
	w.scan()

	events := drainEvents(w)
	require.Len(t, events, 2)
	assert.Equal(t, Detached, events[0].Type)
	assert.Equal(t, Attached, events[1].Type)
	assert.Equal(t, "ZOOM MS-60B+ MIDI 2", events[1].Endpoint.InPort)
}

func TestForgetReemitsAttach(t *testing.T) {
	enum := &fakeEnumerator{ins: []string{"ZOOM MS-60B+ MIDI 1"}, outs: []string{"ZOOM MS-60B+ MIDI 1"}}
	w := newWatcher(enum, testSignatures(), time.Second, zap.NewNop())

	w.scan()
	drainEvents(w)

	w.Forget(RolePedal)
	w.scan()

	events := drainEvents(w)
	require.Len(t, events, 1)
	assert.Equal(t, Attached, events[0].Type)
	assert.Equal(t, RolePedal, events[0].Role)
}

func TestMatchPortCaseInsensitive(t *testing.T) {
	name, ok := matchPort([]string{"zoom ms-60b+ midi 1"}, []string{"MS-60B+"})
	assert.True(t, ok)
	assert.Equal(t, "zoom ms-60b+ midi 1", name)

	_, ok = matchPort([]string{"Midi Through"}, []string{"MS-60B+"})
	assert.False(t, ok)
}
