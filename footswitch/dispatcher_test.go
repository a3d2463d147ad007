package footswitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pedalhost/config"
)

func testBindings() []Binding {
	return []Binding{
		{Note: 60, Action: ActionEnable, Slot: 2},
		{Note: 61, Action: ActionBypass, Slot: 2},
		{Note: 62, Action: ActionEnable, Slot: 1},
	}
}

func TestResolveMappedNote(t *testing.T) {
	d := NewDispatcher(testBindings(), zap.NewNop())

	cmd, ok := d.Resolve(60, 127)
	require.True(t, ok)
	assert.Equal(t, Command{Slot: 2, Enabled: true}, cmd)

	cmd, ok = d.Resolve(61, 1)
	require.True(t, ok)
	assert.Equal(t, Command{Slot: 2, Enabled: false}, cmd)
}

func TestResolveIgnoresReleases(t *testing.T) {
	d := NewDispatcher(testBindings(), zap.NewNop())
	_, ok := d.Resolve(60, 0)
	assert.False(t, ok, "velocity 0 is a release, not a press")
}

func TestResolveUnmappedNote(t *testing.T) {
	d := NewDispatcher(testBindings(), zap.NewNop())
	_, ok := d.Resolve(99, 100)
	assert.False(t, ok)
}

func TestResolveFirstMatchWins(t *testing.T) {
	bindings := []Binding{
		{Note: 60, Action: ActionEnable, Slot: 1},
		{Note: 60, Action: ActionBypass, Slot: 4},
	}
	d := NewDispatcher(bindings, zap.NewNop())

	cmd, ok := d.Resolve(60, 64)
	require.True(t, ok)
	assert.Equal(t, Command{Slot: 1, Enabled: true}, cmd)
}

func TestBindingsFromConfig(t *testing.T) {
	got := BindingsFromConfig([]config.Binding{
		{Note: 60, Action: config.ActionEnable, Slot: 2},
		{Note: 61, Action: config.ActionBypass, Slot: 3},
	})
	assert.Equal(t, []Binding{
		{Note: 60, Action: ActionEnable, Slot: 2},
		{Note: 61, Action: ActionBypass, Slot: 3},
	}, got)
}

type closeCounter struct{ closed int }

func (c *closeCounter) Send([]byte) error { return nil }
func (c *closeCounter) Close() error      { c.closed++; return nil }

func TestAttachReplacesPort(t *testing.T) {
	d := NewDispatcher(testBindings(), zap.NewNop())
	assert.False(t, d.Connected())

	first := &closeCounter{}
	d.Attach(first)
	assert.True(t, d.Connected())

	second := &closeCounter{}
	d.Attach(second)
	assert.Equal(t, 1, first.closed, "stale port must be closed on replace")

	d.Close()
	assert.Equal(t, 1, second.closed)
	assert.False(t, d.Connected())

	d.Close()
	assert.Equal(t, 1, second.closed, "close is idempotent")
}
