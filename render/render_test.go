package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pedalhost/state"
)

func testSnapshot() *state.PatchSnapshot {
	return &state.PatchSnapshot{
		PatchName: "FUNK BASS",
		Slots: []state.EffectSlot{
			{Index: 0, Name: "Input", Enabled: true},
			{Index: 1, Name: "Compressor", Enabled: true},
			{Index: 2, Name: "Delay", Enabled: false},
		},
	}
}

func TestFormatSnapshot(t *testing.T) {
	out := formatSnapshot(testSnapshot())

	assert.Contains(t, out, "FUNK BASS")
	assert.Contains(t, out, "Compressor")
	assert.Contains(t, out, "Delay")
	assert.Contains(t, out, "(bypassed)")
	assert.NotContains(t, out, "Input", "slot 0 is the input stage, not an effect")
}

func TestFormatSnapshotWaiting(t *testing.T) {
	assert.Contains(t, formatSnapshot(nil), "waiting for pedal")
}

func TestFormatSnapshotEmptyChain(t *testing.T) {
	snap := &state.PatchSnapshot{PatchName: "EMPTY"}
	assert.Contains(t, formatSnapshot(snap), "(empty chain)")
}

func TestConsoleRender(t *testing.T) {
	var b strings.Builder
	c := NewConsole(&b)
	require.NoError(t, c.Render(testSnapshot()))
	assert.Contains(t, b.String(), "FUNK BASS")
}

func TestEncodeLCDFrame(t *testing.T) {
	frame := encodeLCDFrame(testSnapshot())

	require.Greater(t, len(frame), 5)
	assert.Equal(t, byte(lcdSOF0), frame[0])
	assert.Equal(t, byte(lcdSOF1), frame[1])
	assert.Equal(t, byte(cmdShowPatch), frame[3])

	length := frame[2]
	assert.Equal(t, int(length), len(frame)-4, "LEN covers CMD plus payload")

	var cks byte
	for _, b := range frame[2 : len(frame)-1] {
		cks ^= b
	}
	assert.Equal(t, cks, frame[len(frame)-1])

	payload := frame[4 : len(frame)-1]
	nameLen := int(payload[0])
	assert.Equal(t, "FUNK BASS", string(payload[1:1+nameLen]))
	assert.Equal(t, byte(2), payload[1+nameLen], "visible slot count")
}

func TestEncodeLCDFrameWaiting(t *testing.T) {
	frame := encodeLCDFrame(nil)
	assert.Equal(t, []byte{lcdSOF0, lcdSOF1, 0x01, cmdShowWaiting, 0x01 ^ cmdShowWaiting}, frame)
}

func TestEncodeLCDFrameTruncatesLongNames(t *testing.T) {
	snap := &state.PatchSnapshot{PatchName: strings.Repeat("X", 80)}
	frame := encodeLCDFrame(snap)
	payload := frame[4 : len(frame)-1]
	assert.Equal(t, byte(lcdNameMax), payload[0])
}
