package sysex

import (
	"encoding/binary"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPatchDump assembles an unpacked patch dump with the given name and
// chain entries, mirroring the firmware's layout.
func buildPatchDump(name string, entries []uint32) []byte {
	data := make([]byte, patchNameEnd)
	copy(data[patchNameStart:], name)

	data = append(data, chainMarker...)
	chunk := make([]byte, effectBase+len(entries)*effectStride)
	chunk[0] = byte(len(entries) * effectStride)
	for i, union := range entries {
		binary.LittleEndian.PutUint32(chunk[effectBase+i*effectStride:], union)
	}
	data = append(data, chunk...)
	return append(data, paramMarker...)
}

func slotUnion(id uint32, enabled bool) uint32 {
	union := id << 1
	if enabled {
		union |= 1
	}
	return union
}

func patchFrame(dump []byte) []byte {
	payload := append([]byte{TypePatchReply}, PackSevenBit(dump)...)
	return Wrap(payload)
}

func TestDecodePatchReply(t *testing.T) {
	dump := buildPatchDump("FUNK BASS", []uint32{
		slotUnion(0x0100010, true),
		slotUnion(0x0500010, false),
		slotUnion(0x0200010, true),
	})
	ev, err := Decode(patchFrame(dump))
	require.NoError(t, err)

	reply, ok := ev.(PatchReply)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, "FUNK BASS", reply.PatchName)
	require.Len(t, reply.Slots, 3)

	assert.Equal(t, uint32(0x0100010), reply.Slots[0].EffectID)
	assert.True(t, reply.Slots[0].Enabled)
	assert.Equal(t, "Compressor", reply.Slots[0].Name)

	assert.Equal(t, uint32(0x0500010), reply.Slots[1].EffectID)
	assert.False(t, reply.Slots[1].Enabled)

	assert.Equal(t, 2, reply.Slots[2].Index)
}

func TestDecodePatchReplyNoChainSection(t *testing.T) {
	dump := make([]byte, patchNameEnd)
	copy(dump[patchNameStart:], "EMPTY")
	ev, err := Decode(patchFrame(dump))
	require.NoError(t, err)

	reply, ok := ev.(PatchReply)
	require.True(t, ok)
	assert.Equal(t, "EMPTY", reply.PatchName)
	assert.Empty(t, reply.Slots)
}

func TestDecodePatchReplyTruncated(t *testing.T) {
	short := PackSevenBit(make([]byte, 10))
	_, err := Decode(Wrap(append([]byte{TypePatchReply}, short...)))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodePatchReplyCapsChainLength(t *testing.T) {
	entries := make([]uint32, 9)
	for i := range entries {
		entries[i] = slotUnion(0x0100010, true)
	}
	dump := buildPatchDump("LONG", entries)
	ev, err := Decode(patchFrame(dump))
	require.NoError(t, err)

	reply := ev.(PatchReply)
	assert.LessOrEqual(t, len(reply.Slots), MaxEffects)
}

func TestDecodePatchReplySanitizesName(t *testing.T) {
	dump := make([]byte, patchNameEnd)
	copy(dump[patchNameStart:], []byte{'F', 0xC3, 'U', 0xFF, 'N', 'K'})
	ev, err := Decode(patchFrame(dump))
	require.NoError(t, err)

	reply := ev.(PatchReply)
	assert.True(t, utf8.ValidString(reply.PatchName))
	assert.Equal(t, "FUNK", reply.PatchName)
}

func TestSevenBitRoundTrip(t *testing.T) {
	data := []byte{0x00, 0x7F, 0x80, 0xFF, 0x12, 0x99, 0x40, 0x81, 0x01}
	assert.Equal(t, data, UnpackSevenBit(PackSevenBit(data)))
}

func TestUnpackSevenBitEmpty(t *testing.T) {
	assert.Nil(t, UnpackSevenBit(nil))
	assert.Nil(t, UnpackSevenBit([]byte{0x00}))
}
