package sysex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"pedalhost/state"
)

// MaxEffects is the longest chain the MS-60B+ reports.
const MaxEffects = 6

// Patch dump layout (after 7-bit unpacking):
// bytes 26..58 hold the NUL-padded patch name; the effect chain lives in the
// "EDTB".."PPRM" section as 24-byte entries starting at offset 4, each
// beginning with a little-endian uint32 union: bit 0 = enabled, bits 1..28 =
// effect object ID.
const (
	patchNameStart = 26
	patchNameEnd   = 58
	effectStride   = 24
	effectBase     = 4
)

var (
	chainMarker = []byte("EDTB")
	paramMarker = []byte("PPRM")
)

// PatchReply is a decoded full-chain dump.
type PatchReply struct {
	PatchName string
	Slots     []state.EffectSlot
}

func decodePatchReply(packed []byte) (Event, error) {
	data := UnpackSevenBit(packed)
	if data == nil {
		return nil, fmt.Errorf("%w: empty patch payload", ErrMalformed)
	}
	if len(data) < patchNameEnd {
		return nil, fmt.Errorf("%w: patch dump truncated at %d bytes", ErrMalformed, len(data))
	}

	name := data[patchNameStart:patchNameEnd]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	// Corrupt dumps can carry arbitrary bytes here; drop anything that is
	// not valid UTF-8 so downstream sinks always get printable text.
	reply := PatchReply{PatchName: strings.TrimSpace(strings.ToValidUTF8(string(name), ""))}

	// Some firmware revisions omit the chain section entirely; report the
	// patch name with no slots rather than failing.
	start := bytes.Index(data, chainMarker)
	if start < 0 {
		return reply, nil
	}
	chunk := data[start+len(chainMarker):]
	if end := bytes.Index(chunk, paramMarker); end >= 0 {
		chunk = chunk[:end]
	}
	if len(chunk) == 0 {
		return reply, nil
	}

	count := int(chunk[0]) / effectStride
	if count > MaxEffects {
		count = MaxEffects
	}
	for i := 0; i < count; i++ {
		base := effectBase + i*effectStride
		if base+effectStride > len(chunk) {
			break
		}
		union := binary.LittleEndian.Uint32(chunk[base:])
		id := (union >> 1) & 0x0FFFFFFF
		reply.Slots = append(reply.Slots, state.EffectSlot{
			Index:    i,
			EffectID: id,
			Name:     state.EffectName(id),
			Enabled:  union&0x01 != 0,
		})
	}
	return reply, nil
}

// UnpackSevenBit expands the pedal's 7-bit packing: each group carries a
// hi-bit byte followed by up to seven data bytes whose MSBs it re-injects.
func UnpackSevenBit(payload []byte) []byte {
	var hibits byte
	bitIndex := -1
	out := make([]byte, 0, len(payload))
	for _, b := range payload {
		if bitIndex >= 0 {
			if hibits&(1<<uint(bitIndex)) != 0 {
				out = append(out, b|0x80)
			} else {
				out = append(out, b)
			}
			bitIndex--
		} else {
			hibits = b
			bitIndex = 6
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// PackSevenBit is the inverse of UnpackSevenBit. The live pedal does the
// packing itself; this exists for fixtures and the pedaltest tool.
func PackSevenBit(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/7+1)
	for len(data) > 0 {
		n := len(data)
		if n > 7 {
			n = 7
		}
		var hibits byte
		for i := 0; i < n; i++ {
			if data[i]&0x80 != 0 {
				hibits |= 1 << uint(6-i)
			}
		}
		out = append(out, hibits)
		for i := 0; i < n; i++ {
			out = append(out, data[i]&0x7F)
		}
		data = data[n:]
	}
	return out
}
