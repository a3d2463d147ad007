// Package sysex implements the Zoom MS-60B+ System Exclusive wire protocol:
// outbound command framing and inbound reply decoding. The codec is pure and
// stateless; it performs no I/O so it can be unit tested against literal byte
// fixtures.
package sysex

import (
	"errors"
	"fmt"
)

const (
	frameStart = 0xF0
	frameEnd   = 0xF7

	// ManufacturerID is Zoom's registered MIDI manufacturer ID.
	ManufacturerID = 0x52
	// DeviceID is the SysEx device address; the MS-60B+ answers on 0x00.
	DeviceID = 0x00
	// ModelID identifies the MS-60B+ within Zoom's product line.
	ModelID = 0x6E
)

// Message type bytes (first payload byte after the header).
const (
	TypeHandshake    = 0x05
	TypePatchReply   = 0x28
	TypePatchRequest = 0x29
	TypeEditEnable   = 0x50
	TypeEditDisable  = 0x51
	TypeSlotToggle   = 0x64
)

// ErrMalformed reports a frame with broken framing: missing start or
// terminator byte, or a payload too short for its message type. Callers must
// discard the message and leave state untouched.
var ErrMalformed = errors.New("malformed sysex frame")

// Event is a decoded incoming message. Concrete types are PatchReply,
// PatchRequest, SlotCommand and Unrecognized.
type Event interface{}

// PatchRequest asks the pedal for its current patch dump.
type PatchRequest struct{}

// SlotCommand toggles one effect slot on or off.
type SlotCommand struct {
	Slot    int
	Enabled bool
}

// Unrecognized is any well-framed message the codec does not understand,
// including frames from other manufacturers. Not an error: undocumented
// vendor messages must pass through without failing decode.
type Unrecognized struct {
	MessageType byte
	Foreign     bool
}

// Wrap frames a payload with the Zoom header and SysEx delimiters.
func Wrap(payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+5)
	frame = append(frame, frameStart, ManufacturerID, DeviceID, ModelID)
	frame = append(frame, payload...)
	return append(frame, frameEnd)
}

// RequestCurrentPatch encodes the current-patch dump request.
func RequestCurrentPatch() []byte {
	return Wrap([]byte{TypePatchRequest})
}

// Handshake encodes the identify message sent once after connect.
func Handshake() []byte {
	return Wrap([]byte{TypeHandshake})
}

// ParameterEditEnable encodes the command that puts the pedal in editor
// mode. Toggle commands are ignored by the firmware outside this mode.
func ParameterEditEnable() []byte {
	return Wrap([]byte{TypeEditEnable})
}

// ParameterEditDisable encodes the command that leaves editor mode.
func ParameterEditDisable() []byte {
	return Wrap([]byte{TypeEditDisable})
}

// SetSlotEnabled encodes a slot toggle for the given chain position.
func SetSlotEnabled(slot int, enabled bool) []byte {
	state := byte(0x00)
	if enabled {
		state = 0x02
	}
	return Wrap([]byte{TypeSlotToggle, 0x03, 0x00, byte(slot), 0x00, 0x00, state, 0x00, 0x00, 0x00})
}

// Decode parses a complete SysEx frame (including the 0xF0/0xF7 delimiters)
// into an Event. Frames from other manufacturers and unknown Zoom message
// types decode to Unrecognized; broken framing yields ErrMalformed.
func Decode(frame []byte) (Event, error) {
	if len(frame) < 5 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(frame))
	}
	if frame[0] != frameStart || frame[len(frame)-1] != frameEnd {
		return nil, fmt.Errorf("%w: bad delimiters %02X..%02X", ErrMalformed, frame[0], frame[len(frame)-1])
	}
	if frame[1] != ManufacturerID || frame[2] != DeviceID || frame[3] != ModelID {
		return Unrecognized{MessageType: frame[1], Foreign: true}, nil
	}
	payload := frame[4 : len(frame)-1]
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	switch payload[0] {
	case TypePatchReply:
		return decodePatchReply(payload[1:])
	case TypePatchRequest:
		return PatchRequest{}, nil
	case TypeSlotToggle:
		if len(payload) != 10 || payload[1] != 0x03 {
			return nil, fmt.Errorf("%w: slot toggle payload %d bytes", ErrMalformed, len(payload))
		}
		return SlotCommand{Slot: int(payload[3]), Enabled: payload[6] == 0x02}, nil
	default:
		return Unrecognized{MessageType: payload[0]}, nil
	}
}
