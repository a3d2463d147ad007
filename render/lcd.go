package render

import (
	"fmt"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"pedalhost/state"
)

// LCD wire protocol, consumed by the panel microcontroller:
//
//	[SOF0][SOF1][LEN][CMD][payload...][CKS]
//
// CKS is LEN xor CMD xor every payload byte. CmdShowPatch payload:
// name length, name bytes, slot count, then per visible slot
// (enabled flag, name length, name bytes). CmdShowWaiting has no payload.
const (
	lcdSOF0        = 0xAA
	lcdSOF1        = 0x55
	cmdShowPatch   = 0x20
	cmdShowWaiting = 0x21

	lcdNameMax = 32
)

// LCD streams rendered snapshots to an external display controller over a
// serial port. Writes happen on a dedicated goroutine fed by a small queue;
// when the queue is full the oldest frame is dropped, since only the latest
// state matters on a display.
type LCD struct {
	port  serial.Port
	log   *zap.Logger
	queue chan []byte
	done  chan struct{}
}

// OpenLCD opens the panel's serial device and starts the writer.
func OpenLCD(device string, baud int, log *zap.Logger) (*LCD, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open lcd %s: %w", device, err)
	}
	l := &LCD{
		port:  port,
		log:   log,
		queue: make(chan []byte, 8),
		done:  make(chan struct{}),
	}
	go l.writeLoop()
	return l, nil
}

func (l *LCD) Render(snap *state.PatchSnapshot) error {
	frame := encodeLCDFrame(snap)
	for {
		select {
		case l.queue <- frame:
			return nil
		default:
		}
		select {
		case <-l.queue: // drop oldest
		default:
		}
	}
}

func (l *LCD) writeLoop() {
	for frame := range l.queue {
		if _, err := l.port.Write(frame); err != nil {
			l.log.Warn("lcd write failed", zap.Error(err))
		}
	}
	close(l.done)
}

// Close stops the writer and releases the serial port.
func (l *LCD) Close() error {
	close(l.queue)
	<-l.done
	return l.port.Close()
}

func encodeLCDFrame(snap *state.PatchSnapshot) []byte {
	var cmd byte
	var payload []byte

	if snap == nil {
		cmd = cmdShowWaiting
	} else {
		cmd = cmdShowPatch
		payload = appendLCDString(payload, snap.PatchName)
		effects := snap.VisibleEffects()
		payload = append(payload, byte(len(effects)))
		for _, slot := range effects {
			enabled := byte(0)
			if slot.Enabled {
				enabled = 1
			}
			payload = append(payload, enabled)
			payload = appendLCDString(payload, slot.Name)
		}
	}

	length := byte(len(payload) + 1) // +1 for CMD byte
	cks := length ^ cmd
	for _, b := range payload {
		cks ^= b
	}

	out := []byte{lcdSOF0, lcdSOF1, length, cmd}
	out = append(out, payload...)
	return append(out, cks)
}

func appendLCDString(dst []byte, s string) []byte {
	raw := []byte(s)
	if len(raw) > lcdNameMax {
		raw = raw[:lcdNameMax]
	}
	dst = append(dst, byte(len(raw)))
	return append(dst, raw...)
}
