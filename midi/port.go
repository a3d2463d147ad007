package midi

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"go.uber.org/zap"
)

// Port is a duplex message channel to one MIDI endpoint. Send writes a
// complete SysEx frame (0xF0..0xF7 inclusive); incoming messages arrive on
// the callback supplied at open time. Close is idempotent.
type Port interface {
	Send(frame []byte) error
	Close() error
}

type portConn struct {
	in   drivers.In
	out  drivers.Out
	send func(gomidi.Message) error
	stop func()

	mu     sync.Mutex
	closed bool
}

// OpenSysExPort opens the endpoint's port pair for vendor SysEx traffic.
// Each inbound SysEx message is delivered to onFrame as a full frame
// including delimiters; the callback runs on the driver's listener
// goroutine and must not block.
func OpenSysExPort(ep Endpoint, onFrame func(frame []byte), log *zap.Logger) (Port, error) {
	in, out, err := resolvePorts(ep)
	if err != nil {
		return nil, err
	}

	p := &portConn{in: in, out: out}
	if out != nil {
		send, err := gomidi.SendTo(out)
		if err != nil {
			return nil, fmt.Errorf("open output %q: %w", ep.OutPort, err)
		}
		p.send = send
	}

	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		var data []byte
		if !msg.GetSysEx(&data) {
			return
		}
		frame := make([]byte, 0, len(data)+2)
		frame = append(frame, 0xF0)
		frame = append(frame, data...)
		frame = append(frame, 0xF7)
		onFrame(frame)
	}, gomidi.UseSysEx(), gomidi.HandleError(func(listenErr error) {
		log.Warn("sysex listener error", zap.String("port", ep.InPort), zap.Error(listenErr))
	}))
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", ep.InPort, err)
	}
	p.stop = stop
	return p, nil
}

// OpenNotePort opens an input-only connection delivering note events. Both
// note-on and note-off are forwarded; note-off arrives with velocity 0 so
// the dispatcher can apply momentary-switch semantics in one place.
func OpenNotePort(ep Endpoint, onNote func(note, velocity uint8), log *zap.Logger) (Port, error) {
	in, _, err := resolvePorts(ep)
	if err != nil {
		return nil, err
	}

	p := &portConn{in: in}
	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		var channel, note, velocity uint8
		switch {
		case msg.GetNoteOn(&channel, &note, &velocity):
			onNote(note, velocity)
		case msg.GetNoteOff(&channel, &note, &velocity):
			onNote(note, 0)
		}
	}, gomidi.HandleError(func(listenErr error) {
		log.Warn("note listener error", zap.String("port", ep.InPort), zap.Error(listenErr))
	}))
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", ep.InPort, err)
	}
	p.stop = stop
	return p, nil
}

func (p *portConn) Send(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("send on closed port")
	}
	if p.send == nil {
		return fmt.Errorf("port has no output")
	}
	if len(frame) >= 2 && frame[0] == 0xF0 && frame[len(frame)-1] == 0xF7 {
		// gomidi adds the delimiters itself.
		return p.send(gomidi.SysEx(frame[1 : len(frame)-1]))
	}
	return p.send(gomidi.Message(frame))
}

func (p *portConn) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.stop != nil {
		p.stop()
	}
	if p.in != nil {
		_ = p.in.Close()
	}
	if p.out != nil {
		_ = p.out.Close()
	}
	return nil
}

func resolvePorts(ep Endpoint) (drivers.In, drivers.Out, error) {
	var in drivers.In
	for _, candidate := range gomidi.GetInPorts() {
		if candidate.String() == ep.InPort {
			in = candidate
			break
		}
	}
	if in == nil {
		return nil, nil, fmt.Errorf("input port %q not found", ep.InPort)
	}

	var out drivers.Out
	if ep.OutPort != "" {
		for _, candidate := range gomidi.GetOutPorts() {
			if candidate.String() == ep.OutPort {
				out = candidate
				break
			}
		}
		if out == nil {
			return nil, nil, fmt.Errorf("output port %q not found", ep.OutPort)
		}
	}
	return in, out, nil
}

// CloseDriver releases the underlying MIDI driver. Call once on shutdown.
func CloseDriver() {
	gomidi.CloseDriver()
}
