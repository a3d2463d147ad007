// pedaltest is a manual probe for the pedal protocol: list ports, detect
// the configured devices, dump the current patch, toggle a slot.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"pedalhost/config"
	"pedalhost/sysex"
)

func main() {
	defer gomidi.CloseDriver()

	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "detect":
		detect()
	case "dump":
		dump()
	case "toggle":
		toggle()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("pedaltest - pedal protocol probe")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list               - List all MIDI ports")
	fmt.Println("  detect             - Find the pedal and footswitch by signature")
	fmt.Println("  dump               - Request and print the current patch chain")
	fmt.Println("  toggle <slot> <on|off> - Toggle one effect slot")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	for i, p := range gomidi.GetInPorts() {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, p := range gomidi.GetOutPorts() {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
}

func detect() {
	cfg := mustConfig()

	in, out := findPorts(cfg.Pedal.Keywords)
	report("pedal", in, out)
	in, out = findPorts(cfg.Footswitch.Keywords)
	report("footswitch", in, out)
}

func report(role string, in drivers.In, out drivers.Out) {
	if in == nil {
		fmt.Printf("%s: not found\n", role)
		return
	}
	outName := "-"
	if out != nil {
		outName = out.String()
	}
	fmt.Printf("%s: in=%q out=%q\n", role, in.String(), outName)
}

func dump() {
	cfg := mustConfig()
	in, out := findPorts(cfg.Pedal.Keywords)
	if in == nil || out == nil {
		fmt.Println("pedal not found")
		os.Exit(1)
	}

	send, err := gomidi.SendTo(out)
	if err != nil {
		fatal("open output: %v", err)
	}

	replies := make(chan []byte, 8)
	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, ts int32) {
		var data []byte
		if msg.GetSysEx(&data) {
			frame := append([]byte{0xF0}, data...)
			replies <- append(frame, 0xF7)
		}
	}, gomidi.UseSysEx())
	if err != nil {
		fatal("listen: %v", err)
	}
	defer stop()

	sendFrame(send, sysex.Handshake())
	sendFrame(send, sysex.ParameterEditEnable())
	sendFrame(send, sysex.RequestCurrentPatch())
	defer sendFrame(send, sysex.ParameterEditDisable())

	deadline := time.After(2 * time.Second)
	for {
		select {
		case frame := <-replies:
			ev, err := sysex.Decode(frame)
			if err != nil {
				fmt.Printf("malformed reply (%d bytes): %v\n", len(frame), err)
				continue
			}
			reply, ok := ev.(sysex.PatchReply)
			if !ok {
				fmt.Printf("skipping %T\n", ev)
				continue
			}
			fmt.Printf("patch: %q\n", reply.PatchName)
			for _, slot := range reply.Slots {
				stateStr := "bypassed"
				if slot.Enabled {
					stateStr = "enabled"
				}
				fmt.Printf("  slot %d: %-20s id=0x%08X %s\n", slot.Index, slot.Name, slot.EffectID, stateStr)
			}
			return
		case <-deadline:
			fmt.Println("no patch reply within 2s")
			return
		}
	}
}

func toggle() {
	if len(os.Args) < 4 {
		usage()
		os.Exit(1)
	}
	slot, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fatal("bad slot %q", os.Args[2])
	}
	enabled := os.Args[3] == "on"

	cfg := mustConfig()
	_, out := findPorts(cfg.Pedal.Keywords)
	if out == nil {
		fmt.Println("pedal not found")
		os.Exit(1)
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		fatal("open output: %v", err)
	}
	sendFrame(send, sysex.ParameterEditEnable())
	sendFrame(send, sysex.SetSlotEnabled(slot, enabled))
	fmt.Printf("sent toggle slot=%d enabled=%v\n", slot, enabled)
}

func mustConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fatal("load config: %v", err)
	}
	return cfg
}

func findPorts(keywords []string) (drivers.In, drivers.Out) {
	var in drivers.In
	for _, p := range gomidi.GetInPorts() {
		if matches(p.String(), keywords) {
			in = p
			break
		}
	}
	var out drivers.Out
	for _, p := range gomidi.GetOutPorts() {
		if matches(p.String(), keywords) {
			out = p
			break
		}
	}
	return in, out
}

func matches(name string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(strings.ToLower(name), strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func sendFrame(send func(gomidi.Message) error, frame []byte) {
	if err := send(gomidi.SysEx(frame[1 : len(frame)-1])); err != nil {
		fmt.Printf("send failed: %v\n", err)
	}
}

func fatal(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}
