// Package render contains the sinks that display patch snapshots: a styled
// console printer, an interactive terminal UI and a serial-attached LCD
// panel.
package render

import "pedalhost/state"

// Sink receives the current patch snapshot on every change. A nil snapshot
// means no pedal is connected and the sink should show a waiting state.
// Render must return quickly; sinks with slow targets hand the work off
// internally so they never stall the session loop.
type Sink interface {
	Render(snap *state.PatchSnapshot) error
}
