package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"pedalhost/state"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fff"))
	enabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5f5"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	waitStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888")).Italic(true)
)

// Console prints each snapshot to a writer. Suitable for running as a
// headless service where stdout lands in the journal.
type Console struct {
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Render(snap *state.PatchSnapshot) error {
	_, err := io.WriteString(c.out, formatSnapshot(snap)+"\n")
	return err
}

// formatSnapshot builds the one-block text view shared by the console sink
// and the TUI. The input stage (slot 0) is not an effect and is skipped.
func formatSnapshot(snap *state.PatchSnapshot) string {
	if snap == nil {
		return waitStyle.Render("waiting for pedal...")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(snap.PatchName))
	b.WriteString("\n")

	effects := snap.VisibleEffects()
	if len(effects) == 0 {
		b.WriteString(dimStyle.Render("  (empty chain)"))
		return b.String()
	}
	for _, slot := range effects {
		line := fmt.Sprintf("  %d. %s", slot.Index, slot.Name)
		if slot.Enabled {
			b.WriteString(enabledStyle.Render(line))
		} else {
			b.WriteString(dimStyle.Render(line + "  (bypassed)"))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
