package render

import (
	tea "github.com/charmbracelet/bubbletea"

	"pedalhost/state"
)

// TUI is an interactive sink: a bubbletea program showing the live chain.
// Render hands snapshots to the program's own goroutine via Send, so the
// coordinator never blocks on terminal I/O.
type TUI struct {
	program *tea.Program
}

func NewTUI() *TUI {
	return &TUI{program: tea.NewProgram(tuiModel{}, tea.WithAltScreen())}
}

// Run blocks until the user quits. Call from main.
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Quit asks the program to exit, used on coordinator shutdown.
func (t *TUI) Quit() {
	t.program.Quit()
}

func (t *TUI) Render(snap *state.PatchSnapshot) error {
	t.program.Send(snapshotMsg{snap: snap})
	return nil
}

type snapshotMsg struct {
	snap *state.PatchSnapshot
}

type tuiModel struct {
	snap     *state.PatchSnapshot
	quitting bool
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case snapshotMsg:
		m.snap = msg.snap
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.quitting {
		return ""
	}
	help := dimStyle.Render("q:quit")
	return "\n" + formatSnapshot(m.snap) + "\n\n" + help + "\n"
}
