package cli

import (
	"context"
	"fmt"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/memdedup-go/internal/engine"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// pairProgressMsg carries pair-scoring progress pushed from the engine.
type pairProgressMsg struct {
	done  int
	total int
}

// runFinishedMsg carries the final run outcome.
type runFinishedMsg struct {
	result *engine.RunResult
	err    error
}

// runProgressModel is the bubbletea model for a deduplication run.
type runProgressModel struct {
	cancel   context.CancelFunc
	progress progress.Model
	theme    Theme
	done     int
	total    int
	finished bool
	quitting bool
	result   *engine.RunResult
	err      error
}

func newRunProgressModel(cancel context.CancelFunc) runProgressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return runProgressModel{
		cancel:   cancel,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command.
func (m runProgressModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m runProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Cancel the run and wait for the engine to unwind; it
			// returns through runFinishedMsg like any other outcome.
			m.quitting = true
			m.cancel()
			return m, nil
		}

	case pairProgressMsg:
		m.done = msg.done
		m.total = msg.total
		return m, nil

	case runFinishedMsg:
		m.finished = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		// Update progress bar animation
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m runProgressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m runProgressModel) renderContent() string {
	if m.finished {
		return m.finalView()
	}

	if m.total == 0 {
		return "Scanning memories...\n"
	}

	var pct float64
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}

	label := "[scoring]"
	if m.quitting {
		label = "[cancelling]"
	}
	status := m.theme.statusStyle().Render(label)

	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d pairs", m.done, m.total)

	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel")

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, hint)
}

// finalView renders the completion message.
func (m runProgressModel) finalView() string {
	if m.err != nil {
		if m.quitting {
			return m.theme.hintStyle().Render("\nRun cancelled. Completed scores were not persisted.\n")
		}
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Run failed: %s\n", m.err))
	}
	return m.theme.completedStyle().Render("✓ Detection complete") + "\n"
}

// runWithProgress runs the deduplication with an interactive progress bar.
// The engine runs in its own goroutine and pushes updates into the UI.
func runWithProgress(ctx context.Context, eng *engine.Engine, opts engine.RunOptions) (*engine.RunResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newRunProgressModel(cancel))

	opts.OnProgress = func(done, total int) {
		p.Send(pairProgressMsg{done: done, total: total})
	}

	go func() {
		result, err := eng.RunDeduplication(runCtx, opts)
		p.Send(runFinishedMsg{result: result, err: err})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	m, ok := finalModel.(runProgressModel)
	if !ok {
		return nil, fmt.Errorf("unexpected progress model type")
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}
