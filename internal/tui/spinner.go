package tui

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrInterrupted is returned when the user quits the spinner with Ctrl+C.
var ErrInterrupted = errors.New("interrupted")

// WorkFunc is the operation shown behind a spinner. It returns a one-line
// summary printed on success.
type WorkFunc func(ctx context.Context) (string, error)

// spinnerModel shows an animated indicator until its work finishes.
type spinnerModel struct {
	spinner spinner.Model
	message string
	work    WorkFunc
	ctx     context.Context
	cancel  context.CancelFunc

	done   bool
	result string
	err    error
}

// workDoneMsg carries the outcome of the work into the update loop.
type workDoneMsg struct {
	result string
	err    error
}

func newSpinnerModel(ctx context.Context, message string, work WorkFunc) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ctx, cancel := context.WithCancel(ctx)
	return spinnerModel{spinner: s, message: message, work: work, ctx: ctx, cancel: cancel}
}

// Init implements tea.Model.
func (m spinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		result, err := m.work(m.ctx)
		return workDoneMsg{result: result, err: err}
	})
}

// Update implements tea.Model.
func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case workDoneMsg:
		m.done = true
		m.result = msg.result
		if m.err == nil {
			m.err = msg.err
		}
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			// The work observes the cancelled context and reports back.
			m.err = ErrInterrupted
			m.cancel()
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m spinnerModel) View() string {
	if m.done {
		if m.err != nil {
			return ErrorStyle.Render(SymbolCross+" "+m.err.Error()) + "\n"
		}
		return SuccessStyle.Render(SymbolCheck+" "+m.result) + "\n"
	}
	return m.spinner.View() + " " + MessageStyle.Render(m.message)
}

// RunWithSpinner runs work while an animated spinner with message is drawn
// on out, and returns the work's error.
func RunWithSpinner(ctx context.Context, out io.Writer, message string, work WorkFunc) error {
	model := newSpinnerModel(ctx, message, work)
	defer model.cancel()

	final, err := tea.NewProgram(model, tea.WithOutput(out), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	return final.(spinnerModel).err
}
