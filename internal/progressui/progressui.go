// Package progressui shows a running migration as a terminal progress bar.
package progressui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lockplane/storemigrate/internal/migration"
	"github.com/lockplane/storemigrate/internal/tui"
)

const (
	padding  = 2
	maxWidth = 60
)

// StepMsg reports that step of total steps has finished.
type StepMsg struct {
	Step  int
	Total int
}

type doneMsg struct{ err error }

// Model renders one migration.
type Model struct {
	title      string
	step       int
	total      int
	bar        progress.Model
	spinner    spinner.Model
	cancel     context.CancelFunc
	cancelling bool
	done       bool
	err        error
}

// New returns a model titled title. cancel is called when the user asks to
// stop; the migration ends after its current step.
func New(title string, cancel context.CancelFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = tui.Spinner

	return Model{
		title:   title,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxWidth)),
		spinner: s,
		cancel:  cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.done {
				return m, tea.Quit
			}
			if !m.cancelling && m.cancel != nil {
				m.cancelling = true
				m.cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-padding*2-4, maxWidth)
		return m, nil

	case StepMsg:
		m.step, m.total = msg.Step, msg.Total
		return m, m.bar.SetPercent(m.percent())

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) percent() float64 {
	if m.total <= 0 {
		return 1
	}
	return float64(m.step) / float64(m.total)
}

func (m Model) View() string {
	pad := strings.Repeat(" ", padding)
	var b strings.Builder
	b.WriteString(tui.Header(m.title) + "\n\n")

	switch {
	case m.done && m.err == nil:
		b.WriteString(pad + tui.Success(fmt.Sprintf("Migrated in %d step(s)", m.total)) + "\n")
	case m.done && errors.Is(m.err, migration.ErrCancelled):
		b.WriteString(pad + tui.Warning("Migration cancelled; the store was not changed") + "\n")
	case m.done:
		b.WriteString(pad + tui.Failure(m.err.Error()) + "\n")
	default:
		b.WriteString(pad + m.spinner.View() + " " + tui.Label.Render(fmt.Sprintf("Step %d of %d", m.step, m.total)) + "\n")
		b.WriteString(pad + m.bar.ViewAs(m.percent()) + "\n")
		if m.cancelling {
			b.WriteString(tui.Hint(pad+"Cancelling after the current step...") + "\n")
		} else {
			b.WriteString(tui.Hint(pad+"Press q to cancel") + "\n")
		}
	}
	return b.String()
}

// Err is the migration's result once it is done.
func (m Model) Err() error { return m.err }

// Done reports whether the migration has finished.
func (m Model) Done() bool { return m.done }

// Run shows a progress bar while migrate runs. migrate must report through
// the progress func it is given and stop when ctx is cancelled. Run returns
// migrate's error after it has returned.
func Run(ctx context.Context, title string, migrate func(ctx context.Context, progress migration.ProgressFunc) error, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(title, cancel), opts...)
	errCh := make(chan error, 1)
	go func() {
		err := migrate(ctx, func(step, total int) error {
			p.Send(StepMsg{Step: step, Total: total})
			return nil
		})
		errCh <- err
		p.Send(doneMsg{err: err})
	}()

	_, uiErr := p.Run()
	if uiErr != nil {
		// The UI went away; stop the migration between steps.
		cancel()
	}
	err := <-errCh
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return errors.Join(err, fmt.Errorf("progress display failed: %w", uiErr))
	}
	return err
}
