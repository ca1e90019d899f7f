package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/guiyumin/mediasnap/internal/core/i18n"
)

var (
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	doneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
)

// taskState holds the outcome of a background task
type taskState[T any] struct {
	mu     sync.RWMutex
	done   bool
	err    error
	result T
}

func (s *taskState[T]) finish(result T, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.result = result
	s.err = err
}

func (s *taskState[T]) get() (bool, T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done, s.result, s.err
}

type spinnerTickMsg time.Time

type spinnerModel[T any] struct {
	spinner spinner.Model
	t       *i18n.Translations
	url     string
	state   *taskState[T]
	cancel  context.CancelFunc
}

func spinnerTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return spinnerTickMsg(t)
	})
}

func (m spinnerModel[T]) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, spinnerTickCmd())
}

func (m spinnerModel[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case spinnerTickMsg:
		if done, _, _ := m.state.get(); done {
			return m, tea.Quit
		}
		return m, spinnerTickCmd()
	}

	return m, nil
}

func (m spinnerModel[T]) View() string {
	done, _, err := m.state.get()
	switch {
	case err != nil:
		return fmt.Sprintf("\n  %s %s\n\n", errStyle.Render("✗"), infoStyle.Render(m.url))
	case done:
		return fmt.Sprintf("\n  %s %s\n", doneStyle.Render("✓"), infoStyle.Render(m.url))
	}
	return fmt.Sprintf("\n  %s %s %s\n\n",
		m.spinner.View(),
		m.t.Resolve.Resolving,
		infoStyle.Render(m.url),
	)
}

// runWithSpinner runs fn in the background while showing a spinner. Quitting
// the spinner cancels fn's context.
func runWithSpinner[T any](ctx context.Context, url, lang string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := &taskState[T]{}
	go func() {
		state.finish(fn(ctx))
	}()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	model := spinnerModel[T]{
		spinner: s,
		t:       i18n.T(lang),
		url:     url,
		state:   state,
		cancel:  cancel,
	}

	var zero T
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return zero, err
	}

	done, result, err := state.get()
	if err != nil {
		return zero, err
	}
	if !done {
		return zero, context.Canceled
	}
	return result, nil
}
