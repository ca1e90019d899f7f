package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/guiyumin/mediasnap/internal/core/i18n"
	"github.com/guiyumin/mediasnap/internal/core/relay"
)

var helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

// transferState holds the shared progress of a relay to disk
type transferState struct {
	mu        sync.RWMutex
	current   int64
	total     int64
	done      bool
	err       error
	startTime time.Time
	endTime   time.Time
}

func (s *transferState) add(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current += int64(n)
}

func (s *transferState) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endTime = time.Now()
	s.err = err
	s.done = true
}

func (s *transferState) get() (current, total int64, done bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.total, s.done, s.err
}

// speed returns the average bytes per second so far
func (s *transferState) speed() (time.Duration, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	end := s.endTime
	if end.IsZero() {
		end = time.Now()
	}
	elapsed := end.Sub(s.startTime)
	if elapsed <= 0 {
		return 0, 0
	}
	return elapsed, float64(s.current) / elapsed.Seconds()
}

// countingWriter reports every write to the transfer state
type countingWriter struct {
	f     *os.File
	state *transferState
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	w.state.add(n)
	return n, err
}

type progressTickMsg time.Time

type progressModel struct {
	progress progress.Model
	spinner  spinner.Model
	t        *i18n.Translations
	output   string
	state    *transferState
	cancel   context.CancelFunc
}

func progressTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, progressTickCmd())
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			return m, nil
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case progressTickMsg:
		current, total, done, _ := m.state.get()
		if done {
			return m, tea.Quit
		}
		cmds := []tea.Cmd{progressTickCmd()}
		if total > 0 {
			cmds = append(cmds, m.progress.SetPercent(float64(current)/float64(total)))
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m progressModel) View() string {
	current, total, done, err := m.state.get()
	elapsed, speed := m.state.speed()

	if err != nil {
		return fmt.Sprintf("\n  %s %s: %s\n\n", errStyle.Render("✗"), m.t.Resolve.Failed, userMessage(m.t, err))
	}

	if done {
		displayPath := m.output
		if abs, err := filepath.Abs(displayPath); err == nil {
			displayPath = abs
		}
		return fmt.Sprintf("\n  %s %s: %s (%s)\n  %s: %s  |  %s: %s/s\n\n",
			doneStyle.Render("✓"),
			m.t.Resolve.SavedTo,
			displayPath,
			humanize.Bytes(uint64(current)),
			m.t.Resolve.Elapsed,
			elapsed.Round(time.Second),
			m.t.Resolve.Speed,
			humanize.Bytes(uint64(speed)),
		)
	}

	s := fmt.Sprintf("\n  %s %s: %s\n\n", m.spinner.View(), m.t.Resolve.Streaming, infoStyle.Render(filepath.Base(m.output)))
	s += fmt.Sprintf("  %s\n\n", m.progress.View())

	sizeLabel := m.t.Resolve.Unknown
	if total > 0 {
		sizeLabel = humanize.Bytes(uint64(total))
	}
	s += fmt.Sprintf("  %s / %s  |  %s: %s/s\n\n",
		humanize.Bytes(uint64(current)),
		sizeLabel,
		m.t.Resolve.Speed,
		humanize.Bytes(uint64(speed)),
	)
	s += helpStyle.Render("  "+m.t.Resolve.CancelHint) + "\n"
	return s
}

// saveStream copies an opened stream to output. A failed or cancelled
// transfer leaves no partial file behind.
func saveStream(ctx context.Context, s *relay.Stream, output, lang string, interactive bool) error {
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Cancelling ctx releases the upstream and fails the pending copy
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	state := &transferState{total: s.ContentLength, startTime: time.Now()}
	w := &countingWriter{f: f, state: state}

	copyDone := make(chan struct{})
	go func() {
		defer close(copyDone)
		_, err := s.WriteTo(w)
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to write file: %w", cerr)
		}
		state.finish(err)
	}()

	if interactive {
		bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(50))
		sp := spinner.New()
		sp.Spinner = spinner.Dot
		sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

		model := progressModel{
			progress: bar,
			spinner:  sp,
			t:        i18n.T(lang),
			output:   output,
			state:    state,
			cancel:   cancel,
		}
		if _, err := tea.NewProgram(model).Run(); err != nil {
			cancel()
		}
	}
	<-copyDone

	if _, _, _, err := state.get(); err != nil {
		os.Remove(output)
		return err
	}
	return nil
}
