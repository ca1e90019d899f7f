package config

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guiyumin/mediasnap/internal/core/i18n"
)

const asciiArt = `
 ┌┬┐┌─┐┌┬┐┬┌─┐┌─┐┌┐┌┌─┐┌─┐
 │││├┤  │││├─┤└─┐│││├─┤├─┘
 ┴ ┴└─┘─┴┘┴┴ ┴└─┘┘└┘┴ ┴┴
`

var (
	logoStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	stepStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
	selectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	unselectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	cursorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	inputStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	inputCursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("248")).Width(14)
	valueStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	containerStyle   = lipgloss.NewStyle().Padding(2, 4)
)

type option struct{ label, value string }

// wizardStep describes one screen. Choice steps list options; input steps
// edit free text.
type wizardStep struct {
	title   func(*i18n.Translations) string
	desc    func(*i18n.Translations) string
	options func(*i18n.Translations, *Config) []option
	secret  bool
	load    func(*Config) string
	store   func(*Config, string)
}

func (s wizardStep) isInput() bool { return s.options == nil }

var wizardSteps = []wizardStep{
	{
		title: func(t *i18n.Translations) string { return t.Config.Language },
		desc:  func(t *i18n.Translations) string { return t.Config.LanguageDesc },
		options: func(*i18n.Translations, *Config) []option {
			opts := make([]option, len(i18n.SupportedLanguages))
			for i, lang := range i18n.SupportedLanguages {
				opts[i] = option{lang.Name, lang.Code}
			}
			return opts
		},
		load:  func(c *Config) string { return c.Language },
		store: func(c *Config, v string) { c.Language = v },
	},
	{
		title: func(t *i18n.Translations) string { return t.Config.OutputDir },
		desc:  func(t *i18n.Translations) string { return t.Config.OutputDirDesc },
		load: func(c *Config) string {
			if c.OutputDir == "" {
				return DefaultDownloadDir()
			}
			return c.OutputDir
		},
		store: func(c *Config, v string) {
			if v = strings.TrimSpace(v); v != "" {
				c.OutputDir = v
			}
		},
	},
	{
		title:  func(t *i18n.Translations) string { return t.Config.PartnerKey },
		desc:   func(t *i18n.Translations) string { return t.Config.PartnerKeyDesc },
		secret: true,
		load:   func(c *Config) string { return c.Instagram.PartnerAPIKey },
		store:  func(c *Config, v string) { c.Instagram.PartnerAPIKey = strings.TrimSpace(v) },
	},
	{
		title:   func(t *i18n.Translations) string { return t.Config.Timeout },
		desc:    func(t *i18n.Translations) string { return t.Config.TimeoutDesc },
		options: timeoutOptions,
		load:    func(c *Config) string { return c.UpstreamTimeout().String() },
		store: func(c *Config, v string) {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.Timeout = d
			}
		},
	},
	{
		title: func(t *i18n.Translations) string { return t.Config.Confirm },
		desc:  func(t *i18n.Translations) string { return t.Config.ConfirmDesc },
		options: func(t *i18n.Translations, _ *Config) []option {
			return []option{{t.Config.YesSave, "yes"}, {t.Config.NoCancel, "no"}}
		},
		load:  func(*Config) string { return "yes" },
		store: func(*Config, string) {},
	},
}

// timeoutOptions offers the presets plus the configured value when it is
// not one of them
func timeoutOptions(t *i18n.Translations, c *Config) []option {
	opts := []option{
		{"10s", "10s"},
		{"15s " + t.Config.Recommended, DefaultTimeout.String()},
		{"30s", "30s"},
		{"60s", "1m0s"},
	}
	current := c.UpstreamTimeout().String()
	for _, o := range opts {
		if o.value == current {
			return opts
		}
	}
	return append(opts, option{current, current})
}

type model struct {
	step      int
	cursor    int
	config    *Config
	confirmed bool
	cancelled bool
	input     []rune
	width     int
	height    int
}

func initialModel(cfg *Config) model {
	m := model{config: cfg}
	m.enterStep(0)
	return m
}

func (m *model) t() *i18n.Translations {
	return i18n.GetTranslations(m.config.Language)
}

func (m *model) current() wizardStep {
	return wizardSteps[m.step]
}

func (m *model) options() []option {
	s := m.current()
	if s.isInput() {
		return nil
	}
	return s.options(m.t(), m.config)
}

// enterStep moves to step i and positions the cursor on the stored value
func (m *model) enterStep(i int) {
	m.step = i
	m.cursor = 0
	value := m.current().load(m.config)
	if m.current().isInput() {
		m.input = []rune(value)
		return
	}
	for j, opt := range m.options() {
		if opt.value == value {
			m.cursor = j
			break
		}
	}
}

func (m *model) commit() {
	s := m.current()
	if s.isInput() {
		s.store(m.config, string(m.input))
		return
	}
	if opts := m.options(); m.cursor < len(opts) {
		s.store(m.config, opts[m.cursor].value)
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		input := m.current().isInput()
		if input && msg.Type == tea.KeyRunes {
			m.input = append(m.input, msg.Runes...)
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit

		case "left":
			if m.step > 0 {
				m.commit()
				m.enterStep(m.step - 1)
			}

		case "right", "enter":
			m.commit()
			if m.step == len(wizardSteps)-1 {
				m.confirmed = m.cursor == 0
				m.cancelled = !m.confirmed
				return m, tea.Quit
			}
			m.enterStep(m.step + 1)

		case "up", "k":
			if n := len(m.options()); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
			}

		case "down", "j":
			if n := len(m.options()); n > 0 {
				m.cursor = (m.cursor + 1) % n
			}

		case "backspace":
			if input && len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
		}
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	t := m.t()

	// Logo
	b.WriteString(logoStyle.Render(asciiArt))
	b.WriteString("\n\n")

	// Progress indicator
	progress := fmt.Sprintf(t.Config.StepOf, m.step+1, len(wizardSteps))
	b.WriteString(stepStyle.Render(progress))
	b.WriteString("\n\n")

	// Title
	step := m.current()
	b.WriteString(titleStyle.Render(step.title(t)))
	b.WriteString("\n")
	b.WriteString(stepStyle.Render(step.desc(t)))
	b.WriteString("\n\n")

	// Content
	if m.step == len(wizardSteps)-1 {
		b.WriteString(m.renderReview())
		b.WriteString("\n")
	}

	if step.isInput() {
		value := string(m.input)
		if step.secret {
			value = MaskSecret(value)
		}
		b.WriteString(inputCursorStyle.Render("> "))
		b.WriteString(inputStyle.Render(value))
		b.WriteString(inputCursorStyle.Render("█"))
		b.WriteString("\n")
	} else {
		for i, opt := range m.options() {
			cursor := "  "
			style := unselectedStyle
			if i == m.cursor {
				cursor = cursorStyle.Render("> ")
				style = selectedStyle
			}
			b.WriteString(cursor)
			b.WriteString(style.Render(opt.label))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	help := fmt.Sprintf("← %s • → %s • ↑↓ %s • enter %s • esc %s",
		t.Help.Back, t.Help.Next, t.Help.Select, t.Help.Confirm, t.Help.Quit)
	b.WriteString(helpStyle.Render(help))

	content := containerStyle.Render(b.String())
	if m.width > 0 && m.height > 0 {
		content = lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, content)
	}

	return content
}

func (m model) renderReview() string {
	var b strings.Builder
	t := m.t()

	outputDir := m.config.OutputDir
	if outputDir == "" {
		outputDir = DefaultDownloadDir()
	}

	partnerKey := MaskSecret(m.config.Instagram.PartnerAPIKey)
	if partnerKey == "" {
		partnerKey = t.Config.NotSet
	}

	lines := []option{
		{t.ConfigReview.Language, getLanguageName(m.config.Language)},
		{t.ConfigReview.OutputDir, outputDir},
		{t.ConfigReview.PartnerKey, partnerKey},
		{t.ConfigReview.Timeout, m.config.UpstreamTimeout().String()},
	}

	for _, line := range lines {
		b.WriteString(labelStyle.Render(line.label + ":"))
		b.WriteString(valueStyle.Render(line.value))
		b.WriteString("\n")
	}

	return b.String()
}

// RunInitWizard runs an interactive TUI wizard to configure mediasnap
func RunInitWizard() (*Config, error) {
	finalModel, err := tea.NewProgram(initialModel(LoadOrDefault()), tea.WithAltScreen()).Run()
	if err != nil {
		return nil, err
	}

	result := finalModel.(model)
	if result.cancelled {
		return nil, fmt.Errorf("configuration cancelled")
	}

	if result.config.OutputDir == "" {
		result.config.OutputDir = DefaultDownloadDir()
	}

	return result.config, nil
}

func getLanguageName(code string) string {
	for _, lang := range i18n.SupportedLanguages {
		if lang.Code == code {
			return lang.Name
		}
	}
	return code
}

// MaskSecret keeps the last four characters of a credential visible
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
