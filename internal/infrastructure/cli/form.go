package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/felixgeelhaar/qualify/pkg/application"
	"github.com/felixgeelhaar/qualify/pkg/domain/generation"
	"github.com/spf13/cobra"
)

var formTemplate string

var formCmd = &cobra.Command{
	Use:   "form",
	Short: "Interactive form for generating questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir(newLogger(os.Stderr))
		if err != nil {
			return err
		}
		if os.Getenv("QUALIFY_SKIP_FORM_RUN") == "true" {
			return nil
		}
		defer services.Wait()

		title := "Generate Questions"
		if t, err := services.Generation.Templates().Get(formTemplate); err == nil && t.Title != "" {
			title = t.Title
		}

		m := newFormModel(services.Generation, formTemplate, title)
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("form run failed: %w", err)
		}
		return nil
	},
}

func init() {
	formCmd.Flags().StringVarP(&formTemplate, "template", "t", "", "Prompt template name")
	RootCmd.AddCommand(formCmd)
}

type formGenerator interface {
	GenerateObserved(ctx context.Context, req generation.Request, obs application.Observer) (*generation.Result, error)
}

type formPhase int

const (
	phaseInput formPhase = iota
	phaseGenerating
	phaseDone
)

const (
	focusSituation = iota
	focusCount
)

type attemptMsg application.AttemptEvent

type resultMsg struct {
	res *generation.Result
	err error
}

// chanObserver forwards progress into the program. Sends never block; the
// buffer holds every event a run can emit.
type chanObserver struct {
	ch chan<- tea.Msg
}

func (o chanObserver) AttemptStarted(e application.AttemptEvent)  { o.send(attemptMsg(e)) }
func (o chanObserver) AttemptFinished(e application.AttemptEvent) { o.send(attemptMsg(e)) }
func (o chanObserver) RunFinished(*generation.Result, error)      {}

func (o chanObserver) send(msg tea.Msg) {
	select {
	case o.ch <- msg:
	default:
	}
}

var (
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	blurredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type formModel struct {
	gen      formGenerator
	template string
	title    string

	situation  textarea.Model
	count      textinput.Model
	focusIndex int
	spinner    spinner.Model

	phase    formPhase
	events   chan tea.Msg
	cancel   context.CancelFunc
	progress string
	result   *generation.Result
	err      error
	width    int
}

func newFormModel(gen formGenerator, template, title string) formModel {
	ta := textarea.New()
	ta.Placeholder = "e.g., Client is struggling with patient data management"
	ta.ShowLineNumbers = false
	ta.CharLimit = 2000
	ta.SetWidth(70)
	ta.SetHeight(4)
	ta.Focus()

	ti := textinput.New()
	ti.CharLimit = 2
	ti.Width = 4
	ti.SetValue(strconv.Itoa(generation.DefaultCount))

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = focusedStyle

	return formModel{
		gen:       gen,
		template:  template,
		title:     title,
		situation: ta,
		count:     ti,
		spinner:   sp,
	}
}

func (m formModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m formModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	}

	switch m.phase {
	case phaseGenerating:
		return m.updateGenerating(msg)
	case phaseDone:
		return m.updateDone(msg)
	}
	return m.updateInput(msg)
}

func (m formModel) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			return m, tea.Quit
		case "tab", "shift+tab":
			m.focusIndex = 1 - m.focusIndex
			return m, m.updateFocus()
		case "ctrl+s":
			return m.submit()
		case "enter":
			if m.focusIndex == focusCount {
				return m.submit()
			}
		}
	}

	var cmd tea.Cmd
	if m.focusIndex == focusSituation {
		m.situation, cmd = m.situation.Update(msg)
	} else {
		m.count, cmd = m.count.Update(msg)
	}
	return m, cmd
}

func (m *formModel) updateFocus() tea.Cmd {
	if m.focusIndex == focusSituation {
		m.count.Blur()
		m.count.PromptStyle = blurredStyle
		return m.situation.Focus()
	}
	m.situation.Blur()
	m.count.PromptStyle = focusedStyle
	return m.count.Focus()
}

func (m formModel) request() (generation.Request, error) {
	req := generation.Request{
		Situation: m.situation.Value(),
		Template:  m.template,
	}
	if strings.TrimSpace(req.Situation) == "" {
		return req, errors.New("please enter a client situation or pain point")
	}
	n, err := strconv.Atoi(strings.TrimSpace(m.count.Value()))
	if err != nil {
		return req, fmt.Errorf("number of questions must be a whole number between %d and %d", generation.MinCount, generation.MaxCount)
	}
	req.Count = n
	return req, nil
}

func (m formModel) submit() (tea.Model, tea.Cmd) {
	req, err := m.request()
	if err != nil {
		m.err = err
		return m, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan tea.Msg, 2*generation.MaxAttempts+2)
	gen := m.gen
	go func() {
		res, err := gen.GenerateObserved(ctx, req, chanObserver{ch: events})
		events <- resultMsg{res: res, err: err}
		close(events)
	}()

	m.phase = phaseGenerating
	m.events = events
	m.cancel = cancel
	m.err = nil
	m.result = nil
	m.progress = "Starting..."
	return m, tea.Batch(m.spinner.Tick, waitForEvent(events))
}

func waitForEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m formModel) updateGenerating(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case attemptMsg:
		m.progress = describeAttempt(application.AttemptEvent(msg))
		return m, waitForEvent(m.events)
	case resultMsg:
		m.phase = phaseDone
		m.result = msg.res
		m.err = msg.err
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		return m, nil
	}
	return m, nil
}

func describeAttempt(e application.AttemptEvent) string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("Attempt %d/%d failed", e.Attempt, e.MaxAttempts)
	case e.State == generation.StateRetrying:
		return fmt.Sprintf("Attempt %d/%d returned %d of %d questions, retrying...", e.Attempt, e.MaxAttempts, e.Received, e.Requested)
	case e.Received > 0:
		return fmt.Sprintf("Attempt %d/%d returned %d questions", e.Attempt, e.MaxAttempts, e.Received)
	default:
		return fmt.Sprintf("Attempt %d/%d: waiting for the AI provider...", e.Attempt, e.MaxAttempts)
	}
}

func (m formModel) updateDone(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "q", "esc":
			return m, tea.Quit
		case "n", "enter":
			m.phase = phaseInput
			m.focusIndex = focusSituation
			return m, m.updateFocus()
		}
	}
	return m, nil
}

func (m formModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	switch m.phase {
	case phaseGenerating:
		fmt.Fprintf(&b, "%s Generating questions...\n\n%s\n", m.spinner.View(), helpStyle.Render(m.progress))
		b.WriteString(helpStyle.Render("\nctrl+c to cancel"))
		return b.String()

	case phaseDone:
		if m.err != nil {
			printError(&b, MapError(m.err))
		} else if m.result != nil {
			printResult(&b, m.situation.Value(), m.result)
		}
		b.WriteString(helpStyle.Render("\nenter/n: new request • q: quit"))
		return b.String()
	}

	label := blurredStyle
	if m.focusIndex == focusSituation {
		label = focusedStyle
	}
	b.WriteString(label.Render("Client situation or pain point:"))
	b.WriteString("\n")
	b.WriteString(m.situation.View())
	b.WriteString("\n\n")

	label = blurredStyle
	if m.focusIndex == focusCount {
		label = focusedStyle
	}
	fmt.Fprintf(&b, "%s %s\n", label.Render(fmt.Sprintf("Number of questions (%d-%d):", generation.MinCount, generation.MaxCount)), m.count.View())

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("\ntab: switch field • ctrl+s: generate • esc: quit"))
	return b.String()
}
