package screens

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/mrsinham/dicompixel/cmd/dicompixel/wizard/components"
	"github.com/mrsinham/dicompixel/cmd/dicompixel/wizard/types"
	"github.com/mrsinham/dicompixel/internal/convert"
)

// SummaryAction is the choice made on the summary screen.
type SummaryAction string

const (
	ActionConvert    SummaryAction = "convert"
	ActionSaveConfig SummaryAction = "save_config"
	ActionBack       SummaryAction = "back"
	ActionCancel     SummaryAction = "cancel"
)

var (
	summaryPanelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Padding(1, 2)

	summaryLabelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	summaryValueStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")).
		Bold(true)

	cliCommandStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1)
)

// SummaryScreen shows the settings and the equivalent command line.
type SummaryScreen struct {
	form      *huh.Form
	state     *types.State
	inputs    int // files found in the input, -1 when unknown
	action    string
	done      bool
	cancelled bool
}

// NewSummaryScreen creates a new summary screen
func NewSummaryScreen(state *types.State) *SummaryScreen {
	s := &SummaryScreen{
		state:  state,
		inputs: -1,
		action: string(ActionConvert),
	}
	if files, err := convert.ListInputs(state.Input); err == nil {
		s.inputs = len(files)
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("action").
				Title("Select an action").
				Options(
					huh.NewOption("Convert", string(ActionConvert)),
					huh.NewOption("Save configuration to YAML", string(ActionSaveConfig)),
					huh.NewOption("Back to edit", string(ActionBack)),
					huh.NewOption("Cancel and exit", string(ActionCancel)),
				).
				Value(&s.action),
		),
	).WithShowHelp(false)

	return s
}

// Init implements tea.Model
func (s *SummaryScreen) Init() tea.Cmd {
	return s.form.Init()
}

// Update implements tea.Model
func (s *SummaryScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c":
			s.cancelled = true
			return s, tea.Quit
		case "esc":
			s.action = string(ActionBack)
			s.done = true
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.done = true
	}

	return s, cmd
}

// View implements tea.Model
func (s *SummaryScreen) View() string {
	if s.cancelled {
		return "Cancelled.\n"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		components.TitleStyle.Render("SUMMARY - Review Configuration"),
		"",
		summaryPanelStyle.Width(60).Render(s.buildParameterSummary()),
		"",
		components.SubtitleStyle.Render("Equivalent command:"),
		cliCommandStyle.Render(CommandLine(s.state)),
		"",
		s.form.View(),
		"",
		components.HintStyle.Render("Enter: Select action | Esc: Back"),
	)
}

func (s *SummaryScreen) buildParameterSummary() string {
	label := s.state.Mode
	if m, err := convert.ParseMode(s.state.Mode); err == nil {
		label = m.Label()
	}
	files := "unknown"
	if s.inputs >= 0 {
		files = fmt.Sprintf("%d", s.inputs)
	}
	workers := "one per CPU"
	if s.state.Workers > 0 {
		workers = fmt.Sprintf("%d", s.state.Workers)
	}

	rows := []struct{ label, value string }{
		{"Conversion", label},
		{"Input", s.state.Input},
		{"Files", files},
		{"Output root", s.state.OutputRoot},
		{"On failure", s.state.Policy},
		{"Workers", workers},
		{"JPEG quality", fmt.Sprintf("%d", s.state.JPEGQuality)},
	}

	var sb strings.Builder
	for _, r := range rows {
		sb.WriteString(summaryLabelStyle.Render(fmt.Sprintf("%-13s", r.label+":")))
		sb.WriteString(" ")
		sb.WriteString(summaryValueStyle.Render(r.value))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// CommandLine returns the dicompixel invocation matching state.
func CommandLine(state *types.State) string {
	parts := []string{
		"dicompixel",
		"--mode", state.Mode,
		"--input", quoteArg(state.Input),
		"--output", quoteArg(state.OutputRoot),
	}
	if state.Policy == convert.PerFile.String() {
		parts = append(parts, "--keep-going")
	}
	if state.Workers > 0 {
		parts = append(parts, "--workers", fmt.Sprintf("%d", state.Workers))
	}
	if state.JPEGQuality != 0 && state.JPEGQuality != 90 {
		parts = append(parts, "--jpeg-quality", fmt.Sprintf("%d", state.JPEGQuality))
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" || strings.ContainsAny(s, " \t'\"") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// Done returns true once an action was chosen
func (s *SummaryScreen) Done() bool {
	return s.done
}

// Cancelled returns true if the user cancelled
func (s *SummaryScreen) Cancelled() bool {
	return s.cancelled
}

// Action returns the chosen action
func (s *SummaryScreen) Action() SummaryAction {
	return SummaryAction(s.action)
}
