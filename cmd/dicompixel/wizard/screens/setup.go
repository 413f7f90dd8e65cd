package screens

import (
	"fmt"
	"os"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/mrsinham/dicompixel/cmd/dicompixel/wizard/components"
	"github.com/mrsinham/dicompixel/cmd/dicompixel/wizard/types"
	"github.com/mrsinham/dicompixel/internal/convert"
)

// SetupScreen collects the conversion settings.
type SetupScreen struct {
	form      *huh.Form
	helpPanel *components.HelpPanel
	state     *types.State
	width     int
	done      bool
	cancelled bool

	// huh binds inputs to strings
	workersStr string
	qualityStr string
}

// NewSetupScreen creates the setup form bound to state.
func NewSetupScreen(state *types.State) *SetupScreen {
	if state.Mode == "" {
		state.Mode = convert.DicomToPng.String()
	}
	if state.Policy == "" {
		state.Policy = convert.FailFast.String()
	}
	if state.JPEGQuality == 0 {
		state.JPEGQuality = 90
	}

	s := &SetupScreen{
		helpPanel:  components.NewHelpPanel(),
		state:      state,
		workersStr: strconv.Itoa(state.Workers),
		qualityStr: strconv.Itoa(state.JPEGQuality),
	}

	modeOptions := make([]huh.Option[string], 0, 4)
	for _, m := range convert.AllModes() {
		modeOptions = append(modeOptions, huh.NewOption(m.Label(), m.String()))
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("mode").
				Title("Conversion").
				Options(modeOptions...).
				Value(&state.Mode),

			huh.NewInput().
				Key("input").
				Title("Input file or directory").
				Value(&state.Input).
				Validate(ValidateInput),

			huh.NewInput().
				Key("output").
				Title("Output root").
				Value(&state.OutputRoot).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("output root is required")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("policy").
				Title("When a file fails").
				Options(
					huh.NewOption("Stop the whole batch", convert.FailFast.String()),
					huh.NewOption("Skip it and continue", convert.PerFile.String()),
				).
				Value(&state.Policy),

			huh.NewInput().
				Key("workers").
				Title("Workers").
				Value(&s.workersStr).
				Validate(ValidateNonNegativeInt),

			huh.NewInput().
				Key("jpeg_quality").
				Title("JPEG quality").
				Value(&s.qualityStr).
				Validate(ValidateQuality),
		),
	).WithShowHelp(false).WithShowErrors(true)

	return s
}

// ValidateInput accepts an existing file or directory.
func ValidateInput(s string) error {
	if s == "" {
		return fmt.Errorf("input is required")
	}
	if _, err := os.Stat(s); err != nil {
		return fmt.Errorf("cannot read %s", s)
	}
	return nil
}

// ValidateNonNegativeInt accepts 0 and positive integers.
func ValidateNonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n < 0 {
		return fmt.Errorf("must be 0 or more")
	}
	return nil
}

// ValidateQuality accepts 1 to 100.
func ValidateQuality(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n < 1 || n > 100 {
		return fmt.Errorf("must be between 1 and 100")
	}
	return nil
}

// Init implements tea.Model
func (s *SetupScreen) Init() tea.Cmd {
	return s.form.Init()
}

// Update implements tea.Model
func (s *SetupScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			s.cancelled = true
			return s, tea.Quit
		}
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.helpPanel.SetWidth(msg.Width / 2)
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if focused := s.form.GetFocusedField(); focused != nil {
		s.helpPanel.SetField(focused.GetKey())
	}

	if s.form.State == huh.StateCompleted {
		s.done = true
		s.syncStateFromForm()
	}

	return s, cmd
}

func (s *SetupScreen) syncStateFromForm() {
	if n, err := strconv.Atoi(s.workersStr); err == nil {
		s.state.Workers = n
	}
	if n, err := strconv.Atoi(s.qualityStr); err == nil {
		s.state.JPEGQuality = n
	}
}

// View implements tea.Model
func (s *SetupScreen) View() string {
	if s.cancelled {
		return "Cancelled.\n"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		components.TitleStyle.Render("DICOMPIXEL WIZARD - Conversion"),
		"",
		s.form.View(),
		"",
		s.helpPanel.View(),
		"",
		components.HintStyle.Render("Tab: Next field | Enter: Submit | Esc: Cancel"),
	)
}

// Done returns true if the form was completed
func (s *SetupScreen) Done() bool {
	return s.done
}

// Cancelled returns true if the user cancelled
func (s *SetupScreen) Cancelled() bool {
	return s.cancelled
}
