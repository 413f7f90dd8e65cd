package wizard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/mrsinham/dicompixel/cmd/dicompixel/wizard/components"
	"github.com/mrsinham/dicompixel/cmd/dicompixel/wizard/screens"
	"github.com/mrsinham/dicompixel/cmd/dicompixel/wizard/types"
	"github.com/mrsinham/dicompixel/internal/config"
	"github.com/mrsinham/dicompixel/internal/convert"
	"github.com/rs/zerolog"
)

// Phase represents the current phase/screen of the wizard.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseSummary
	PhaseSaveConfig
	PhaseProgress
	PhaseComplete
	PhaseError
)

// Wizard is the main orchestrator for the wizard interface.
type Wizard struct {
	state *types.State
	base  convert.Options

	phase Phase

	setupScreen      *screens.SetupScreen
	summaryScreen    *screens.SummaryScreen
	progressScreen   *screens.ProgressScreen
	completionScreen *screens.CompletionScreen
	errorScreen      *screens.ErrorScreen

	saveConfigForm *huh.Form
	configPath     string
	savedTo        string

	// conversion plumbing
	events chan tea.Msg
	cancel context.CancelFunc

	cancelled bool
	finished  bool
	err       error
}

// NewWizard creates a wizard. base carries the decode and encode settings
// from the main configuration.
func NewWizard(state *types.State, base convert.Options) *Wizard {
	if state == nil {
		state = DefaultState(config.DefaultConfig())
	}

	w := &Wizard{
		state: state,
		base:  base,
		phase: PhaseSetup,
	}
	w.setupScreen = screens.NewSetupScreen(w.state)
	return w
}

// Init implements tea.Model.
func (w *Wizard) Init() tea.Cmd {
	return w.setupScreen.Init()
}

// Update implements tea.Model.
func (w *Wizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch w.phase {
	case PhaseSetup:
		return w.updateSetup(msg)
	case PhaseSummary:
		return w.updateSummary(msg)
	case PhaseSaveConfig:
		return w.updateSaveConfig(msg)
	case PhaseProgress:
		return w.updateProgress(msg)
	case PhaseComplete:
		return w.updateComplete(msg)
	case PhaseError:
		return w.updateError(msg)
	}
	return w, nil
}

// View implements tea.Model.
func (w *Wizard) View() string {
	switch w.phase {
	case PhaseSetup:
		return w.setupScreen.View()
	case PhaseSummary:
		view := w.summaryScreen.View()
		if w.savedTo != "" {
			view += "\n\n" + components.SubtitleStyle.Render("Configuration saved to "+w.savedTo)
		}
		return view
	case PhaseSaveConfig:
		return w.viewSaveConfig()
	case PhaseProgress:
		return w.progressScreen.View()
	case PhaseComplete:
		return w.completionScreen.View()
	case PhaseError:
		return w.errorScreen.View()
	}
	return ""
}

func (w *Wizard) updateSetup(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := w.setupScreen.Update(msg)
	if s, ok := model.(*screens.SetupScreen); ok {
		w.setupScreen = s
	}

	if w.setupScreen.Cancelled() {
		w.cancelled = true
		return w, tea.Quit
	}
	if w.setupScreen.Done() {
		return w.transitionToSummary()
	}
	return w, cmd
}

func (w *Wizard) transitionToSummary() (tea.Model, tea.Cmd) {
	w.phase = PhaseSummary
	w.summaryScreen = screens.NewSummaryScreen(w.state)
	return w, w.summaryScreen.Init()
}

func (w *Wizard) updateSummary(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := w.summaryScreen.Update(msg)
	if s, ok := model.(*screens.SummaryScreen); ok {
		w.summaryScreen = s
	}

	if w.summaryScreen.Cancelled() {
		w.cancelled = true
		return w, tea.Quit
	}
	if !w.summaryScreen.Done() {
		return w, cmd
	}

	switch w.summaryScreen.Action() {
	case screens.ActionConvert:
		return w.startConversion()
	case screens.ActionSaveConfig:
		return w.transitionToSaveConfig()
	case screens.ActionBack:
		w.phase = PhaseSetup
		w.setupScreen = screens.NewSetupScreen(w.state)
		return w, w.setupScreen.Init()
	default:
		w.cancelled = true
		return w, tea.Quit
	}
}

func (w *Wizard) transitionToSaveConfig() (tea.Model, tea.Cmd) {
	w.phase = PhaseSaveConfig
	w.configPath = "dicompixel-wizard.yaml"

	w.saveConfigForm = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("config_path").
				Title("Save configuration to").
				Description("Enter the path for the YAML config file").
				Value(&w.configPath).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("path is required")
					}
					return nil
				}),
		),
	).WithShowHelp(false)

	return w, w.saveConfigForm.Init()
}

func (w *Wizard) updateSaveConfig(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			return w.transitionToSummary()
		case "ctrl+c":
			w.cancelled = true
			return w, tea.Quit
		}
	}

	form, cmd := w.saveConfigForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		w.saveConfigForm = f
	}

	if w.saveConfigForm.State == huh.StateCompleted {
		if err := SaveToYAML(w.state, w.configPath); err != nil {
			w.err = err
			w.phase = PhaseError
			w.errorScreen = screens.NewErrorScreen(err)
			return w, nil
		}
		w.savedTo = w.configPath
		return w.transitionToSummary()
	}

	return w, cmd
}

func (w *Wizard) viewSaveConfig() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		components.TitleStyle.Render("Save Configuration"),
		"",
		w.saveConfigForm.View(),
		"",
		components.HintStyle.Render("Enter: Save | Esc: Back"),
	)
}

// startConversion runs the conversion in the background. Progress and the
// final outcome arrive through w.events, one message per waitForEvent.
func (w *Wizard) startConversion() (tea.Model, tea.Cmd) {
	req, err := ToRequest(w.state)
	if err != nil {
		return w.showError(err)
	}
	opts, err := ToOptions(w.state, w.base)
	if err != nil {
		return w.showError(err)
	}

	total := 0
	if files, err := convert.ListInputs(req.Input); err == nil {
		total = len(files)
	}

	w.phase = PhaseProgress
	w.progressScreen = screens.NewProgressScreen(total)
	w.events = make(chan tea.Msg, 1)

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	go runConversion(ctx, req, opts, w.events)

	return w, waitForEvent(w.events)
}

func runConversion(ctx context.Context, req convert.Request, opts convert.Options, events chan<- tea.Msg) {
	start := time.Now()

	nop := zerolog.Nop()
	opts.Logger = &nop
	opts.ProgressCallback = func(current, total int, path string) {
		select {
		case events <- screens.ProgressMsg{Current: current, Total: total, Path: path}:
		case <-ctx.Done():
		}
	}

	res, err := convert.Run(ctx, req, opts)
	if err != nil {
		events <- screens.ErrorMsg{Error: err}
		return
	}
	events <- completionFor(res, time.Since(start))
}

func completionFor(res *convert.Result, elapsed time.Duration) screens.CompletionMsg {
	msg := screens.CompletionMsg{
		Converted: res.Batch.Succeeded(),
		Duration:  elapsed,
		Output:    res.Path,
		Archived:  res.Archived,
	}
	for _, f := range res.Batch.Failed() {
		msg.Failed = append(msg.Failed, filepath.Base(f.Input))
	}
	if info, err := os.Stat(res.Path); err == nil {
		msg.Size = info.Size()
	}
	return msg
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

func (w *Wizard) showError(err error) (tea.Model, tea.Cmd) {
	w.phase = PhaseError
	w.err = err
	w.errorScreen = screens.NewErrorScreen(err)
	return w, nil
}

func (w *Wizard) updateProgress(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case screens.ProgressMsg:
		w.progressScreen.SetProgress(msg.Current, msg.Total, msg.Path)
		return w, waitForEvent(w.events)

	case screens.CompletionMsg:
		w.phase = PhaseComplete
		w.completionScreen = screens.NewCompletionScreen(msg)
		return w, nil

	case screens.ErrorMsg:
		return w.showError(msg.Error)
	}

	model, cmd := w.progressScreen.Update(msg)
	if ps, ok := model.(*screens.ProgressScreen); ok {
		w.progressScreen = ps
	}

	if w.progressScreen.Cancelled() {
		if w.cancel != nil {
			w.cancel()
		}
		w.cancelled = true
		return w, tea.Quit
	}

	return w, cmd
}

func (w *Wizard) updateComplete(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := w.completionScreen.Update(msg)
	if cs, ok := model.(*screens.CompletionScreen); ok {
		w.completionScreen = cs
	}

	if w.completionScreen.Done() {
		w.finished = true
		return w, tea.Quit
	}
	return w, cmd
}

func (w *Wizard) updateError(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := w.errorScreen.Update(msg)
	if es, ok := model.(*screens.ErrorScreen); ok {
		w.errorScreen = es
	}

	if w.errorScreen.Done() {
		w.finished = true
		return w, tea.Quit
	}
	return w, cmd
}

// Run starts the interactive wizard. If fromConfig is provided, the form is
// pre-filled from that YAML file.
func Run(fromConfig string, cfg *config.Config) error {
	base, err := cfg.ConvertOptions()
	if err != nil {
		return err
	}

	state := DefaultState(cfg)
	if fromConfig != "" {
		absPath, err := filepath.Abs(fromConfig)
		if err != nil {
			return fmt.Errorf("resolving config path: %w", err)
		}
		loaded, err := LoadFromYAML(absPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		state = loaded
	}

	wizard := NewWizard(state, base)
	p := tea.NewProgram(wizard, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("running wizard: %w", err)
	}

	if w, ok := finalModel.(*Wizard); ok {
		if w.cancel != nil {
			w.cancel()
		}
		if w.cancelled {
			return nil
		}
		if w.err != nil {
			return w.err
		}
		if w.completionScreen != nil {
			fmt.Println(w.completionScreen.Output())
		}
	}

	return nil
}
