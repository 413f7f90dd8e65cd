package screens

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mrsinham/dicompixel/cmd/dicompixel/wizard/components"
)

// ProgressMsg is sent after each converted file
type ProgressMsg struct {
	Current int    // Files finished so far
	Total   int    // Files in the batch
	Path    string // Input that just finished
}

// CompletionMsg is sent when the conversion succeeded
type CompletionMsg struct {
	Converted int           // Files converted
	Failed    []string      // Inputs that failed under the per-file policy
	Size      int64         // Size of the deliverable in bytes
	Duration  time.Duration // Time taken
	Output    string        // Single file or archive
	Archived  bool
}

// ErrorMsg is sent when the conversion failed
type ErrorMsg struct {
	Error error
}

var (
	progressBarStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("63"))

	progressBarEmptyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	progressPercentStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("63")).
				Bold(true)

	progressFileStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))
)

// ProgressScreen displays conversion progress
type ProgressScreen struct {
	current   int
	total     int
	path      string
	startTime time.Time
	cancelled bool
	width     int
}

// NewProgressScreen creates a new progress screen
func NewProgressScreen(total int) *ProgressScreen {
	return &ProgressScreen{
		total:     total,
		startTime: time.Now(),
	}
}

// Init implements tea.Model
func (s *ProgressScreen) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (s *ProgressScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			s.cancelled = true
			return s, tea.Quit
		}
	case tea.WindowSizeMsg:
		s.width = msg.Width
	case ProgressMsg:
		s.SetProgress(msg.Current, msg.Total, msg.Path)
	}

	return s, nil
}

// View implements tea.Model
func (s *ProgressScreen) View() string {
	if s.cancelled {
		return "Cancelled.\n"
	}

	var percent float64
	if s.total > 0 {
		percent = float64(s.current) / float64(s.total) * 100
	}

	barWidth := 40
	if s.width > 80 {
		barWidth = min(s.width/2, 60)
	}

	var sb strings.Builder
	sb.WriteString(components.TitleStyle.Render("Converting..."))
	sb.WriteString("\n\n")
	sb.WriteString(renderProgressBar(percent, barWidth))
	sb.WriteString(" ")
	sb.WriteString(progressPercentStyle.Render(fmt.Sprintf("%d%%", int(percent))))
	sb.WriteString("\n\n")
	sb.WriteString(progressFileStyle.Render(fmt.Sprintf("File %d/%d", s.current, s.total)))
	if s.path != "" {
		sb.WriteString(": ")
		sb.WriteString(progressFileStyle.Render(filepath.Base(s.path)))
	}
	sb.WriteString("\n")
	sb.WriteString(progressFileStyle.Render(fmt.Sprintf("Elapsed: %.1fs", time.Since(s.startTime).Seconds())))
	sb.WriteString("\n\n")
	sb.WriteString(components.HintStyle.Render("Press Ctrl+C to cancel"))

	return sb.String()
}

func renderProgressBar(percent float64, width int) string {
	filled := min(int(percent/100*float64(width)), width)

	bar := progressBarStyle.Render("[" + strings.Repeat("█", filled))
	bar += progressBarEmptyStyle.Render(strings.Repeat("░", width-filled) + "]")
	return bar
}

// Cancelled returns true if the user cancelled
func (s *ProgressScreen) Cancelled() bool {
	return s.cancelled
}

// SetProgress updates the progress (for external updates)
func (s *ProgressScreen) SetProgress(current, total int, path string) {
	s.current = current
	s.total = total
	s.path = path
}

// Completion screen styles
var (
	completionSuccessStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("42")).
				Bold(true)

	completionWarnStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214")).
				Bold(true)

	completionLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))

	completionValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Bold(true)

	completionButtonFocusedStyle = lipgloss.NewStyle().
					Background(lipgloss.Color("33")).
					Foreground(lipgloss.Color("255")).
					Padding(0, 2).
					Bold(true)
)

// CompletionScreen displays the completion summary
type CompletionScreen struct {
	msg  CompletionMsg
	done bool
}

// NewCompletionScreen creates a new completion screen
func NewCompletionScreen(msg CompletionMsg) *CompletionScreen {
	return &CompletionScreen{msg: msg}
}

// Init implements tea.Model
func (s *CompletionScreen) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (s *CompletionScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c", "esc", "enter", "q":
			s.done = true
			return s, tea.Quit
		}
	}
	return s, nil
}

// View implements tea.Model
func (s *CompletionScreen) View() string {
	var sb strings.Builder

	if len(s.msg.Failed) == 0 {
		sb.WriteString(completionSuccessStyle.Render("✓ Conversion complete!"))
	} else {
		sb.WriteString(completionWarnStyle.Render(fmt.Sprintf("! Conversion complete, %d file(s) skipped", len(s.msg.Failed))))
	}
	sb.WriteString("\n\n")

	sb.WriteString(components.TitleStyle.Render("Summary:"))
	sb.WriteString("\n")

	output := s.msg.Output
	if s.msg.Archived {
		output += " (zip)"
	}
	stats := []struct{ label, value string }{
		{"Files converted", fmt.Sprintf("%d", s.msg.Converted)},
		{"Size", FormatSize(s.msg.Size)},
		{"Duration", fmt.Sprintf("%.1fs", s.msg.Duration.Seconds())},
		{"Output", output},
	}
	for _, stat := range stats {
		sb.WriteString("  ")
		sb.WriteString(completionLabelStyle.Render(stat.label + ":"))
		sb.WriteString(" ")
		sb.WriteString(completionValueStyle.Render(stat.value))
		sb.WriteString("\n")
	}

	if len(s.msg.Failed) > 0 {
		sb.WriteString("\n")
		sb.WriteString(components.TitleStyle.Render("Skipped:"))
		sb.WriteString("\n")
		for _, f := range s.msg.Failed {
			sb.WriteString("  • ")
			sb.WriteString(completionLabelStyle.Render(f))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(completionButtonFocusedStyle.Render("Exit"))
	sb.WriteString("\n\n")
	sb.WriteString(components.HintStyle.Render("Press Enter or q to exit"))

	return sb.String()
}

// Done returns true if the user is finished
func (s *CompletionScreen) Done() bool {
	return s.done
}

// FormatSize formats bytes as human-readable size
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// ErrorScreen displays an error that occurred during conversion
type ErrorScreen struct {
	err  error
	done bool
}

var (
	errorTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	errorMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))
)

// NewErrorScreen creates a new error screen
func NewErrorScreen(err error) *ErrorScreen {
	return &ErrorScreen{err: err}
}

// Init implements tea.Model
func (s *ErrorScreen) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (s *ErrorScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c", "esc", "enter", "q":
			s.done = true
			return s, tea.Quit
		}
	}
	return s, nil
}

// View implements tea.Model
func (s *ErrorScreen) View() string {
	var sb strings.Builder

	sb.WriteString(errorTitleStyle.Render("✗ Conversion failed"))
	sb.WriteString("\n\n")
	sb.WriteString(components.TitleStyle.Render("Error:"))
	sb.WriteString("\n  ")
	sb.WriteString(errorMessageStyle.Render(s.err.Error()))
	sb.WriteString("\n\n")
	sb.WriteString(components.HintStyle.Render("Press Enter or q to exit"))

	return sb.String()
}

// Done returns true if the user is finished
func (s *ErrorScreen) Done() bool {
	return s.done
}

// Error returns the error
func (s *ErrorScreen) Error() error {
	return s.err
}

// Output returns the path of the deliverable.
func (s *CompletionScreen) Output() string {
	return s.msg.Output
}
