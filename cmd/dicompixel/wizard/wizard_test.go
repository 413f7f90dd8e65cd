package wizard

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mrsinham/dicompixel/cmd/dicompixel/wizard/screens"
	"github.com/mrsinham/dicompixel/cmd/dicompixel/wizard/types"
	"github.com/mrsinham/dicompixel/internal/config"
	"github.com/mrsinham/dicompixel/internal/convert"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 6))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 5)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestToRequest(t *testing.T) {
	state := &types.State{Mode: "png-to-dicom", Input: "in.png", OutputRoot: "out"}
	req, err := ToRequest(state)
	if err != nil {
		t.Fatalf("ToRequest failed: %v", err)
	}
	if req.Mode != convert.PngToDicom || req.Input != "in.png" || req.OutputRoot != "out" {
		t.Errorf("request = %+v", req)
	}

	tests := []struct {
		name  string
		state types.State
	}{
		{"bad mode", types.State{Mode: "x", Input: "a", OutputRoot: "b"}},
		{"no input", types.State{Mode: "png-to-dicom", OutputRoot: "b"}},
		{"no output", types.State{Mode: "png-to-dicom", Input: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ToRequest(&tt.state); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestToOptions(t *testing.T) {
	base, err := config.DefaultConfig().ConvertOptions()
	if err != nil {
		t.Fatal(err)
	}

	opts, err := ToOptions(&types.State{Policy: "per-file", Workers: 4, JPEGQuality: 55}, base)
	if err != nil {
		t.Fatalf("ToOptions failed: %v", err)
	}
	if opts.Policy != convert.PerFile || opts.Workers != 4 || opts.Encode.JPEGQuality != 55 {
		t.Errorf("options = %+v", opts)
	}
	if !opts.Quiet {
		t.Error("wizard conversions must not print progress to the terminal")
	}

	opts, err = ToOptions(&types.State{}, base)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Encode.JPEGQuality != base.Encode.JPEGQuality {
		t.Errorf("zero quality should keep the base value, got %d", opts.Encode.JPEGQuality)
	}

	if _, err := ToOptions(&types.State{Policy: "never"}, base); err == nil {
		t.Error("expected an error for an unknown policy")
	}
}

func TestCommandLine(t *testing.T) {
	tests := []struct {
		name  string
		state types.State
		want  string
	}{
		{
			"defaults",
			types.State{Mode: "dicom-to-png", Input: "scan.dcm", OutputRoot: "out", Policy: "fail-fast", JPEGQuality: 90},
			"dicompixel --mode dicom-to-png --input scan.dcm --output out",
		},
		{
			"all flags",
			types.State{Mode: "dicom-to-jpeg", Input: "my scans", OutputRoot: "out", Policy: "per-file", Workers: 2, JPEGQuality: 75},
			`dicompixel --mode dicom-to-jpeg --input "my scans" --output out --keep-going --workers 2 --jpeg-quality 75`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := screens.CommandLine(&tt.state); got != tt.want {
				t.Errorf("CommandLine() =\n  %s\nwant\n  %s", got, tt.want)
			}
		})
	}
}

func TestWizard_ProgressMessages(t *testing.T) {
	w := NewWizard(DefaultState(config.DefaultConfig()), convert.Options{})
	w.phase = PhaseProgress
	w.progressScreen = screens.NewProgressScreen(2)
	w.events = make(chan tea.Msg, 1)

	if _, cmd := w.Update(screens.ProgressMsg{Current: 1, Total: 2, Path: "a.dcm"}); cmd == nil {
		t.Error("a progress message should re-arm the event listener")
	}
	if w.phase != PhaseProgress {
		t.Fatalf("phase = %d, want progress", w.phase)
	}

	w.Update(screens.CompletionMsg{Converted: 2, Output: "out.zip", Archived: true})
	if w.phase != PhaseComplete {
		t.Fatalf("phase = %d, want complete", w.phase)
	}
	if !strings.Contains(w.View(), "out.zip") {
		t.Error("completion view should show the output path")
	}
}

func TestWizard_ErrorMessage(t *testing.T) {
	w := NewWizard(nil, convert.Options{})
	w.phase = PhaseProgress
	w.progressScreen = screens.NewProgressScreen(1)

	w.Update(screens.ErrorMsg{Error: errors.New("decode failed")})
	if w.phase != PhaseError || w.err == nil {
		t.Fatalf("phase = %d, err = %v", w.phase, w.err)
	}

	w.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !w.finished {
		t.Error("enter on the error screen should finish the wizard")
	}
}

func TestWizard_StartConversion(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scan.png")
	writePNG(t, src)

	state := &types.State{
		Mode:        "png-to-dicom",
		Input:       src,
		OutputRoot:  filepath.Join(dir, "out"),
		Policy:      "fail-fast",
		Workers:     1,
		JPEGQuality: 90,
	}
	base, err := config.DefaultConfig().ConvertOptions()
	if err != nil {
		t.Fatal(err)
	}

	w := NewWizard(state, base)
	_, cmd := w.startConversion()
	if w.phase != PhaseProgress || cmd == nil {
		t.Fatalf("phase = %d, cmd = %v", w.phase, cmd)
	}

	// drain events until the conversion reports its outcome
	deadline := time.After(10 * time.Second)
	for w.phase == PhaseProgress {
		msgs := make(chan tea.Msg, 1)
		go func() { msgs <- cmd() }()
		select {
		case msg := <-msgs:
			_, cmd = w.Update(msg)
		case <-deadline:
			t.Fatal("conversion did not finish")
		}
	}

	if w.phase != PhaseComplete {
		t.Fatalf("phase = %d, err = %v", w.phase, w.err)
	}
	out := w.completionScreen.Output()
	if filepath.Ext(out) != ".dicom" {
		t.Errorf("output = %s, want a .dicom file", out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output missing: %v", err)
	}
	t.Logf("✓ wizard converted %s", filepath.Base(out))
}

func TestWizard_StartConversionInvalidState(t *testing.T) {
	w := NewWizard(&types.State{Mode: "png-to-dicom", OutputRoot: "out"}, convert.Options{})
	w.startConversion()
	if w.phase != PhaseError {
		t.Errorf("phase = %d, want error", w.phase)
	}
}
