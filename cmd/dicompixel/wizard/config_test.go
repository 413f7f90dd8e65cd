package wizard

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mrsinham/dicompixel/cmd/dicompixel/wizard/types"
)

func TestSaveLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")

	state := &types.State{
		Mode:        "dicom-to-jpeg",
		Input:       "/data/scans",
		OutputRoot:  "/data/out",
		Policy:      "per-file",
		Workers:     3,
		JPEGQuality: 70,
	}
	if err := SaveToYAML(state, path); err != nil {
		t.Fatalf("SaveToYAML failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "jpeg_quality: 70") {
		t.Errorf("output section should use the main config keys:\n%s", data)
	}

	loaded, err := LoadFromYAML(path)
	if err != nil {
		t.Fatalf("LoadFromYAML failed: %v", err)
	}
	if *loaded != *state {
		t.Errorf("loaded %+v, want %+v", *loaded, *state)
	}
	t.Logf("✓ session round-tripped through %s", filepath.Base(path))
}

func TestLoadFromYAML_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	if err := os.WriteFile(path, []byte("input: scan.dcm\n"), 0644); err != nil {
		t.Fatal(err)
	}

	state, err := LoadFromYAML(path)
	if err != nil {
		t.Fatalf("LoadFromYAML failed: %v", err)
	}
	if state.Mode != "dicom-to-png" {
		t.Errorf("Mode = %q, want dicom-to-png", state.Mode)
	}
	if state.Policy != "fail-fast" || state.JPEGQuality != 90 {
		t.Errorf("defaults not applied: %+v", *state)
	}
	if state.OutputRoot != "dicompixel-output" {
		t.Errorf("OutputRoot = %q", state.OutputRoot)
	}
}

func TestLoadFromYAML_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown mode":   "mode: tiff-to-dicom\n",
		"unknown policy": "output:\n  policy: sometimes\n",
		"bad quality":    "output:\n  jpeg_quality: 400\n",
		"not yaml":       "mode: [",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFromYAML(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadFromYAML_MissingFile(t *testing.T) {
	if _, err := LoadFromYAML(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
