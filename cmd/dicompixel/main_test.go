package main

import (
	"testing"

	"github.com/mrsinham/dicompixel/internal/config"
)

func TestConvertFlags_ApplyOnlyExplicitFlags(t *testing.T) {
	var f convertFlags
	fs := newConvertFlagSet(&f)
	if err := fs.Parse([]string{"--mode", "dicom-to-png", "--input", "x.dcm", "--keep-going", "--jpeg-quality", "60"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Output.Root = "/from/config"
	cfg.Output.Workers = 6
	f.apply(fs, cfg)

	if cfg.Output.Policy != "per-file" {
		t.Errorf("Policy = %q, want per-file", cfg.Output.Policy)
	}
	if cfg.Output.JPEGQuality != 60 {
		t.Errorf("JPEGQuality = %d, want 60", cfg.Output.JPEGQuality)
	}
	if cfg.Output.Root != "/from/config" || cfg.Output.Workers != 6 {
		t.Errorf("unset flags must not override config: %+v", cfg.Output)
	}
}

func TestConvertFlags_WizardCommandLineParses(t *testing.T) {
	var f convertFlags
	fs := newConvertFlagSet(&f)
	args := []string{"--mode", "dicom-to-jpeg", "--input", "scans", "--output", "out", "--keep-going", "--workers", "2", "--jpeg-quality", "75"}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("flags emitted by the wizard should parse: %v", err)
	}
	if f.workers != 2 || f.output != "out" || !f.keepGoing {
		t.Errorf("flags = %+v", f)
	}
}

func TestRunConvert_MissingMode(t *testing.T) {
	if err := runConvert([]string{"--input", "x.dcm"}); err == nil {
		t.Error("expected an error without --mode")
	}
}

func TestRunConvert_UnknownMode(t *testing.T) {
	if err := runConvert([]string{"--mode", "tiff", "--input", "x.tif"}); err == nil {
		t.Error("expected an error for an unknown mode")
	}
}

func TestRunConvert_TagRequiresDICOMOutput(t *testing.T) {
	err := runConvert([]string{"--mode", "dicom-to-png", "--input", "x.dcm", "--tag", "PatientName=Doe"})
	if err == nil {
		t.Error("expected an error when tagging a raster export")
	}
}

func TestRunConvert_UnknownTag(t *testing.T) {
	err := runConvert([]string{"--mode", "png-to-dicom", "--input", "x.png", "--tag", "Colour=red"})
	if err == nil {
		t.Error("expected an error for an unknown tag")
	}
}
