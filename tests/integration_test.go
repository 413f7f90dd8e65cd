package tests

import (
	"context"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/mrsinham/dicompixel/internal/convert"
	"github.com/rs/zerolog"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"github.com/suyashkumar/dicom/pkg/uid"
)

func options() convert.Options {
	nop := zerolog.Nop()
	return convert.Options{
		Workers: 2,
		Quiet:   true,
		Logger:  &nop,
	}
}

// writeGradientPNG writes a width x height 8-bit grayscale gradient.
func writeGradientPNG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Pix[y*img.Stride+x] = uint8((x + y) * 255 / (width + height))
		}
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

// extract unpacks archive into dir and returns the extracted paths.
func extract(t *testing.T, archive, dir string) []string {
	t.Helper()
	zr, err := zip.OpenReader(archive)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	var paths []string
	for _, f := range zr.File {
		if strings.Contains(f.Name, "/") {
			t.Errorf("archive should be flat, found %s", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(dir, f.Name)
		out, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.Copy(out, rc); err != nil {
			t.Fatal(err)
		}
		out.Close()
		rc.Close()
		paths = append(paths, path)
	}
	return paths
}

func findElementByTag(ds dicom.Dataset, t tag.Tag) *dicom.Element {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return nil
	}
	return elem
}

// TestPipeline_RequiredTags checks the attributes of a synthesized record
func TestPipeline_RequiredTags(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writeGradientPNG(t, src, 40, 30)

	res, err := convert.Run(context.Background(), convert.Request{
		Mode:       convert.PngToDicom,
		Input:      src,
		OutputRoot: filepath.Join(dir, "out"),
	}, options())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if filepath.Base(res.Path) != "photo.dicom" {
		t.Errorf("output name = %s, want photo.dicom", filepath.Base(res.Path))
	}

	ds, err := dicom.ParseFile(res.Path, nil)
	if err != nil {
		t.Fatalf("output is not parseable: %v", err)
	}

	stringTags := map[tag.Tag]string{
		tag.Modality:                  "OT",
		tag.PatientName:               "Test^Patient",
		tag.PatientID:                 "123456",
		tag.PhotometricInterpretation: "MONOCHROME2",
		tag.TransferSyntaxUID:         uid.ExplicitVRLittleEndian,
	}
	for tg, want := range stringTags {
		elem := findElementByTag(ds, tg)
		if elem == nil {
			t.Errorf("missing tag %v", tg)
			continue
		}
		if got := dicom.MustGetStrings(elem.Value); len(got) == 0 || got[0] != want {
			t.Errorf("tag %v = %v, want %s", tg, got, want)
		}
	}

	intTags := map[tag.Tag]int{
		tag.Rows:            30,
		tag.Columns:         40,
		tag.BitsAllocated:   16,
		tag.SamplesPerPixel: 1,
	}
	for tg, want := range intTags {
		elem := findElementByTag(ds, tg)
		if elem == nil {
			t.Errorf("missing tag %v", tg)
			continue
		}
		if got := dicom.MustGetInts(elem.Value); len(got) == 0 || got[0] != want {
			t.Errorf("tag %v = %v, want %d", tg, got, want)
		}
	}

	for _, tg := range []tag.Tag{tag.SOPInstanceUID, tag.StudyInstanceUID, tag.SeriesInstanceUID, tag.StudyDate} {
		if elem := findElementByTag(ds, tg); elem == nil || dicom.MustGetStrings(elem.Value)[0] == "" {
			t.Errorf("tag %v should be set", tg)
		}
	}

	t.Logf("✓ %s carries the required attributes", filepath.Base(res.Path))
}

// TestPipeline_DirectoryRoundTrip converts a folder to DICOM and back
func TestPipeline_DirectoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	if err := os.MkdirAll(filepath.Join(in, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	sizes := map[string][2]int{
		"a.png": {16, 9},
		"b.png": {9, 16},
		"c.png": {33, 33},
	}
	for name, wh := range sizes {
		writeGradientPNG(t, filepath.Join(in, name), wh[0], wh[1])
	}
	writeGradientPNG(t, filepath.Join(in, "nested", "ignored.png"), 4, 4)

	res, err := convert.Run(context.Background(), convert.Request{
		Mode:       convert.PngToDicom,
		Input:      in,
		OutputRoot: filepath.Join(dir, "out"),
	}, options())
	if err != nil {
		t.Fatalf("PNG to DICOM failed: %v", err)
	}
	if !res.Archived {
		t.Fatal("three inputs should be archived")
	}

	dcmDir := filepath.Join(dir, "dicoms")
	if err := os.MkdirAll(dcmDir, 0755); err != nil {
		t.Fatal(err)
	}
	dcms := extract(t, res.Path, dcmDir)
	if len(dcms) != 3 {
		t.Fatalf("archive has %d entries, want 3", len(dcms))
	}

	seen := make(map[string]bool)
	for _, p := range dcms {
		ds, err := dicom.ParseFile(p, nil)
		if err != nil {
			t.Fatalf("parse %s: %v", p, err)
		}
		sop := dicom.MustGetStrings(findElementByTag(ds, tag.SOPInstanceUID).Value)[0]
		if seen[sop] {
			t.Errorf("duplicate SOPInstanceUID %s", sop)
		}
		seen[sop] = true
	}

	back, err := convert.Run(context.Background(), convert.Request{
		Mode:       convert.DicomToPng,
		Input:      dcmDir,
		OutputRoot: filepath.Join(dir, "back"),
	}, options())
	if err != nil {
		t.Fatalf("DICOM to PNG failed: %v", err)
	}

	pngDir := filepath.Join(dir, "pngs")
	if err := os.MkdirAll(pngDir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, p := range extract(t, back.Path, pngDir) {
		want, ok := sizes[filepath.Base(p)]
		if !ok {
			t.Errorf("unexpected output %s", filepath.Base(p))
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			t.Fatal(err)
		}
		cfg, err := png.DecodeConfig(f)
		f.Close()
		if err != nil {
			t.Fatalf("decode %s: %v", p, err)
		}
		if cfg.Width != want[0] || cfg.Height != want[1] {
			t.Errorf("%s is %dx%d, want %dx%d", filepath.Base(p), cfg.Width, cfg.Height, want[0], want[1])
		}
	}

	t.Logf("✓ round trip kept the geometry of %d files", len(sizes))
}

// TestPipeline_RequestsAreIsolated checks that two requests on the same root
// never share a directory
func TestPipeline_RequestsAreIsolated(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scan.png")
	writeGradientPNG(t, src, 8, 8)
	root := filepath.Join(dir, "out")

	req := convert.Request{Mode: convert.PngToDicom, Input: src, OutputRoot: root}
	first, err := convert.Run(context.Background(), req, options())
	if err != nil {
		t.Fatal(err)
	}
	second, err := convert.Run(context.Background(), req, options())
	if err != nil {
		t.Fatal(err)
	}

	if first.OutputDir == second.OutputDir {
		t.Errorf("requests share %s", first.OutputDir)
	}
	for _, r := range []*convert.Result{first, second} {
		if _, err := os.Stat(r.Path); err != nil {
			t.Errorf("output of request %s missing: %v", r.RequestID, err)
		}
	}
}
