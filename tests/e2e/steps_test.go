package e2e

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/klauspost/compress/zip"
)

// binaryPath holds the path to the compiled binary (set once in TestMain)
var binaryPath string

// testContext holds state for a single scenario
type testContext struct {
	tmpDir   string
	exitCode int
	stdout   string
	output   string // stdout and stderr
}

// buildBinary compiles the dicompixel binary once
func buildBinary() (string, error) {
	tmpFile, err := os.CreateTemp("", "dicompixel-test-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpFile.Close()

	_, thisFile, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(thisFile), "..", "..")

	cmd := exec.Command("go", "build", "-o", tmpFile.Name(), "./cmd/dicompixel")
	cmd.Dir = projectRoot
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("build failed: %w\n%s", err, stderr.String())
	}

	return tmpFile.Name(), nil
}

// TestMain compiles the binary once before running all tests
func TestMain(m *testing.M) {
	var err error
	binaryPath, err = buildBinary()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build binary: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Remove(binaryPath)
	os.Exit(code)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	tc := &testContext{}

	sc.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tmpDir, err := os.MkdirTemp("", "dicompixel-e2e-*")
		if err != nil {
			return ctx, err
		}
		tc.tmpDir = tmpDir
		return ctx, nil
	})

	sc.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if tc.tmpDir != "" {
			os.RemoveAll(tc.tmpDir)
		}
		return ctx, nil
	})

	sc.Step(`^dicompixel is built$`, tc.dicompixelIsBuilt)
	sc.Step(`^a (\d+)x(\d+) PNG at "([^"]*)"$`, tc.aPNGAt)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, tc.aFileContaining)
	sc.Step(`^I run dicompixel with "([^"]*)"$`, tc.iRunDicompixelWith)
	sc.Step(`^I run dicompixel on the printed file with "([^"]*)"$`, tc.iRunDicompixelOnPrintedFile)
	sc.Step(`^the exit code should be (\d+)$`, tc.theExitCodeShouldBe)
	sc.Step(`^the output should contain "([^"]*)"$`, tc.theOutputShouldContain)
	sc.Step(`^the printed path should end with "([^"]*)"$`, tc.thePrintedPathShouldEndWith)
	sc.Step(`^the printed file should be a DICOM file$`, tc.thePrintedFileShouldBeDICOM)
	sc.Step(`^the printed file should contain "([^"]*)"$`, tc.thePrintedFileShouldContain)
	sc.Step(`^the printed file should be a (\d+)x(\d+) PNG$`, tc.thePrintedFileShouldBePNG)
	sc.Step(`^the printed archive should contain (\d+) entries$`, tc.thePrintedArchiveShouldContain)
}

func (tc *testContext) expand(s string) string {
	return strings.ReplaceAll(s, "{tmpdir}", tc.tmpDir)
}

func (tc *testContext) dicompixelIsBuilt() error {
	if binaryPath == "" {
		return fmt.Errorf("binary not built")
	}
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		return fmt.Errorf("binary does not exist at %s", binaryPath)
	}
	return nil
}

func (tc *testContext) aPNGAt(width, height int, path string) error {
	path = tc.expand(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 251)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func (tc *testContext) aFileContaining(path, content string) error {
	path = tc.expand(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

func (tc *testContext) iRunDicompixelWith(args string) error {
	argList := splitArgs(tc.expand(args))

	cmd := exec.Command(binaryPath, argList...)
	cmd.Dir = tc.tmpDir
	var stdout, output bytes.Buffer
	cmd.Stdout = io.MultiWriter(&stdout, &output)
	cmd.Stderr = &output

	err := cmd.Run()
	tc.stdout = stdout.String()
	tc.output = output.String()

	if exitErr, ok := err.(*exec.ExitError); ok {
		tc.exitCode = exitErr.ExitCode()
	} else if err != nil {
		return fmt.Errorf("failed to run command: %w", err)
	} else {
		tc.exitCode = 0
	}

	return nil
}

func (tc *testContext) iRunDicompixelOnPrintedFile(args string) error {
	path, err := tc.printedPath()
	if err != nil {
		return err
	}
	return tc.iRunDicompixelWith(args + " --input " + path)
}

func (tc *testContext) theExitCodeShouldBe(expected int) error {
	if tc.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nOutput:\n%s", expected, tc.exitCode, tc.output)
	}
	return nil
}

func (tc *testContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(tc.output, expected) {
		return fmt.Errorf("output does not contain %q\nOutput:\n%s", expected, tc.output)
	}
	return nil
}

// printedPath returns the last line written to stdout
func (tc *testContext) printedPath() (string, error) {
	lines := strings.Split(strings.TrimSpace(tc.stdout), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return "", fmt.Errorf("nothing printed on stdout\nOutput:\n%s", tc.output)
	}
	if !filepath.IsAbs(last) {
		last = filepath.Join(tc.tmpDir, last)
	}
	return last, nil
}

func (tc *testContext) thePrintedPathShouldEndWith(suffix string) error {
	path, err := tc.printedPath()
	if err != nil {
		return err
	}
	if !strings.HasSuffix(path, suffix) {
		return fmt.Errorf("printed path %s does not end with %s", path, suffix)
	}
	return nil
}

func (tc *testContext) thePrintedFileShouldBeDICOM() error {
	path, err := tc.printedPath()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) < 132 || string(data[128:132]) != "DICM" {
		return fmt.Errorf("%s has no DICM preamble", path)
	}
	return nil
}

func (tc *testContext) thePrintedFileShouldContain(text string) error {
	path, err := tc.printedPath()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !bytes.Contains(data, []byte(text)) {
		return fmt.Errorf("%s does not contain %q", path, text)
	}
	return nil
}

func (tc *testContext) thePrintedFileShouldBePNG(width, height int) error {
	path, err := tc.printedPath()
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("%s is not a PNG: %w", path, err)
	}
	if cfg.Width != width || cfg.Height != height {
		return fmt.Errorf("%s is %dx%d, want %dx%d", path, cfg.Width, cfg.Height, width, height)
	}
	return nil
}

func (tc *testContext) thePrintedArchiveShouldContain(count int) error {
	path, err := tc.printedPath()
	if err != nil {
		return err
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()
	if len(zr.File) != count {
		return fmt.Errorf("archive has %d entries, want %d", len(zr.File), count)
	}
	return nil
}

// splitArgs splits a command line string into arguments
func splitArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false

	for _, r := range s {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}
