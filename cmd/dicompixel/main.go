package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/mrsinham/dicompixel/cmd/dicompixel/wizard"
	"github.com/mrsinham/dicompixel/internal/config"
	"github.com/mrsinham/dicompixel/internal/convert"
	"github.com/mrsinham/dicompixel/internal/util"
	"github.com/mrsinham/dicompixel/pkg/logger"
	"github.com/rs/zerolog/log"
)

// version is set at build time via -ldflags
var version = "dev"

// errHelp signals that usage was printed and nothing else should happen.
var errHelp = errors.New("help requested")

func main() {
	var err error
	switch {
	case len(os.Args) > 1 && os.Args[1] == "wizard":
		err = runWizard(os.Args[2:])
	case len(os.Args) > 1 && os.Args[1] == "serve":
		err = runServe(os.Args[2:])
	default:
		err = runConvert(os.Args[1:])
	}

	if errors.Is(err, errHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// convertFlags holds the values of the conversion command line.
type convertFlags struct {
	mode        string
	input       string
	output      string
	workers     int
	keepGoing   bool
	jpegQuality int
	configFile  string
	logLevel    string
	logFormat   string
	quiet       bool
	tags        []string
	help        bool
	version     bool
}

func newConvertFlagSet(f *convertFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("dicompixel", flag.ContinueOnError)
	fs.StringVar(&f.mode, "mode", "", "Conversion: dicom-to-png, dicom-to-jpeg, png-to-dicom, jpeg-to-dicom (required)")
	fs.StringVar(&f.input, "input", "", "Input file or directory (required)")
	fs.StringVar(&f.output, "output", "", "Output root directory (default from config: dicompixel-output)")
	fs.IntVar(&f.workers, "workers", 0, fmt.Sprintf("Number of parallel workers (default: %d = CPU cores)", runtime.NumCPU()))
	fs.BoolVar(&f.keepGoing, "keep-going", false, "Skip files that fail instead of aborting the batch")
	fs.IntVar(&f.jpegQuality, "jpeg-quality", 0, "JPEG quality 1-100 (default from config: 90)")
	fs.StringVar(&f.configFile, "config", "", "Load configuration from YAML file")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format: json or console")
	fs.BoolVar(&f.quiet, "quiet", false, "Do not print progress")
	fs.Func("tag", "Set an attribute on synthesized DICOM files: 'Name=Value' (repeatable)", func(s string) error {
		f.tags = append(f.tags, s)
		return nil
	})
	fs.BoolVar(&f.help, "help", false, "Show help message")
	fs.BoolVar(&f.version, "version", false, "Show version")
	fs.Usage = func() { printHelp(fs) }
	return fs
}

// apply overrides cfg with the flags that were given explicitly.
func (f *convertFlags) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "output":
			cfg.Output.Root = f.output
		case "workers":
			cfg.Output.Workers = f.workers
		case "keep-going":
			if f.keepGoing {
				cfg.Output.Policy = convert.PerFile.String()
			} else {
				cfg.Output.Policy = convert.FailFast.String()
			}
		case "jpeg-quality":
			cfg.Output.JPEGQuality = f.jpegQuality
		case "log-level":
			cfg.Log.Level = f.logLevel
		case "log-format":
			cfg.Log.Format = f.logFormat
		}
	})
}

func runConvert(args []string) error {
	var f convertFlags
	fs := newConvertFlagSet(&f)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}

	if f.version {
		fmt.Printf("dicompixel %s\n", version)
		return errHelp
	}
	if f.help {
		printHelp(fs)
		return errHelp
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	if f.mode == "" {
		printUsage(fs)
		return fmt.Errorf("--mode is required")
	}
	if f.input == "" {
		printUsage(fs)
		return fmt.Errorf("--input is required")
	}
	mode, err := convert.ParseMode(f.mode)
	if err != nil {
		return err
	}
	tags, err := util.ParseTagOverrides(f.tags)
	if err != nil {
		return err
	}
	if len(tags) > 0 && mode.FromDICOM() {
		return fmt.Errorf("--tag only applies when producing DICOM files")
	}

	cfg, err := loadConfig(f.configFile)
	if err != nil {
		return err
	}
	f.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	opts, err := cfg.ConvertOptions()
	if err != nil {
		return err
	}
	opts.Quiet = f.quiet
	opts.Tags = tags

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := convert.Run(ctx, convert.Request{
		Mode:       mode,
		Input:      f.input,
		OutputRoot: cfg.Output.Root,
	}, opts)
	if err != nil {
		return err
	}

	for _, failed := range res.Batch.Failed() {
		log.Warn().Err(failed.Err).Str("file", failed.Input).Msg("file skipped")
	}
	if !f.quiet {
		fmt.Printf("\n✓ Conversion complete! %d file(s) converted\n", res.Batch.Succeeded())
	}
	fmt.Println(res.Path)
	return nil
}

func runWizard(args []string) error {
	fs := flag.NewFlagSet("dicompixel wizard", flag.ContinueOnError)
	from := fs.String("from", "", "Pre-fill the wizard from a saved YAML session")
	configFile := fs.String("config", "", "Load configuration from YAML file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return wizard.Run(*from, cfg)
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "\nUsage:")
	fmt.Fprintln(os.Stderr, "  dicompixel --mode <MODE> --input <PATH> [options]")
	fmt.Fprintln(os.Stderr, "\nOptions:")
	fs.SetOutput(os.Stderr)
	fs.PrintDefaults()
}

func printHelp(fs *flag.FlagSet) {
	fmt.Println("dicompixel")
	fmt.Println("==========")
	fmt.Println()
	fmt.Println("Convert DICOM files to PNG/JPEG images and back.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  dicompixel --mode <MODE> --input <PATH> [options]")
	fmt.Println("  dicompixel wizard [--from FILE] [--config FILE]")
	fmt.Println("  dicompixel serve [--config FILE]")
	fmt.Println()
	fmt.Println("Modes:")
	for _, m := range convert.AllModes() {
		fmt.Printf("  %-15s %s\n", m.String(), m.Label())
	}
	fmt.Println()
	fmt.Println("Options:")
	fs.SetOutput(os.Stdout)
	fs.PrintDefaults()
	fmt.Println()
	fmt.Println("Output:")
	fmt.Println("  Each run writes into its own directory under the output root.")
	fmt.Println("  A single input produces a single file, several inputs produce output_files.zip.")
	fmt.Println("  The last line printed is the path of that file.")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Export one study slice as PNG")
	fmt.Println("  dicompixel --mode dicom-to-png --input scan.dcm")
	fmt.Println()
	fmt.Println("  # Fill in the patient on synthesized records")
	fmt.Println("  dicompixel --mode png-to-dicom --input hand.png --tag \"PatientName=Doe^Jane\" --tag BodyPartExamined=HAND")
	fmt.Println()
	fmt.Println("  # Convert a folder of JPEGs, skipping unreadable files")
	fmt.Println("  dicompixel --mode jpeg-to-dicom --input photos/ --keep-going")
	fmt.Println()
	fmt.Println("Tags accepted by --tag:")
	for _, name := range util.TagNames() {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  Every config key can be overridden with a DICOMPIXEL_* variable,")
	fmt.Println("  e.g. DICOMPIXEL_OUTPUT_ROOT or DICOMPIXEL_JPEG_QUALITY. A .env file is read if present.")
}
