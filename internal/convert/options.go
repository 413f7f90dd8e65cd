package convert

import (
	"fmt"
	"strings"
	"time"

	"github.com/mrsinham/dicompixel/internal/dicom"
	"github.com/mrsinham/dicompixel/internal/raster"
	"github.com/mrsinham/dicompixel/internal/util"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Policy decides what a batch does when one of its files fails.
type Policy int

const (
	// FailFast aborts the batch on the first failure and publishes nothing.
	FailFast Policy = iota
	// PerFile converts every file it can and reports failures per file.
	PerFile
)

func (p Policy) String() string {
	if p == PerFile {
		return "per-file"
	}
	return "fail-fast"
}

// ParsePolicy parses "fail-fast" or "per-file".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-fast", "failfast":
		return FailFast, nil
	case "per-file", "perfile", "keep-going":
		return PerFile, nil
	default:
		return FailFast, fmt.Errorf("invalid failure policy: %s (valid: fail-fast, per-file)", s)
	}
}

// Options configures a conversion batch.
type Options struct {
	Workers int    // 0 = runtime.NumCPU()
	Policy  Policy // FailFast by default

	Decode dicom.DecodeOptions
	Encode raster.EncodeOptions

	// Now stamps synthesized DICOM records. Defaults to time.Now.
	Now func() time.Time

	// Tags are written into every synthesized DICOM record.
	Tags []util.Override

	// ScratchDir receives in-flight files. When empty, a temporary
	// directory is created inside the output directory and removed after
	// the batch.
	ScratchDir string

	Quiet            bool                                  // Suppress progress output
	ProgressCallback func(current, total int, path string) // Called after each file
	Logger           *zerolog.Logger                       // nil = global logger
}

func (o Options) logger() *zerolog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return &log.Logger
}
