// Package wizard provides an interactive TUI for configuring a conversion.
package wizard

import (
	"fmt"

	"github.com/mrsinham/dicompixel/cmd/dicompixel/wizard/types"
	"github.com/mrsinham/dicompixel/internal/config"
	"github.com/mrsinham/dicompixel/internal/convert"
)

// DefaultState seeds the wizard from the main configuration.
func DefaultState(cfg *config.Config) *types.State {
	return &types.State{
		Mode:        convert.DicomToPng.String(),
		OutputRoot:  cfg.Output.Root,
		Policy:      cfg.Output.Policy,
		Workers:     cfg.Output.Workers,
		JPEGQuality: cfg.Output.JPEGQuality,
	}
}

// Validate checks the values a saved file could get wrong. The input path
// is checked by the form, not here, so a config can be written before its
// input exists.
func Validate(s *types.State) error {
	if _, err := convert.ParseMode(s.Mode); err != nil {
		return err
	}
	if _, err := convert.ParsePolicy(s.Policy); err != nil {
		return err
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", s.Workers)
	}
	if s.JPEGQuality < 0 || s.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be between 1 and 100, got %d", s.JPEGQuality)
	}
	return nil
}

// ToRequest converts the wizard state into a conversion request.
func ToRequest(s *types.State) (convert.Request, error) {
	mode, err := convert.ParseMode(s.Mode)
	if err != nil {
		return convert.Request{}, err
	}
	if s.Input == "" {
		return convert.Request{}, fmt.Errorf("input is required")
	}
	if s.OutputRoot == "" {
		return convert.Request{}, fmt.Errorf("output root is required")
	}
	return convert.Request{Mode: mode, Input: s.Input, OutputRoot: s.OutputRoot}, nil
}

// ToOptions applies the wizard state on top of base.
func ToOptions(s *types.State, base convert.Options) (convert.Options, error) {
	policy, err := convert.ParsePolicy(s.Policy)
	if err != nil {
		return base, err
	}
	base.Policy = policy
	base.Workers = s.Workers
	if s.JPEGQuality != 0 {
		base.Encode.JPEGQuality = s.JPEGQuality
	}
	base.Quiet = true
	return base, nil
}
