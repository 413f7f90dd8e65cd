package wizard

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrsinham/dicompixel/cmd/dicompixel/wizard/types"
	"github.com/mrsinham/dicompixel/internal/config"
	"gopkg.in/yaml.v3"
)

// Config is the YAML layout of a saved wizard session. The output section
// is the same as in the main configuration file.
type Config struct {
	Mode   string              `yaml:"mode"`
	Input  string              `yaml:"input"`
	Output config.OutputConfig `yaml:"output"`
}

// SaveToYAML writes state to path.
func SaveToYAML(state *types.State, path string) error {
	cfg := Config{
		Mode:  state.Mode,
		Input: state.Input,
		Output: config.OutputConfig{
			Root:        state.OutputRoot,
			Workers:     state.Workers,
			Policy:      state.Policy,
			JPEGQuality: state.JPEGQuality,
		},
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// LoadFromYAML reads a saved session. Missing fields fall back to defaults.
func LoadFromYAML(path string) (*types.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	state := DefaultState(config.DefaultConfig())
	if cfg.Mode != "" {
		state.Mode = cfg.Mode
	}
	state.Input = cfg.Input
	if cfg.Output.Root != "" {
		state.OutputRoot = cfg.Output.Root
	}
	if cfg.Output.Policy != "" {
		state.Policy = cfg.Output.Policy
	}
	if cfg.Output.JPEGQuality != 0 {
		state.JPEGQuality = cfg.Output.JPEGQuality
	}
	state.Workers = cfg.Output.Workers

	if err := Validate(state); err != nil {
		return nil, err
	}
	return state, nil
}
