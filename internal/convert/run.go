package convert

import (
	"context"
	"fmt"
	"path/filepath"
)

// Request describes one conversion job.
type Request struct {
	ID         string // workspace name under OutputRoot, random when empty
	Mode       Mode
	Input      string // file or directory
	OutputRoot string
}

// Result is what a finished request hands back to the caller.
type Result struct {
	RequestID string
	Path      string // the single output file, or the archive
	Archived  bool
	OutputDir string
	Stage     Stage
	Stages    []Stage // request level transitions, in order
	Batch     *Batch
}

// Run converts req.Input and packages the outputs inside a workspace under
// req.OutputRoot. Scratch files are removed on every path. On failure the
// request directory is removed as well.
func Run(ctx context.Context, req Request, opts Options) (*Result, error) {
	if err := Init(req.OutputRoot); err != nil {
		return nil, err
	}

	ws, err := NewWorkspace(req.OutputRoot, req.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ws.Close() }()

	logger := opts.logger().With().Str("request_id", ws.ID).Str("mode", req.Mode.String()).Logger()
	opts.Logger = &logger
	opts.ScratchDir = ws.ScratchDir

	logger.Info().Str("input", req.Input).Msg("conversion started")

	batch, err := Convert(ctx, req.Mode, req.Input, ws.OutputDir, opts)
	if err != nil {
		_ = ws.Discard()
		return nil, err
	}

	stages := []Stage{StageReceived, StageEncoded}

	path, err := Package(batch.OutputPaths, filepath.Join(ws.OutputDir, ArchiveName))
	if err != nil {
		_ = ws.Discard()
		return nil, fmt.Errorf("package outputs: %w", err)
	}
	stages = append(stages, StagePackaged)
	logger.Debug().Str("stage", StagePackaged.String()).Str("output", path).Msg("outputs packaged")

	res := &Result{
		RequestID: ws.ID,
		Path:      path,
		Archived:  len(batch.OutputPaths) > 1,
		OutputDir: ws.OutputDir,
		Stage:     StageDelivered,
		Stages:    append(stages, StageDelivered),
		Batch:     batch,
	}

	logger.Info().
		Str("output", path).
		Int("converted", batch.Succeeded()).
		Int("failed", len(batch.Failed())).
		Bool("archived", res.Archived).
		Msg("conversion finished")

	return res, nil
}
