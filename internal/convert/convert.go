// Package convert turns DICOM files into PNG/JPEG images and back, one file
// or a whole directory at a time.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mrsinham/dicompixel/internal/dicom"
	"github.com/mrsinham/dicompixel/internal/pixel"
	"github.com/mrsinham/dicompixel/internal/raster"
	"github.com/mrsinham/dicompixel/internal/util"
	"github.com/rs/zerolog"
)

// FileResult is the outcome of converting one input file.
type FileResult struct {
	Input   string
	Output  string // empty when the file failed
	Stage   Stage  // StageEncoded on success, StageFailed otherwise
	Err     error  // *ConversionError on failure
	Summary pixel.Summary
}

// Batch is the outcome of one Convert call. Files are in input order.
type Batch struct {
	Files []FileResult

	// OutputPaths lists every published file once, in input order. Two
	// inputs that map to the same output name share a single entry.
	OutputPaths []string
}

// Failed returns the results of the files that did not convert.
func (b *Batch) Failed() []FileResult {
	var failed []FileResult
	for _, f := range b.Files {
		if f.Err != nil {
			failed = append(failed, f)
		}
	}
	return failed
}

// Succeeded returns the number of files that converted.
func (b *Batch) Succeeded() int {
	return len(b.Files) - len(b.Failed())
}

// fileTask contains everything a worker needs to convert one file.
type fileTask struct {
	index     int
	input     string
	tmpPath   string
	finalPath string
}

type fileOutcome struct {
	index   int
	stage   Stage
	summary pixel.Summary
	err     error
}

// ListInputs returns the files a conversion of input would process: the
// file itself, or the regular files directly inside a directory, sorted by
// name. Sub-directories are skipped.
func ListInputs(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if !info.IsDir() {
		return []string{input}, nil
	}

	entries, err := os.ReadDir(input)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(input, entry.Name())
		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

// Convert converts input (a file or a directory) according to mode and
// writes the results into outDir. Files are converted in parallel into a
// scratch area and only moved into outDir once every worker has finished.
// When two inputs produce the same output name, the one that sorts last
// wins.
func Convert(ctx context.Context, mode Mode, input, outDir string, opts Options) (*Batch, error) {
	logger := opts.logger()

	inputs, err := ListInputs(input)
	if err != nil {
		return nil, err
	}
	batch := &Batch{Files: make([]FileResult, len(inputs))}
	if len(inputs) == 0 {
		logger.Warn().Str("input", input).Msg("no files to convert")
		return batch, nil
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	scratch := opts.ScratchDir
	if scratch == "" {
		scratch, err = os.MkdirTemp(outDir, ".scratch-*")
		if err != nil {
			return nil, fmt.Errorf("create scratch directory: %w", err)
		}
		defer func() { _ = os.RemoveAll(scratch) }()
	} else if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}

	tasks := make([]fileTask, len(inputs))
	for i, in := range inputs {
		name := util.RewriteExtension(in, mode.OutputExtension())
		tasks[i] = fileTask{
			index:     i,
			input:     in,
			tmpPath:   filepath.Join(scratch, fmt.Sprintf("%06d-%s", i, name)),
			finalPath: filepath.Join(outDir, name),
		}
		batch.Files[i] = FileResult{Input: in}
	}
	defer func() {
		for _, task := range tasks {
			_ = os.Remove(task.tmpPath)
		}
	}()

	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(tasks) {
		numWorkers = len(tasks)
	}

	if !opts.Quiet {
		fmt.Printf("Converting %d file(s) (%s) with %d worker(s)...\n", len(tasks), mode.Label(), numWorkers)
	}

	// Under FailFast a failure only skips tasks after it in input order, so
	// the earliest failing file is always attempted and reported.
	var failedAt atomic.Int64
	failedAt.Store(int64(len(tasks)))

	taskChan := make(chan fileTask, len(tasks))
	resultChan := make(chan fileOutcome, len(tasks))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskChan {
				if err := ctx.Err(); err != nil {
					resultChan <- fileOutcome{index: task.index, stage: StageReceived, err: err}
					continue
				}
				if opts.Policy == FailFast && int64(task.index) > failedAt.Load() {
					resultChan <- fileOutcome{index: task.index, stage: StageReceived, err: context.Canceled}
					continue
				}
				stage, summary, err := convertFile(mode, task, opts)
				if err != nil && opts.Policy == FailFast {
					lowerTo(&failedAt, int64(task.index))
				}
				resultChan <- fileOutcome{index: task.index, stage: stage, summary: summary, err: err}
			}
		}()
	}

	for _, task := range tasks {
		taskChan <- task
	}
	close(taskChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	completed := 0
	for result := range resultChan {
		file := &batch.Files[result.index]
		file.Summary = result.summary
		if result.err != nil {
			file.Stage = StageFailed
			file.Err = &ConversionError{Path: file.Input, Stage: result.stage, Err: result.err}
			if !errors.Is(result.err, context.Canceled) {
				logger.Warn().Err(result.err).Str("input", file.Input).Str("stage", result.stage.String()).Msg("conversion failed")
			}
		} else {
			file.Stage = StageEncoded
			logger.Debug().
				Str("input", file.Input).
				Float64("min", result.summary.Min).
				Float64("max", result.summary.Max).
				Float64("mean", result.summary.Mean).
				Float64("stddev", result.summary.StdDev).
				Msg("file converted")
		}

		completed++
		if opts.ProgressCallback != nil {
			opts.ProgressCallback(completed, len(tasks), file.Input)
		}
		if !opts.Quiet && (completed%10 == 0 || completed == len(tasks)) {
			progress := float64(completed) / float64(len(tasks)) * 100
			fmt.Printf("  Progress: %d/%d (%.0f%%)\n", completed, len(tasks), progress)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.Policy == FailFast {
		if err := firstFailure(batch); err != nil {
			return nil, err
		}
	}

	if err := publish(batch, tasks, logger); err != nil {
		return nil, err
	}

	if batch.Succeeded() == 0 {
		return batch, fmt.Errorf("all %d file(s) failed: %w", len(batch.Files), firstFailure(batch))
	}
	return batch, nil
}

// lowerTo stores i in v unless v already holds a smaller index.
func lowerTo(v *atomic.Int64, i int64) {
	for {
		cur := v.Load()
		if i >= cur || v.CompareAndSwap(cur, i) {
			return
		}
	}
}

// firstFailure returns the failure with the lowest input index, ignoring
// files that were skipped because the batch was cancelled.
func firstFailure(batch *Batch) error {
	var cancelled error
	for _, f := range batch.Files {
		if f.Err == nil {
			continue
		}
		if errors.Is(f.Err, context.Canceled) {
			if cancelled == nil {
				cancelled = f.Err
			}
			continue
		}
		return f.Err
	}
	return cancelled
}

// publish moves converted files from scratch into place in input order.
func publish(batch *Batch, tasks []fileTask, logger *zerolog.Logger) error {
	owner := make(map[string]string)
	for _, task := range tasks {
		file := &batch.Files[task.index]
		if file.Err != nil {
			continue
		}
		if err := os.Rename(task.tmpPath, task.finalPath); err != nil {
			return fmt.Errorf("publish %s: %w", task.finalPath, err)
		}
		file.Output = task.finalPath

		if prev, ok := owner[task.finalPath]; ok {
			logger.Warn().
				Str("output", task.finalPath).
				Str("replaced", prev).
				Str("by", task.input).
				Msg("output name collision, later input wins")
		} else {
			batch.OutputPaths = append(batch.OutputPaths, task.finalPath)
		}
		owner[task.finalPath] = task.input
	}
	return nil
}

// convertFile runs the decode, normalize, synthesize and encode steps for a
// single file. It returns the last stage reached.
func convertFile(mode Mode, task fileTask, opts Options) (Stage, pixel.Summary, error) {
	if mode.FromDICOM() {
		img, err := dicom.Decode(task.input, opts.Decode)
		if err != nil {
			return StageReceived, pixel.Summary{}, err
		}
		summary := pixel.Summarize(img.Pixels)

		out := pixel.ToEightBit(img.Pixels)

		if err := raster.WriteFile(task.tmpPath, mode.RasterFormat(), out, opts.Encode); err != nil {
			return StageNormalized, summary, err
		}
		return StageEncoded, summary, nil
	}

	if !mode.AcceptsInput(task.input) {
		return StageReceived, pixel.Summary{}, util.UnsupportedExtension(task.input, mode.acceptedExtensions()...)
	}
	buf, err := raster.Decode(task.input)
	if err != nil {
		return StageReceived, pixel.Summary{}, err
	}
	summary := pixel.Summarize(buf)

	wide, err := pixel.ToSixteenBit(buf)
	if err != nil {
		return StageDecoded, summary, err
	}

	rec, err := dicom.Build(wide, dicom.BuildOptions{Now: opts.Now, Overrides: opts.Tags})
	if err != nil {
		return StageNormalized, summary, err
	}

	if err := dicom.WriteFile(task.tmpPath, rec); err != nil {
		return StageSynthesized, summary, err
	}
	return StageEncoded, summary, nil
}
