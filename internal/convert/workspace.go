package convert

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const scratchDirName = ".scratch"

// Init prepares the output root. Call it once before the first Run.
func Init(root string) error {
	if root == "" {
		return fmt.Errorf("output root is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}
	return nil
}

// Workspace is the directory pair owned by one request: OutputDir holds
// the deliverables, ScratchDir holds in-flight files.
type Workspace struct {
	ID         string
	OutputDir  string
	ScratchDir string
}

// NewWorkspace creates <root>/<id> and <root>/.scratch/<id>. An empty id
// gets a random one.
func NewWorkspace(root, id string) (*Workspace, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if filepath.Base(id) != id || id == "." || id == ".." || id == scratchDirName {
		return nil, fmt.Errorf("invalid request id %q", id)
	}

	ws := &Workspace{
		ID:         id,
		OutputDir:  filepath.Join(root, id),
		ScratchDir: filepath.Join(root, scratchDirName, id),
	}
	if err := os.MkdirAll(ws.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create request directory: %w", err)
	}
	if err := os.MkdirAll(ws.ScratchDir, 0755); err != nil {
		_ = os.RemoveAll(ws.OutputDir)
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	return ws, nil
}

// Close removes the scratch directory. Outputs are left in place.
func (w *Workspace) Close() error {
	return os.RemoveAll(w.ScratchDir)
}

// Discard removes everything the workspace created.
func (w *Workspace) Discard() error {
	if err := os.RemoveAll(w.OutputDir); err != nil {
		return err
	}
	return w.Close()
}
