package textmerge

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"
)

// ExecMerger runs an external `diff3 -m`. Exit status 0 is a clean merge,
// 1 is a conflict and anything else is an error.
type ExecMerger struct {
	Path   string
	logger *zap.Logger
}

func NewExecMerger(path string, logger *zap.Logger) *ExecMerger {
	if path == "" {
		path = "diff3"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecMerger{Path: path, logger: logger}
}

func (m *ExecMerger) Merge(ctx context.Context, base, ours, theirs []byte) ([]byte, bool, error) {
	if merged, ok := trivialMerge(base, ours, theirs); ok {
		return merged, false, nil
	}
	if isBinary(base) || isBinary(ours) || isBinary(theirs) {
		return nil, true, nil
	}

	dir, err := os.MkdirTemp("", "lvcs-merge-*")
	if err != nil {
		return nil, false, fmt.Errorf("creating merge directory: %w", err)
	}
	defer os.RemoveAll(dir)

	files := map[string][]byte{"ours": ours, "base": base, "theirs": theirs}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), content, 0600); err != nil {
			return nil, false, fmt.Errorf("staging %s for merge: %w", name, err)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.Path, "-m",
		filepath.Join(dir, "ours"),
		filepath.Join(dir, "base"),
		filepath.Join(dir, "theirs"),
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if err == nil {
		return stdout.Bytes(), false, nil
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		m.logger.Debug("diff3 reported conflicts")
		return nil, true, nil
	}
	return nil, false, fmt.Errorf("running %s: %w: %s", m.Path, err, bytes.TrimSpace(stderr.Bytes()))
}

var _ Merger = (*ExecMerger)(nil)
