// Package repository holds the local state of a checkout: the descriptor
// file and the session built around it.
package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ledgervcs/internal/errors"
	"ledgervcs/internal/validation"
)

// Descriptor is the client's pointer into the ledger history. It is stored
// as JSON in the reserved file at the root of the working tree.
type Descriptor struct {
	RepoName        string `json:"repo_name"`
	RepoAddress     string `json:"repo_address"`
	CurrentBranchID int64  `json:"current_branch_id"`
	CurrentCommitID int64  `json:"current_commit_id"`
}

func DescriptorPath(root string) string {
	return filepath.Join(root, validation.ReservedPath)
}

// LoadDescriptor reads the descriptor under root. A missing or unreadable
// descriptor is an INVALID_STATE error.
func LoadDescriptor(root string) (*Descriptor, error) {
	data, err := os.ReadFile(DescriptorPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.InvalidState(fmt.Sprintf("%s is not a repository: %s missing", root, validation.ReservedPath))
		}
		return nil, errors.InvalidState(fmt.Sprintf("reading %s: %v", validation.ReservedPath, err))
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.InvalidState(fmt.Sprintf("corrupt %s: %v", validation.ReservedPath, err))
	}
	if d.RepoAddress == "" {
		return nil, errors.InvalidState(fmt.Sprintf("corrupt %s: no repository address", validation.ReservedPath))
	}
	if d.CurrentBranchID < 0 || d.CurrentCommitID < 0 {
		return nil, errors.InvalidState(fmt.Sprintf("corrupt %s: negative id", validation.ReservedPath))
	}
	return &d, nil
}

// Save writes the descriptor under root, replacing the old one atomically.
func (d *Descriptor) Save(root string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding descriptor: %w", err)
	}

	tmp, err := os.CreateTemp(root, ".repodata-*.tmp")
	if err != nil {
		return fmt.Errorf("saving descriptor: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("saving descriptor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("saving descriptor: %w", err)
	}
	if err := os.Rename(tmp.Name(), DescriptorPath(root)); err != nil {
		return fmt.Errorf("saving descriptor: %w", err)
	}
	return nil
}

// FindRoot walks up from start to the nearest directory holding a
// descriptor.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(DescriptorPath(dir)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.InvalidState(fmt.Sprintf("not inside a repository (no %s found above %s)", validation.ReservedPath, start))
		}
		dir = parent
	}
}
