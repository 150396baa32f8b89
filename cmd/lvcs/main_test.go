package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"ledgervcs/internal/diff"
	"ledgervcs/internal/errors"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/merging"
	shared "ledgervcs/shared/types"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(errors.Conflict([]string{"a"})))
	assert.Equal(t, 2, exitCode(fmt.Errorf("merging: %w", errors.Conflict([]string{"a"}))))
	assert.Equal(t, 1, exitCode(errors.NotFound("branch 3")))
	assert.Equal(t, 1, exitCode(fmt.Errorf("boom")))
}

func TestParseID(t *testing.T) {
	id, err := parseID("branch", "12")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	for _, bad := range []string{"", "x", "-1", "1.5"} {
		_, err := parseID("branch", bad)
		assert.ErrorIs(t, err, errors.ErrValidation, bad)
	}
}

func TestRepoPath(t *testing.T) {
	root := filepath.FromSlash("/work/repo")
	tests := []struct {
		cwd, arg, want string
		wantErr        bool
	}{
		{root, "a.txt", "a.txt", false},
		{filepath.Join(root, "src"), "main.go", "src/main.go", false},
		{filepath.Join(root, "src"), "../README", "README", false},
		{root, "../other/file", "", true},
	}
	for _, tt := range tests {
		got, err := repoPath(root, tt.cwd, tt.arg)
		if tt.wantErr {
			assert.Error(t, err, tt.arg)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, &shared.Status{Changes: []shared.Change{
		{Path: "new.txt", Type: shared.ChangeAdded, Size: 2048},
		{Path: "old.txt", Type: shared.ChangeDeleted},
		{Path: "edit.txt", Type: shared.ChangeModified, Size: 10},
	}})

	out := buf.String()
	assert.Contains(t, out, "A new.txt (2.0 kB)")
	assert.Contains(t, out, "M edit.txt (10 B)")
	assert.Contains(t, out, "D old.txt")
}

func TestPrintLog(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	commits := []*ledger.Commit{
		{ID: 3, BranchID: 0, Author: "alice", Comment: "merge", Timestamp: now.Add(-2 * time.Hour).Unix(), HasSecondParent: true, ParentID: 1, SecondParentID: 2},
		{ID: 1, BranchID: 0, Author: "alice", Comment: "first", Timestamp: now.Add(-48 * time.Hour).Unix()},
	}

	var buf bytes.Buffer
	printLog(&buf, commits, 1, now)
	out := buf.String()
	assert.Contains(t, out, "commit 3\nMerge:  1 2\n")
	assert.Contains(t, out, "commit 1 (current)")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "2 days ago")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("merge")), bytes.Index(buf.Bytes(), []byte("first")))
}

func TestPrintBranches(t *testing.T) {
	var buf bytes.Buffer
	printBranches(&buf, []*ledger.Branch{{ID: 0, Name: "master", Owner: "alice"}, {ID: 1, Name: "dev", Owner: "bob"}}, 1)
	assert.Equal(t, "    0 master (alice)\n*   1 dev (bob)\n", buf.String())
}

func TestPrintMergeResult(t *testing.T) {
	var buf bytes.Buffer
	printMergeResult(&buf, &merging.Result{Status: merging.StatusConflicted, ParentHead: 2, ChildHead: 3, Conflicts: []string{"a", "b"}})
	assert.Contains(t, buf.String(), "nothing was committed")
	assert.Contains(t, buf.String(), "C a\n")

	buf.Reset()
	printMergeResult(&buf, &merging.Result{Status: merging.StatusMerged, ParentHead: 2, ChildHead: 3, CommitID: 4, Files: ledger.FileMap{"a": "h"}})
	assert.Equal(t, "Merged commit 3 into 2 as commit 4 (1 files)\n", buf.String())
}

func TestPrintDiff(t *testing.T) {
	result, err := diff.NewEngine(1).Diff([]byte("a\nb\n"), []byte("a\nc\n"))
	require.NoError(t, err)

	var buf bytes.Buffer
	printDiff(&buf, "f.txt", result)
	assert.Equal(t, "--- a/f.txt\n+++ b/f.txt\n@@ -1,2 +1,2 @@\n a\n-b\n+c\n", buf.String())
}
