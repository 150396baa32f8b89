// Package textmerge performs three-way merges of single files.
package textmerge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/epiclabs-io/diff3"
)

// Merger merges ours and theirs against their common base. A conflict is a
// normal outcome reported through conflict; err is reserved for failures of
// the merge itself.
type Merger interface {
	Merge(ctx context.Context, base, ours, theirs []byte) (merged []byte, conflict bool, err error)
}

// LineMerger is an in-process line-based diff3.
type LineMerger struct{}

func NewLineMerger() *LineMerger {
	return &LineMerger{}
}

func (m *LineMerger) Merge(ctx context.Context, base, ours, theirs []byte) ([]byte, bool, error) {
	if merged, ok := trivialMerge(base, ours, theirs); ok {
		return merged, false, nil
	}
	if isBinary(base) || isBinary(ours) || isBinary(theirs) {
		return nil, true, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var lines lineTable
	result, err := diff3.Merge(
		lines.encode(ours),
		lines.encode(base),
		lines.encode(theirs),
		true,
		"ours",
		"theirs",
	)
	if err != nil {
		return nil, false, fmt.Errorf("diff3 merge failed: %w", err)
	}
	if result.Conflicts {
		return nil, true, nil
	}

	out, err := io.ReadAll(result.Result)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read merge result: %w", err)
	}
	return lines.decode(out)
}

// lineTable stands in for raw lines, terminators included, with numeric
// tokens. diff3 then compares whole raw lines, so line endings and a missing
// final newline survive the merge unchanged.
type lineTable struct {
	index map[string]int
	lines []string
}

func (t *lineTable) encode(content []byte) io.Reader {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	var buf bytes.Buffer
	for _, raw := range bytes.SplitAfter(content, []byte("\n")) {
		if len(raw) == 0 {
			continue
		}
		id, ok := t.index[string(raw)]
		if !ok {
			id = len(t.lines)
			t.index[string(raw)] = id
			t.lines = append(t.lines, string(raw))
		}
		buf.WriteString(strconv.Itoa(id))
		buf.WriteByte('\n')
	}
	return &buf
}

func (t *lineTable) decode(tokens []byte) ([]byte, bool, error) {
	merged := []byte{}
	if len(tokens) == 0 {
		return merged, false, nil
	}
	for _, tok := range strings.Split(string(tokens), "\n") {
		id, err := strconv.Atoi(tok)
		if err != nil || id < 0 || id >= len(t.lines) {
			return nil, false, fmt.Errorf("diff3 merge returned unknown line %q", tok)
		}
		merged = append(merged, t.lines[id]...)
	}
	return merged, false, nil
}

// trivialMerge resolves the cases where one side did not change.
func trivialMerge(base, ours, theirs []byte) ([]byte, bool) {
	switch {
	case bytes.Equal(ours, theirs):
		return ours, true
	case bytes.Equal(base, ours):
		return theirs, true
	case bytes.Equal(base, theirs):
		return ours, true
	}
	return nil, false
}

var _ Merger = (*LineMerger)(nil)
