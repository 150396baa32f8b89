// Package diff computes line diffs between two versions of a file.
package diff

import (
	"bytes"
	"fmt"
)

// maxCells bounds the LCS table so huge inputs fail fast instead of
// exhausting memory.
const maxCells = 25_000_000

// Line is a single line of a diff.
type Line struct {
	Type    LineType
	Content string
	OldNum  int
	NewNum  int
}

type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

// DiffResult contains the complete diff information
type DiffResult struct {
	Hunks  []Hunk
	Binary bool
	Stats  struct {
		Additions int
		Deletions int
		Changes   int
	}
}

// Hunk is a run of changes with surrounding context. Start lines are
// 1-based; an empty side starts at the line before the change.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Engine provides diffing capabilities
type Engine struct {
	contextLines int
}

// NewEngine creates a diff engine that keeps contextLines of unchanged text
// around every change.
func NewEngine(contextLines int) *Engine {
	if contextLines < 0 {
		contextLines = 0
	}
	return &Engine{contextLines: contextLines}
}

// Diff compares two contents line by line. Binary content is reported as
// such without hunks.
func (e *Engine) Diff(oldContent, newContent []byte) (*DiffResult, error) {
	result := &DiffResult{}
	if isBinary(oldContent) || isBinary(newContent) {
		result.Binary = !bytes.Equal(oldContent, newContent)
		return result, nil
	}

	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)
	if (len(oldLines)+1)*(len(newLines)+1) > maxCells {
		return nil, fmt.Errorf("inputs too large to diff: %d and %d lines", len(oldLines), len(newLines))
	}

	script := editScript(oldLines, newLines)
	result.Hunks = e.group(script)

	for _, line := range script {
		switch line.Type {
		case Addition:
			result.Stats.Additions++
		case Deletion:
			result.Stats.Deletions++
		}
	}
	result.Stats.Changes = result.Stats.Additions + result.Stats.Deletions
	return result, nil
}

// Empty reports whether the two sides were identical.
func (r *DiffResult) Empty() bool {
	return !r.Binary && len(r.Hunks) == 0
}

func splitLines(content []byte) [][]byte {
	if len(content) == 0 {
		return nil
	}
	return bytes.Split(bytes.TrimSuffix(content, []byte{'\n'}), []byte{'\n'})
}

func isBinary(content []byte) bool {
	return bytes.IndexByte(content[:min(len(content), 8000)], 0) >= 0
}

// editScript walks a suffix LCS table front to back, preferring deletions
// before additions so replaced blocks read old-then-new.
func editScript(oldLines, newLines [][]byte) []Line {
	n, m := len(oldLines), len(newLines)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if bytes.Equal(oldLines[i], newLines[j]) {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	script := make([]Line, 0, max(n, m))
	i, j := 0, 0
	for i < n || j < m {
		switch {
		case i < n && j < m && bytes.Equal(oldLines[i], newLines[j]):
			script = append(script, Line{Type: Context, Content: string(oldLines[i]), OldNum: i + 1, NewNum: j + 1})
			i++
			j++
		case i < n && (j == m || lcs[i+1][j] >= lcs[i][j+1]):
			script = append(script, Line{Type: Deletion, Content: string(oldLines[i]), OldNum: i + 1})
			i++
		default:
			script = append(script, Line{Type: Addition, Content: string(newLines[j]), NewNum: j + 1})
			j++
		}
	}
	return script
}

// group cuts the edit script into hunks, merging changes separated by no
// more than twice the context.
func (e *Engine) group(script []Line) []Hunk {
	ctx := e.contextLines

	// lines of each side consumed before script[k]
	oldPos := make([]int, len(script)+1)
	newPos := make([]int, len(script)+1)
	for k, line := range script {
		oldPos[k+1], newPos[k+1] = oldPos[k], newPos[k]
		if line.Type != Addition {
			oldPos[k+1]++
		}
		if line.Type != Deletion {
			newPos[k+1]++
		}
	}

	var hunks []Hunk
	for i := 0; i < len(script); {
		if script[i].Type == Context {
			i++
			continue
		}

		start := max(0, i-ctx)
		end := i + 1
		for j := i + 1; j < len(script); j++ {
			if script[j].Type != Context {
				end = j + 1
				continue
			}
			if j-end >= 2*ctx {
				break
			}
		}
		stop := min(len(script), end+ctx)

		h := Hunk{
			OldStart: oldPos[start],
			NewStart: newPos[start],
			OldLines: oldPos[stop] - oldPos[start],
			NewLines: newPos[stop] - newPos[start],
			Lines:    script[start:stop],
		}
		if h.OldLines > 0 {
			h.OldStart++
		}
		if h.NewLines > 0 {
			h.NewStart++
		}
		hunks = append(hunks, h)
		i = stop
	}
	return hunks
}

// Format renders the result in unified diff style.
func (r *DiffResult) Format() string {
	if r.Binary {
		return "Binary files differ\n"
	}

	var buf bytes.Buffer
	for _, hunk := range r.Hunks {
		buf.WriteString(hunk.Header())
		buf.WriteByte('\n')
		for _, line := range hunk.Lines {
			buf.WriteString(line.Prefix())
			buf.WriteString(line.Content)
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
}

func (l Line) Prefix() string {
	switch l.Type {
	case Addition:
		return "+"
	case Deletion:
		return "-"
	default:
		return " "
	}
}
