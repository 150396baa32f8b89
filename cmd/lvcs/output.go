package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"ledgervcs/internal/diff"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/merging"
	shared "ledgervcs/shared/types"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

func printStatus(w io.Writer, st *shared.Status) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	var added, modified, deleted []shared.Change
	for _, c := range st.Changes {
		switch c.Type {
		case shared.ChangeAdded:
			added = append(added, c)
		case shared.ChangeModified:
			modified = append(modified, c)
		case shared.ChangeDeleted:
			deleted = append(deleted, c)
		}
	}

	fmt.Fprintf(w, "\nChanges in working tree:\n\n")
	if len(added) > 0 {
		fmt.Fprintln(w, "New files:")
		for _, c := range added {
			fmt.Fprintf(w, "\t%s %s (%s)\n", green("A"), c.Path, humanize.Bytes(uint64(c.Size)))
		}
		fmt.Fprintln(w)
	}
	if len(modified) > 0 {
		fmt.Fprintln(w, "Modified files:")
		for _, c := range modified {
			fmt.Fprintf(w, "\t%s %s (%s)\n", yellow("M"), c.Path, humanize.Bytes(uint64(c.Size)))
		}
		fmt.Fprintln(w)
	}
	if len(deleted) > 0 {
		fmt.Fprintln(w, "Deleted files:")
		for _, c := range deleted {
			fmt.Fprintf(w, "\t%s %s\n", red("D"), c.Path)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, `  (use "lvcs commit -m <message>" to record them)`)
}

// printLog lists commits in the order given, marking the one the working
// tree was fetched from.
func printLog(w io.Writer, commits []*ledger.Commit, current int64, now time.Time) {
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	for _, c := range commits {
		marker := ""
		if c.ID == current {
			marker = " " + cyan("(current)")
		}
		fmt.Fprintf(w, "%s%s\n", yellow(fmt.Sprintf("commit %d", c.ID)), marker)
		if c.HasSecondParent {
			fmt.Fprintf(w, "Merge:  %d %d\n", c.ParentID, c.SecondParentID)
		}
		fmt.Fprintf(w, "Author: %s\n", c.Author)
		fmt.Fprintf(w, "Branch: %d\n", c.BranchID)
		fmt.Fprintf(w, "Date:   %s\n", humanize.RelTime(time.Unix(c.Timestamp, 0), now, "ago", "from now"))
		fmt.Fprintf(w, "\n    %s\n\n", c.Comment)
	}
}

func printBranches(w io.Writer, branches []*ledger.Branch, current int64) {
	green := color.New(color.FgGreen).SprintFunc()
	for _, b := range branches {
		line := fmt.Sprintf("%3d %s (%s)", b.ID, b.Name, b.Owner)
		if b.ID == current {
			fmt.Fprintf(w, "* %s\n", green(line))
			continue
		}
		fmt.Fprintf(w, "  %s\n", line)
	}
}

func printBranchInfo(w io.Writer, b *ledger.Branch, head, current int64) {
	fmt.Fprintf(w, "Branch:  %d (%s)\n", b.ID, b.Name)
	fmt.Fprintf(w, "Owner:   %s\n", b.Owner)
	if len(b.Editors) > 0 {
		fmt.Fprintf(w, "Editors: %s\n", strings.Join(b.Editors, ", "))
	}
	if b.ID != ledger.MasterBranchID {
		fmt.Fprintf(w, "Forked:  from branch %d at commit %d\n", b.ParentBranchID, b.ForkCommitID)
	}
	fmt.Fprintf(w, "Head:    %d\n", head)
	if current != head {
		fmt.Fprintf(w, "Working tree is at commit %d\n", current)
	}
}

func printMergeResult(w io.Writer, res *merging.Result) {
	if res.Status == merging.StatusConflicted {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(w, "Merge of %d into %d stopped; nothing was committed.\n", res.ChildHead, res.ParentHead)
		fmt.Fprintln(w, "Conflicting paths:")
		for _, p := range res.Conflicts {
			fmt.Fprintf(w, "\t%s %s\n", red("C"), p)
		}
		return
	}
	if res.Files == nil {
		fmt.Fprintf(w, "Squashed into commit %d\n", res.CommitID)
		return
	}
	fmt.Fprintf(w, "Merged commit %d into %d as commit %d (%d files)\n",
		res.ChildHead, res.ParentHead, res.CommitID, len(res.Files))
}

func printDiff(w io.Writer, path string, result *diff.DiffResult) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "--- a/%s\n+++ b/%s\n", path, path)
	printColoredDiff(w, result.Format())
}

func printColoredDiff(w io.Writer, text string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			header.Fprintln(w, line)
		case strings.HasPrefix(line, "+"):
			added.Fprintln(w, line)
		case strings.HasPrefix(line, "-"):
			removed.Fprintln(w, line)
		default:
			fmt.Fprintln(w, line)
		}
	}
}
