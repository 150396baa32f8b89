// Package merging reconciles two branches into a merge commit.
package merging

import "ledgervcs/internal/ledger"

// Version is the state of one path in one commit.
type Version struct {
	Hash    string
	Present bool
}

func versionOf(m ledger.FileMap, path string) Version {
	hash, ok := m[path]
	return Version{Hash: hash, Present: ok}
}

// Resolution says how a path is settled in a three-way merge.
type Resolution int

const (
	// Keep takes the parent's version, which equals the child's.
	Keep Resolution = iota
	TakeChild
	TakeParent
	// NeedsMerge means both sides changed the path independently.
	NeedsMerge
)

func (r Resolution) String() string {
	switch r {
	case Keep:
		return "keep"
	case TakeChild:
		return "take-child"
	case TakeParent:
		return "take-parent"
	default:
		return "needs-merge"
	}
}

// Classify settles a path from its parent (p), child (c) and ancestor (a)
// versions. Absence is a version like any other.
func Classify(p, c, a Version) Resolution {
	switch {
	case p == c:
		return Keep
	case p == a:
		return TakeChild
	case c == a:
		return TakeParent
	default:
		return NeedsMerge
	}
}
