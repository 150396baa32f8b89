package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ledgervcs/internal/diff"
	"ledgervcs/internal/errors"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/merging"
	"ledgervcs/internal/repository"
	"ledgervcs/internal/validation"
	"ledgervcs/internal/workspace"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func parseID(kind, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 0 {
		return 0, errors.ValidationError(fmt.Sprintf("invalid %s id %q", kind, arg), nil)
	}
	return id, nil
}

// guardDirty refuses to overwrite uncommitted changes unless forced or
// confirmed.
func guardDirty(ctx context.Context, sess *repository.Session, force bool) error {
	if force {
		return nil
	}
	st, err := workspace.Status(ctx, sess)
	if err != nil {
		return err
	}
	if st.Clean() {
		return nil
	}
	printStatus(os.Stdout, st)
	if confirm(fmt.Sprintf("Discard %d uncommitted change(s)?", len(st.Changes))) {
		return nil
	}
	return errors.InvalidState("working tree has uncommitted changes (use --force to discard them)")
}

func init() {
	var initCmd = &cobra.Command{
		Use:   "init <name> [dir]",
		Short: "Create a repository and an empty working tree for it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if len(args) == 2 {
				dir = args[1]
			}
			abs, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", dir, err)
			}

			sess, err := application.Init(cmd.Context(), abs, args[0])
			if err != nil {
				return err
			}
			defer sess.Close()

			fmt.Printf("Initialized repository %s in %s\n", args[0], abs)
			fmt.Printf("Address: %s\n", sess.Descriptor.RepoAddress)
			return nil
		},
	}

	var cloneCmd = &cobra.Command{
		Use:   "clone <address>",
		Short: "Fetch the head of master into a new directory named after the repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
			sess, err := application.Clone(cmd.Context(), cwd, args[0])
			if err != nil {
				return err
			}
			defer sess.Close()

			fmt.Printf("Cloned %s into %s at commit %d\n", sess.Descriptor.RepoName, sess.Root, sess.Descriptor.CurrentCommitID)
			return nil
		},
	}

	var branchesCmd = &cobra.Command{
		Use:   "branches",
		Short: "List every branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			n, err := sess.Ledger.GetBranchCount(ctx)
			if err != nil {
				return err
			}
			branches := make([]*ledger.Branch, 0, n)
			for id := range n {
				b, err := sess.Ledger.GetBranch(ctx, id)
				if err != nil {
					return err
				}
				branches = append(branches, b)
			}
			printBranches(os.Stdout, branches, sess.Descriptor.CurrentBranchID)
			return nil
		},
	}

	var branchCmd = &cobra.Command{
		Use:   "branch <name>",
		Short: "Fork a branch from the current one and check it out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.Ledger.ForkNewBranch(ctx, args[0], sess.Descriptor.CurrentBranchID); err != nil {
				return fmt.Errorf("forking %s: %w", args[0], err)
			}
			// IDs are contiguous, so the new branch is the last one.
			n, err := sess.Ledger.GetBranchCount(ctx)
			if err != nil {
				return err
			}
			branchID := n - 1
			head, err := application.Sync.Checkout(ctx, sess, branchID)
			if err != nil {
				return err
			}

			fmt.Printf("Created branch %d (%s) at commit %d\n", branchID, args[0], head)
			return nil
		},
	}

	var branchInfoCmd = &cobra.Command{
		Use:   "branchinfo",
		Short: "Show the current branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			b, err := sess.Ledger.GetBranch(ctx, sess.Descriptor.CurrentBranchID)
			if err != nil {
				return err
			}
			head, err := sess.Ledger.MostRecentCommit(ctx, b.ID)
			if err != nil {
				return err
			}
			printBranchInfo(os.Stdout, b, head, sess.Descriptor.CurrentCommitID)
			return nil
		},
	}

	var addEditorCmd = &cobra.Command{
		Use:   "addeditor <account>",
		Short: "Allow an account to commit to the current branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.Ledger.AddEditorToBranch(ctx, sess.Descriptor.CurrentBranchID, args[0]); err != nil {
				return err
			}
			fmt.Printf("%s can now commit to branch %d\n", args[0], sess.Descriptor.CurrentBranchID)
			return nil
		},
	}

	var rmEditorCmd = &cobra.Command{
		Use:   "rmeditor <account>",
		Short: "Revoke an account's commit access to the current branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.Ledger.RemoveEditorFromBranch(ctx, sess.Descriptor.CurrentBranchID, args[0]); err != nil {
				return err
			}
			fmt.Printf("%s can no longer commit to branch %d\n", args[0], sess.Descriptor.CurrentBranchID)
			return nil
		},
	}

	var checkoutCmd = &cobra.Command{
		Use:   "checkout <branch_id>",
		Short: "Replace the working tree with the head of a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			branchID, err := parseID("branch", args[0])
			if err != nil {
				return err
			}
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			force, _ := cmd.Flags().GetBool("force")
			if err := guardDirty(ctx, sess, force); err != nil {
				return err
			}
			head, err := application.Sync.Checkout(ctx, sess, branchID)
			if err != nil {
				return err
			}
			fmt.Printf("Switched to branch %d at commit %d\n", branchID, head)
			return nil
		},
	}

	var fetchCmd = &cobra.Command{
		Use:   "fetch <commit_id>",
		Short: "Replace the working tree with an arbitrary commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			commitID, err := parseID("commit", args[0])
			if err != nil {
				return err
			}
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			force, _ := cmd.Flags().GetBool("force")
			if err := guardDirty(ctx, sess, force); err != nil {
				return err
			}
			if err := application.Sync.Switch(ctx, sess, commitID); err != nil {
				return err
			}
			fmt.Printf("Working tree now at commit %d\n", commitID)
			return nil
		},
	}

	var commitCmd = &cobra.Command{
		Use:   "commit",
		Short: "Record the whole working tree as a commit on the current branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			message, _ := cmd.Flags().GetString("message")
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			id, err := application.Stager.Commit(ctx, sess, message)
			if err != nil {
				return err
			}
			fmt.Printf("Committed %d on branch %d\n", id, sess.Descriptor.CurrentBranchID)
			return nil
		},
	}

	var mergeCmd = &cobra.Command{
		Use:   "merge <child_branch_id>",
		Short: "Merge a branch into the current branch",
		Long: `Merges the head of the given branch into the current branch.

By default a three-way merge is computed locally and recorded as a commit
with two parents. Any path both sides changed in ways that cannot be merged
stops the merge and nothing is written. With --squash, the ledger appends the
child head's files as one commit, which requires that the current branch has
not moved since the child was forked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			childID, err := parseID("branch", args[0])
			if err != nil {
				return err
			}
			squash, _ := cmd.Flags().GetBool("squash")
			message, _ := cmd.Flags().GetString("message")
			force, _ := cmd.Flags().GetBool("force")

			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := guardDirty(ctx, sess, force); err != nil {
				return err
			}

			parentID := sess.Descriptor.CurrentBranchID
			var res *merging.Result
			if squash {
				res, err = application.Merges.Squash(ctx, sess, parentID, childID, message)
			} else {
				res, err = application.Merges.ThreeWay(ctx, sess, parentID, childID, message)
			}
			if err != nil {
				return err
			}
			printMergeResult(os.Stdout, res)
			return res.ConflictError()
		},
	}

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "List commits of the current branch, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			all, _ := cmd.Flags().GetBool("all")
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			var ids []int64
			if all {
				n, err := sess.Ledger.GetCommitCount(ctx, nil)
				if err != nil {
					return err
				}
				for id := range n {
					ids = append(ids, id)
				}
			} else {
				if ids, err = sess.Ledger.GetCommitsFromBranch(ctx, sess.Descriptor.CurrentBranchID); err != nil {
					return err
				}
			}

			commits := make([]*ledger.Commit, 0, len(ids))
			for i := len(ids) - 1; i >= 0; i-- {
				c, err := sess.Ledger.GetCommit(ctx, ids[i])
				if err != nil {
					return err
				}
				commits = append(commits, c)
			}
			printLog(os.Stdout, commits, sess.Descriptor.CurrentCommitID, time.Now())
			return nil
		},
	}

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show paths that differ from the current commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			st, err := workspace.Status(ctx, sess)
			if err != nil {
				return err
			}
			fmt.Printf("On branch %d, commit %d\n", st.BranchID, st.CommitID)
			if st.Clean() {
				fmt.Println("Nothing to commit, working tree clean")
				return nil
			}
			printStatus(os.Stdout, st)
			return nil
		},
	}

	var diffCmd = &cobra.Command{
		Use:   "diff [paths...]",
		Short: "Show line changes against the current commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			contextLines, _ := cmd.Flags().GetInt("context")
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			recorded, err := ledger.CommitFiles(ctx, sess.Ledger, sess.Descriptor.CurrentCommitID)
			if err != nil {
				return err
			}

			paths := args
			if len(paths) == 0 {
				st, err := workspace.Status(ctx, sess)
				if err != nil {
					return err
				}
				for _, c := range st.Changes {
					paths = append(paths, c.Path)
				}
			} else {
				cwd, err := os.Getwd()
				if err != nil {
					return err
				}
				for i, p := range paths {
					if paths[i], err = repoPath(sess.Root, cwd, p); err != nil {
						return err
					}
				}
			}

			engine := diff.NewEngine(contextLines)
			for _, p := range paths {
				var old []byte
				if hash, ok := recorded[p]; ok {
					if old, err = sess.Blobs.Get(ctx, hash); err != nil {
						return fmt.Errorf("reading %s at commit %d: %w", p, sess.Descriptor.CurrentCommitID, err)
					}
				}
				current, err := os.ReadFile(filepath.Join(sess.Root, filepath.FromSlash(p)))
				if err != nil && !os.IsNotExist(err) {
					return err
				}

				result, err := engine.Diff(old, current)
				if err != nil {
					return fmt.Errorf("diffing %s: %w", p, err)
				}
				if result.Empty() {
					continue
				}
				printDiff(os.Stdout, p, result)
			}
			return nil
		},
	}

	var watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Watch the working tree and optionally commit after each burst of edits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			autoCommit, _ := cmd.Flags().GetBool("commit")
			quiet, _ := cmd.Flags().GetDuration("quiet")
			message, _ := cmd.Flags().GetString("message")

			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			w, err := workspace.NewWatcher(sess.Root, quiet, logger)
			if err != nil {
				return err
			}
			defer w.Close()

			fmt.Printf("Watching %s (Ctrl-C to stop)\n", sess.Root)
			err = w.Run(ctx, func(ctx context.Context, paths []string) error {
				for _, p := range paths {
					fmt.Printf("  changed %s\n", p)
				}
				if !autoCommit {
					return nil
				}
				id, err := application.Stager.Commit(ctx, sess, message)
				if err != nil {
					// keep watching through transient ledger failures
					logger.Warn("auto commit failed", zap.Error(err))
					return nil
				}
				fmt.Printf("Committed %d\n", id)
				return nil
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	commitCmd.Flags().StringP("message", "m", "", "commit message")
	commitCmd.MarkFlagRequired("message")

	mergeCmd.Flags().Bool("squash", false, "squash the child branch into one commit")
	mergeCmd.Flags().StringP("message", "m", "", "merge commit message")
	mergeCmd.Flags().BoolP("force", "f", false, "discard uncommitted changes without asking")
	checkoutCmd.Flags().BoolP("force", "f", false, "discard uncommitted changes without asking")
	fetchCmd.Flags().BoolP("force", "f", false, "discard uncommitted changes without asking")

	logCmd.Flags().Bool("all", false, "list every commit of the repository")
	diffCmd.Flags().IntP("context", "U", 3, "lines of context around changes")

	watchCmd.Flags().Bool("commit", false, "commit the tree after each burst of edits")
	watchCmd.Flags().Duration("quiet", 2*time.Second, "how long the tree must be idle before reporting")
	watchCmd.Flags().StringP("message", "m", "Automatic commit", "message for automatic commits")

	rootCmd.AddCommand(initCmd, cloneCmd)
	rootCmd.AddCommand(branchesCmd, branchCmd, branchInfoCmd, addEditorCmd, rmEditorCmd)
	rootCmd.AddCommand(checkoutCmd, fetchCmd, commitCmd, mergeCmd)
	rootCmd.AddCommand(logCmd, statusCmd, diffCmd, watchCmd)
}

// repoPath turns a path given relative to cwd into a slash path relative to
// the repository root.
func repoPath(root, cwd, p string) (string, error) {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(cwd, p)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", p, err)
	}
	clean, err := validation.NormalizePath(filepath.ToSlash(rel))
	if err != nil {
		return "", fmt.Errorf("%s is outside the repository: %w", p, err)
	}
	return clean, nil
}
