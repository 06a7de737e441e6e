package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"gitdash/internal/discovery"
	"gitdash/internal/domain"
	dasherrors "gitdash/internal/errors"
)

func newActionCmd(a *app, action domain.Action) *cobra.Command {
	name := action.String()

	return &cobra.Command{
		Use:   name + " [path]",
		Short: fmt.Sprintf("Run git %s in a repository and show its new status", name),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer func() { a.finish(err) }()
			if err = a.prepare(cmd); err != nil {
				return err
			}

			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return a.runAction(cmd.Context(), path, action, cmd.OutOrStdout())
		},
	}
}

func (a *app) runAction(ctx context.Context, path string, action domain.Action, out io.Writer) error {
	ref, err := resolveRepo(path)
	if err != nil {
		return err
	}

	s := newSession(ctx, a.cfg, a.logger)
	defer s.close()

	e, err := s.await(ctx, domain.RunActionCommand{Path: ref.Path, Action: action}, domain.EventActionResult)
	if err != nil {
		return errors.Wrapf(err, "%s failed", action)
	}
	result := e.(domain.ActionResultEvent)
	printOutcome(out, ref, result)

	if _, err := s.await(ctx, domain.RefreshCommand{Repos: []domain.RepoRef{ref}}, domain.EventRefreshComplete); err != nil {
		return errors.Wrap(err, "refresh failed")
	}
	if st, ok := s.store.Get(ref.Path); ok {
		if err := renderTable(out, []domain.RepoStatus{st}); err != nil {
			return err
		}
	}

	if !result.Outcome.OK {
		return dasherrors.NewGitError(dasherrors.KindNonZeroExit, action.String(), ref.Path, result.Outcome.Message)
	}
	return nil
}

// resolveRepo identifies the repository whose working directory is path
func resolveRepo(path string) (domain.RepoRef, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.RepoRef{}, errors.Wrapf(err, "invalid path %s", path)
	}
	gitDir, err := discovery.ResolveGitDir(abs, filepath.Join(abs, ".git"))
	if err != nil {
		return domain.RepoRef{}, &dasherrors.GitError{
			Kind:    dasherrors.KindPathInvalid,
			Op:      "open repository",
			Path:    abs,
			Message: "not a git repository",
			Cause:   err,
		}
	}
	return domain.RepoRef{Path: abs, GitDir: gitDir}, nil
}

func printOutcome(out io.Writer, ref domain.RepoRef, result domain.ActionResultEvent) {
	name := domain.RepoName(ref.Path)
	if !result.Outcome.OK {
		fmt.Fprintf(out, "%s %s: %s\n", result.Action, name, dasherrors.FriendlyMessage(result.Outcome.Message))
		return
	}

	fmt.Fprintf(out, "%s %s: ok\n", result.Action, name)
	for _, line := range strings.Split(strings.TrimSpace(result.Outcome.Message), "\n") {
		if line != "" {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
}
