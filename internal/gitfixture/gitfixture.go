// Package gitfixture builds throwaway git repositories for tests
package gitfixture

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// RepoOption configures repository creation
type RepoOption func(*repoOptions)

type repoOptions struct {
	withCommit bool
	dirty      bool
	withRemote bool
	files      map[string]string // filename -> contents
}

// WithCommit creates the repository with an initial commit
func WithCommit(commit bool) RepoOption {
	return func(opts *repoOptions) {
		opts.withCommit = commit
	}
}

// WithDirtyState leaves an untracked file in the working tree
func WithDirtyState() RepoOption {
	return func(opts *repoOptions) {
		opts.dirty = true
	}
}

// WithRemote adds a bare repository next to the repo as origin and pushes
// main with upstream tracking
func WithRemote() RepoOption {
	return func(opts *repoOptions) {
		opts.withRemote = true
	}
}

// WithFiles writes files before the initial commit
func WithFiles(files map[string]string) RepoOption {
	return func(opts *repoOptions) {
		opts.files = files
	}
}

// RequireGit skips the test when no git executable is on PATH
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// CreateRepo initializes a repository at root/name on branch main and
// returns its path. The parent directories are created as needed
func CreateRepo(t testing.TB, root, name string, options ...RepoOption) string {
	t.Helper()
	RequireGit(t)

	opts := &repoOptions{withCommit: true}
	for _, opt := range options {
		opt(opts)
	}

	repoPath := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(repoPath, 0o755))

	Git(t, repoPath, "init", "-q")
	Git(t, repoPath, "symbolic-ref", "HEAD", "refs/heads/main")

	for filename, content := range opts.files {
		filePath := filepath.Join(repoPath, filename)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	}

	if opts.withCommit {
		readme := fmt.Sprintf("# %s\n\nTest repository.\n", name)
		require.NoError(t, os.WriteFile(filepath.Join(repoPath, "README.md"), []byte(readme), 0o644))
		Git(t, repoPath, "add", ".")
		Git(t, repoPath, "commit", "-q", "-m", "Initial commit")
	}

	if opts.withRemote {
		remotePath := filepath.Join(root, filepath.Base(name)+"-remote.git")
		Git(t, "", "init", "-q", "--bare", remotePath)
		Git(t, repoPath, "remote", "add", "origin", remotePath)
		if opts.withCommit {
			Git(t, repoPath, "push", "-q", "-u", "origin", "main")
		}
	}

	if opts.dirty {
		dirtyPath := filepath.Join(repoPath, "dirty.txt")
		require.NoError(t, os.WriteFile(dirtyPath, []byte("Uncommitted changes"), 0o644))
	}

	return repoPath
}

// Commit writes file with content and commits it
func Commit(t testing.TB, repoPath, file, content string) {
	t.Helper()
	path := filepath.Join(repoPath, file)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	Git(t, repoPath, "add", file)
	Git(t, repoPath, "commit", "-q", "-m", "update "+file)
}

// Git runs git with a deterministic environment and fails the test on error.
// An empty dir runs in the current directory
func Git(t testing.TB, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = Env()
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, out)
	return string(out)
}

// Env is the process environment with identity set and user config ignored
func Env() []string {
	return append(os.Environ(),
		"GIT_AUTHOR_NAME=gitdash test",
		"GIT_AUTHOR_EMAIL=test@gitdash.test",
		"GIT_COMMITTER_NAME=gitdash test",
		"GIT_COMMITTER_EMAIL=test@gitdash.test",
		"GIT_CONFIG_GLOBAL="+os.DevNull,
		"GIT_CONFIG_NOSYSTEM=1",
	)
}

// FakeGit writes an executable shell script standing in for git and returns
// its path. The test is skipped on platforms without /bin/sh
func FakeGit(t testing.TB, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts unsupported")
	}
	path := filepath.Join(t.TempDir(), "fake-git")
	body := "#!/bin/sh\n" + script + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}
