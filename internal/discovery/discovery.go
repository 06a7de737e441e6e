package discovery

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"gitdash/internal/domain"
	dasherrors "gitdash/internal/errors"
	"gitdash/internal/log"
)

// DefaultProgressEvery is the number of visited directories between progress reports
const DefaultProgressEvery = 20

// gitEntry marks a repository root. It is a directory for ordinary
// repositories and a file pointing elsewhere for worktrees and submodules
const gitEntry = ".git"

// ProgressFunc receives the number of directories visited so far and the
// number still queued. Returning false stops the walk
type ProgressFunc func(visited, pending int) bool

// Walker finds git repositories below a root directory
type Walker struct {
	logger        *slog.Logger
	progressEvery int
	skip          map[string]struct{}
}

// Option configures a Walker
type Option func(*Walker)

// WithLogger sets the logger for skipped directories and broken gitdirs
func WithLogger(l *slog.Logger) Option {
	return func(w *Walker) {
		w.logger = log.OrNop(l)
	}
}

// WithProgressEvery sets the progress cadence; values below 1 are ignored
func WithProgressEvery(n int) Option {
	return func(w *Walker) {
		if n > 0 {
			w.progressEvery = n
		}
	}
}

// WithSkipDirs excludes directories with the given base names from the walk,
// e.g. "node_modules" or "vendor". Nothing is skipped by default
func WithSkipDirs(names ...string) Option {
	return func(w *Walker) {
		for _, name := range names {
			if name != "" {
				w.skip[name] = struct{}{}
			}
		}
	}
}

// NewWalker creates a walker
func NewWalker(opts ...Option) *Walker {
	w := &Walker{
		logger:        log.Nop(),
		progressEvery: DefaultProgressEvery,
		skip:          make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Discover walks root with a default walker
func Discover(root string, onProgress ProgressFunc) []domain.RepoRef {
	return NewWalker().Discover(root, onProgress)
}

// Discover walks root depth first and returns every repository found, in
// visit order. A directory holding a .git entry is a repository root and is
// never descended into, so nested repositories and the metadata directory
// itself are not reported. Unreadable directories and broken gitdir files
// are skipped. onProgress may be nil
func (w *Walker) Discover(root string, onProgress ProgressFunc) []domain.RepoRef {
	abs, err := filepath.Abs(root)
	if err != nil {
		w.logger.Debug("cannot make root absolute", "path", root, "error", err)
		abs = root
	}

	var repos []domain.RepoRef
	stack := []string{abs}
	visited := 0

	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visited++

		if ref := w.visit(dir, &stack); ref != nil {
			repos = append(repos, *ref)
		}

		if onProgress != nil && (visited%w.progressEvery == 0 || len(stack) == 0) {
			if !onProgress(visited, len(stack)) {
				w.logger.Debug("discovery stopped", "path", abs, "visited", visited, "repos", len(repos))
				break
			}
		}
	}

	return repos
}

// visit reads dir. A repository root yields a ref when its metadata dir
// resolves and nothing otherwise. Any other directory pushes its
// subdirectories in reverse name order so they are popped alphabetically
func (w *Walker) visit(dir string, stack *[]string) *domain.RepoRef {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logger.Debug("skipping unreadable directory",
			"path", dir,
			"kind", dasherrors.KindFilesystemUnreadable.String(),
			"error", err,
		)
		return nil
	}

	for _, entry := range entries {
		if entry.Name() != gitEntry {
			continue
		}
		gitDir, err := ResolveGitDir(dir, filepath.Join(dir, gitEntry))
		if err != nil {
			w.logger.Debug("skipping repository with unresolvable gitdir", "path", dir, "error", err)
			return nil
		}
		return &domain.RepoRef{Path: dir, GitDir: gitDir}
	}

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if !entry.IsDir() {
			continue
		}
		if _, skip := w.skip[entry.Name()]; skip {
			continue
		}
		*stack = append(*stack, filepath.Join(dir, entry.Name()))
	}
	return nil
}

// ResolveGitDir returns the metadata directory behind gitPath, the .git
// entry of repoRoot. A directory is its own metadata dir. A file must hold a
// "gitdir: <path>" line; relative targets are joined to repoRoot. The
// result must be an existing directory
func ResolveGitDir(repoRoot, gitPath string) (string, error) {
	info, err := os.Stat(gitPath)
	if err != nil {
		return "", dasherrors.NewGitErrorWithCause(dasherrors.KindFilesystemUnreadable, "stat .git", gitPath, err)
	}
	if info.IsDir() {
		return gitPath, nil
	}
	if !info.Mode().IsRegular() {
		return "", dasherrors.NewGitError(dasherrors.KindPathInvalid, "resolve gitdir", gitPath, "not a file or directory")
	}

	target, err := readGitdirFile(gitPath)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(repoRoot, target)
	}
	target = filepath.Clean(target)

	info, err = os.Stat(target)
	if err != nil {
		return "", dasherrors.NewGitErrorWithCause(dasherrors.KindPathInvalid, "resolve gitdir", gitPath,
			errors.Wrapf(err, "gitdir target %s", target))
	}
	if !info.IsDir() {
		return "", dasherrors.NewGitError(dasherrors.KindPathInvalid, "resolve gitdir", gitPath,
			"gitdir target "+target+" is not a directory")
	}
	return target, nil
}

func readGitdirFile(gitPath string) (string, error) {
	f, err := os.Open(gitPath)
	if err != nil {
		return "", dasherrors.NewGitErrorWithCause(dasherrors.KindFilesystemUnreadable, "read gitdir", gitPath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if rest, ok := strings.CutPrefix(scanner.Text(), "gitdir:"); ok {
			if target := strings.TrimSpace(rest); target != "" {
				return target, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", dasherrors.NewGitErrorWithCause(dasherrors.KindFilesystemUnreadable, "read gitdir", gitPath, err)
	}
	return "", dasherrors.NewGitError(dasherrors.KindPathInvalid, "read gitdir", gitPath, "no gitdir line")
}
