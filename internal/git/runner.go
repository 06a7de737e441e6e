package git

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	dasherrors "gitdash/internal/errors"
	"gitdash/internal/log"
)

// Default timeouts for git invocations
const (
	DefaultStatusTimeout = 5 * time.Second
	DefaultActionTimeout = 30 * time.Second
)

// DefaultWaitDelay bounds how long output pipes may stay open after the
// child exits, e.g. held by a daemonized credential helper
const DefaultWaitDelay = time.Second

// Runner spawns and supervises single git invocations
type Runner struct {
	binary    string
	waitDelay time.Duration
	logger    *slog.Logger
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithBinary overrides the executable used in place of "git"
func WithBinary(path string) RunnerOption {
	return func(r *Runner) {
		if path != "" {
			r.binary = path
		}
	}
}

// WithWaitDelay sets how long Run keeps reading output after the child has
// exited or been killed before closing the pipes
func WithWaitDelay(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.waitDelay = d
		}
	}
}

// WithRunnerLogger sets the sink for per-invocation timing logs
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = log.OrNop(l)
	}
}

// NewRunner creates a runner for the git executable on PATH
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		binary:    "git",
		waitDelay: DefaultWaitDelay,
		logger:    log.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the binary with args inside dir and returns its stdout.
//
// dir is canonicalized first; a path that does not resolve to a directory
// fails without spawning anything. The child runs in its own process group
// and the whole group is killed and reaped once timeout elapses or ctx is
// cancelled. A non-zero exit yields an error carrying the trimmed stderr
func (r *Runner) Run(ctx context.Context, dir string, args []string, timeout time.Duration) ([]byte, error) {
	op := strings.Join(args, " ")
	start := time.Now()

	canonical, err := canonicalDir(dir)
	if err != nil {
		return nil, dasherrors.NewGitErrorWithCause(dasherrors.KindPathInvalid, op, dir, err)
	}

	cmd := exec.Command(r.binary, args...)
	cmd.Dir = canonical
	setProcessGroup(cmd)

	// exec drains both pipes concurrently into the buffers. WaitDelay makes
	// Wait give up on pipes a surviving grandchild keeps open
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.waitDelay

	if err := cmd.Start(); err != nil {
		return nil, dasherrors.NewGitErrorWithCause(dasherrors.KindSpawnFailed, op, canonical, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-timer.C:
		killProcessGroup(cmd)
		<-done
		r.logResult("git timeout", canonical, args, start)
		return nil, dasherrors.NewGitError(dasherrors.KindTimedOut, op, canonical,
			"timed out after "+timeout.String())
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		r.logResult("git cancelled", canonical, args, start)
		return nil, errors.Wrapf(ctx.Err(), "git %s", op)
	}

	if errors.Is(waitErr, exec.ErrWaitDelay) {
		r.logger.Debug("git output left open after exit", "path", canonical, "args", args)
		waitErr = nil
	}

	if waitErr != nil {
		r.logResult("git err", canonical, args, start)
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = waitErr.Error()
		}
		return nil, &dasherrors.GitError{
			Kind:    dasherrors.KindNonZeroExit,
			Op:      op,
			Path:    canonical,
			Message: msg,
			Cause:   waitErr,
		}
	}

	r.logResult("git ok", canonical, args, start)
	return stdout.Bytes(), nil
}

func (r *Runner) logResult(msg, path string, args []string, start time.Time) {
	r.logger.Debug(msg,
		"path", path,
		"args", args,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

// canonicalDir resolves symlinks and verifies dir is an existing directory
func canonicalDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrap(err, "failed to make path absolute")
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve path")
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", errors.Wrap(err, "failed to stat path")
	}
	if !info.IsDir() {
		return "", errors.Newf("%s is not a directory", resolved)
	}
	return resolved, nil
}
