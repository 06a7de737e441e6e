package git

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gitdash/internal/domain"
	dasherrors "gitdash/internal/errors"
	"gitdash/internal/log"
)

// Argument vectors for the network actions
var (
	PullArgs = []string{"pull", "--ff-only"}
	PushArgs = []string{"push"}
)

// Service computes repository status and runs pull/push through a Runner
type Service struct {
	runner        *Runner
	statusTimeout time.Duration
	actionTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithStatusTimeout bounds each status query
func WithStatusTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.statusTimeout = d
		}
	}
}

// WithActionTimeout bounds pull and push
func WithActionTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.actionTimeout = d
		}
	}
}

// WithLogger sets the logger used for parse diagnostics
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = log.OrNop(l)
	}
}

// WithClock replaces time.Now when computing fetch ages
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a git service on top of runner
func NewService(runner *Runner, opts ...Option) *Service {
	s := &Service{
		runner:        runner,
		statusTimeout: DefaultStatusTimeout,
		actionTimeout: DefaultActionTimeout,
		logger:        log.Nop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status computes a fresh status record for ref.
// Only the status query itself can fail; a missing remote or fetch marker
// degrades to the corresponding sentinel
func (s *Service) Status(ctx context.Context, ref domain.RepoRef) (domain.RepoStatus, error) {
	out, err := s.runner.Run(ctx, ref.Path, StatusArgs, s.statusTimeout)
	if err != nil {
		return domain.RepoStatus{}, err
	}

	t := ParseStatus(out)
	if len(t.Unrecognized) > 0 {
		s.logger.Debug("status transcript has unrecognized lines",
			"path", ref.Path,
			"kind", dasherrors.KindParseInconsistent.String(),
			"lines", len(t.Unrecognized),
		)
	}

	return domain.RepoStatus{
		Path:          ref.Path,
		GitDir:        ref.GitDir,
		Name:          domain.RepoName(ref.Path),
		Branch:        t.Branch,
		Dirty:         t.Dirty,
		AheadBehind:   t.AheadBehind,
		ChangeSummary: SummarizeChanges(t.Changes),
		RemoteURL:     s.remoteURL(ctx, ref.Path),
		LastFetch:     LastFetch(ref.GitDir, s.now()),
	}, nil
}

// remoteURL returns the simplified origin URL, or NoRemote
func (s *Service) remoteURL(ctx context.Context, path string) string {
	out, err := s.runner.Run(ctx, path, RemoteArgs, s.statusTimeout)
	if err != nil {
		return domain.NoRemote
	}
	return SimplifyRemoteURL(string(out))
}

// Pull fast-forwards the repository at path from its upstream
func (s *Service) Pull(ctx context.Context, path string) (string, error) {
	return s.action(ctx, path, PullArgs)
}

// Push pushes the current branch of the repository at path
func (s *Service) Push(ctx context.Context, path string) (string, error) {
	return s.action(ctx, path, PushArgs)
}

func (s *Service) action(ctx context.Context, path string, args []string) (string, error) {
	out, err := s.runner.Run(ctx, path, args, s.actionTimeout)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// DegradedStatus builds the record reported for a repository whose status
// check failed: identity, a dirty posture, sentinels and the error message
func DegradedStatus(ref domain.RepoRef, err error, now time.Time) domain.RepoStatus {
	summary := domain.SummaryError
	if dasherrors.IsTimeout(err) {
		summary = domain.SummaryTimeout
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return domain.RepoStatus{
		Path:          ref.Path,
		GitDir:        ref.GitDir,
		Name:          domain.RepoName(ref.Path),
		Branch:        domain.NoBranch,
		Dirty:         true,
		ChangeSummary: summary,
		RemoteURL:     domain.NoRemote,
		LastFetch:     LastFetch(ref.GitDir, now),
		Error:         msg,
	}
}
