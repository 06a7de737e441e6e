package domain

import (
	"fmt"
	"path/filepath"
)

// Sentinel values shown in place of data that could not be determined
const (
	NoBranch       = "-"
	DetachedBranch = "DETACHED"
	UnknownBranch  = "unknown"
	NoRemote       = "-"
	NoAheadBehind  = "-"
	NoLastFetch    = "-"
	NoChanges      = "-"

	// Change summaries of degraded records
	SummaryTimeout = "timeout"
	SummaryError   = "error"
)

// RepoRef identifies a discovered repository
type RepoRef struct {
	Path   string // absolute path of the working directory
	GitDir string // resolved metadata directory, may live outside Path
}

// AheadBehind holds commit counts relative to the upstream branch
type AheadBehind struct {
	Ahead  int
	Behind int
}

func (ab AheadBehind) String() string {
	return fmt.Sprintf("+%d/-%d", ab.Ahead, ab.Behind)
}

// RepoStatus is the snapshot computed for one repository.
// Every check produces a new value; records are never patched in place
type RepoStatus struct {
	Path          string
	GitDir        string
	Name          string
	Branch        string
	Dirty         bool
	AheadBehind   *AheadBehind // nil when no upstream is tracked
	ChangeSummary string
	RemoteURL     string
	LastFetch     string
	Error         string // error message if status check failed
}

// Ref returns the identity of the repository the status belongs to
func (s RepoStatus) Ref() RepoRef {
	return RepoRef{Path: s.Path, GitDir: s.GitDir}
}

// Failed reports whether this is a degraded record
func (s RepoStatus) Failed() bool {
	return s.Error != ""
}

// AheadBehindString renders the ahead/behind pair or its sentinel
func (s RepoStatus) AheadBehindString() string {
	if s.AheadBehind == nil {
		return NoAheadBehind
	}
	return s.AheadBehind.String()
}

// RepoName returns the display name for a repository path
func RepoName(path string) string {
	name := filepath.Base(filepath.Clean(path))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "(unknown)"
	}
	return name
}

// Action is an operation that can be run against a repository
type Action int

const (
	ActionPull Action = iota
	ActionPush
)

func (a Action) String() string {
	switch a {
	case ActionPull:
		return "pull"
	case ActionPush:
		return "push"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Outcome is the result of running an Action
type Outcome struct {
	OK      bool
	Message string // git output on success, raw error text on failure
}
