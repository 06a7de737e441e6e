// Package errors provides typed errors for gitdash.
//
// GitError covers every failure raised while running git or reading
// repository metadata. The Kind field classifies the failure so callers can
// decide whether to absorb it (discovery, status aggregation) or surface it
// (pull/push). All errors support errors.Is() and errors.As() from the
// standard library and cockroachdb/errors
package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind classifies a GitError
type Kind int

const (
	KindUnknown Kind = iota
	KindPathInvalid
	KindSpawnFailed
	KindTimedOut
	KindNonZeroExit
	KindParseInconsistent
	KindFilesystemUnreadable
)

func (k Kind) String() string {
	switch k {
	case KindPathInvalid:
		return "path invalid"
	case KindSpawnFailed:
		return "spawn failed"
	case KindTimedOut:
		return "timed out"
	case KindNonZeroExit:
		return "non-zero exit"
	case KindParseInconsistent:
		return "parse inconsistent"
	case KindFilesystemUnreadable:
		return "filesystem unreadable"
	default:
		return "unknown"
	}
}

// GitError represents a failure of a git invocation or a metadata read
type GitError struct {
	Kind    Kind
	Op      string // e.g. "status --porcelain=2 -b", "read gitdir"
	Path    string // repository or file the operation ran against
	Message string
	Cause   error
}

// Error implements the error interface
func (e *GitError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		fmt.Fprintf(&b, "git %s", e.Op)
	} else {
		b.WriteString("git")
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " in %s", e.Path)
	}
	switch {
	case e.Message != "":
		fmt.Fprintf(&b, ": %s", e.Message)
	case e.Cause != nil:
		fmt.Fprintf(&b, ": %v", e.Cause)
	default:
		fmt.Fprintf(&b, ": %s", e.Kind)
	}
	return b.String()
}

// Unwrap returns the underlying cause for error chain traversal
func (e *GitError) Unwrap() error {
	return e.Cause
}

// NewGitError creates a new GitError
func NewGitError(kind Kind, op, path, message string) *GitError {
	return &GitError{Kind: kind, Op: op, Path: path, Message: message}
}

// NewGitErrorWithCause creates a new GitError with an underlying cause
func NewGitErrorWithCause(kind Kind, op, path string, cause error) *GitError {
	return &GitError{Kind: kind, Op: op, Path: path, Cause: cause}
}

// KindOf returns the Kind of the first GitError in the chain,
// or KindUnknown if there is none
func KindOf(err error) Kind {
	var gitErr *GitError
	if errors.As(err, &gitErr) {
		return gitErr.Kind
	}
	return KindUnknown
}

// IsTimeout checks if an error or any error in its chain is a timed out
// git invocation
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimedOut
}

// IsPathInvalid checks if an error or any error in its chain is a
// canonicalization failure
func IsPathInvalid(err error) bool {
	return KindOf(err) == KindPathInvalid
}

// IsGitError checks if an error or any error in its chain is a GitError
func IsGitError(err error) bool {
	var gitErr *GitError
	return errors.As(err, &gitErr)
}

// RawMessage returns the message git itself reported for err: the trimmed
// stderr of a failed invocation, or err's text for anything else
func RawMessage(err error) string {
	if err == nil {
		return ""
	}
	var gitErr *GitError
	if errors.As(err, &gitErr) && gitErr.Message != "" {
		return gitErr.Message
	}
	return err.Error()
}
