package errors

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// friendlyMessages maps recognizable git error text to short phrases.
// Order matters: the first match wins
var friendlyMessages = []struct {
	needle string
	phrase string
}{
	{"Permission denied", "permission denied (check SSH keys or credentials)"},
	{"Could not resolve host", "network unreachable (could not resolve host)"},
	{"non-fast-forward", "rejected: remote has new commits, pull first"},
	{"[rejected]", "rejected: remote has new commits, pull first"},
	{"Not possible to fast-forward", "cannot fast-forward, branches have diverged"},
	{"has no upstream branch", "no upstream branch configured"},
	{"no upstream", "no upstream branch configured"},
	{"There is no tracking information", "no upstream branch configured"},
	{"Authentication failed", "authentication failed"},
	{"Connection timed out", "connection timed out"},
	{"timed out", "timed out"},
	{"not a git repository", "not a git repository"},
}

// FriendlyMessage translates a raw git error message into a short phrase
// for display. Unrecognized messages are returned trimmed
func FriendlyMessage(raw string) string {
	for _, m := range friendlyMessages {
		if strings.Contains(raw, m.needle) {
			return m.phrase
		}
	}
	return strings.TrimSpace(raw)
}

// FormatUserError returns a short display message for err. A GitError is
// reduced to what failed and a friendly phrase; its cause stays out of the
// message and belongs in the log
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}
	if !IsGitError(err) {
		return FriendlyMessage(err.Error())
	}

	var gitErr *GitError
	errors.As(err, &gitErr)

	phrase := gitErr.Kind.String()
	if gitErr.Message != "" {
		phrase = FriendlyMessage(gitErr.Message)
	}

	switch {
	case IsPathInvalid(err) && gitErr.Path != "":
		return gitErr.Path + ": " + phrase
	case gitErr.Op != "":
		return gitErr.Op + " failed: " + phrase
	default:
		return phrase
	}
}
