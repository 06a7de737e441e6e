package git

import (
	"strings"

	"gitdash/internal/domain"
)

// RemoteArgs reads the URL of the origin remote
var RemoteArgs = []string{"config", "--get", "remote.origin.url"}

// SimplifyRemoteURL reduces a remote URL to "host/path" without a trailing
// ".git". It recognizes scp-like "user@host:path", "ssh://[user@]host/path"
// and "https://host/path"; other shapes are returned unchanged
func SimplifyRemoteURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.NoRemote
	}
	if simple, ok := simplifyRemoteURL(raw); ok {
		return simple
	}
	return raw
}

func simplifyRemoteURL(raw string) (string, bool) {
	trimmed := strings.TrimSuffix(raw, ".git")

	if rest, ok := strings.CutPrefix(trimmed, "ssh://"); ok {
		if at := strings.Index(rest, "@"); at >= 0 && at < strings.Index(rest+"/", "/") {
			rest = rest[at+1:]
		}
		return joinHostPath(rest, "/")
	}
	if rest, ok := strings.CutPrefix(trimmed, "https://"); ok {
		return joinHostPath(rest, "/")
	}
	if !strings.Contains(trimmed, "://") {
		if at := strings.Index(trimmed, "@"); at > 0 {
			return joinHostPath(trimmed[at+1:], ":")
		}
	}
	return "", false
}

func joinHostPath(rest, sep string) (string, bool) {
	host, path, ok := strings.Cut(rest, sep)
	if !ok || host == "" || path == "" {
		return "", false
	}
	return host + "/" + path, true
}
