package git

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gitdash/internal/domain"
)

func TestSimplifyRemoteURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"scp-like", "git@github.com:owner/repo", "github.com/owner/repo"},
		{"scp-like with .git", "git@github.com:owner/repo.git", "github.com/owner/repo"},
		{"ssh", "ssh://github.com/owner/repo", "github.com/owner/repo"},
		{"ssh with user and .git", "ssh://git@github.com/owner/repo.git", "github.com/owner/repo"},
		{"https", "https://gitlab.com/group/sub/repo", "gitlab.com/group/sub/repo"},
		{"https with .git", "https://gitlab.com/group/sub/repo.git", "gitlab.com/group/sub/repo"},
		{"trailing newline", "https://example.com/a/b.git\n", "example.com/a/b"},
		{"local path passes through", "/srv/git/repo.git", "/srv/git/repo.git"},
		{"file url passes through", "file:///srv/git/repo.git", "file:///srv/git/repo.git"},
		{"http passes through", "http://example.com/repo", "http://example.com/repo"},
		{"empty", "", domain.NoRemote},
		{"whitespace", "  \n", domain.NoRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SimplifyRemoteURL(tt.raw))
		})
	}
}
