package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitdash/internal/domain"
	dasherrors "gitdash/internal/errors"
	"gitdash/internal/gitfixture"
)

// scriptedGit answers status and remote queries with canned output
const scriptedGit = `case "$1" in
status)
  printf '# branch.oid abc\n# branch.head develop\n# branch.upstream origin/develop\n# branch.ab +3 -1\n1 .M N... 100644 100644 100644 a b file.go\n'
  ;;
config)
  echo "git@github.com:acme/widgets.git"
  ;;
*)
  echo "$@"
  ;;
esac`

func refFor(t *testing.T, path string) domain.RepoRef {
	t.Helper()
	gitDir := filepath.Join(path, ".git")
	require.DirExists(t, gitDir)
	return domain.RepoRef{Path: path, GitDir: gitDir}
}

func TestService_StatusFromScriptedGit(t *testing.T) {
	dir := t.TempDir()
	gitDir := filepath.Join(dir, ".git")
	require.NoError(t, os.Mkdir(gitDir, 0o755))

	svc := NewService(NewRunner(WithBinary(gitfixture.FakeGit(t, scriptedGit))))
	st, err := svc.Status(context.Background(), domain.RepoRef{Path: dir, GitDir: gitDir})
	require.NoError(t, err)

	assert.Equal(t, dir, st.Path)
	assert.Equal(t, filepath.Base(dir), st.Name)
	assert.Equal(t, "develop", st.Branch)
	assert.True(t, st.Dirty)
	require.NotNil(t, st.AheadBehind)
	assert.Equal(t, "+3/-1", st.AheadBehindString())
	assert.Equal(t, "M:1", st.ChangeSummary)
	assert.Equal(t, "github.com/acme/widgets", st.RemoteURL)
	assert.Equal(t, domain.NoLastFetch, st.LastFetch)
	assert.Empty(t, st.Error)
	assert.False(t, st.Failed())
}

func TestService_MissingRemoteIsNotAFailure(t *testing.T) {
	bin := gitfixture.FakeGit(t, `if [ "$1" = config ]; then exit 1; fi
printf '# branch.head main\n'`)
	dir := t.TempDir()

	svc := NewService(NewRunner(WithBinary(bin)))
	st, err := svc.Status(context.Background(), domain.RepoRef{Path: dir, GitDir: filepath.Join(dir, ".git")})
	require.NoError(t, err)
	assert.Equal(t, domain.NoRemote, st.RemoteURL)
	assert.False(t, st.Dirty)
	assert.Equal(t, domain.NoChanges, st.ChangeSummary)
}

func TestService_LastFetchUsesClock(t *testing.T) {
	dir := t.TempDir()
	gitDir := filepath.Join(dir, ".git")
	require.NoError(t, os.Mkdir(gitDir, 0o755))
	marker := filepath.Join(gitDir, FetchMarker)
	require.NoError(t, os.WriteFile(marker, nil, 0o644))
	fetched := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(marker, fetched, fetched))

	svc := NewService(
		NewRunner(WithBinary(gitfixture.FakeGit(t, scriptedGit))),
		WithClock(func() time.Time { return fetched.Add(90 * time.Second) }),
	)
	st, err := svc.Status(context.Background(), domain.RepoRef{Path: dir, GitDir: gitDir})
	require.NoError(t, err)
	assert.Equal(t, "1m", st.LastFetch)
}

func TestService_StatusTimeoutDegrades(t *testing.T) {
	dir := t.TempDir()
	ref := domain.RepoRef{Path: dir, GitDir: filepath.Join(dir, ".git")}

	svc := NewService(
		NewRunner(WithBinary(gitfixture.FakeGit(t, `sleep 10`))),
		WithStatusTimeout(100*time.Millisecond),
	)
	_, err := svc.Status(context.Background(), ref)
	require.Error(t, err)
	require.True(t, dasherrors.IsTimeout(err))

	st := DegradedStatus(ref, err, time.Now())
	assert.Equal(t, domain.SummaryTimeout, st.ChangeSummary)
	assert.Contains(t, st.Error, "timed out")
	assert.True(t, st.Dirty)
	assert.True(t, st.Failed())
	assert.Equal(t, domain.NoBranch, st.Branch)
	assert.Nil(t, st.AheadBehind)
	assert.Equal(t, domain.NoRemote, st.RemoteURL)
	assert.Equal(t, domain.NoLastFetch, st.LastFetch)
}

func TestDegradedStatus_GenericFailure(t *testing.T) {
	dir := t.TempDir()
	ref := domain.RepoRef{Path: dir, GitDir: filepath.Join(dir, ".git")}
	bin := gitfixture.FakeGit(t, `echo "fatal: not a git repository" >&2; exit 128`)

	_, err := NewService(NewRunner(WithBinary(bin))).Status(context.Background(), ref)
	require.Error(t, err)

	st := DegradedStatus(ref, err, time.Now())
	assert.Equal(t, domain.SummaryError, st.ChangeSummary)
	assert.Contains(t, st.Error, "not a git repository")
	assert.Equal(t, filepath.Base(dir), st.Name)
	assert.Equal(t, ref, st.Ref())
}

func TestService_ActionsUseExpectedArgs(t *testing.T) {
	svc := NewService(NewRunner(WithBinary(gitfixture.FakeGit(t, `echo "  $@  "`))))
	dir := t.TempDir()

	msg, err := svc.Pull(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "pull --ff-only", msg)

	msg, err = svc.Push(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "push", msg)
}

func TestService_ActionFailureSurfacesStderr(t *testing.T) {
	bin := gitfixture.FakeGit(t, `echo "fatal: Not possible to fast-forward, aborting." >&2; exit 128`)
	svc := NewService(NewRunner(WithBinary(bin)))

	_, err := svc.Pull(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Not possible to fast-forward")
	assert.Equal(t, "cannot fast-forward, branches have diverged", dasherrors.FriendlyMessage(err.Error()))
}

func TestService_RealRepositories(t *testing.T) {
	root := t.TempDir()
	svc := NewService(NewRunner())
	ctx := context.Background()

	t.Run("clean with upstream", func(t *testing.T) {
		path := gitfixture.CreateRepo(t, root, "repoA", gitfixture.WithRemote())

		st, err := svc.Status(ctx, refFor(t, path))
		require.NoError(t, err)
		assert.Equal(t, "main", st.Branch)
		assert.False(t, st.Dirty)
		if st.AheadBehind != nil {
			assert.Equal(t, domain.AheadBehind{}, *st.AheadBehind)
		}
		assert.Equal(t, domain.NoChanges, st.ChangeSummary)
		assert.NotEqual(t, domain.NoRemote, st.RemoteURL)
	})

	t.Run("modified and untracked without upstream", func(t *testing.T) {
		path := gitfixture.CreateRepo(t, root, "subdir/repoB",
			gitfixture.WithFiles(map[string]string{"one.txt": "1\n", "two.txt": "2\n"}),
			gitfixture.WithDirtyState(),
		)
		require.NoError(t, os.WriteFile(filepath.Join(path, "one.txt"), []byte("changed\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(path, "two.txt"), []byte("changed\n"), 0o644))

		st, err := svc.Status(ctx, refFor(t, path))
		require.NoError(t, err)
		assert.Equal(t, "repoB", st.Name)
		assert.True(t, st.Dirty)
		assert.Nil(t, st.AheadBehind)
		assert.Equal(t, "??:1 M:2", st.ChangeSummary)
		assert.Equal(t, domain.NoRemote, st.RemoteURL)
		assert.Equal(t, domain.NoLastFetch, st.LastFetch)
	})

	t.Run("ahead of upstream", func(t *testing.T) {
		path := gitfixture.CreateRepo(t, root, "repoC", gitfixture.WithRemote())
		gitfixture.Commit(t, path, "a.txt", "a\n")
		gitfixture.Commit(t, path, "b.txt", "b\n")

		st, err := svc.Status(ctx, refFor(t, path))
		require.NoError(t, err)
		require.NotNil(t, st.AheadBehind)
		assert.Equal(t, domain.AheadBehind{Ahead: 2, Behind: 0}, *st.AheadBehind)
	})

	t.Run("fetched", func(t *testing.T) {
		path := gitfixture.CreateRepo(t, root, "repoD", gitfixture.WithRemote())
		gitfixture.Git(t, path, "fetch", "-q", "origin")

		st, err := svc.Status(ctx, refFor(t, path))
		require.NoError(t, err)
		assert.Regexp(t, `^\d+[smhd]$`, st.LastFetch)
	})

	t.Run("pull fast-forward", func(t *testing.T) {
		path := gitfixture.CreateRepo(t, root, "repoE", gitfixture.WithRemote())

		_, err := svc.Pull(ctx, path)
		require.NoError(t, err)
	})
}
