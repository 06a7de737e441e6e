package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitdash/internal/domain"
	dasherrors "gitdash/internal/errors"
)

func TestFormatAge(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want string
	}{
		{0, "0s"},
		{30 * time.Second, "30s"},
		{59 * time.Second, "59s"},
		{90 * time.Second, "1m"},
		{3540 * time.Second, "59m"},
		{3600 * time.Second, "1h"},
		{7200 * time.Second, "2h"},
		{86400 * time.Second, "1d"},
		{90000 * time.Second, "1d"},
		{10 * 24 * time.Hour, "10d"},
		{-time.Minute, "0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAge(tt.age), "FormatAge(%s)", tt.age)
	}
}

func TestFetchAge(t *testing.T) {
	gitDir := t.TempDir()
	marker := filepath.Join(gitDir, FetchMarker)
	require.NoError(t, os.WriteFile(marker, nil, 0o644))

	fetched := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(marker, fetched, fetched))

	now := fetched.Add(2*time.Hour + 5*time.Minute)
	age, err := FetchAge(gitDir, now)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour+5*time.Minute, age)
	assert.Equal(t, "2h", LastFetch(gitDir, now))
}

func TestFetchAge_FutureMtimeClamps(t *testing.T) {
	gitDir := t.TempDir()
	marker := filepath.Join(gitDir, FetchMarker)
	require.NoError(t, os.WriteFile(marker, nil, 0o644))

	now := time.Now()
	future := now.Add(time.Hour)
	require.NoError(t, os.Chtimes(marker, future, future))

	age, err := FetchAge(gitDir, now)
	require.NoError(t, err)
	assert.Zero(t, age)
}

func TestFetchAge_NeverFetched(t *testing.T) {
	gitDir := t.TempDir()

	_, err := FetchAge(gitDir, time.Now())
	require.Error(t, err)
	assert.Equal(t, dasherrors.KindFilesystemUnreadable, dasherrors.KindOf(err))
	assert.Equal(t, domain.NoLastFetch, LastFetch(gitDir, time.Now()))
}
