package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitdash/internal/domain"
)

func TestParseStatus_CleanWithUpstream(t *testing.T) {
	raw := "# branch.oid 1234abcd\n# branch.head main\n# branch.upstream origin/main\n# branch.ab +0 -0\n"

	got := ParseStatus([]byte(raw))

	assert.Equal(t, "main", got.Branch)
	assert.False(t, got.Dirty)
	require.NotNil(t, got.AheadBehind)
	assert.Equal(t, domain.AheadBehind{Ahead: 0, Behind: 0}, *got.AheadBehind)
	assert.Empty(t, got.Changes)
	assert.Equal(t, domain.NoChanges, SummarizeChanges(got.Changes))
}

func TestParseStatus_AheadBehind(t *testing.T) {
	got := ParseStatus([]byte("# branch.head main\n# branch.ab +2 -0\n"))
	require.NotNil(t, got.AheadBehind)
	assert.Equal(t, 2, got.AheadBehind.Ahead)
	assert.Equal(t, 0, got.AheadBehind.Behind)
	assert.Equal(t, "+2/-0", got.AheadBehind.String())

	got = ParseStatus([]byte("# branch.head main\n"))
	assert.Nil(t, got.AheadBehind)
}

func TestParseStatus_MalformedAheadBehind(t *testing.T) {
	for _, line := range []string{
		"# branch.ab 2 0",
		"# branch.ab +x -1",
		"# branch.ab +1",
	} {
		got := ParseStatus([]byte(line + "\n"))
		assert.Nil(t, got.AheadBehind, line)
		assert.False(t, got.Dirty, line)
	}
}

func TestParseStatus_Branch(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"named", "# branch.head feature/x\n", "feature/x"},
		{"detached", "# branch.head (detached)\n", domain.DetachedBranch},
		{"detached HEAD", "# branch.head HEAD\n", domain.DetachedBranch},
		{"missing header", "? new.txt\n", domain.UnknownBranch},
		{"empty transcript", "", domain.UnknownBranch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStatus([]byte(tt.raw)).Branch)
		})
	}
}

func TestParseStatus_ChangeHistogram(t *testing.T) {
	raw := "# branch.head main\n" +
		"1 .M N... 100644 100644 100644 aaa bbb a.txt\n" +
		"1 M. N... 100644 100644 100644 aaa bbb b.txt\n" +
		"1 D. N... 100644 000000 000000 aaa bbb c.txt\n"

	got := ParseStatus([]byte(raw))

	assert.True(t, got.Dirty)
	require.Len(t, got.Changes, 3)
	assert.Equal(t, "D:1 M:2", SummarizeChanges(got.Changes))
}

func TestParseStatus_UntrackedAndModified(t *testing.T) {
	raw := "# branch.head main\n" +
		"1 .M N... 100644 100644 100644 aaa bbb one.txt\n" +
		"1 .M N... 100644 100644 100644 aaa bbb two.txt\n" +
		"? new.txt\n"

	got := ParseStatus([]byte(raw))

	assert.True(t, got.Dirty)
	assert.Nil(t, got.AheadBehind)
	assert.Equal(t, "??:1 M:2", SummarizeChanges(got.Changes))
}

func TestParseStatus_PathWithSpaces(t *testing.T) {
	raw := "1 A. N... 000000 100644 100644 000 aaa my notes file.txt\n" +
		"? dir with space/x.txt\n"

	got := ParseStatus([]byte(raw))

	require.Len(t, got.Changes, 2)
	assert.Equal(t, Change{Code: "A", Path: "my notes file.txt"}, got.Changes[0])
	assert.Equal(t, Change{Code: "??", Path: "dir with space/x.txt"}, got.Changes[1])
}

func TestParseStatus_DirtyIffNonCommentLine(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantDirty bool
	}{
		{"headers only", "# branch.oid abc\n# branch.head main\n# stash 2\n", false},
		{"blank lines", "\n\n# branch.head main\n\n", false},
		{"renamed entry", "2 R. N... 100644 100644 100644 aaa bbb R100 new.txt\told.txt\n", true},
		{"unmerged entry", "u UU N... 100644 100644 100644 100644 aaa bbb ccc conflict.txt\n", true},
		{"short entry", "1 .M\n", true},
		{"unknown shape", "! ignored.txt\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantDirty, ParseStatus([]byte(tt.raw)).Dirty)
		})
	}
}

func TestParseStatus_UnrecognizedLinesAreKept(t *testing.T) {
	got := ParseStatus([]byte("# branch.head main\n! ignored.txt\n1 .M\n"))

	assert.Equal(t, []string{"! ignored.txt"}, got.Unrecognized)
	assert.Empty(t, got.Changes, "short entries mark dirty but add no change")
}

func TestParseStatus_CRLF(t *testing.T) {
	got := ParseStatus([]byte("# branch.head main\r\n? a.txt\r\n"))
	assert.Equal(t, "main", got.Branch)
	require.Len(t, got.Changes, 1)
	assert.Equal(t, "a.txt", got.Changes[0].Path)
}

func TestShortCode(t *testing.T) {
	tests := map[string]string{
		"??": "??",
		".M": "M",
		"M.": "M",
		"MM": "M",
		"A.": "A",
		".D": "D",
		"R.": "R",
		"UU": "U",
		"..": ".",
		"":   ".",
	}
	for xy, want := range tests {
		assert.Equal(t, want, ShortCode(xy), "ShortCode(%q)", xy)
	}
}

func TestSummarizeChanges_SortedByCode(t *testing.T) {
	changes := []Change{
		{Code: "M", Path: "a"},
		{Code: "??", Path: "b"},
		{Code: "A", Path: "c"},
		{Code: "M", Path: "d"},
		{Code: "D", Path: "e"},
	}
	assert.Equal(t, "??:1 A:1 D:1 M:2", SummarizeChanges(changes))
	assert.Equal(t, domain.NoChanges, SummarizeChanges(nil))
}
