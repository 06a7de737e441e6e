package git

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gitdash/internal/domain"
	dasherrors "gitdash/internal/errors"
)

// FetchMarker is the file git rewrites on every fetch
const FetchMarker = "FETCH_HEAD"

// FetchAge returns how long ago the repository behind gitDir was fetched,
// judged by the modification time of its fetch marker
func FetchAge(gitDir string, now time.Time) (time.Duration, error) {
	marker := filepath.Join(gitDir, FetchMarker)
	info, err := os.Stat(marker)
	if err != nil {
		return 0, dasherrors.NewGitErrorWithCause(dasherrors.KindFilesystemUnreadable, "stat "+FetchMarker, marker, err)
	}
	age := now.Sub(info.ModTime())
	if age < 0 {
		age = 0
	}
	return age, nil
}

// LastFetch renders the fetch age of gitDir, or NoLastFetch if the
// repository was never fetched or the marker cannot be read
func LastFetch(gitDir string, now time.Time) string {
	age, err := FetchAge(gitDir, now)
	if err != nil {
		return domain.NoLastFetch
	}
	return FormatAge(age)
}

// FormatAge renders d in its largest whole unit: 90s is "1m", 25h is "1d"
func FormatAge(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	mins := secs / 60
	if mins < 60 {
		return fmt.Sprintf("%dm", mins)
	}
	hours := mins / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dd", hours/24)
}
