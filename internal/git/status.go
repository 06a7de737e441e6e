package git

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gitdash/internal/domain"
)

// StatusArgs produces the transcript consumed by ParseStatus
var StatusArgs = []string{"status", "--porcelain=2", "-b"}

// Change is a single changed path from the status transcript
type Change struct {
	Code string // one-letter summary, or "??" for untracked
	Path string
}

// Transcript is the parsed form of `git status --porcelain=2 -b`
type Transcript struct {
	Branch       string
	AheadBehind  *domain.AheadBehind // nil when no upstream is configured
	Dirty        bool
	Changes      []Change
	Unrecognized []string // lines that matched no known shape
}

// ParseStatus reads a porcelain v2 transcript line by line.
//
// Any non-comment line marks the repository dirty, including shapes the
// parser does not model; those are kept in Unrecognized
func ParseStatus(raw []byte) Transcript {
	t := Transcript{Branch: domain.UnknownBranch}

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "# branch.head "):
			head := strings.TrimPrefix(line, "# branch.head ")
			if head == "(detached)" || head == "HEAD" {
				t.Branch = domain.DetachedBranch
			} else {
				t.Branch = head
			}
		case strings.HasPrefix(line, "# branch.ab "):
			t.AheadBehind = parseAheadBehind(strings.TrimPrefix(line, "# branch.ab "))
		case strings.HasPrefix(line, "#"):
			// other headers: branch.oid, branch.upstream, stash
		case strings.HasPrefix(line, "? "):
			t.Dirty = true
			t.Changes = append(t.Changes, Change{Code: "??", Path: line[2:]})
		case strings.HasPrefix(line, "1 "), strings.HasPrefix(line, "2 "), strings.HasPrefix(line, "u "):
			t.Dirty = true
			if c, ok := parseEntry(line[2:]); ok {
				t.Changes = append(t.Changes, c)
			}
		default:
			t.Dirty = true
			t.Unrecognized = append(t.Unrecognized, line)
		}
	}

	return t
}

// parseAheadBehind parses "+A -B"; anything else means no usable upstream
func parseAheadBehind(rest string) *domain.AheadBehind {
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return nil
	}
	ahead, err := strconv.Atoi(strings.TrimPrefix(fields[0], "+"))
	if err != nil || !strings.HasPrefix(fields[0], "+") {
		return nil
	}
	behind, err := strconv.Atoi(strings.TrimPrefix(fields[1], "-"))
	if err != nil || !strings.HasPrefix(fields[1], "-") {
		return nil
	}
	return &domain.AheadBehind{Ahead: ahead, Behind: behind}
}

// parseEntry splits the body of a "1", "2" or "u" line: the XY code, six
// metadata fields, then the path, which may itself contain spaces
func parseEntry(rest string) (Change, bool) {
	parts := strings.SplitN(rest, " ", 8)
	if len(parts) < 8 {
		return Change{}, false
	}
	return Change{Code: ShortCode(parts[0]), Path: parts[7]}, true
}

// ShortCode reduces a two-character XY code to one character, preferring
// the index side. "??" is kept as is
func ShortCode(xy string) string {
	if xy == "??" {
		return xy
	}
	x, y := byte('.'), byte('.')
	if len(xy) > 0 {
		x = xy[0]
	}
	if len(xy) > 1 {
		y = xy[1]
	}
	if x != '.' {
		return string(x)
	}
	return string(y)
}

// SummarizeChanges renders a histogram of change codes as sorted
// "code:count" pairs, e.g. "D:1 M:2"
func SummarizeChanges(changes []Change) string {
	if len(changes) == 0 {
		return domain.NoChanges
	}

	counts := make(map[string]int)
	for _, c := range changes {
		counts[c.Code]++
	}

	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	items := make([]string, 0, len(codes))
	for _, code := range codes {
		items = append(items, fmt.Sprintf("%s:%d", code, counts[code]))
	}
	return strings.Join(items, " ")
}
