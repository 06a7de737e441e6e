package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"gitdash/internal/domain"
	dasherrors "gitdash/internal/errors"
)

var tableHeader = []string{"NAME", "BRANCH", "DIRTY", "AHEAD/BEHIND", "CHANGES", "REMOTE", "FETCHED", "ERROR"}

// renderTable writes one aligned row per status
func renderTable(w io.Writer, statuses []domain.RepoStatus) error {
	if len(statuses) == 0 {
		_, err := fmt.Fprintln(w, "no repositories found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	writeRow(tw, tableHeader)
	for _, st := range statuses {
		writeRow(tw, tableRow(st))
	}
	return tw.Flush()
}

func tableRow(st domain.RepoStatus) []string {
	dirty := ""
	if st.Dirty {
		dirty = "*"
	}
	errText := ""
	if st.Failed() {
		errText = dasherrors.FriendlyMessage(st.Error)
	}
	return []string{
		st.Name,
		st.Branch,
		dirty,
		st.AheadBehindString(),
		st.ChangeSummary,
		st.RemoteURL,
		st.LastFetch,
		errText,
	}
}

func writeRow(w io.Writer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
}
