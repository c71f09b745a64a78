package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/connorferster/python-course-admin/core/review"
)

// print writes `v` as indented JSON, or through `text` in text format.
func (cli *commandLine) print(v interface{}, text func(w io.Writer)) error {
	if cli.format == formatJSON {
		enc := json.NewEncoder(cli.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(cli.out)
	return nil
}

func printRound(w io.Writer, rnd review.Round) {
	fmt.Fprintf(w, "Round %q (%d pairings, created %s)\n", rnd.Title, len(rnd.Partition), rnd.CreatedAt.Format("2006-01-02 15:04 MST"))
	for _, pairing := range rnd.Partition {
		b := pairing.B
		if b == "" {
			b = "(no partner)"
		}
		fmt.Fprintf(w, "  %s <-> %s\n", pairing.A, b)
	}
}

func printSendReport(w io.Writer, report review.SendReport) {
	printRound(w, report.Round)
	fmt.Fprintf(w, "Forwarded %d submission(s)\n", report.Forwarded)
	printList(w, "Missing submissions", report.Missing)
}

func printReconciliation(w io.Writer, rec review.Reconciliation) {
	fmt.Fprintf(w, "Round %q\n", rec.Round)
	printList(w, "Reviewed", rec.Happy)
	printList(w, "Not reviewed", rec.Unhappy)
	printList(w, "No partner", rec.Unpaired)
	if len(rec.Unmatched) > 0 {
		fmt.Fprintf(w, "No matches (%d):\n", len(rec.Unmatched))
		for _, id := range rec.Unmatched {
			if match, ok := rec.Suggestions[id]; ok {
				fmt.Fprintf(w, "  %s (did you mean %s?)\n", id, match)
			} else {
				fmt.Fprintf(w, "  %s\n", id)
			}
		}
	}
}

func printList(w io.Writer, title string, ids []string) {
	if len(ids) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d):\n  %s\n", title, len(ids), strings.Join(ids, "\n  "))
}
