package prune

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// NoPruneableMessage is printed when discovery finds nothing.
const NoPruneableMessage = "No pruneable event types found. Register an event type whose cases implement Prune()."

// Lines renders the report the way the prune command prints it: one line per
// skipped type, one per case, then the total.
func (r Report) Lines() []string {
	lines := make([]string, 0, len(r.Skipped)+len(r.Cases)+1)
	for _, s := range r.Skipped {
		lines = append(lines, fmt.Sprintf("Event type [%s] %s, skipping.", s.TypeID, s.Reason))
	}

	verb := "records pruned."
	if r.DryRun {
		verb = "records to prune."
	}
	for _, c := range r.Cases {
		lines = append(lines, fmt.Sprintf("Event %s: %s %s", c.Case, humanize.Comma(c.Count), verb))
	}

	action := "pruned"
	if r.DryRun {
		action = "would be pruned"
	}
	lines = append(lines, fmt.Sprintf("Total: %s records %s.", humanize.Comma(r.Total), action))
	return lines
}

// WriteTo writes Lines to w, one per line.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, line := range r.Lines() {
		n, err := fmt.Fprintln(w, line)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
