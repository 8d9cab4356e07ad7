package trace

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	sgdiff "github.com/sourcegraph/go-diff/diff"
)

// TraceDiff describes how two traces differ.
type TraceDiff struct {
	Unified string // GNU unified diff, empty when the traces are identical
	Hunks   int
	// FirstDivergence is the 1-based line of the first differing record in
	// Lines(a), or 0 when the traces are identical.
	FirstDivergence int
	FirstLine       string
}

// Identical reports whether the traces matched record for record.
func (d *TraceDiff) Identical() bool {
	return d.Unified == ""
}

// Lines renders every record of the trace, one per line, events first.
func Lines(st *SimulationTrace) []string {
	if st == nil {
		return nil
	}
	lines := make([]string, 0, len(st.Events)+len(st.Grants)+len(st.Releases))
	for _, e := range st.Events {
		lines = append(lines, fmt.Sprintf("event t=%.9g seq=%d kind=%s process=%d", e.Time, e.Seq, e.Kind, e.ProcessID))
	}
	for _, g := range st.Grants {
		var pools []string
		for _, p := range g.Pools {
			pools = append(pools, fmt.Sprintf("%s:%d/%d", p.Pool, p.InUse, p.Capacity))
		}
		lines = append(lines, fmt.Sprintf("grant t=%.9g request=%d process=%d waited=%.9g pools=%s",
			g.Time, g.RequestID, g.ProcessID, g.Waited, strings.Join(pools, ",")))
	}
	for _, r := range st.Releases {
		lines = append(lines, fmt.Sprintf("release t=%.9g request=%d process=%d forced=%v", r.Time, r.RequestID, r.ProcessID, r.Forced))
	}
	return lines
}

// Diff compares two traces line by line.
func Diff(a, b *SimulationTrace) (*TraceDiff, error) {
	la, lb := joinLines(Lines(a)), joinLines(Lines(b))
	if la == lb {
		return &TraceDiff{}, nil
	}
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(la),
		B:        difflib.SplitLines(lb),
		FromFile: "run-1",
		ToFile:   "run-2",
		Context:  2,
	}
	unified, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return nil, err
	}
	fd, err := sgdiff.ParseFileDiff([]byte(unified))
	if err != nil {
		return nil, fmt.Errorf("parsing trace diff: %w", err)
	}
	d := &TraceDiff{Unified: unified, Hunks: len(fd.Hunks)}
	if len(fd.Hunks) > 0 {
		d.FirstDivergence, d.FirstLine = firstChange(fd.Hunks[0])
	}
	return d, nil
}

// firstChange locates the first removed or added line of a hunk.
func firstChange(h *sgdiff.Hunk) (int, string) {
	line := int(h.OrigStartLine)
	sc := bufio.NewScanner(bytes.NewReader(h.Body))
	for sc.Scan() {
		text := sc.Text()
		if strings.HasPrefix(text, "-") || strings.HasPrefix(text, "+") {
			return line, text[1:]
		}
		line++
	}
	return line, ""
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
