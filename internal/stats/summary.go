package stats

import (
	"fmt"
	"io"
	"strings"

	"github.com/verte-zerg/yiiprof/internal/model"
)

const minMessageWidth = 16

// RenderSummary prints run totals and the diagnostics counters.
func RenderSummary(w io.Writer, r Report) error {
	lines := []string{
		"Summary",
		fmt.Sprintf("Inputs: %s", strings.Join(r.Inputs, ", ")),
		fmt.Sprintf("Segments: %d", len(r.SortedKeys)),
		fmt.Sprintf("Samples: %d", r.Diagnostics.Samples),
		fmt.Sprintf("Lines: %d (structured %d, continuation %d, unparseable %d)",
			r.Diagnostics.Lines, r.Diagnostics.Structured, r.Diagnostics.Continuations, r.Diagnostics.Unparseable),
		fmt.Sprintf("Filtered events: %d", r.Diagnostics.Filtered),
		fmt.Sprintf("Unmatched ends: %d", r.Diagnostics.UnmatchedEnds),
		fmt.Sprintf("Abandoned begins: %d", r.Diagnostics.AbandonedBegins),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderSegmentTable prints ranked segments as an aligned table. A positive
// width truncates the message column so rows fit on one line; top limits the
// number of rows when positive.
func RenderSegmentTable(w io.Writer, segments []model.Segment, width, top int) error {
	if len(segments) == 0 {
		_, err := fmt.Fprintln(w, "No profiled segments found.")
		return err
	}
	if top > 0 && top < len(segments) {
		segments = segments[:top]
	}

	headers := []string{"#", "Avg (ms)", "Total (ms)", "Count", "Min (ms)", "Max (ms)", "Category", "Message"}
	rows := make([][]string, 0, len(segments))
	for _, s := range segments {
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.Rank),
			FormatMs(s.AvgMs),
			FormatMs(s.TotalMs),
			fmt.Sprintf("%d", s.Count),
			FormatMs(s.MinMs),
			FormatMs(s.MaxMs),
			s.Category,
			singleLine(s.Message),
		})
	}
	if width > 0 {
		fitLastColumn(headers, rows, width)
	}
	rightAlign := map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true, 5: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

// FormatMs formats a millisecond value for tables.
func FormatMs(ms float64) string {
	return fmt.Sprintf("%.2f", ms)
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// fitLastColumn truncates the last cell of every row so the table is at most
// width columns wide.
func fitLastColumn(headers []string, rows [][]string, width int) {
	last := len(headers) - 1
	used := 0
	for i := 0; i < last; i++ {
		colWidth := displayWidth(headers[i])
		for _, row := range rows {
			if w := displayWidth(row[i]); w > colWidth {
				colWidth = w
			}
		}
		used += colWidth + 1
	}
	avail := width - used
	if avail < minMessageWidth {
		avail = minMessageWidth
	}
	for _, row := range rows {
		row[last] = Truncate(row[last], avail)
	}
}
