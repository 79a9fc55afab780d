package render

import (
	"bytes"
	"os"

	"golang.org/x/term"

	"github.com/verte-zerg/yiiprof/internal/stats"
)

// Text renders the summary and an aligned segment table.
type Text struct {
	// Width truncates messages to fit; 0 means no limit.
	Width int
	// Top limits the number of rows when positive.
	Top int
}

// Render implements Renderer.
func (t *Text) Render(r stats.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := stats.RenderSummary(&buf, r); err != nil {
		return nil, err
	}
	if err := stats.RenderSegmentTable(&buf, r.Segments(), t.Width, t.Top); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Ext implements Renderer.
func (t *Text) Ext() string {
	return ".txt"
}

// TerminalWidth returns the width of stdout, or 0 when it is not a terminal.
func TerminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return 0
	}
	return width
}
