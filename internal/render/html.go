package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/verte-zerg/yiiprof/internal/model"
	"github.com/verte-zerg/yiiprof/internal/stats"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

// HTML renders the standalone report page.
type HTML struct {
	tpl *template.Template
}

// NewHTML parses the embedded report template.
func NewHTML() (*HTML, error) {
	tpl, err := template.New("report.html.tmpl").Funcs(template.FuncMap{
		"ms": stats.FormatMs,
		"ts": func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
	}).ParseFS(templateFS, "templates/report.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}
	return &HTML{tpl: tpl}, nil
}

type htmlData struct {
	GeneratedAt time.Time
	Inputs      []string
	Isolate     bool
	Diagnostics model.Diagnostics
	Segments    []model.Segment
}

// Render implements Renderer.
func (h *HTML) Render(r stats.Report) ([]byte, error) {
	var buf bytes.Buffer
	data := htmlData{
		GeneratedAt: r.GeneratedAt,
		Inputs:      r.Inputs,
		Isolate:     r.Isolate,
		Diagnostics: r.Diagnostics,
		Segments:    r.Segments(),
	}
	if err := h.tpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

// Ext implements Renderer.
func (h *HTML) Ext() string {
	return ".html"
}
