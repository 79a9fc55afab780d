package render

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/verte-zerg/yiiprof/internal/stats"
)

// JSON renders the report as an indented JSON document.
type JSON struct{}

type jsonReport struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Inputs      []string        `json:"inputs"`
	Isolate     bool            `json:"isolate"`
	Diagnostics jsonDiagnostics `json:"diagnostics"`
	Segments    []jsonSegment   `json:"segments"`
}

type jsonDiagnostics struct {
	Lines                int `json:"lines"`
	Structured           int `json:"structured"`
	Continuations        int `json:"continuations"`
	DroppedContinuations int `json:"droppedContinuations"`
	Filtered             int `json:"filtered"`
	Unparseable          int `json:"unparseable"`
	UnmatchedEnds        int `json:"unmatchedEnds"`
	AbandonedBegins      int `json:"abandonedBegins"`
	Samples              int `json:"samples"`
}

type jsonSegment struct {
	Rank     int     `json:"rank"`
	Message  string  `json:"message"`
	Category string  `json:"category"`
	Count    int     `json:"count"`
	TotalMs  float64 `json:"totalMs"`
	AvgMs    float64 `json:"avgMs"`
	MinMs    float64 `json:"minMs"`
	MaxMs    float64 `json:"maxMs"`
}

// Render implements Renderer.
func (j *JSON) Render(r stats.Report) ([]byte, error) {
	d := r.Diagnostics
	out := jsonReport{
		GeneratedAt: r.GeneratedAt,
		Inputs:      r.Inputs,
		Isolate:     r.Isolate,
		Diagnostics: jsonDiagnostics(d),
		Segments:    []jsonSegment{},
	}
	for _, s := range r.Segments() {
		out.Segments = append(out.Segments, jsonSegment(s))
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// Ext implements Renderer.
func (j *JSON) Ext() string {
	return ".json"
}
