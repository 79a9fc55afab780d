package stats

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/yiiprof/internal/model"
)

func sampleReport() Report {
	agg := NewAggregator()
	agg.Fold(model.TimingSample{Message: "fast", Category: "app", DurationMs: 2})
	agg.Fold(model.TimingSample{Message: "slow", Category: "db", DurationMs: 90})
	agg.Fold(model.TimingSample{Message: "slow", Category: "db", DurationMs: 110})
	return BuildReport(agg, []string{"app.log"}, false, model.Diagnostics{Samples: 3, Lines: 6, Structured: 6})
}

func TestBuildReport(t *testing.T) {
	report := sampleReport()
	if len(report.SortedKeys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(report.SortedKeys))
	}
	if report.SortedKeys[0] != "slow" || report.SortedKeys[1] != "fast" {
		t.Fatalf("unexpected ranking: %v", report.SortedKeys)
	}
	segs := report.Segments()
	if segs[0].Rank != 1 || segs[0].AvgMs != 100 || segs[0].Count != 2 {
		t.Fatalf("unexpected first segment: %+v", segs[0])
	}
	if segs[1].Rank != 2 || segs[1].Category != "app" {
		t.Fatalf("unexpected second segment: %+v", segs[1])
	}
}

func TestReportFromRunKeepsOrder(t *testing.T) {
	run := model.Run{
		CreatedAt: time.Unix(100, 0),
		Inputs:    []string{"a.log"},
		Segments: []model.Segment{
			{Rank: 1, Message: "x", Count: 1, TotalMs: 5, MinMs: 5, MaxMs: 5},
			{Rank: 2, Message: "y", Count: 2, TotalMs: 8, MinMs: 3, MaxMs: 5},
		},
	}
	report := ReportFromRun(run)
	if report.SortedKeys[0] != "x" || report.SortedKeys[1] != "y" {
		t.Fatalf("unexpected keys: %v", report.SortedKeys)
	}
	if got := report.Result["y"].AvgMs(); got != 4 {
		t.Fatalf("expected avg 4, got %v", got)
	}
	back := report.Run()
	if len(back.Segments) != 2 || back.Segments[1].MinMs != 3 {
		t.Fatalf("unexpected round trip: %+v", back.Segments)
	}
}

func TestRenderSegmentTable(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSegmentTable(&buf, sampleReport().Segments(), 0, 0); err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "#") || !strings.HasSuffix(lines[0], "Message") {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[1], "100.00") || !strings.HasSuffix(lines[1], "slow") {
		t.Fatalf("unexpected first row: %q", lines[1])
	}
}

func TestRenderSegmentTableTopAndWidth(t *testing.T) {
	segs := []model.Segment{
		{Rank: 1, Message: strings.Repeat("x", 200), Category: "app", Count: 1, AvgMs: 1},
		{Rank: 2, Message: "second", Category: "app", Count: 1, AvgMs: 1},
	}
	var buf bytes.Buffer
	if err := RenderSegmentTable(&buf, segs, 80, 1); err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d", len(lines))
	}
	if w := displayWidth(lines[1]); w > 80 {
		t.Fatalf("expected row to fit in 80 columns, got %d", w)
	}
}

func TestRenderSegmentTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSegmentTable(&buf, nil, 0, 0); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "No profiled segments found.") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSummary(&buf, sampleReport()); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Inputs: app.log", "Segments: 2", "Samples: 3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q: %s", want, out)
		}
	}
}
