package render

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/yiiprof/internal/model"
	"github.com/verte-zerg/yiiprof/internal/stats"
)

func testReport() stats.Report {
	agg := stats.NewAggregator()
	agg.Fold(model.TimingSample{Message: "<script>alert(1)</script>", Category: "app", DurationMs: 12.5})
	agg.Fold(model.TimingSample{Message: "SELECT * FROM user", Category: `yii\db\Command::query`, DurationMs: 40})
	report := stats.BuildReport(agg, []string{"app.log"}, false, model.Diagnostics{Lines: 4, Structured: 4, Samples: 2})
	report.GeneratedAt = time.Date(2016, 3, 4, 12, 0, 0, 0, time.UTC)
	return report
}

func TestHTMLRender(t *testing.T) {
	r, err := ForFormat("html")
	if err != nil {
		t.Fatalf("html renderer: %v", err)
	}
	out, err := r.Render(testReport())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	page := string(out)
	if !strings.Contains(page, "Generated 2016-03-04 12:00:00") {
		t.Fatalf("missing generated time")
	}
	if strings.Contains(page, "<script>alert(1)</script>") {
		t.Fatalf("message was not escaped")
	}
	if !strings.Contains(page, "&lt;script&gt;") {
		t.Fatalf("expected escaped message")
	}
	first := strings.Index(page, "SELECT * FROM user")
	second := strings.Index(page, "&lt;script&gt;")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("expected slower segment first")
	}
	if !strings.Contains(page, "40.00") {
		t.Fatalf("expected formatted durations")
	}
	if r.Ext() != ".html" {
		t.Fatalf("unexpected ext %q", r.Ext())
	}
}

func TestHTMLRenderEmpty(t *testing.T) {
	h, err := NewHTML()
	if err != nil {
		t.Fatalf("html renderer: %v", err)
	}
	empty := stats.BuildReport(stats.NewAggregator(), []string{"a.log"}, true, model.Diagnostics{})
	out, err := h.Render(empty)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(out), "No profiled segments found.") {
		t.Fatalf("expected empty notice")
	}
	if !strings.Contains(string(out), "isolated stacks") {
		t.Fatalf("expected isolate notice")
	}
}

func TestTextRender(t *testing.T) {
	out, err := (&Text{Width: 120}).Render(testReport())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	text := string(out)
	if !strings.Contains(text, "Summary") || !strings.Contains(text, "SELECT * FROM user") {
		t.Fatalf("unexpected text output: %s", text)
	}
}

func TestTextRenderWithoutWidthKeepsFullMessage(t *testing.T) {
	long := strings.Repeat("SELECT id FROM order_item WHERE order_id = 1 ", 8)
	agg := stats.NewAggregator()
	agg.Fold(model.TimingSample{Message: long, Category: "app", DurationMs: 3})
	report := stats.BuildReport(agg, []string{"app.log"}, false, model.Diagnostics{Samples: 1})

	out, err := (&Text{}).Render(report)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(out), strings.TrimSpace(long)) {
		t.Fatalf("expected the full message in output: %s", out)
	}
}

func TestJSONRender(t *testing.T) {
	out, err := (&JSON{}).Render(testReport())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var decoded struct {
		Inputs      []string `json:"inputs"`
		Diagnostics struct {
			Samples int `json:"samples"`
		} `json:"diagnostics"`
		Segments []struct {
			Rank    int     `json:"rank"`
			Message string  `json:"message"`
			AvgMs   float64 `json:"avgMs"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Diagnostics.Samples != 2 || len(decoded.Segments) != 2 {
		t.Fatalf("unexpected document: %+v", decoded)
	}
	if decoded.Segments[0].Rank != 1 || decoded.Segments[0].Message != "SELECT * FROM user" || decoded.Segments[0].AvgMs != 40 {
		t.Fatalf("unexpected first segment: %+v", decoded.Segments[0])
	}
}

func TestForFormatUnknown(t *testing.T) {
	if _, err := ForFormat("pdf"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestPersistIntoDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path, err := Persist([]byte("hello"), dir, "out.html")
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if path != filepath.Join(dir, "out.html") {
		t.Fatalf("unexpected path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello" {
		t.Fatalf("unexpected content %q (%v)", data, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the report in %s, got %d entries", dir, len(entries))
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("expected mode 0644, got %v", info.Mode().Perm())
	}
}

func TestPersistTempDir(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())
	path, err := Persist([]byte("x"), "", "report.html")
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(filepath.Dir(path)), TempDirPattern) {
		t.Fatalf("expected temp dir with prefix %q, got %q", TempDirPattern, path)
	}
}

func TestPersistRequiresFilename(t *testing.T) {
	if _, err := Persist([]byte("x"), t.TempDir(), ""); err == nil {
		t.Fatalf("expected error for empty filename")
	}
}

func TestOpenStartsCommand(t *testing.T) {
	var got string
	orig := openCommand
	t.Cleanup(func() { openCommand = orig })
	openCommand = func(path string) *exec.Cmd {
		got = path
		return exec.Command("true")
	}
	if err := Open("/tmp/report.html"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if got != "/tmp/report.html" {
		t.Fatalf("unexpected path %q", got)
	}
}
