package correlate

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/yiiprof/internal/model"
)

type recorder struct {
	samples []model.TimingSample
}

func (r *recorder) Fold(s model.TimingSample) {
	r.samples = append(r.samples, s)
}

func record(ts, flag, cat, msg string) string {
	return fmt.Sprintf("2016-03-04 %s [127.0.0.1][-][sid][%s][%s]%s", ts, flag, cat, msg)
}

func begin(ts, msg string) string { return record(ts, "profile begin", "app", msg) }
func end(ts, msg string) string   { return record(ts, "profile end", "app", msg) }

func run(t *testing.T, filter Filter, lines ...string) (*recorder, model.Diagnostics) {
	t.Helper()
	rec := &recorder{}
	c := New(filter, rec)
	for _, l := range lines {
		c.Consume(l)
	}
	return rec, c.Close()
}

func TestPairsBeginWithEnd(t *testing.T) {
	rec, diag := run(t, Filter{},
		begin("10:00:00.100", "A"),
		end("10:00:00.350", "A"),
	)
	require.Len(t, rec.samples, 1)
	assert.Equal(t, "A", rec.samples[0].Message)
	assert.InDelta(t, 250.0, rec.samples[0].DurationMs, 1e-9)
	assert.Equal(t, 1, diag.Samples)
	assert.Equal(t, 0, diag.AbandonedBegins)
}

func TestNestedSegments(t *testing.T) {
	rec, _ := run(t, Filter{},
		begin("10:00:00", "outer"),
		begin("10:00:01", "inner"),
		end("10:00:03", "inner"),
		end("10:00:10", "outer"),
	)
	require.Len(t, rec.samples, 2)
	assert.Equal(t, "inner", rec.samples[0].Message)
	assert.InDelta(t, 2000.0, rec.samples[0].DurationMs, 1e-9)
	assert.Equal(t, "outer", rec.samples[1].Message)
	assert.InDelta(t, 10000.0, rec.samples[1].DurationMs, 1e-9)
}

func TestOnlyTopFrameIsMatched(t *testing.T) {
	rec, diag := run(t, Filter{},
		begin("10:00:00", "A"),
		begin("10:00:01", "B"),
		end("10:00:02", "A"),
	)
	assert.Empty(t, rec.samples)
	assert.Equal(t, 1, diag.UnmatchedEnds)
	assert.Equal(t, 2, diag.AbandonedBegins)
}

func TestUnmatchedEndLeavesFrameOpen(t *testing.T) {
	rec := &recorder{}
	c := New(Filter{}, rec)
	c.Consume(begin("10:00:00", "A"))
	c.Consume(begin("10:00:01", "B"))
	c.Consume(end("10:00:02", "A"))
	assert.Equal(t, 2, c.Depth())

	c.Consume(end("10:00:03", "B"))
	c.Consume(end("10:00:04", "A"))
	require.Len(t, rec.samples, 2)
	assert.Equal(t, "B", rec.samples[0].Message)
	assert.Equal(t, "A", rec.samples[1].Message)
	assert.InDelta(t, 4000.0, rec.samples[1].DurationMs, 1e-9)
	assert.Equal(t, 0, c.Depth())
}

func TestEndOnEmptyStack(t *testing.T) {
	rec, diag := run(t, Filter{}, end("10:00:00", "X"))
	assert.Empty(t, rec.samples)
	assert.Equal(t, 1, diag.UnmatchedEnds)
}

func TestContinuationExtendsTopMessage(t *testing.T) {
	rec, diag := run(t, Filter{},
		begin("10:00:00", "A"),
		"extra",
		end("10:00:01", "Aextra"),
	)
	require.Len(t, rec.samples, 1)
	assert.Equal(t, "Aextra", rec.samples[0].Message)
	assert.Equal(t, 1, diag.Continuations)
}

func TestContinuationWithoutFrameIsDropped(t *testing.T) {
	rec, diag := run(t, Filter{},
		"stray text",
		begin("10:00:00", "A"),
		end("10:00:01", "A"),
	)
	require.Len(t, rec.samples, 1)
	assert.Equal(t, "A", rec.samples[0].Message)
	assert.Equal(t, 1, diag.DroppedContinuations)
}

func TestContinuationChangesMessageUsedForMatch(t *testing.T) {
	rec, diag := run(t, Filter{},
		begin("10:00:00", "SELECT 1"),
		"FROM dual",
		end("10:00:01", "SELECT 1"),
	)
	assert.Empty(t, rec.samples)
	assert.Equal(t, 1, diag.UnmatchedEnds)
	assert.Equal(t, 1, diag.AbandonedBegins)
}

func TestExcludedCategoryNeverOpensOrCloses(t *testing.T) {
	exclude := regexp.MustCompile(`^yii\\db`)
	rec, diag := run(t, Filter{Exclude: exclude},
		record("10:00:00", "profile begin", `yii\db\Command::query`, "Q"),
		record("10:00:01", "profile end", `yii\db\Command::query`, "Q"),
		begin("10:00:02", "A"),
		record("10:00:03", "profile end", `yii\db\Command::query`, "A"),
		end("10:00:04", "A"),
	)
	require.Len(t, rec.samples, 1)
	assert.Equal(t, "A", rec.samples[0].Message)
	assert.InDelta(t, 2000.0, rec.samples[0].DurationMs, 1e-9)
	assert.Equal(t, 3, diag.Filtered)
}

func TestStartTimeDropsEarlierEvents(t *testing.T) {
	start := time.Date(2016, 3, 4, 10, 0, 1, 0, time.Local)
	rec, diag := run(t, Filter{StartTime: &start},
		begin("10:00:00", "A"),
		begin("10:00:01", "A"),
		end("10:00:02", "A"),
		end("10:00:03", "A"),
	)
	require.Len(t, rec.samples, 1)
	assert.InDelta(t, 1000.0, rec.samples[0].DurationMs, 1e-9)
	assert.Equal(t, 1, diag.Filtered)
	assert.Equal(t, 1, diag.UnmatchedEnds)
}

func TestSampleCarriesEndCategory(t *testing.T) {
	rec, _ := run(t, Filter{},
		record("10:00:00", "profile begin", "begin-cat", "A"),
		record("10:00:01", "profile end", "end-cat", "A"),
	)
	require.Len(t, rec.samples, 1)
	assert.Equal(t, "end-cat", rec.samples[0].Category)
}

func TestNegativeDurationIsKept(t *testing.T) {
	rec, _ := run(t, Filter{},
		begin("10:00:05", "A"),
		end("10:00:04", "A"),
	)
	require.Len(t, rec.samples, 1)
	assert.InDelta(t, -1000.0, rec.samples[0].DurationMs, 1e-9)
}

func TestOtherFlagsAreIgnored(t *testing.T) {
	rec, diag := run(t, Filter{},
		begin("10:00:00", "A"),
		record("10:00:01", "info", "app", "A"),
		end("10:00:02", "A"),
	)
	require.Len(t, rec.samples, 1)
	assert.Equal(t, 3, diag.Structured)
}

func TestUnparseableLineIsSkippedAndLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	rec := &recorder{}
	c := New(Filter{}, rec, WithLogger(logger), WithStream("app.log"))

	c.Consume(begin("10:00:00", "A"))
	c.Consume("someday later [127.0.0.1][-][sid][profile end][app]A")
	c.Consume(end("10:00:01", "A"))
	diag := c.Close()

	require.Len(t, rec.samples, 1)
	assert.Equal(t, 1, diag.Unparseable)
	assert.Contains(t, buf.String(), "stream=app.log")
	assert.Contains(t, buf.String(), "line=2")
	assert.Contains(t, buf.String(), `error="app.log:2: `)
}

func TestCloseAbandonsOpenFrames(t *testing.T) {
	rec := &recorder{}
	c := New(Filter{}, rec)
	c.Consume(begin("10:00:00", "A"))
	c.Consume(begin("10:00:01", "B"))
	diag := c.Close()
	assert.Empty(t, rec.samples)
	assert.Equal(t, 2, diag.AbandonedBegins)
	assert.Equal(t, 0, c.Depth())

	c.Consume(end("10:00:02", "B"))
	assert.Empty(t, rec.samples)
}

func TestStackSurvivesStreamSwitch(t *testing.T) {
	rec := &recorder{}
	c := New(Filter{}, rec, WithStream("a.log"))
	c.Consume(begin("10:00:00", "A"))
	c.SetStream("b.log")
	c.Consume(end("10:00:01", "A"))
	require.Len(t, rec.samples, 1)
}

func TestSinkFunc(t *testing.T) {
	var got []string
	c := New(Filter{}, SinkFunc(func(s model.TimingSample) {
		got = append(got, s.Message)
	}))
	c.Consume(begin("10:00:00", "A"))
	c.Consume(end("10:00:01", "A"))
	assert.Equal(t, []string{"A"}, got)
}
