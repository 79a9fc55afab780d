package stats

import (
	"time"

	"github.com/verte-zerg/yiiprof/internal/model"
)

// Report is the final state handed to renderers.
type Report struct {
	GeneratedAt time.Time
	Inputs      []string
	Isolate     bool
	Diagnostics model.Diagnostics
	Result      map[string]model.AggregateStat
	SortedKeys  []string
}

// BuildReport snapshots the aggregator and ranks its keys.
func BuildReport(agg *Aggregator, inputs []string, isolate bool, diag model.Diagnostics) Report {
	result := agg.Result()
	return Report{
		GeneratedAt: time.Now(),
		Inputs:      append([]string(nil), inputs...),
		Isolate:     isolate,
		Diagnostics: diag,
		Result:      result,
		SortedKeys:  Rank(result, agg.Keys()),
	}
}

// Segments returns report rows in ranked order.
func (r Report) Segments() []model.Segment {
	out := make([]model.Segment, 0, len(r.SortedKeys))
	for i, key := range r.SortedKeys {
		stat := r.Result[key]
		out = append(out, model.Segment{
			Rank:     i + 1,
			Message:  key,
			Category: stat.Category,
			Count:    stat.Count,
			TotalMs:  stat.TotalMs,
			AvgMs:    stat.AvgMs(),
			MinMs:    stat.MinMs,
			MaxMs:    stat.MaxMs,
		})
	}
	return out
}

// Run converts the report into a history record.
func (r Report) Run() model.Run {
	return model.Run{
		CreatedAt:   r.GeneratedAt,
		Inputs:      append([]string(nil), r.Inputs...),
		Isolate:     r.Isolate,
		Diagnostics: r.Diagnostics,
		Segments:    r.Segments(),
	}
}

// ReportFromRun rebuilds a report from a saved run, keeping its stored rank.
func ReportFromRun(run model.Run) Report {
	result := make(map[string]model.AggregateStat, len(run.Segments))
	keys := make([]string, 0, len(run.Segments))
	for _, seg := range run.Segments {
		result[seg.Message] = model.AggregateStat{
			Count:    seg.Count,
			TotalMs:  seg.TotalMs,
			MinMs:    seg.MinMs,
			MaxMs:    seg.MaxMs,
			Category: seg.Category,
		}
		keys = append(keys, seg.Message)
	}
	return Report{
		GeneratedAt: run.CreatedAt,
		Inputs:      append([]string(nil), run.Inputs...),
		Isolate:     run.Isolate,
		Diagnostics: run.Diagnostics,
		Result:      result,
		SortedKeys:  keys,
	}
}
