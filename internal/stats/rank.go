package stats

import (
	"sort"

	"github.com/verte-zerg/yiiprof/internal/model"
)

// Rank orders keys by descending average duration. The sort is stable, so
// equal averages keep the order of keys as given; pass first-seen order for
// reproducible output.
func Rank(result map[string]model.AggregateStat, keys []string) []string {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.SliceStable(sorted, func(i, j int) bool {
		return byAverageDesc(result[sorted[i]], result[sorted[j]])
	})
	return sorted
}

// byAverageDesc is the only ordering rule for reports.
func byAverageDesc(a, b model.AggregateStat) bool {
	return a.AvgMs() > b.AvgMs()
}
