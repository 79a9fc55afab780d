// Package stats contains statistics calculations and reporting.
package stats

import "github.com/verte-zerg/yiiprof/internal/model"

// Aggregator folds timing samples into per-message statistics. Entries are
// never removed. It is not safe for concurrent use.
type Aggregator struct {
	result map[string]*model.AggregateStat
	order  []string
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{result: map[string]*model.AggregateStat{}}
}

// Fold adds one sample.
func (a *Aggregator) Fold(sample model.TimingSample) {
	stat, ok := a.result[sample.Message]
	if !ok {
		stat = &model.AggregateStat{}
		a.result[sample.Message] = stat
		a.order = append(a.order, sample.Message)
	}
	stat.Add(sample.DurationMs, sample.Category)
}

// Len returns the number of distinct messages.
func (a *Aggregator) Len() int {
	return len(a.order)
}

// Keys returns messages in the order they were first seen.
func (a *Aggregator) Keys() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Result returns a snapshot of the aggregates keyed by message.
func (a *Aggregator) Result() map[string]model.AggregateStat {
	out := make(map[string]model.AggregateStat, len(a.result))
	for k, v := range a.result {
		out[k] = *v
	}
	return out
}
