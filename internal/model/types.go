// Package model defines shared data structures.
package model

import "time"

// Flag classifies a structured log record for correlation.
type Flag int

const (
	// FlagOther marks any record that neither opens nor closes a segment.
	FlagOther Flag = iota
	// FlagBegin marks a "profile begin" record.
	FlagBegin
	// FlagEnd marks a "profile end" record.
	FlagEnd
)

// Literal flag values used by the Yii log target.
const (
	FlagBeginLiteral = "profile begin"
	FlagEndLiteral   = "profile end"
)

// String returns the log literal for the flag.
func (f Flag) String() string {
	switch f {
	case FlagBegin:
		return FlagBeginLiteral
	case FlagEnd:
		return FlagEndLiteral
	default:
		return "other"
	}
}

// LogEvent is one structured record parsed from a log line.
type LogEvent struct {
	Timestamp     time.Time
	ClientAddress string
	User          string
	SessionID     string
	Flag          Flag
	RawFlag       string
	Category      string
	Message       string
}

// StackFrame is an open BEGIN event awaiting its END.
type StackFrame struct {
	Timestamp     time.Time
	ClientAddress string
	User          string
	SessionID     string
	Category      string
	Message       string
}

// TimingSample is produced when a BEGIN is matched to an END.
type TimingSample struct {
	Message    string
	Category   string
	DurationMs float64
}

// AggregateStat accumulates samples for one message.
//
// MinMs does not hold a true minimum. It is replaced by every incoming duration
// except when the current value is positive and the new duration is strictly
// larger: min = (min > 0 && d > min) ? min : d. Reports built from older runs
// depend on this, so keep it.
type AggregateStat struct {
	Count    int
	TotalMs  float64
	MinMs    float64
	MaxMs    float64
	Category string
}

// Add folds one duration into the stat.
func (a *AggregateStat) Add(durationMs float64, category string) {
	a.Category = category
	a.Count++
	a.TotalMs += durationMs
	if durationMs > a.MaxMs {
		a.MaxMs = durationMs
	}
	if !(a.MinMs > 0 && durationMs > a.MinMs) {
		a.MinMs = durationMs
	}
}

// AvgMs returns the mean duration, or 0 for an empty stat.
func (a AggregateStat) AvgMs() float64 {
	if a.Count == 0 {
		return 0
	}
	return a.TotalMs / float64(a.Count)
}

// Diagnostics counts what happened to the lines of one or more streams.
type Diagnostics struct {
	Lines                int
	Structured           int
	Continuations        int
	DroppedContinuations int
	Filtered             int
	Unparseable          int
	UnmatchedEnds        int
	AbandonedBegins      int
	Samples              int
}

// Merge adds the counters of other into d.
func (d *Diagnostics) Merge(other Diagnostics) {
	d.Lines += other.Lines
	d.Structured += other.Structured
	d.Continuations += other.Continuations
	d.DroppedContinuations += other.DroppedContinuations
	d.Filtered += other.Filtered
	d.Unparseable += other.Unparseable
	d.UnmatchedEnds += other.UnmatchedEnds
	d.AbandonedBegins += other.AbandonedBegins
	d.Samples += other.Samples
}

// Segment is one ranked row of a report.
type Segment struct {
	Rank     int
	Message  string
	Category string
	Count    int
	TotalMs  float64
	AvgMs    float64
	MinMs    float64
	MaxMs    float64
}

// Run is a saved analysis.
type Run struct {
	ID          int64
	CreatedAt   time.Time
	Inputs      []string
	Isolate     bool
	Diagnostics Diagnostics
	Segments    []Segment
}

// RunSummary describes a saved run without its segments.
type RunSummary struct {
	ID        int64
	CreatedAt time.Time
	Inputs    []string
	Isolate   bool
	Samples   int
	Segments  int
}
