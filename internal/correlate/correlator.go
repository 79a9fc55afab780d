// Package correlate pairs profile begin/end records into timing samples.
package correlate

import (
	"errors"
	"log/slog"
	"regexp"
	"time"

	"github.com/verte-zerg/yiiprof/internal/logparse"
	"github.com/verte-zerg/yiiprof/internal/model"
)

// Sink receives matched samples.
type Sink interface {
	Fold(sample model.TimingSample)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(sample model.TimingSample)

// Fold implements Sink.
func (f SinkFunc) Fold(sample model.TimingSample) {
	f(sample)
}

// Filter drops events before they reach the stack.
type Filter struct {
	// StartTime drops events strictly before it when set.
	StartTime *time.Time
	// Exclude drops events whose category matches it when set.
	Exclude *regexp.Regexp
}

func (f Filter) accepts(ev model.LogEvent) bool {
	if f.StartTime != nil && ev.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.Exclude != nil && f.Exclude.MatchString(ev.Category) {
		return false
	}
	return true
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithLogger sets the logger used for skipped lines.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Correlator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStream names the stream in log output. Stream names are informational;
// a shared correlator keeps one stack across every stream it is handed.
func WithStream(name string) Option {
	return func(c *Correlator) {
		c.SetStream(name)
	}
}

// Correlator matches END records against the innermost open BEGIN.
//
// Only the top of the stack is ever compared. An END that does not match it is
// dropped and the BEGIN below stays open until the stream ends, at which point
// it is abandoned without a sample. A Correlator is not safe for concurrent use.
type Correlator struct {
	filter Filter
	sink   Sink
	logger *slog.Logger

	stack  stack
	stream string
	lineNo int
	diag   model.Diagnostics
}

// New returns a Correlator with an empty stack.
func New(filter Filter, sink Sink, opts ...Option) *Correlator {
	c := &Correlator{
		filter: filter,
		sink:   sink,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetStream switches the stream name used in log output and resets the line
// counter. The stack is left untouched.
func (c *Correlator) SetStream(name string) {
	c.stream = name
	c.lineNo = 0
}

// Consume processes one raw line.
func (c *Correlator) Consume(line string) {
	c.lineNo++
	c.diag.Lines++

	ev, err := logparse.Classify(line)
	if err != nil {
		if errors.Is(err, logparse.ErrUnstructured) {
			c.appendContinuation(line)
			return
		}
		c.diag.Unparseable++
		c.logger.Warn("skipping line",
			slog.String("stream", c.stream),
			slog.Int("line", c.lineNo),
			slog.Any("error", &logparse.LineError{Stream: c.stream, Line: c.lineNo, Err: err}))
		return
	}
	c.diag.Structured++

	if !c.filter.accepts(ev) {
		c.diag.Filtered++
		return
	}

	switch ev.Flag {
	case model.FlagBegin:
		c.stack.push(model.StackFrame{
			Timestamp:     ev.Timestamp,
			ClientAddress: ev.ClientAddress,
			User:          ev.User,
			SessionID:     ev.SessionID,
			Category:      ev.Category,
			Message:       ev.Message,
		})
	case model.FlagEnd:
		c.matchEnd(ev)
	}
}

func (c *Correlator) appendContinuation(line string) {
	top := c.stack.top()
	if top == nil {
		c.diag.DroppedContinuations++
		return
	}
	c.diag.Continuations++
	top.Message += line
}

func (c *Correlator) matchEnd(ev model.LogEvent) {
	top := c.stack.top()
	if top == nil || top.Message != ev.Message {
		c.diag.UnmatchedEnds++
		return
	}
	begin := c.stack.pop()
	c.diag.Samples++
	c.sink.Fold(model.TimingSample{
		Message:    ev.Message,
		Category:   ev.Category,
		DurationMs: durationMs(ev.Timestamp.Sub(begin.Timestamp)),
	})
}

// Close abandons every open frame and returns the counters collected so far.
// The Correlator can be reused afterwards with an empty stack.
func (c *Correlator) Close() model.Diagnostics {
	abandoned := c.stack.len()
	if abandoned > 0 {
		c.logger.Debug("abandoning open segments",
			slog.String("stream", c.stream),
			slog.Int("count", abandoned))
	}
	c.diag.AbandonedBegins += abandoned
	c.stack.reset()
	diag := c.diag
	c.diag = model.Diagnostics{}
	return diag
}

// Depth returns the number of open frames.
func (c *Correlator) Depth() int {
	return c.stack.len()
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
