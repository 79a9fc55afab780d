package ingest

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/yiiprof/internal/correlate"
	"github.com/verte-zerg/yiiprof/internal/model"
	"github.com/verte-zerg/yiiprof/internal/stats"
)

// DefaultParallelism bounds concurrent reads in isolated mode.
const DefaultParallelism = 4

// Options controls a run.
type Options struct {
	Filter correlate.Filter
	// Isolate gives every source its own stack. When false all sources share
	// one stack and are read one after another in the given order, so a BEGIN
	// left open at the end of one file can be closed by the next.
	Isolate     bool
	Parallelism int
	MaxLineSize int
	Logger      *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Analyze correlates every source and returns the ranked report. Any source
// that cannot be read aborts the run.
func Analyze(ctx context.Context, sources []Source, opts Options) (stats.Report, error) {
	agg := stats.NewAggregator()
	var (
		diag model.Diagnostics
		err  error
	)
	if opts.Isolate {
		diag, err = analyzeIsolated(ctx, sources, opts, agg)
	} else {
		diag, err = analyzeShared(ctx, sources, opts, agg)
	}
	if err != nil {
		return stats.Report{}, err
	}
	return stats.BuildReport(agg, sourceNames(sources), opts.Isolate, diag), nil
}

func analyzeShared(ctx context.Context, sources []Source, opts Options, agg *stats.Aggregator) (model.Diagnostics, error) {
	logger := opts.logger()
	c := correlate.New(opts.Filter, agg, correlate.WithLogger(logger))
	for _, src := range sources {
		c.SetStream(src.Name)
		if err := consumeSource(ctx, src, opts.MaxLineSize, c.Consume); err != nil {
			return model.Diagnostics{}, err
		}
		logger.Debug("stream finished", slog.String("stream", src.Name), slog.Int("open", c.Depth()))
	}
	return c.Close(), nil
}

func analyzeIsolated(ctx context.Context, sources []Source, opts Options, agg *stats.Aggregator) (model.Diagnostics, error) {
	logger := opts.logger()
	buffers := make([][]model.TimingSample, len(sources))
	diags := make([]model.Diagnostics, len(sources))

	limit := opts.Parallelism
	if limit <= 0 {
		limit = DefaultParallelism
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, src := range sources {
		g.Go(func() error {
			buffer := correlate.SinkFunc(func(s model.TimingSample) {
				buffers[i] = append(buffers[i], s)
			})
			c := correlate.New(opts.Filter, buffer,
				correlate.WithLogger(logger),
				correlate.WithStream(src.Name))
			if err := consumeSource(gctx, src, opts.MaxLineSize, c.Consume); err != nil {
				return err
			}
			diags[i] = c.Close()
			logger.Debug("stream finished",
				slog.String("stream", src.Name),
				slog.Int("samples", diags[i].Samples),
				slog.Int("abandoned", diags[i].AbandonedBegins))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Diagnostics{}, err
	}

	// Samples are folded in argument order, never completion order.
	var diag model.Diagnostics
	for i := range sources {
		for _, s := range buffers[i] {
			agg.Fold(s)
		}
		diag.Merge(diags[i])
	}
	return diag, nil
}

func sourceNames(sources []Source) []string {
	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = src.Name
	}
	return names
}
