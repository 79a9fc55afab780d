// Package main provides the CLI entrypoint for yiiprof.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/yiiprof/internal/config"
	"github.com/verte-zerg/yiiprof/internal/correlate"
	"github.com/verte-zerg/yiiprof/internal/ingest"
	"github.com/verte-zerg/yiiprof/internal/logparse"
	"github.com/verte-zerg/yiiprof/internal/render"
	"github.com/verte-zerg/yiiprof/internal/stats"
	"github.com/verte-zerg/yiiprof/internal/statsui"
	"github.com/verte-zerg/yiiprof/internal/store"
)

const (
	defaultFilename     = "yii-profile-output.html"
	defaultExclude      = `^yii\\db`
	defaultFormat       = "html"
	defaultHistoryLimit = 20
)

var (
	analyzeStartTime string
	analyzeFilename  string
	analyzeOutput    string
	analyzeExclude   string
	analyzeFormat    string
	analyzeIsolate   bool
	analyzeOpen      bool
	analyzeTop       int
	analyzeSave      bool
	verbose          bool

	historyLimit int
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "yiiprof <profile.log>... [flags]",
		Short:         "Summarize Yii profile logs",
		Long:          "Pairs 'profile begin'/'profile end' records in Yii trace logs and reports per-segment timings.\nUse '-' to read from stdin.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runAnalyzeCmd,
	}

	addAnalyzeFlags(rootCmd)
	rootCmd.Flags().StringVarP(&analyzeFilename, "filename", "f", defaultFilename, "file name of the report")
	rootCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "output dir of the report (default: new temp dir)")
	rootCmd.Flags().StringVar(&analyzeFormat, "format", defaultFormat, "report format: "+strings.Join(render.Formats, ", "))
	rootCmd.Flags().BoolVar(&analyzeOpen, "open", true, "open the html report when done")
	rootCmd.Flags().IntVar(&analyzeTop, "top", 0, "limit text report to the top N segments")
	rootCmd.Flags().BoolVar(&analyzeSave, "save", false, "record the run in the history database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log skipped lines and per-file details")

	rootCmd.AddCommand(newViewCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func addAnalyzeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&analyzeStartTime, "start-time", "s", "", "ignore records before this time")
	cmd.Flags().StringVarP(&analyzeExclude, "exclude", "x", defaultExclude, "regexp of categories to exclude (empty to keep all)")
	cmd.Flags().BoolVar(&analyzeIsolate, "isolate", false, "give every input file its own stack")
}

func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	if err := applyFileConfig(cmd); err != nil {
		return err
	}
	report, err := analyze(cmd.Context(), args)
	if err != nil {
		return err
	}

	if analyzeSave {
		if err := saveRun(cmd.Context(), report); err != nil {
			logErrf("failed to save run: %v\n", err)
		}
	}

	renderer, err := render.ForFormat(analyzeFormat)
	if err != nil {
		return err
	}
	toStdout := writesToStdout(renderer.Ext(), analyzeOutput, analyzeFilename)
	if text, ok := renderer.(*render.Text); ok {
		text.Top = analyzeTop
		if toStdout {
			text.Width = render.TerminalWidth()
		}
	}
	artifact, err := renderer.Render(report)
	if err != nil {
		return err
	}

	if toStdout {
		if _, err := cmd.OutOrStdout().Write(artifact); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	path, err := render.Persist(artifact, analyzeOutput, reportFilename(analyzeFilename, renderer.Ext()))
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), path); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if analyzeOpen && renderer.Ext() == ".html" {
		if err := render.Open(path); err != nil {
			logErrf("%v\n", err)
		}
	}
	return nil
}

// writesToStdout reports whether a non-html report goes to stdout. It does when
// neither an output dir nor a file name other than the default was configured,
// by flag or config file.
func writesToStdout(ext, output, filename string) bool {
	return ext != ".html" && output == "" && filename == defaultFilename
}

// reportFilename swaps the default file name's extension for the format's.
func reportFilename(filename, ext string) string {
	if filename != defaultFilename {
		return filename
	}
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ext
}

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <profile.log>...",
		Short: "Browse a profile report in the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runViewCmd,
	}
	addAnalyzeFlags(cmd)
	return cmd
}

func runViewCmd(cmd *cobra.Command, args []string) error {
	if err := applyFileConfig(cmd); err != nil {
		return err
	}
	report, err := analyze(cmd.Context(), args)
	if err != nil {
		return err
	}
	return runBrowser(report)
}

func runBrowser(report stats.Report) error {
	program := tea.NewProgram(statsui.NewModel(report), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved runs",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyLimit, "last", defaultHistoryLimit, "number of runs to list (0 for all)")
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "view <id>",
		Short: "Browse a saved run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryViewCmd,
	})
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer closeStore(st)

	runs, err := st.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		logErrln("No saved runs. Record one with: yiiprof --save <profile.log>")
		return nil
	}
	out := cmd.OutOrStdout()
	for _, r := range runs {
		mode := "shared"
		if r.Isolate {
			mode = "isolated"
		}
		if _, err := fmt.Fprintf(out, "%d\t%s\t%d segments\t%d samples\t%s\t%s\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Segments, r.Samples, mode, strings.Join(r.Inputs, ", ")); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	report, err := loadSavedReport(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out, err := (&render.Text{Width: render.TerminalWidth()}).Render(report)
	if err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func runHistoryViewCmd(cmd *cobra.Command, args []string) error {
	report, err := loadSavedReport(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return runBrowser(report)
}

func loadSavedReport(ctx context.Context, rawID string) (stats.Report, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return stats.Report{}, fmt.Errorf("invalid run id %q", rawID)
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return stats.Report{}, fmt.Errorf("failed to open db: %w", err)
	}
	defer closeStore(st)
	run, err := st.LoadRun(ctx, id)
	if err != nil {
		return stats.Report{}, fmt.Errorf("failed to load run: %w", err)
	}
	return stats.ReportFromRun(run), nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func analyze(ctx context.Context, paths []string) (stats.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	filter, err := buildFilter(analyzeStartTime, analyzeExclude)
	if err != nil {
		return stats.Report{}, err
	}
	sources := make([]ingest.Source, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, ingest.FileSource(p))
	}

	logger := newLogger(verbose)
	report, err := ingest.Analyze(ctx, sources, ingest.Options{
		Filter:  filter,
		Isolate: analyzeIsolate,
		Logger:  logger,
	})
	if err != nil {
		var srcErr *ingest.SourceError
		if errors.As(err, &srcErr) {
			return stats.Report{}, err
		}
		return stats.Report{}, fmt.Errorf("failed to analyze logs: %w", err)
	}
	d := report.Diagnostics
	logger.Info("analysis finished",
		slog.Int("segments", len(report.SortedKeys)),
		slog.Int("samples", d.Samples),
		slog.Int("unmatched_ends", d.UnmatchedEnds),
		slog.Int("abandoned_begins", d.AbandonedBegins),
		slog.Int("unparseable", d.Unparseable))
	return report, nil
}

func buildFilter(startTime, exclude string) (correlate.Filter, error) {
	var filter correlate.Filter
	if strings.TrimSpace(startTime) != "" {
		ts, err := logparse.ParseTimestamp(startTime)
		if err != nil {
			return filter, fmt.Errorf("invalid --start-time value: %w", err)
		}
		filter.StartTime = &ts
	}
	if exclude != "" {
		re, err := regexp.Compile(exclude)
		if err != nil {
			return filter, fmt.Errorf("invalid --exclude value: %w", err)
		}
		filter.Exclude = re
	}
	return filter, nil
}

func saveRun(ctx context.Context, report stats.Report) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer closeStore(st)
	id, err := st.InsertRun(ctx, report.Run())
	if err != nil {
		return err
	}
	logErrf("Saved run %d\n", id)
	return nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func applyFileConfig(cmd *cobra.Command) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a := fileCfg.Analyze
	applyStringConfig(cmd, "start-time", &analyzeStartTime, a.StartTime)
	applyStringConfig(cmd, "exclude", &analyzeExclude, a.Exclude)
	applyStringConfig(cmd, "filename", &analyzeFilename, a.Filename)
	applyStringConfig(cmd, "output", &analyzeOutput, a.Output)
	applyStringConfig(cmd, "format", &analyzeFormat, a.Format)
	applyBoolConfig(cmd, "isolate", &analyzeIsolate, a.Isolate)
	applyBoolConfig(cmd, "open", &analyzeOpen, a.Open)
	applyIntConfig(cmd, "top", &analyzeTop, a.Top)
	applyBoolConfig(cmd, "save", &analyzeSave, a.Save)
	return validateFlags()
}

// applyStringConfig and friends skip flags the command does not define, so
// subcommands with a smaller flag set share one config file.
func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if f := cmd.Flags().Lookup(name); f == nil || f.Changed {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if f := cmd.Flags().Lookup(name); f == nil || f.Changed {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if f := cmd.Flags().Lookup(name); f == nil || f.Changed {
		return
	}
	*target = *value
}

func validateFlags() error {
	if analyzeTop < 0 {
		return fmt.Errorf("--top must be >= 0")
	}
	if strings.TrimSpace(analyzeFilename) == "" {
		return fmt.Errorf("--filename must not be empty")
	}
	if strings.ContainsRune(analyzeFilename, filepath.Separator) {
		return fmt.Errorf("--filename must be a file name, use --output for the directory")
	}
	if _, err := render.ForFormat(analyzeFormat); err != nil {
		return fmt.Errorf("invalid --format value: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# yiiprof configuration
# Uncomment a value to enable it. CLI flags override config values.

[analyze]
# start-time = "2016-01-02 15:04:05"  # Ignore records before this time
# exclude = '%s'                    # Regexp of categories to exclude ("" keeps all)
# filename = %q   # Report file name
# output = "/tmp/yiiprof"              # Report directory (default: new temp dir)
# format = %q                       # html, text or json
# isolate = false                      # Give every input file its own stack
# open = true                          # Open the html report when done
# top = 0                              # Limit text report rows (0 = all)
# save = false                         # Record runs in the history database
`,
		defaultExclude,
		defaultFilename,
		defaultFormat,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
