package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/hitscript/packages/core/parser"
	"github.com/abdul-hamid-achik/hitscript/packages/core/runner"
	"github.com/abdul-hamid-achik/hitscript/packages/history"
	"github.com/abdul-hamid-achik/hitscript/packages/logger"
)

// DefaultHistoryFile is used when the config names no history file.
const DefaultHistoryFile = ".hitscript/history.db"

var (
	historyFileFlag       string
	historyLimitFlag      int
	historyCollectionFlag string
	historyRequestFlag    string
	historyFailedFlag     bool
	historySinceFlag      string
	historyOlderThanFlag  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded request history",
	Long: `Inspect or trim the sqlite history written by "hitscript run --history".

Examples:
  hitscript history list --limit 20
  hitscript history list --collection users --failed
  hitscript history purge --older-than 7`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded requests, newest first",
	Args:  cobra.NoArgs,
	RunE:  historyListCommand,
}

var historyPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete history entries older than a number of days",
	Args:  cobra.NoArgs,
	RunE:  historyPurgeCommand,
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyFileFlag, "file", getEnvString("HITSCRIPT_HISTORY_FILE", ""), "History database path (env: HITSCRIPT_HISTORY_FILE)")

	historyListCmd.Flags().IntVarP(&historyLimitFlag, "limit", "l", 50, "Maximum number of entries")
	historyListCmd.Flags().StringVarP(&historyCollectionFlag, "collection", "c", "", "Only entries of this collection")
	historyListCmd.Flags().StringVarP(&historyRequestFlag, "request", "r", "", "Only entries of this request")
	historyListCmd.Flags().BoolVar(&historyFailedFlag, "failed", false, "Only failed entries")
	historyListCmd.Flags().StringVar(&historySinceFlag, "since", "", "Only entries newer than this duration (e.g., 24h)")

	historyPurgeCmd.Flags().IntVar(&historyOlderThanFlag, "older-than", 0, "Retention in days, defaults to history.retentionDays from config")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyPurgeCmd)
}

func historyEnabled() bool {
	if noHistoryFlag {
		return false
	}
	return historyFlag || fileConfig.GetHistoryEnabled()
}

func historyPath() string {
	if historyFileFlag != "" {
		return historyFileFlag
	}
	if fileConfig != nil && fileConfig.History.File != "" {
		return fileConfig.History.File
	}
	return DefaultHistoryFile
}

// openHistory opens the store and applies the configured retention.
func openHistory(ctx context.Context) (*history.Store, error) {
	store, err := history.Open(historyPath())
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	removed, err := store.PurgeOlderThan(ctx, fileConfig.History.RetentionDays)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if removed > 0 {
		logger.Named("history").Debug("purged old entries", zap.Int64("removed", removed))
	}
	return store, nil
}

// historyRecorder saves every executed request. Save errors are logged, not
// returned, so a broken history never fails a run.
func historyRecorder(store *history.Store, environment string, log *zap.Logger) runner.Recorder {
	return func(c *parser.Collection, result *runner.RequestResult) {
		e := &history.Entry{
			File:        c.Path,
			Collection:  c.Name,
			Environment: environment,
			Request:     result.Name,
			Passed:      result.Passed,
			Duration:    result.Duration,
		}
		if result.Request != nil {
			e.Method = result.Request.Method
			e.URL = result.Request.BuildURL()
		}
		if result.Response != nil {
			e.Status = result.Response.StatusCode
			e.Body = string(result.Response.Body)
		}
		switch {
		case result.ScriptErr != nil:
			e.Error = result.ScriptErr.Error()
		case result.Error != nil:
			e.Error = result.Error.Error()
		}
		for _, a := range result.Assertions {
			e.Assertions = append(e.Assertions, history.Assertion{Passed: a.Passed, Message: a.Message})
		}

		if err := store.Save(context.Background(), e); err != nil {
			log.Warn("failed to record history", zap.String("request", result.Name), zap.Error(err))
		}
	}
}

func historyListCommand(cmd *cobra.Command, args []string) error {
	store, err := history.Open(historyPath())
	if err != nil {
		return &exitError{code: ExitConfigError, err: err}
	}
	defer store.Close()

	filter := history.Filter{
		Collection: historyCollectionFlag,
		Request:    historyRequestFlag,
		FailedOnly: historyFailedFlag,
		Limit:      historyLimitFlag,
	}
	if historySinceFlag != "" {
		d, err := time.ParseDuration(historySinceFlag)
		if err != nil {
			return withExitCode(ExitUsageError, "invalid since value %q: %w", historySinceFlag, err)
		}
		filter.Since = time.Now().Add(-d)
	}

	entries, err := store.List(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No history entries.")
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	if fileConfig.GetNoColor() {
		green = fmt.Sprint
		red = fmt.Sprint
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tCOLLECTION\tREQUEST\tMETHOD\tSTATUS\tDURATION\tRESULT")
	for _, e := range entries {
		res := green("pass")
		if !e.Passed {
			res = red("fail")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%dms\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Collection, e.Request, e.Method,
			e.Status, e.Duration.Milliseconds(), res)
	}
	return tw.Flush()
}

func historyPurgeCommand(cmd *cobra.Command, args []string) error {
	store, err := history.Open(historyPath())
	if err != nil {
		return &exitError{code: ExitConfigError, err: err}
	}
	defer store.Close()

	days := historyOlderThanFlag
	if days <= 0 {
		days = fileConfig.History.RetentionDays
	}
	removed, err := store.PurgeOlderThan(cmd.Context(), days)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries.\n", removed)
	return nil
}
