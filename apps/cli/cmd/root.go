package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitscript/packages/core/config"
	"github.com/abdul-hamid-achik/hitscript/packages/logger"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag   string
	logLevelFlag string
	logFileFlag  string

	// fileConfig is loaded once per invocation by the root pre-run hook.
	fileConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hitscript",
	Short: "Scriptable API collections. No magic.",
	Long: `hitscript runs YAML collections of HTTP requests with JavaScript
pre-request and test scripts, in the style of the pm sandbox.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("HITSCRIPT_CONFIG", ""), "Path to config file (env: HITSCRIPT_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", getEnvString("HITSCRIPT_LOG_LEVEL", ""), "Log level: debug, info, warn, error (env: HITSCRIPT_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", getEnvString("HITSCRIPT_LOG_FILE", ""), "Also write logs to this file (env: HITSCRIPT_LOG_FILE)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

// setup loads the config file and initialises the process logger.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return &exitError{code: ExitConfigError, err: err}
	}
	fileConfig = cfg

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		NoColor:    cfg.GetNoColor(),
	}
	switch {
	case logLevelFlag != "":
		logCfg.Level = logLevelFlag
	case verboseFlag > 1:
		logCfg.Level = "debug"
	}
	if logFileFlag != "" {
		logCfg.FilePath = logFileFlag
		if logCfg.Output == "" || logCfg.Output == "stderr" {
			logCfg.Output = "both"
		}
	}
	logger.Init(logCfg)
	return nil
}

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return ExitUsageError
}

func withExitCode(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}
