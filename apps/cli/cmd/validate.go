package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitscript/packages/core/parser"
	"github.com/abdul-hamid-achik/hitscript/packages/logger"
	"github.com/abdul-hamid-achik/hitscript/packages/sandbox"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>",
	Short: "Validate collections and compile their scripts",
	Long: `Validate collection files and compile every pre-request and test
script without sending any request.

Examples:
  hitscript validate users.hitscript.yaml
  hitscript validate ./collections/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return &exitError{code: ExitUsageError, err: err}
	}

	if len(files) == 0 {
		return withExitCode(ExitUsageError, "no .hitscript.yaml files found")
	}

	engine, err := sandbox.NewProvider(
		sandbox.WithEngineNames(fileConfig.Engines...),
		sandbox.WithProviderLogger(logger.Named("engine")),
	).Engine()
	if err != nil {
		return &exitError{code: ExitScriptEngineError, err: err}
	}

	hasErrors := false
	for _, file := range files {
		c, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
			continue
		}
		if problems := checkScripts(engine, c); len(problems) > 0 {
			for _, p := range problems {
				fmt.Fprintf(cmd.OutOrStderr(), "Error in %s: %s\n", file, p)
			}
			hasErrors = true
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
	}

	if hasErrors {
		return withExitCode(ExitParseError, "validation failed")
	}

	return nil
}

// checkScripts compiles every script of c and returns one message per
// failure.
func checkScripts(engine sandbox.Engine, c *parser.Collection) []string {
	var problems []string
	for _, req := range c.Requests {
		scripts := []struct {
			phase, source string
		}{
			{sandbox.PhasePreRequest.String(), req.PreRequest},
			{sandbox.PhaseResponseTest.String(), req.Test},
		}
		for _, s := range scripts {
			if strings.TrimSpace(s.source) == "" {
				continue
			}
			if err := engine.Check(s.source); err != nil {
				problems = append(problems, fmt.Sprintf("request %q: %s script: %v", req.Name, s.phase, err))
			}
		}
	}
	return problems
}
