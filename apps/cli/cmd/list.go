package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitscript/packages/core/parser"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>",
	Short: "List all requests in collection files",
	Long: `List all requests defined in .hitscript.yaml collections.

Examples:
  hitscript list users.hitscript.yaml
  hitscript list ./collections/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return &exitError{code: ExitUsageError, err: err}
	}

	if len(files) == 0 {
		return withExitCode(ExitUsageError, "no .hitscript.yaml files found")
	}

	for _, file := range files {
		c, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s (%s):\n", c.Name, file)
		for _, req := range c.Requests {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s  %s %s\n", req.Name, req.Method, req.URL)
			if len(req.Tags) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "    tags: %s\n", strings.Join(req.Tags, ", "))
			}
			if req.HasScripts() {
				fmt.Fprintf(cmd.OutOrStdout(), "    scripts: %s\n", scriptKinds(req))
			}
		}
	}

	return nil
}

func scriptKinds(req *parser.Request) string {
	var kinds []string
	if strings.TrimSpace(req.PreRequest) != "" {
		kinds = append(kinds, "pre-request")
	}
	if strings.TrimSpace(req.Test) != "" {
		kinds = append(kinds, "test")
	}
	return strings.Join(kinds, ", ")
}
