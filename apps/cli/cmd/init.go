package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitscript/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new hitscript project",
	Long: `Initialize a new hitscript project in the current directory.

This creates:
  - hitscript.config.yaml     - Configuration file with environments
  - example.hitscript.yaml    - Example collection with scripts

Examples:
  hitscript init
  hitscript init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleCollection = `name: example
description: Health check and a create/read round trip

variables:
  resourceName: Test Resource

requests:
  - name: healthCheck
    description: Check if the API is running
    tags: [smoke]
    url: "{{baseUrl}}/health"
    test: |
      pm.test.assertStatusCode(200);

  - name: createResource
    tags: [crud]
    method: POST
    url: "{{baseUrl}}/resources"
    headers:
      Content-Type: application/json
      X-Request-Id: "{{uuid()}}"
    body:
      name: "{{resourceName}}"
      description: Created by hitscript
    preRequest: |
      pm.request.addHeader("X-Client", "hitscript");
      console.log("creating", pm.variables.get("resourceName"));
    test: |
      pm.test.assertStatusCode("Resource is created", 201);
      const body = pm.response.json();
      pm.test.assertEquals("Name is echoed", body.name, pm.variables.get("resourceName"));
      pm.variables.set("resourceId", body.id);

  - name: getResource
    tags: [crud]
    depends: [createResource]
    url: "{{baseUrl}}/resources/{{resourceId}}"
    test: |
      pm.test.assertStatusCode(200);
      pm.test.assertJsonPath("Id matches", "id", pm.variables.get("resourceId"));
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "hitscript.config.yaml")
	exampleFile := filepath.Join(cwd, "example.hitscript.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	cfg := &config.Config{
		DefaultEnvironment: "dev",
		Timeout:            30000,
		ScriptTimeout:      5000,
		FollowRedirects:    config.BoolPtr(true),
		MaxRedirects:       10,
		ValidateSSL:        config.BoolPtr(true),
		Headers: map[string]string{
			"User-Agent": "hitscript/1.0",
		},
		History: config.HistoryConfig{
			Enabled:       config.BoolPtr(false),
			File:          DefaultHistoryFile,
			RetentionDays: 30,
		},
		Environments: map[string]map[string]string{
			"dev": {
				"baseUrl": "http://localhost:3000",
			},
			"staging": {
				"baseUrl": "https://staging.api.example.com",
			},
			"prod": {
				"baseUrl": "https://api.example.com",
			},
		},
	}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(exampleFile, []byte(exampleCollection), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nhitscript project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'hitscript run example.hitscript.yaml' to execute the example collection.\n")

	return nil
}
