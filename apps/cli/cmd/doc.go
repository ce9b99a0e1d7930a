// Package cmd implements the hitscript CLI commands using Cobra.
//
// Available commands:
//   - run: Execute requests and scripts from collection files
//   - validate: Parse collections and compile their scripts without sending
//   - list: Display all requests defined in collections
//   - history list|purge: Inspect or trim the recorded run history
//   - init: Create a new hitscript project with an example collection
//   - version: Show hitscript version information
//
// Flags fall back to HITSCRIPT_* environment variables and then to the
// config file.
package cmd
