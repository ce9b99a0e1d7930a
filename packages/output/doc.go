// Package output renders run results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration
//
// JSON and JUnit accumulate results and write them on Flush. Console and
// JSON also report script latency statistics through FormatStats.
package output
