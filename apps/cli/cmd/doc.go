// Package cmd implements the hityaml CLI commands using Cobra.
//
// Available commands:
//   - run: Run YAML test files, one exec process per file
//   - exec: Run a single YAML test file
//   - validate: Check test files without executing them
//   - list: Display the groups and requests of test files
//   - history: Show runs recorded in a history database
//   - init: Create a config file and an example test file
//   - version: Show hityaml version information
package cmd
