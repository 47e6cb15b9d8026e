package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes (§6.4).
const (
	exitOK         = 0
	exitUsageError = 2
	exitValidation = 3
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "concordd",
		Short: "concordd - concept-synchronization engine daemon",
		Long:  "concordd runs the concept-synchronization engine: action log, registry, matcher, and sync firing, wired to a declarative sync manifest.",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (JSON or YAML); defaults apply when omitted")

	rootCmd.AddCommand(
		runCmd(),
		listSyncsCmd(),
		inspectFlowCmd(),
		reloadCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitUsageErr and exitValidationErr let a command distinguish a usage
// mistake from a sync-manifest validation failure; RunE returning a
// plain error falls back to exitUsageError.
type exitUsageErr struct{ err error }

func (e exitUsageErr) Error() string { return e.err.Error() }
func (e exitUsageErr) Unwrap() error { return e.err }

type exitValidationErr struct{ err error }

func (e exitValidationErr) Error() string { return e.err.Error() }
func (e exitValidationErr) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	switch err.(type) {
	case exitValidationErr:
		return exitValidation
	case exitUsageErr:
		return exitUsageError
	default:
		return exitUsageError
	}
}
