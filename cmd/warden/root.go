package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - audit-policy runtime for Lua programs",
	Long: `Warden runs Lua programs under a runtime-level audit policy.

Sensitive standard library operations (file access, command execution,
environment reads, network connects) are intercepted before they execute
and checked against a permission config. Depending on the enforcement
mode, violations are blocked, logged, or put to the user interactively.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "policy config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose lifecycle diagnostics")
}
