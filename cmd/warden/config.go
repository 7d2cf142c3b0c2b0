package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"warden-hq/callisto/pkg/policy/engine"
)

var configFlags struct {
	path  string
	force bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the policy config",
}

var configCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a default policy config",
	Long: `Write a default policy config for the current directory.

The default policy allows reads, writes, and changes inside the working
directory and module registry requests; everything else is denied until
allowed explicitly or approved in review mode.`,
	RunE: createConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCreateCmd)

	configCreateCmd.Flags().StringVar(&configFlags.path, "path", "", "config file path (default ./"+engine.DefaultConfigName+")")
	configCreateCmd.Flags().BoolVar(&configFlags.force, "force", false, "overwrite an existing config")
}

func createConfig(cmd *cobra.Command, args []string) error {
	workdir, err := os.Getwd()
	if err != nil {
		return err
	}

	path := configFlags.path
	if path == "" {
		path = cfgFile
	}
	if path == "" {
		path = filepath.Join(workdir, engine.DefaultConfigName)
	}

	if _, err := os.Stat(path); err == nil && !configFlags.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := engine.DefaultConfig(workdir)
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}
