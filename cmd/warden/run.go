package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"warden-hq/callisto/pkg/bootstrap"
	"warden-hq/callisto/pkg/launcher"
)

var runFlags struct {
	force       bool
	review      bool
	noPolicy    bool
	home        string
	journalPath string
	metricsAddr string
}

var runCmd = &cobra.Command{
	Use:   "run [flags] script.lua [args...]",
	Short: "Run a Lua script under the audit policy",
	Long: `Run a Lua script under the audit policy.

The default mode blocks disallowed operations and exits. With --force
violations are logged but allowed; with --review each violation is put
to the user, and approvals are merged back into the policy config.

Examples:
  # Enforce the policy in .warden.yaml
  warden run install.lua

  # Dry-run a script against the policy
  warden run --force install.lua

  # Build the policy interactively
  warden run --review install.lua -- --target all`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScript,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runFlags.force, "force", false, "log violations without blocking")
	runCmd.Flags().BoolVar(&runFlags.review, "review", false, "approve violations interactively")
	runCmd.Flags().BoolVar(&runFlags.noPolicy, "no-policy", false, "run without the audit policy")
	runCmd.Flags().StringVar(&runFlags.home, "home", "", "runtime home directory override")
	runCmd.Flags().StringVar(&runFlags.journalPath, "journal", "", "audit journal database path")
	runCmd.Flags().StringVar(&runFlags.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address")
	runCmd.MarkFlagsMutuallyExclusive("force", "review")
}

func runScript(cmd *cobra.Command, args []string) error {
	settings, err := resolveSettings()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := launcher.New(settings).Run(ctx, args)
	if code != 0 {
		stop()
		os.Exit(code)
	}
	return nil
}

// resolveSettings starts from the environment and lets flags override it,
// so scripted and interactive use compose.
func resolveSettings() (launcher.Settings, error) {
	settings := launcher.SettingsFromEnv()
	settings.Enabled = !runFlags.noPolicy
	settings.Debug = settings.Debug || debug

	switch {
	case runFlags.force && runFlags.review:
		return settings, errors.New("--force and --review are mutually exclusive")
	case runFlags.force:
		settings.Mode = bootstrap.ModeForce
	case runFlags.review:
		settings.Mode = bootstrap.ModeReview
	}

	if cfgFile != "" {
		settings.ConfigPath = cfgFile
	}
	if runFlags.home != "" {
		settings.RuntimeHome = runFlags.home
	}
	if runFlags.journalPath != "" {
		settings.JournalPath = runFlags.journalPath
	}
	if runFlags.metricsAddr != "" {
		settings.MetricsAddr = runFlags.metricsAddr
	}

	return settings, nil
}
