package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"warden-hq/callisto/pkg/launcher"
)

var evalCmd = &cobra.Command{
	Use:   "eval <chunk>",
	Short: "Evaluate an inline Lua chunk under the audit policy",
	Long: `Evaluate an inline Lua chunk under the audit policy.

Examples:
  warden eval 'print(1 + 2)'
  warden eval --force 'os.execute("ls")'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := resolveSettings()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		code := launcher.New(settings).Run(ctx, []string{"-e", args[0]})
		if code != 0 {
			stop()
			os.Exit(code)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().BoolVar(&runFlags.force, "force", false, "log violations without blocking")
	evalCmd.Flags().BoolVar(&runFlags.review, "review", false, "approve violations interactively")
	evalCmd.Flags().BoolVar(&runFlags.noPolicy, "no-policy", false, "run without the audit policy")
	evalCmd.MarkFlagsMutuallyExclusive("force", "review")
}
