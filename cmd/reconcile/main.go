// Command reconcile matches summons targets against payment entries.
//
// Usage:
//
//	reconcile match --targets targets.csv --entries entries.csv --out results.csv
//	reconcile match --ledger ledger.yaml
//	reconcile serve --port 8080
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/summons-reconcile/internal/cli"
	"github.com/eshaffer321/summons-reconcile/internal/infrastructure/config"
)

// rootOptions are the persistent flags shared by every command
type rootOptions struct {
	configPath string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "reconcile",
		Short:         "Match summons targets against payment entries by exact amount",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "Path to config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(newMatchCmd(opts), newServeCmd(opts))
	return root
}

func newMatchCmd(opts *rootOptions) *cobra.Command {
	var flags cli.MatchFlags

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Run one reconciliation and write the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.Verbose = opts.verbose
			cfg := config.LoadOrEnvWithPath(opts.configPath)
			return cli.RunMatch(cmd.Context(), cfg, flags, cmd.OutOrStdout())
		},
	}
	flags.Register(cmd.Flags())
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var flags cli.ServeFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.Verbose = opts.verbose
			cfg := config.LoadOrEnvWithPath(opts.configPath)
			return cli.RunServe(cmd.Context(), cfg, flags)
		},
	}
	flags.Register(cmd.Flags())
	return cmd
}
