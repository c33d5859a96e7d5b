package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Harshitk-cp/factgraph/internal/bootstrap"
	"github.com/Harshitk-cp/factgraph/internal/buildconfig"
	"github.com/Harshitk-cp/factgraph/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "factctl",
	Short: "factctl - corroboration and staleness reconciliation for the fact graph",
	Long: `factctl runs the fact graph engine against the configured store.

Every source keeps at most one active claim per entity attribute. A newer
claim replaces an older one regardless of trust; trust only decides between
claims observed at the same instant.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := os.Setenv("FACTGRAPH_ENV", envFile); err != nil {
				return err
			}
		}
		return config.Load()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd.OutOrStdout(), buildconfig.Current())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default: $FACTGRAPH_ENV or .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine activity to stderr")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(entityCmd)
	rootCmd.AddCommand(provenanceCmd)
	rootCmd.AddCommand(claimsCmd)
	rootCmd.AddCommand(relationshipsCmd)
}

// withEngine opens the engine for the duration of fn.
func withEngine(ctx context.Context, fn func(context.Context, *bootstrap.Engine) error) error {
	logger := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		logger = l
	}
	defer func() { _ = logger.Sync() }()

	engine, err := bootstrap.Open(ctx, logger)
	if err != nil {
		return err
	}
	defer engine.Close()
	return fn(ctx, engine)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
