package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dealdesk/pkg/utils"
)

var (
	cfg     *utils.Config
	logger  *zap.Logger
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "dealdesk",
	Short: "Inspect deal line items from the command line",
	Long: `dealdesk aggregates the line items of a CRM deal, either directly against
the CRM API or through a running gRPC server, and manages API clients of the
HTTP service.

Configuration is read from .env, config.yaml and DEALDESK_* variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = utils.LoadConfig()
		if err != nil {
			return err
		}
		logCfg := cfg.Log
		if verbose {
			logCfg.Level = "debug"
		}
		logger, err = utils.NewLogger(logCfg)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(aggregateCmd, clientsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
