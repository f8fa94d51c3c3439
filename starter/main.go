// Command gatectl drives gate sessions and store records from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storefront-access-gate/config"
	"storefront-access-gate/logger"
)

var (
	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "gatectl",
	Short:         "Operate storefront access gate sessions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		log, err = logger.New(cfg.Log.Level, cfg.Log.Format, "gatectl")
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "session", Title: "Session Commands:"},
		&cobra.Group{ID: "store", Title: "Store Commands:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
