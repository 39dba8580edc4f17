package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gitlab.com/d21d3q/gometers/internal/config"
	"gitlab.com/d21d3q/gometers/internal/driver"
)

var rootCmd = &cobra.Command{
	Use:           "gometers",
	Short:         "Decode Wireless M-Bus meter telegrams",
	Long:          "gometers decodes Wireless M-Bus telegrams from heat, energy and water meters and renders the readings.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var driversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "List the registered meter drivers",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, name := range driver.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd, listenCmd, driversCmd)
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.Fatal(err)
	}
}

// setupLogging applies the log section of cfg to the standard logger.
func setupLogging(cfg config.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}
