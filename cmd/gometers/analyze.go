package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gitlab.com/d21d3q/gometers/pkg/gometers"
)

var (
	analyzeCmd = &cobra.Command{
		Use:   "analyze [hex]",
		Short: "Decode one telegram, or each line typed on stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := gometers.AnalyzeOptions{
				KeyHex:      keyHex,
				Driver:      driverName,
				Name:        meterName,
				Simulated:   simulated,
				Separator:   separator,
				Conversions: conversions,
			}
			ctx := cmd.Context()
			if len(args) == 0 {
				return runInteractive(ctx, opts)
			}
			return runAnalyze(ctx, opts, args[0])
		},
	}

	keyHex      string
	driverName  string
	meterName   string
	format      string
	separator   string
	conversions []string
	simulated   bool
)

func init() {
	flags := analyzeCmd.Flags()
	flags.StringVar(&keyHex, "key", "", "hex-encoded 16-byte AES key (32 hex chars)")
	flags.StringVar(&driverName, "driver", "", "driver to use instead of auto-detection")
	flags.StringVar(&meterName, "name", "", "meter name shown in the output")
	flags.StringVar(&format, "format", "", "render as hr, fields, json or env instead of the analysis summary")
	flags.StringVar(&separator, "separator", ";", "field separator for --format fields")
	flags.StringSliceVar(&conversions, "conversions", nil, "preferred units, e.g. GJ,C")
	flags.BoolVar(&simulated, "simulated", false, "decode encrypted telegrams without a key")
}

func runInteractive(ctx context.Context, opts gometers.AnalyzeOptions) error {
	scanner := bufio.NewScanner(os.Stdin)
	logrus.Info("gometers analyze mode. Paste a hex telegram and press Enter (Ctrl+D to exit).")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := runAnalyze(ctx, opts, line); err != nil {
			logrus.WithError(err).Error("failed to decode telegram")
		}
	}
	return scanner.Err()
}

func runAnalyze(ctx context.Context, opts gometers.AnalyzeOptions, hex string) error {
	result, err := gometers.Analyze(ctx, hex, opts)
	if err != nil {
		return err
	}
	for _, diag := range result.Diagnostics {
		logrus.WithField("driver", result.Driver).Warn(diag)
	}
	if format == "" || !result.Decoded() {
		fmt.Println(result.String())
		return nil
	}
	out, err := result.Render(format)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
