package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gitlab.com/d21d3q/gometers/internal/bus"
	"gitlab.com/d21d3q/gometers/internal/config"
	"gitlab.com/d21d3q/gometers/internal/dispatch"
	_ "gitlab.com/d21d3q/gometers/internal/driver/generic"  // register driver
	_ "gitlab.com/d21d3q/gometers/internal/driver/vario451" // register driver
	"gitlab.com/d21d3q/gometers/internal/metrics"
	"gitlab.com/d21d3q/gometers/internal/output"
	"gitlab.com/d21d3q/gometers/internal/publish"
)

var (
	listenCmd = &cobra.Command{
		Use:   "listen",
		Short: "Decode telegrams read line by line and publish the readings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runListen(cmd.Context())
		},
	}

	configPath string
	inputPath  string
)

func init() {
	listenCmd.Flags().StringVarP(&configPath, "config", "c", "meters.yaml", "configuration file")
	listenCmd.Flags().StringVarP(&inputPath, "input", "i", "-", "telegram source, one hex telegram per line (- for stdin)")
}

func runListen(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg.Log); err != nil {
		return err
	}
	log := logrus.WithField("component", "listen")

	meters, err := cfg.NewMeters()
	if err != nil {
		return err
	}
	format, renderOpts, err := cfg.Output()
	if err != nil {
		return err
	}
	sinks := []dispatch.Sink{output.NewWriter(os.Stdout, format, renderOpts)}

	if cfg.Redis.Addr != "" {
		client, err := publish.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()
		sinks = append(sinks, publish.New(client, publish.Options{
			Channel:   cfg.Redis.Channel,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}))
		log.WithField("addr", cfg.Redis.Addr).Info("publishing readings to redis")
	}

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.Handler(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.WithField("addr", cfg.Metrics.Addr).Info("serving metrics")
	}

	d := dispatch.New(meters, logrus.WithField("component", "dispatch"),
		dispatch.WithSinks(sinks...),
		dispatch.WithMetrics(collector),
		dispatch.WithDebug(cfg.Debug),
	)
	b := bus.New(logrus.WithField("component", "bus"))
	b.OnTelegram(d.Handle)

	var in io.Reader = os.Stdin
	if inputPath != "-" {
		f, err := os.Open(inputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	log.WithField("meters", len(meters)).Info("listening for telegrams")
	if err := b.Run(ctx, in); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
