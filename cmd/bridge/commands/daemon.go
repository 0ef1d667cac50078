package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wwhai/worksite-bridge/internal/config"
	"github.com/wwhai/worksite-bridge/internal/debounce"
	"github.com/wwhai/worksite-bridge/internal/logging"
	"github.com/wwhai/worksite-bridge/internal/metrics"
	"github.com/wwhai/worksite-bridge/internal/modbusengine"
	"github.com/wwhai/worksite-bridge/internal/rdsclient"
	"github.com/wwhai/worksite-bridge/internal/syncloop"
)

// runDaemon implements component C6: load and validate configuration
// (fail-fast on any violation), instantiate the RDS client, enter the sync
// loop, and on a termination signal close all Modbus clients and exit 0.
func runDaemon(cmd *cobra.Command) error {
	loaderOpts := []config.LoaderOption{}
	if cfgFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigPaths(cfgFile))
	}
	cfg, err := config.Load(loaderOpts...)
	if err != nil {
		cmd.PrintErrln("bridge: configuration error:", err)
		return err
	}

	groups, err := config.Group(cfg)
	if err != nil {
		cmd.PrintErrln("bridge: configuration error:", err)
		return err
	}

	logCfg := cfg.Log
	if cfg.DebugLog {
		logCfg.Level = "debug"
	}
	logger := logging.New(logCfg)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		go func() {
			if err := metrics.Serve(cfg.Metrics.Addr); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	engine := modbusengine.NewEngine(cfg.ReconnectBackoff, cfg.ModbusRequestTimeout, nil)
	debouncer := debounce.New(cfg.FillDebounce)
	rds := rdsclient.New(cfg.RDS.Host, cfg.RDS.User, cfg.RDS.Pass, cfg.RDS.Language, cfg.ModbusRequestTimeout)
	loop := syncloop.New(groups, engine, debouncer, rds, logger, m)

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(cfg.PollInterval, stop)
	}()

	<-sig
	logger.Info("shutdown signal received, closing Modbus clients")
	close(stop)
	<-done
	engine.CloseAll()
	return nil
}
