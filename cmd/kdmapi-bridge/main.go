// ABOUTME: Entry point for kdmapi-bridge
// ABOUTME: Serves the local OmniMIDI driver to network clients over WebSocket
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omnimidi/kdmapi-go/internal/bridge"
	"github.com/omnimidi/kdmapi-go/internal/config"
	"github.com/omnimidi/kdmapi-go/internal/logging"
	"github.com/omnimidi/kdmapi-go/internal/version"
	"github.com/omnimidi/kdmapi-go/pkg/kdmapi"
	"go.uber.org/zap"
)

var (
	configPath  = flag.String("config", "kdmapi.yaml", "Config file path")
	port        = flag.Int("port", 0, "Port to listen on (overrides config)")
	name        = flag.String("name", "", "Bridge name (overrides config)")
	noMDNS      = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFile     = flag.String("log-file", "", "Log file path")
	statsEvery  = flag.Duration("stats", 30*time.Second, "Stats log interval (0 disables)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	if *port != 0 {
		cfg.Bridge.Port = *port
	}
	if *name != "" {
		cfg.Bridge.Name = *name
	}
	if *noMDNS {
		cfg.Bridge.EnableMDNS = false
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}

	logger, cleanup, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	defer cleanup()
	kdmapi.SetLogger(logger.Named("kdmapi"))

	binding := kdmapi.New(
		kdmapi.WithDriverFile(cfg.Driver.File),
		kdmapi.WithVendorDir(cfg.Driver.VendorDir),
	)
	if err := binding.Start(); err != nil {
		logger.Error("failed to start driver", zap.Error(err))
		cleanup()
		os.Exit(1)
	}
	defer binding.Stop()

	server, err := bridge.NewServer(bridge.Config{
		Name:       cfg.Bridge.Name,
		Port:       cfg.Bridge.Port,
		Path:       cfg.Bridge.Path,
		EnableMDNS: cfg.Bridge.EnableMDNS,
		Logger:     logger.Named("bridge"),
	}, binding)
	if err != nil {
		logger.Error("failed to create bridge", zap.Error(err))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *statsEvery > 0 {
		go statsLoop(ctx, server, logger, *statsEvery)
	}

	if err := server.ListenAndServe(ctx); err != nil {
		logger.Error("bridge stopped", zap.Error(err))
		return
	}
	logger.Info("bridge stopped")
}

// statsLoop periodically logs bridge counters
func statsLoop(ctx context.Context, server *bridge.Server, logger *zap.Logger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := server.Stats()
			logger.Info("bridge stats",
				zap.Int("clients", stats.Clients),
				zap.Uint64("frames", stats.Frames),
				zap.Uint64("words", stats.Words),
				zap.Uint64("dropped", stats.Dropped))
		}
	}
}
