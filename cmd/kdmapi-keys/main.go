// ABOUTME: Entry point for kdmapi-keys
// ABOUTME: Plays the computer keyboard through the local driver or a remote bridge
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/omnimidi/kdmapi-go/internal/bridge"
	"github.com/omnimidi/kdmapi-go/internal/config"
	"github.com/omnimidi/kdmapi-go/internal/discovery"
	"github.com/omnimidi/kdmapi-go/internal/logging"
	"github.com/omnimidi/kdmapi-go/internal/ui"
	"github.com/omnimidi/kdmapi-go/pkg/kdmapi"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	configPath = flag.String("config", "kdmapi.yaml", "Config file path")
	serverAddr = flag.String("server", "", "Bridge address (host:port); plays locally when empty")
	discover   = flag.Bool("discover", false, "Find a bridge via mDNS")
	channel    = flag.Int("channel", 0, "MIDI channel 1-16 (overrides config)")
	program    = flag.Int("program", -1, "Program 0-127 (overrides config)")
	logFile    = flag.String("log-file", "kdmapi-keys.log", "Log file path")
	logLevel   = flag.String("log-level", "", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "kdmapi-keys needs an interactive terminal")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	if *channel >= 1 && *channel <= 16 {
		cfg.Keys.Channel = uint8(*channel - 1)
	}
	if *program >= 0 && *program <= 127 {
		cfg.Keys.Program = uint8(*program)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	// the TUI owns the terminal: log only to file
	logger, cleanup, err := logging.New(logging.Options{Level: cfg.Log.Level, File: *logFile, Quiet: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	defer cleanup()
	kdmapi.SetLogger(logger.Named("kdmapi"))

	sender, target, closeSender, err := openSender(cfg, logger)
	if err != nil {
		logger.Error("no output available", zap.Error(err))
		cleanup()
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer closeSender()

	prog := ui.Run(sender, ui.Settings{
		Channel:    cfg.Keys.Channel,
		Program:    cfg.Keys.Program,
		Velocity:   cfg.Keys.Velocity,
		Octave:     cfg.Keys.Octave,
		NoteLength: cfg.Keys.NoteLength,
		Target:     target,
	})
	if _, err := prog.Run(); err != nil {
		logger.Error("TUI failed", zap.Error(err))
	}
}

// openSender picks the output: an explicit bridge, a discovered bridge, or
// the local driver
func openSender(cfg config.Config, logger *zap.Logger) (ui.Sender, string, func(), error) {
	addr, path := *serverAddr, cfg.Bridge.Path

	if addr == "" && *discover {
		fmt.Fprintln(os.Stderr, "Searching for bridges...")
		disc := discovery.NewManager(discovery.Config{Logger: logger.Named("discovery")})
		disc.Browse()
		defer disc.Stop()

		select {
		case server := <-disc.Servers():
			addr, path = server.Addr(), server.Path
			logger.Info("discovered bridge", zap.String("name", server.Name), zap.String("addr", addr))
		case <-time.After(10 * time.Second):
			return nil, "", nil, fmt.Errorf("no bridge found after 10 seconds")
		}
	}

	if addr != "" {
		client := bridge.NewClient(bridge.ClientConfig{
			ServerAddr: addr,
			Path:       path,
			Name:       hostName() + "-keys",
			Logger:     logger.Named("bridge"),
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Dial(ctx); err != nil {
			return nil, "", nil, err
		}
		target := fmt.Sprintf("%s (%s)", client.Server().Name, addr)
		return client, target, func() { _ = client.Close() }, nil
	}

	binding := kdmapi.New(
		kdmapi.WithDriverFile(cfg.Driver.File),
		kdmapi.WithVendorDir(cfg.Driver.VendorDir),
	)
	if err := binding.Start(); err != nil {
		return nil, "", nil, err
	}
	return binding, "local driver", binding.Stop, nil
}

func hostName() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
