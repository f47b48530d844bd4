// ABOUTME: Entry point for kdmapi-play
// ABOUTME: Plays a test note or a MIDI file through the OmniMIDI driver
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omnimidi/kdmapi-go/internal/config"
	"github.com/omnimidi/kdmapi-go/internal/logging"
	"github.com/omnimidi/kdmapi-go/internal/version"
	"github.com/omnimidi/kdmapi-go/pkg/kdmapi"
	"github.com/omnimidi/kdmapi-go/pkg/midiword"
	"github.com/omnimidi/kdmapi-go/pkg/sequencer"
	"go.uber.org/zap"
)

var (
	configPath  = flag.String("config", "kdmapi.yaml", "Config file path")
	logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFile     = flag.String("log-file", "", "Log file path")
	noteLength  = flag.Duration("note-length", time.Second, "Length of the test note")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [file.mid]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Without a file, plays C4 for -note-length as a driver smoke test.\n\n")
		flag.PrintDefaults()
	}
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, flag.Arg(0)); err != nil {
		logger.Error("playback failed", zap.Error(err))
		cleanup()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, file string) error {
	// load the file before touching the driver so a bad path fails fast
	var events []sequencer.Event
	if file != "" {
		var err error
		events, err = sequencer.LoadFile(file)
		if err != nil {
			return err
		}
		logger.Info("loaded midi file", zap.String("file", file), zap.Int("events", len(events)))
	} else {
		events = []sequencer.Event{
			{At: 0, Word: midiword.NoteOn(0, 0x30, 0x7F)},
			{At: *noteLength, Word: midiword.NoteOff(0, 0x30)},
		}
	}

	binding := kdmapi.New(
		kdmapi.WithDriverFile(cfg.Driver.File),
		kdmapi.WithVendorDir(cfg.Driver.VendorDir),
	)
	if err := binding.Start(); err != nil {
		if fallback, ferr := binding.FallbackPath(); ferr == nil {
			logger.Info("driver search", zap.String("name", kdmapi.DriverFile), zap.String("fallback", fallback))
		}
		return err
	}
	defer binding.Stop()

	player := sequencer.NewPlayer(binding)
	player.SetLogger(logger.Named("sequencer"))

	start := time.Now()
	res, err := player.Play(ctx, events)
	if errors.Is(err, context.Canceled) {
		logger.Info("interrupted", zap.Int("events", res.Events))
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info("playback finished",
		zap.Int("events", res.Events),
		zap.Duration("elapsed", time.Since(start)),
		zap.Uint64("words", binding.Sent()))
	return nil
}
