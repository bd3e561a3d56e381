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

	"github.com/pwnholic/slidecap/internal"
	"github.com/pwnholic/slidecap/internal/config"
)

func init() {
	internal.InitDefaultLogger(internal.INFO)
}

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: slidecap -u <url> | slidecap <file.svg>...")
		fmt.Fprintln(os.Stderr, "Options:")
		flag.PrintDefaults()
	}

	startTime := time.Now()
	customFlag := parseFlag()

	cfg, err := loadConfig(customFlag)
	if err != nil {
		internal.ErrorLog("Invalid configuration:\n%v", err)
		os.Exit(1)
	}
	level, err := internal.ParseLevel(cfg.LogLevel)
	if err != nil {
		internal.WarningLog("%v, keeping info", err)
		level = internal.INFO
	}
	internal.GetDefaultLogger().SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	process, err := newCaptureProcess(ctx, cfg)
	if err != nil {
		internal.ErrorLog("Something went wrong : %s", err.Error())
		os.Exit(1)
	}
	defer process.Close()

	err = process.run(ctx, pickMode(cfg, customFlag))
	if err != nil && !errors.Is(err, context.Canceled) {
		internal.ErrorLog("Something went wrong : %s", err.Error())
		process.Close()
		os.Exit(1)
	}
	internal.SuccessLog("Program completed in %v", time.Since(startTime))
}

// loadConfig layers defaults, the optional config file and explicit flags,
// then validates the result.
func loadConfig(f *Flag) (*config.Config, error) {
	cfg := config.Default()
	if f.ConfigPath != "" {
		loaded, err := config.LoadFile(f.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if f.isSet("u") {
		cfg.Source.URL = f.URL
	}
	if len(f.Files) > 0 {
		cfg.Source.Files = f.Files
	}
	if f.isSet("selector") {
		cfg.Source.Selector = f.Selector
	}
	if f.isSet("browser") {
		cfg.Source.Browser = f.Browser
	}
	if f.isSet("headless") {
		cfg.Source.Headless = f.Headless
	}
	if f.isSet("listen") {
		cfg.Listen = f.Listen
	}
	if f.isSet("o") {
		cfg.Output.Dir = f.OutputDir
	}
	if f.isSet("format") {
		cfg.Output.Format = f.Format
	}
	if f.isSet("x") {
		cfg.Inline.Concurrency = f.MaxConcurrent
	}
	if f.isSet("rps") {
		cfg.Inline.RatePerSecond = f.RatePerSecond
	}
	if f.isSet("timeout") {
		cfg.HTTP.Timeout = f.Timeout
	}
	if f.isSet("log-level") {
		cfg.LogLevel = f.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
