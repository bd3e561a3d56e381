package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

type Flag struct {
	ConfigPath    string
	URL           string
	Files         []string
	Selector      string
	Browser       bool
	Headless      bool
	Interactive   bool
	Listen        string
	OutputDir     string
	Format        string
	MaxConcurrent int
	RatePerSecond float64
	Timeout       time.Duration
	LogLevel      string

	// set records which flags were given explicitly, so they override the
	// config file while unset ones leave it alone.
	set map[string]bool
}

func (f *Flag) isSet(name string) bool {
	return f.set[name]
}

func parseFlag() *Flag {
	help := flag.Bool("h", false, "Display this help message and exit")
	flag.BoolVar(help, "help", false, "Alias for -h")
	configPath := flag.String("config", "", `Path to a YAML config file`)
	url := flag.String("u", "", `Published deck URL (e.g. "https://docs.google.com/presentation/d/<id>/pub")`)
	selector := flag.String("selector", "", `CSS selector of the slide <svg> (default ".punch-viewer-svgpage-svgcontainer svg")`)
	browser := flag.Bool("browser", false, `Open the deck in Chrome and capture whatever slide is showing`)
	headless := flag.Bool("headless", false, `[Browser Mode] Run Chrome without a window`)
	interactive := flag.Bool("i", false, `Read capture commands from the terminal even when files are given`)
	listen := flag.String("listen", "", `Serve capture/finalize triggers over HTTP on this address (e.g. ":8080")`)
	outputDir := flag.String("o", "", `Directory the download is written to (default ".")`)
	format := flag.String("format", "", `Download format: "zip" (PNG per slide) or "pdf" (one page per slide)`)
	maxConcurrent := flag.Int("x", 0, `Maximum simultaneous image downloads per slide (default 4)`)
	rps := flag.Float64("rps", 0, `Image downloads per second, 0 = unlimited`)
	timeout := flag.Duration("timeout", 0, `Per-request HTTP timeout (default 10s)`)
	logLevel := flag.String("log-level", "", `debug, info, warning or error (default info)`)

	flag.Parse()

	if *help {
		fmt.Println("slidecap - Capture presentation slides as 1920x1080 PNGs and download them as one archive")
		fmt.Println("Usage: `slidecap -u <url>`, `slidecap -u <url> -browser` or `slidecap slide1.svg slide2.svg`")
		flag.PrintDefaults()
		fmt.Println("\nInteractive keys:")
		fmt.Println("  c or Enter  capture the current slide")
		fmt.Println("  s           stop and download")
		fmt.Println("  ?           show progress")
		fmt.Println("  q           quit")
		fmt.Println("\nExamples:")
		fmt.Println("  Capture a published deck:     -u <URL>")
		fmt.Println("  Flip slides in a browser:     -u <URL> -browser")
		fmt.Println("  Convert local files to PDF:   -format pdf deck/*.svg")
		fmt.Println("  Remote triggers:              -u <URL> -browser -listen :8080")
		os.Exit(0)
	}

	set := make(map[string]bool)
	flag.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	return &Flag{
		ConfigPath:    *configPath,
		URL:           *url,
		Files:         flag.Args(),
		Selector:      *selector,
		Browser:       *browser,
		Headless:      *headless,
		Interactive:   *interactive,
		Listen:        *listen,
		OutputDir:     *outputDir,
		Format:        *format,
		MaxConcurrent: *maxConcurrent,
		RatePerSecond: *rps,
		Timeout:       *timeout,
		LogLevel:      *logLevel,
		set:           set,
	}
}
