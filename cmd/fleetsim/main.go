package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tkhorram/convoytrack/internal/fleetsim"
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		units       = flag.Int("units", 20, "Number of units in the simulated convoy")
		engagements = flag.Int("engagements", 2000, "Number of engagements to generate and submit")
		ticks       = flag.Int("ticks", 10, "Telemetry samples per unit")
		topN        = flag.Int("top", 50, "Number of leaderboard entries to fetch")
		workers     = flag.Int("workers", runtime.NumCPU()*2, "Number of concurrent submitters")
		timeout     = flag.Duration("timeout", 30*time.Second, "HTTP request timeout")
		settle      = flag.Duration("settle", 2*time.Second, "Wait between submission and verification")
		logFile     = flag.String("log", "", "Log file for run output")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		fleetsim.ShowHelp()
		return
	}

	if err := fleetsim.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("failed to set up logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config := &fleetsim.Config{
		BaseURL:        *baseURL,
		Units:          *units,
		Engagements:    *engagements,
		TelemetryTicks: *ticks,
		TopN:           *topN,
		Workers:        *workers,
		Timeout:        *timeout,
		SettleDelay:    *settle,
		LogFile:        *logFile,
		Verbose:        *verbose,
	}

	if err := fleetsim.Run(ctx, config); err != nil {
		os.Stderr.WriteString("simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
