package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/bareme/internal/reportcheck"
)

// Default configuration constants.
const (
	defaultRequests     = 1
	defaultWorkers      = 1
	defaultCheckTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:3000", "Base URL of the service")
		jeton      = flag.String("jeton", "", "QR-code jeton")
		login      = flag.String("login", "", "QR-code login")
		portalURL  = flag.String("portal-url", "", "QR-code portal URL")
		requests   = flag.Int("requests", defaultRequests, "Number of report requests to send; more than one reuses the jeton and needs the service report cache")
		workers    = flag.Int("workers", defaultWorkers, "Number of concurrent workers")
		step       = flag.Float64("step", reportcheck.DefaultRoundingStep, "Rounding step the service is configured with")
		timeout    = flag.Duration("timeout", reportcheck.DefaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Save the first report to this JSON file")
		logFile    = flag.String("log", "", "Also write logs to this file")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		reportcheck.ShowHelp()
		return
	}

	// Setup logging
	if err := reportcheck.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultCheckTimeout)
	defer cancel()

	config := &reportcheck.Config{
		BaseURL:      *baseURL,
		Jeton:        *jeton,
		Login:        *login,
		PortalURL:    *portalURL,
		Requests:     *requests,
		Workers:      *workers,
		RoundingStep: *step,
		Timeout:      *timeout,
		OutputFile:   *outputFile,
		Verbose:      *verbose,
	}

	if _, err := reportcheck.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Check failed: " + err.Error() + "\n")
		cancel()
		stop()
		os.Exit(1)
	}
}
