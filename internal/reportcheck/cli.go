package reportcheck

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/bareme/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging initializes the global logger, teeing to logFile when set.
func SetupLogging(logFile string, verbose bool) error {
	var out io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
	}

	if err := logger.Init(logger.WithOutput(out)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the report check tool.
func ShowHelp() {
	os.Stdout.WriteString(`bareme Report Check
===================

Calls a running bareme service and verifies its /cc responses.

Usage:
  go run ./cmd/report-check -jeton J -login L -portal-url U [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:3000")
  -jeton, -login, -portal-url string
        QR-code credentials forwarded to /cc
  -requests int
        Number of report requests to send (default 1). Every request replays
        the same one-shot jeton, so more than one needs the service running
        with BAREME_CACHE_ENABLED=true
  -workers int
        Number of concurrent workers (default 1)
  -step float
        Rounding step the service is configured with (default 10)
  -timeout duration
        HTTP request timeout (default 60s)
  -output string
        Save the first report to this JSON file
  -log string
        Also write logs to this file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Single request
  go run ./cmd/report-check -jeton abc -login eleve -portal-url https://college.example

  # Ten requests on four workers against a cached service, checking they all agree
  go run ./cmd/report-check -jeton abc -login eleve -portal-url https://college.example -requests 10 -workers 4
`)
}
