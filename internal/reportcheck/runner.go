package reportcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/bareme/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	outputPermission    = 0600
)

// Run executes the complete report check.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	applyDefaults(config)
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting bareme report check",
		logger.String("baseURL", config.BaseURL),
		logger.String("login", config.Login),
		logger.Int("requests", config.Requests),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()))
	if config.Requests > 1 {
		logger.Get().Warn(ctx, "requests replay one jeton; the service needs its report cache enabled",
			logger.Int("requests", config.Requests))
	}

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Missing parameters must be rejected
	if err := verifyMissingParams(ctx, config); err != nil {
		return stats, fmt.Errorf("missing parameter check failed: %w", err)
	}

	// Step 3: Request reports concurrently
	results, err := fetchReports(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("report retrieval failed: %w", err)
	}

	// Step 4: Verify results
	if err := verifyResults(ctx, config, results); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	// Step 5: Save the report
	if config.OutputFile != "" && results[0].Report != nil {
		if err := saveReportToFile(ctx, config.OutputFile, results[0]); err != nil {
			logger.Get().Warn(ctx, "failed to save report to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	logger.Get().Info(ctx, "check completed successfully")
	return stats, nil
}

func applyDefaults(config *Config) {
	if config.Requests <= 0 {
		config.Requests = 1
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.Workers > config.Requests {
		config.Workers = config.Requests
	}
	if config.RoundingStep <= 0 {
		config.RoundingStep = DefaultRoundingStep
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Accept any 200 response as healthy (the service returns Prometheus metrics)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveReportToFile writes the report as indented JSON.
func saveReportToFile(ctx context.Context, filename string, res Result) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(res.Report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filename, data, outputPermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "report saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final check statistics.
func displayFinalStats(stats *Stats) {
	var requestsPerSecond float64
	if stats.Duration > 0 {
		requestsPerSecond = float64(stats.RequestsSent) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("requestsSent", stats.RequestsSent),
		logger.Int("requestsSuccessful", stats.RequestsSuccessful),
		logger.Int("requestsNotFound", stats.RequestsNotFound),
		logger.Int("requestsFailed", stats.RequestsFailed),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("requestsPerSecond", requestsPerSecond))
}
