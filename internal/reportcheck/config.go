// Package reportcheck exercises a running bareme service end to end and
// verifies the shape and arithmetic of the reports it returns.
package reportcheck

import (
	"time"

	"github.com/okian/bareme/internal/domain/types"
)

// Config holds configuration for the report check
type Config struct {
	BaseURL      string        // Base URL of the service
	Jeton        string        // QR-code jeton
	Login        string        // QR-code login
	PortalURL    string        // QR-code portal URL
	Requests     int           // Number of report requests to send; >1 replays the jeton
	Workers      int           // Number of concurrent workers
	RoundingStep float64       // Step the service rounds averages to
	Timeout      time.Duration // HTTP request timeout
	OutputFile   string        // File the first report is saved to
	Verbose      bool          // Enable verbose logging
}

// Result is one /cc response.
type Result struct {
	Status    int
	RequestID string
	Report    *types.Report
	Body      []byte
	Latency   time.Duration
}

// Stats holds check statistics
type Stats struct {
	RequestsSent       int
	RequestsSuccessful int
	RequestsNotFound   int
	RequestsFailed     int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
