package reportcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/okian/bareme/internal/domain/types"
	"github.com/okian/bareme/pkg/logger"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// reportURL builds the /cc URL for the configured credentials.
func reportURL(config *Config) string {
	q := url.Values{}
	if config.Jeton != "" {
		q.Set("jeton", config.Jeton)
	}
	if config.Login != "" {
		q.Set("login", config.Login)
	}
	if config.PortalURL != "" {
		q.Set("url", config.PortalURL)
	}
	target := config.BaseURL + "/cc"
	if enc := q.Encode(); enc != "" {
		target += "?" + enc
	}
	return target
}

// fetchReport performs one /cc request.
func fetchReport(ctx context.Context, client *HTTPClient, target string) (Result, error) {
	start := time.Now()
	resp, err := client.Get(ctx, target)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response: %w", err)
	}

	res := Result{
		Status:    resp.StatusCode,
		RequestID: resp.Header.Get("X-Request-ID"),
		Body:      body,
		Latency:   time.Since(start),
	}
	if resp.StatusCode == http.StatusOK {
		var report types.Report
		if err := json.Unmarshal(body, &report); err != nil {
			return res, fmt.Errorf("failed to decode report: %w", err)
		}
		res.Report = &report
	}
	return res, nil
}

// fetchReports sends config.Requests report requests over a worker pool.
func fetchReports(ctx context.Context, config *Config, stats *Stats) ([]Result, error) {
	log := logger.Get()
	log.Info(ctx, "requesting reports",
		logger.Int("requests", config.Requests),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	target := reportURL(config)

	jobs := make(chan int, config.Workers*WorkerChannelMultiplier)
	results := make([]Result, config.Requests)
	errs := make([]error, config.Requests)

	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res, err := fetchReport(ctx, client, target)
				results[idx], errs[idx] = res, err
				log.Debug(ctx, "report response",
					logger.Int("index", idx),
					logger.Int("status", res.Status),
					logger.String("requestID", res.RequestID),
					logger.String("latency", res.Latency.String()))
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < config.Requests; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, res := range results {
		stats.RequestsSent++
		switch res.Status {
		case http.StatusOK:
			stats.RequestsSuccessful++
		case http.StatusNotFound:
			stats.RequestsNotFound++
		default:
			stats.RequestsFailed++
		}
	}
	return results, nil
}
