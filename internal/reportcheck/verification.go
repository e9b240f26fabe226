package reportcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"sort"

	"github.com/okian/bareme/internal/domain/scoring"
	"github.com/okian/bareme/internal/domain/types"
	"github.com/okian/bareme/pkg/logger"
)

// VerifyReport checks that a report is internally consistent: every prefix
// has details, each average is its rounded points/count, and the total is
// the sum of the averages.
func VerifyReport(report types.Report, step float64) error {
	if report.AveragePointsByPrefix == nil || report.Details.PointsByPrefix == nil || report.Details.CountByPrefix == nil {
		return fmt.Errorf("report maps must not be null")
	}
	if len(report.AveragePointsByPrefix) != len(report.Details.CountByPrefix) ||
		len(report.AveragePointsByPrefix) != len(report.Details.PointsByPrefix) {
		return fmt.Errorf("prefix sets differ between averages and details")
	}

	var total float64
	for prefix, avg := range report.AveragePointsByPrefix {
		count, ok := report.Details.CountByPrefix[prefix]
		if !ok || count <= 0 {
			return fmt.Errorf("prefix %q has no positive count", prefix)
		}
		points, ok := report.Details.PointsByPrefix[prefix]
		if !ok {
			return fmt.Errorf("prefix %q has no points", prefix)
		}
		want := scoring.RoundToStep(points/float64(count), step)
		if math.Abs(want-avg) > epsilon {
			return fmt.Errorf("prefix %q: average %.2f, want %.2f", prefix, avg, want)
		}
		total += avg
	}

	if math.Abs(total-report.TotalAveragePoints) > epsilon {
		return fmt.Errorf("total %.2f, want %.2f", report.TotalAveragePoints, total)
	}
	return nil
}

// verifyMissingParams calls /cc without credentials and expects a 400
// listing all three parameters.
func verifyMissingParams(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.Timeout)
	res, err := fetchReport(ctx, client, config.BaseURL+"/cc")
	if err != nil {
		return err
	}
	if res.Status != http.StatusBadRequest {
		return fmt.Errorf("expected 400 without parameters, got %d", res.Status)
	}

	var body types.MissingParamsResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return fmt.Errorf("failed to decode 400 body: %w", err)
	}
	if body.Missing != "jeton, login, url" {
		return fmt.Errorf("unexpected missing list %q", body.Missing)
	}
	return nil
}

// verifyResults checks every successful report and that all responses agree.
func verifyResults(ctx context.Context, config *Config, results []Result) error {
	log := logger.Get()
	log.Info(ctx, "verifying results", logger.Int("responses", len(results)))

	if len(results) == 0 {
		return fmt.Errorf("no responses to verify")
	}

	first := results[0]
	for i, res := range results {
		if res.Status != first.Status {
			return fmt.Errorf("response %d has status %d, first had %d", i, res.Status, first.Status)
		}
		if res.Report == nil {
			continue
		}
		if err := VerifyReport(*res.Report, config.RoundingStep); err != nil {
			return fmt.Errorf("response %d: %w", i, err)
		}
		if !reflect.DeepEqual(res.Report, first.Report) {
			return fmt.Errorf("response %d differs from the first report", i)
		}
	}

	switch first.Status {
	case http.StatusOK:
		displayReport(ctx, *first.Report)
	case http.StatusNotFound:
		log.Warn(ctx, "service found no periods for these credentials")
	default:
		log.Warn(ctx, "service could not compute the report",
			logger.Int("status", first.Status),
			logger.String("body", string(first.Body)))
	}

	log.Info(ctx, "result verification completed")
	return nil
}

// displayReport logs the averages in prefix order.
func displayReport(ctx context.Context, report types.Report) {
	prefixes := make([]string, 0, len(report.AveragePointsByPrefix))
	for p := range report.AveragePointsByPrefix {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)

	log := logger.Get()
	for _, p := range prefixes {
		log.Info(ctx, "prefix average",
			logger.String("prefix", p),
			logger.Float64("average", report.AveragePointsByPrefix[p]),
			logger.Int("count", report.Details.CountByPrefix[p]))
	}
	log.Info(ctx, "total", logger.Float64("totalAveragePoints", report.TotalAveragePoints))
}
