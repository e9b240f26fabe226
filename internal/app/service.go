// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/bareme/internal/adapters/portal"
	"github.com/okian/bareme/internal/domain/model"
	"github.com/okian/bareme/internal/domain/scoring"
	"github.com/okian/bareme/internal/domain/types"
	"github.com/okian/bareme/pkg/logger"
	"github.com/okian/bareme/pkg/metrics"
)

// LogComponent names the service in structured logs.
const LogComponent = "report"

// Default service configuration constants.
const (
	defaultPinCode  = "0000"
	defaultCacheTTL = 5 * time.Minute
)

// ReportCache is the subset of the report cache used by the service.
type ReportCache interface {
	Key(creds model.Credentials) string
	Get(ctx context.Context, key string) (types.Report, bool, error)
	Set(ctx context.Context, key string, report types.Report, ttl time.Duration) error
}

// Service computes competency reports from portal data.
type Service struct {
	// Collaborators
	auth  portal.Authenticator
	cache ReportCache

	// Configuration
	pinCode      string
	deviceUUID   string
	bareme       scoring.Bareme
	roundingStep float64
	cacheTTL     time.Duration

	// Statistics
	computed  atomic.Int64
	notFound  atomic.Int64
	failures  atomic.Int64
	cacheHits atomic.Int64

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuthenticator sets the portal collaborator.
func WithAuthenticator(auth portal.Authenticator) Option {
	return func(s *Service) {
		s.auth = auth
	}
}

// WithCache enables caching of computed reports.
func WithCache(c ReportCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithPinCode sets the PIN sent with every QR-code login.
func WithPinCode(pin string) Option {
	return func(s *Service) {
		if pin != "" {
			s.pinCode = pin
		}
	}
}

// WithDeviceUUID sets the device identifier announced to the portal.
func WithDeviceUUID(id string) Option {
	return func(s *Service) {
		s.deviceUUID = id
	}
}

// WithBareme overrides the level-to-points table.
func WithBareme(b scoring.Bareme) Option {
	return func(s *Service) {
		s.bareme = b
	}
}

// WithRoundingStep sets the multiple averages are rounded to.
func WithRoundingStep(step float64) Option {
	return func(s *Service) {
		if step > 0 {
			s.roundingStep = step
		}
	}
}

// WithCacheTTL sets how long computed reports stay cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		pinCode:  defaultPinCode,
		cacheTTL: defaultCacheTTL,
		logger:   logger.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Report authenticates against the portal, walks every period and returns
// the aggregated report. It returns ErrNoPeriods when the account has none.
func (s *Service) Report(ctx context.Context, creds model.Credentials) (types.Report, error) {
	start := time.Now()
	log := s.requestLogger(ctx)

	report, err := s.report(ctx, log, creds)
	switch {
	case err == nil:
		s.computed.Add(1)
		metrics.RecordReportComputed(float64(time.Since(start).Milliseconds()))
	case errors.Is(err, ErrNoPeriods):
		s.notFound.Add(1)
		metrics.RecordReportNotFound()
	default:
		s.failures.Add(1)
		metrics.RecordReportFailure()
	}
	return report, err
}

// requestLogger scopes the request logger carried by ctx under the report
// component. Without one it falls back to the service logger.
func (s *Service) requestLogger(ctx context.Context) logger.Logger {
	if rl := logger.FromContext(ctx, nil); rl != nil {
		return rl.Named(LogComponent)
	}
	return s.logger
}

func (s *Service) report(ctx context.Context, log logger.Logger, creds model.Credentials) (types.Report, error) {
	if s.auth == nil {
		return types.Report{}, ErrNoAuthenticator
	}

	var key string
	if s.cache != nil {
		key = s.cache.Key(creds)
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			log.Warn(ctx, "report cache lookup failed", logger.Error(err))
		}
		if ok {
			s.cacheHits.Add(1)
			log.Debug(ctx, "report served from cache")
			return cached, nil
		}
	}

	session, err := s.auth.Authenticate(ctx, portal.LoginRequest{
		PinCode:     s.pinCode,
		Credentials: creds,
		DeviceUUID:  s.deviceUUID,
	})
	if err != nil {
		return types.Report{}, err
	}

	periods, err := session.Periods(ctx)
	if err != nil {
		return types.Report{}, fmt.Errorf("list periods: %w", err)
	}
	metrics.RecordPeriodsFetched(len(periods))
	if len(periods) == 0 {
		log.Info(ctx, "no periods returned by portal", logger.String("login", creds.Login))
		return types.Report{}, ErrNoPeriods
	}

	agg := scoring.NewAggregator(
		scoring.WithBareme(s.bareme),
		scoring.WithRoundingStep(s.roundingStep),
	)

	// One portal call per period, in order.
	for _, period := range periods {
		if err := ctx.Err(); err != nil {
			return types.Report{}, err
		}

		evaluations, err := session.Evaluations(ctx, period)
		if err != nil {
			return types.Report{}, err
		}
		agg.Add(evaluations...)

		log.Debug(ctx, "period aggregated",
			logger.String("period", period.Name),
			logger.Int("evaluations", len(evaluations)),
		)
	}

	stats := agg.Stats()
	metrics.RecordEvaluationsProcessed(stats.Evaluations)
	metrics.RecordSkillsAggregated(stats.Contributions, stats.Skipped)

	report := agg.Result()
	log.Info(ctx, "report computed",
		logger.Int("periods", len(periods)),
		logger.Int("evaluations", stats.Evaluations),
		logger.Int("prefixes", len(report.AveragePointsByPrefix)),
		logger.Float64("total", report.TotalAveragePoints),
	)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, report, s.cacheTTL); err != nil {
			log.Warn(ctx, "report cache store failed", logger.Error(err))
		}
	}

	return report, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"reportsComputed": s.computed.Load(),
		"reportsNotFound": s.notFound.Load(),
		"reportFailures":  s.failures.Load(),
		"cacheHits":       s.cacheHits.Load(),
		"cacheEnabled":    s.cache != nil,
		"roundingStep":    s.effectiveRoundingStep(),
	}
}

func (s *Service) effectiveRoundingStep() float64 {
	if s.roundingStep > 0 {
		return s.roundingStep
	}
	return scoring.DefaultRoundingStep
}
