package service_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/bareme/internal/app"
	"github.com/okian/bareme/internal/adapters/portal"
	"github.com/okian/bareme/internal/domain/model"
	"github.com/okian/bareme/internal/domain/scoring"
	"github.com/okian/bareme/internal/domain/types"
	"github.com/okian/bareme/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// fakePortal serves canned periods and evaluations.
type fakePortal struct {
	authErr     error
	periods     []model.Period
	evaluations map[string][]model.Evaluation
	evalErr     error

	logins  []portal.LoginRequest
	fetched []string
}

func (f *fakePortal) Authenticate(_ context.Context, req portal.LoginRequest) (portal.Session, error) {
	f.logins = append(f.logins, req)
	if f.authErr != nil {
		return nil, f.authErr
	}
	return f, nil
}

func (f *fakePortal) Periods(_ context.Context) ([]model.Period, error) {
	return f.periods, nil
}

func (f *fakePortal) Evaluations(_ context.Context, p model.Period) ([]model.Evaluation, error) {
	f.fetched = append(f.fetched, p.ID)
	if f.evalErr != nil {
		return nil, f.evalErr
	}
	return f.evaluations[p.ID], nil
}

// memoryCache is an in-process ReportCache.
type memoryCache struct {
	entries map[string]types.Report
	ttls    map[string]time.Duration
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]types.Report{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Key(c model.Credentials) string { return c.Jeton + "|" + c.Login + "|" + c.URL }

func (m *memoryCache) Get(_ context.Context, key string) (types.Report, bool, error) {
	if m.getErr != nil {
		return types.Report{}, false, m.getErr
	}
	r, ok := m.entries[key]
	return r, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, r types.Report, ttl time.Duration) error {
	m.entries[key] = r
	m.ttls[key] = ttl
	return nil
}

func skill(level string, prefixes ...string) model.Skill {
	return model.Skill{Level: level, Coefficient: 1, Pillar: &model.Pillar{Prefixes: prefixes}}
}

func twoPeriodPortal() *fakePortal {
	return &fakePortal{
		periods: []model.Period{{ID: "t1", Name: "Trimestre 1"}, {ID: "t2", Name: "Trimestre 2"}},
		evaluations: map[string][]model.Evaluation{
			"t1": {{ID: "e1", Skills: []model.Skill{skill(scoring.LevelVeryGood, "A")}}},
			"t2": {{ID: "e2", Skills: []model.Skill{skill(scoring.LevelBeginning, "A"), skill(scoring.LevelFragile, "B")}}},
		},
	}
}

var creds = model.Credentials{Jeton: "jeton", Login: "eleve", URL: "https://college.example"}

func TestService_Report(t *testing.T) {
	Convey("Given a service backed by a two-period portal", t, func() {
		fake := twoPeriodPortal()
		svc := service.New(
			service.WithAuthenticator(fake),
			service.WithDeviceUUID("device-42"),
		)

		Convey("When computing a report", func() {
			report, err := svc.Report(context.Background(), creds)

			Convey("Then it should aggregate across every period", func() {
				So(err, ShouldBeNil)
				So(report.AveragePointsByPrefix["A"], ShouldEqual, 30.0)
				So(report.AveragePointsByPrefix["B"], ShouldEqual, 30.0)
				So(report.Details.CountByPrefix["A"], ShouldEqual, 2)
				So(report.TotalAveragePoints, ShouldEqual, 60.0)
			})

			Convey("And periods should be fetched in order", func() {
				So(fake.fetched, ShouldResemble, []string{"t1", "t2"})
			})

			Convey("And the login should carry the PIN, credentials and device", func() {
				So(fake.logins, ShouldHaveLength, 1)
				So(fake.logins[0].PinCode, ShouldEqual, "0000")
				So(fake.logins[0].Credentials, ShouldResemble, creds)
				So(fake.logins[0].DeviceUUID, ShouldEqual, "device-42")
			})

			Convey("And the stats should count it", func() {
				So(svc.GetStats()["reportsComputed"], ShouldEqual, int64(1))
			})
		})
	})

	Convey("Given a portal with no periods", t, func() {
		svc := service.New(service.WithAuthenticator(&fakePortal{}))

		Convey("When computing a report", func() {
			_, err := svc.Report(context.Background(), creds)

			Convey("Then ErrNoPeriods should be returned", func() {
				So(errors.Is(err, service.ErrNoPeriods), ShouldBeTrue)
				So(svc.GetStats()["reportsNotFound"], ShouldEqual, int64(1))
			})
		})
	})

	Convey("Given a portal that rejects the login", t, func() {
		authErr := errors.New("Invalid QR code")
		fake := &fakePortal{authErr: authErr}
		svc := service.New(service.WithAuthenticator(fake))

		Convey("When computing a report", func() {
			_, err := svc.Report(context.Background(), creds)

			Convey("Then the collaborator error should be returned as is", func() {
				So(err, ShouldEqual, authErr)
				So(svc.GetStats()["reportFailures"], ShouldEqual, int64(1))
			})
		})
	})

	Convey("Given a portal that fails while fetching evaluations", t, func() {
		fake := twoPeriodPortal()
		fake.evalErr = errors.New("upstream timeout")
		svc := service.New(service.WithAuthenticator(fake))

		Convey("When computing a report", func() {
			_, err := svc.Report(context.Background(), creds)

			Convey("Then it should fail without a partial result", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldEqual, "upstream timeout")
				So(fake.fetched, ShouldResemble, []string{"t1"})
			})
		})
	})

	Convey("Given a canceled context", t, func() {
		fake := twoPeriodPortal()
		svc := service.New(service.WithAuthenticator(fake))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("When computing a report", func() {
			_, err := svc.Report(ctx, creds)

			Convey("Then no evaluation should be fetched", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(fake.fetched, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a service without an authenticator", t, func() {
		svc := service.New()

		Convey("Then Report should fail", func() {
			_, err := svc.Report(context.Background(), creds)
			So(errors.Is(err, service.ErrNoAuthenticator), ShouldBeTrue)
		})
	})
}

func TestService_Options(t *testing.T) {
	Convey("Given scoring overrides", t, func() {
		fake := twoPeriodPortal()
		svc := service.New(
			service.WithAuthenticator(fake),
			service.WithPinCode("1234"),
			service.WithBareme(scoring.DefaultBareme().Merge(map[string]float64{scoring.LevelFragile: 20})),
			service.WithRoundingStep(1),
		)

		Convey("When computing a report", func() {
			report, err := svc.Report(context.Background(), creds)

			Convey("Then the overrides should apply", func() {
				So(err, ShouldBeNil)
				So(report.AveragePointsByPrefix["B"], ShouldEqual, 20.0)
				So(fake.logins[0].PinCode, ShouldEqual, "1234")
				So(svc.GetStats()["roundingStep"], ShouldEqual, 1.0)
			})
		})
	})

	Convey("Given an empty PIN option", t, func() {
		fake := twoPeriodPortal()
		svc := service.New(service.WithAuthenticator(fake), service.WithPinCode(""))

		Convey("Then the default PIN should be kept", func() {
			_, err := svc.Report(context.Background(), creds)
			So(err, ShouldBeNil)
			So(fake.logins[0].PinCode, ShouldEqual, "0000")
		})
	})
}

func TestService_Cache(t *testing.T) {
	Convey("Given a service with a report cache", t, func() {
		fake := twoPeriodPortal()
		cache := newMemoryCache()
		svc := service.New(
			service.WithAuthenticator(fake),
			service.WithCache(cache),
			service.WithCacheTTL(time.Minute),
		)
		ctx := context.Background()

		Convey("When the same credentials are reported twice", func() {
			first, err1 := svc.Report(ctx, creds)
			second, err2 := svc.Report(ctx, creds)

			Convey("Then the portal should be called once", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(fake.logins, ShouldHaveLength, 1)
				So(second, ShouldResemble, first)
			})

			Convey("And the TTL and stats should reflect the cache", func() {
				So(cache.ttls[cache.Key(creds)], ShouldEqual, time.Minute)
				stats := svc.GetStats()
				So(stats["cacheHits"], ShouldEqual, int64(1))
				So(stats["cacheEnabled"], ShouldBeTrue)
			})
		})

		Convey("When the cache lookup fails", func() {
			cache.getErr = errors.New("redis down")
			_, err := svc.Report(ctx, creds)

			Convey("Then the report should still be computed", func() {
				So(err, ShouldBeNil)
				So(fake.logins, ShouldHaveLength, 1)
			})
		})

		Convey("When the portal has no periods", func() {
			fake.periods = nil
			_, _ = svc.Report(ctx, creds)

			Convey("Then nothing should be cached", func() {
				So(cache.entries, ShouldBeEmpty)
			})
		})
	})
}

func TestService_RequestLogger(t *testing.T) {
	Convey("Given a service and a request-scoped logger in the context", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithOutput(&buf)), ShouldBeNil)
		Reset(func() { _ = logger.Init() })

		svc := service.New(
			service.WithAuthenticator(twoPeriodPortal()),
			service.WithLogger(logger.Named(service.LogComponent)),
		)
		reqLogger := logger.Get().With(logger.String("request_id", "r-1"))
		ctx := logger.WithContext(context.Background(), reqLogger)

		Convey("When a report is computed", func() {
			_, err := svc.Report(ctx, creds)

			Convey("Then its log lines should keep both the request ID and the report component", func() {
				So(err, ShouldBeNil)
				out := buf.String()
				So(out, ShouldContainSubstring, "report computed")
				So(out, ShouldContainSubstring, "request_id=r-1")
				So(out, ShouldContainSubstring, "component=report")
			})
		})

		Convey("When no request logger is present", func() {
			_, err := svc.Report(context.Background(), creds)

			Convey("Then the service logger should be used", func() {
				So(err, ShouldBeNil)
				So(buf.String(), ShouldContainSubstring, "component=report")
				So(buf.String(), ShouldNotContainSubstring, "request_id")
			})
		})
	})
}
