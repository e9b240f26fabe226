package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/okian/bareme/internal/config"
	"github.com/okian/bareme/internal/domain/types"
	"github.com/okian/bareme/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// stubGateway answers like the portal gateway for a single account.
func stubGateway(periods string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/qrcode":
			_, _ = w.Write([]byte(`{"sessionToken":"tok","periods":` + periods + `}`))
		case "/v1/periods/t1/evaluations":
			_, _ = w.Write([]byte(`{"evaluations":[{"id":"e1","skills":[
				{"level":"Très bonne maîtrise","coefficient":1,"pillar":{"prefixes":["A"]}},
				{"level":"Début de maîtrise","coefficient":1,"pillar":{"prefixes":["A"]}},
				{"level":"Maîtrise fragile","coefficient":1,"pillar":{"prefixes":[]}}
			]}]}`))
		case "/v1/periods/t2/evaluations":
			_, _ = w.Write([]byte(`{"evaluations":[{"id":"e2","skills":[
				{"level":"Très bonne maîtrise","coefficient":1,"pillar":{"prefixes":["B"]}}
			]}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestMux(gatewayURL string) *http.ServeMux {
	cfg := config.New()
	cfg.PortalBaseURL = gatewayURL
	cfg.PortalMaxRetries = 0
	cfg.DeviceUUID = "test-device"

	reportCache := newReportCache(context.Background(), cfg)
	svc := newService(cfg, reportCache, logger.Nop())
	return newMux(context.Background(), svc, logger.Nop())
}

func get(mux *http.ServeMux, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, http.NoBody))
	return w
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given the wired application in front of a portal gateway", t, func() {
		gateway := stubGateway(`[{"id":"t1","name":"T1"},{"id":"t2","name":"T2"}]`)
		mux := newTestMux(gateway.URL)

		convey.Convey("When requesting a report", func() {
			w := get(mux, "/cc?jeton=j&login=l&url=u")

			convey.Convey("Then the report should aggregate every period", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)

				var report types.Report
				convey.So(json.Unmarshal(w.Body.Bytes(), &report), convey.ShouldBeNil)
				convey.So(report.AveragePointsByPrefix["A"], convey.ShouldEqual, 30.0)
				convey.So(report.AveragePointsByPrefix["B"], convey.ShouldEqual, 50.0)
				convey.So(report.Details.CountByPrefix["A"], convey.ShouldEqual, 2)
				convey.So(report.TotalAveragePoints, convey.ShouldEqual, 80.0)
			})
		})

		convey.Convey("When a parameter is missing", func() {
			w := get(mux, "/cc?jeton=j")

			convey.Convey("Then it should answer 400", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
				convey.So(w.Body.String(), convey.ShouldContainSubstring, `"missing":"login, url"`)
			})
		})

		convey.Convey("When fetching the docs and metrics", func() {
			convey.So(get(mux, "/openapi.yaml").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get(mux, "/api-docs").Code, convey.ShouldEqual, http.StatusOK)
			health := get(mux, "/healthz")
			convey.So(health.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(health.Body.String(), convey.ShouldContainSubstring, "bareme_reports_computed_total")
			convey.So(health.Body.String(), convey.ShouldNotContainSubstring, "go_goroutines")
			convey.So(get(mux, "/stats").Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Reset(gateway.Close)
	})

	convey.Convey("Given a gateway that returns no periods", t, func() {
		gateway := stubGateway(`[]`)
		mux := newTestMux(gateway.URL)

		convey.Convey("Then the report should be not found", func() {
			w := get(mux, "/cc?jeton=j&login=l&url=u")
			convey.So(w.Code, convey.ShouldEqual, http.StatusNotFound)
		})

		convey.Reset(gateway.Close)
	})

	convey.Convey("Given a gateway that is down", t, func() {
		gateway := stubGateway(`[]`)
		gateway.Close()
		mux := newTestMux(gateway.URL)

		convey.Convey("Then the report should fail with 500", func() {
			w := get(mux, "/cc?jeton=j&login=l&url=u")
			convey.So(w.Code, convey.ShouldEqual, http.StatusInternalServerError)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "Failed to process the request")
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When the cache is disabled", func() {
			c := newReportCache(context.Background(), config.New())

			convey.Convey("Then a no-op cache should be returned", func() {
				convey.So(c.Enabled(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When testing system metrics updater", func() {
			convey.Convey("Then it should return once the context ends", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(func() {
					updateSystemMetrics()
				}, convey.ShouldNotPanic)
			})
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When the configuration is invalid", func() {
			_ = os.Setenv("BAREME_ADDR", "")
			defer func() { _ = os.Unsetenv("BAREME_ADDR") }()

			convey.Convey("Then run should fail before serving", func() {
				err := run(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
