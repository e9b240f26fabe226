package types_test

import (
	"encoding/json"
	"testing"

	types "github.com/okian/bareme/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestReportWireShape(t *testing.T) {
	Convey("Given a Report", t, func() {
		report := types.Report{
			TotalAveragePoints:    50,
			AveragePointsByPrefix: map[string]float64{"A": 50},
			Details: types.ReportDetails{
				PointsByPrefix: map[string]float64{"A": 50},
				CountByPrefix:  map[string]int{"A": 1},
			},
		}

		Convey("When encoding it to JSON", func() {
			raw, err := json.Marshal(report)
			So(err, ShouldBeNil)

			var generic map[string]any
			So(json.Unmarshal(raw, &generic), ShouldBeNil)

			Convey("Then it should use the camelCase keys clients expect", func() {
				So(generic, ShouldContainKey, "totalAveragePoints")
				So(generic, ShouldContainKey, "averagePointsByPrefix")
				So(generic, ShouldContainKey, "details")
				details := generic["details"].(map[string]any)
				So(details, ShouldContainKey, "pointsByPrefix")
				So(details, ShouldContainKey, "countByPrefix")
			})
		})
	})
}
