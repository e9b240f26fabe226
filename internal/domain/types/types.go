// Package types contains the wire shapes shared by the API, the cache and the report check tool.
package types

// Report is the aggregated score report returned on success.
type Report struct {
	TotalAveragePoints    float64            `json:"totalAveragePoints"`
	AveragePointsByPrefix map[string]float64 `json:"averagePointsByPrefix"`
	Details               ReportDetails      `json:"details"`
}

// ReportDetails exposes the raw accumulators behind each average.
type ReportDetails struct {
	PointsByPrefix map[string]float64 `json:"pointsByPrefix"`
	CountByPrefix  map[string]int     `json:"countByPrefix"`
}

// MissingParamsResponse is the 400 body.
type MissingParamsResponse struct {
	Error   string `json:"error"`
	Missing string `json:"missing"`
}

// NotFoundResponse is the 404 body.
type NotFoundResponse struct {
	Message string `json:"message"`
}

// FailureResponse is the 500 body.
type FailureResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}
