package api

// Client-facing messages of the report endpoint.
const (
	msgMissingParams = "Missing required parameters"
	msgNoPeriods     = "No periods found"
	msgFailure       = "Failed to process the request"
)

const logComponent = "http"
