package service

import "errors"

// Sentinel errors returned by the report service.
var (
	ErrNoPeriods       = errors.New("no periods found")
	ErrNoAuthenticator = errors.New("no portal authenticator configured")
)
