// Package portal talks to the school portal through its QR-code gateway.
package portal

import (
	"context"

	"github.com/okian/bareme/internal/domain/model"
)

// LoginRequest carries everything the portal needs to open a QR-code session.
type LoginRequest struct {
	PinCode     string
	Credentials model.Credentials
	DeviceUUID  string
}

// Authenticator opens portal sessions.
type Authenticator interface {
	Authenticate(ctx context.Context, req LoginRequest) (Session, error)
}

// Session is an authenticated portal client scoped to one report.
type Session interface {
	// Periods returns the grading periods known to the account.
	Periods(ctx context.Context) ([]model.Period, error)
	// Evaluations fetches the evaluations graded in period.
	Evaluations(ctx context.Context, period model.Period) ([]model.Evaluation, error)
}
