package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/okian/bareme/internal/domain/model"
	"github.com/okian/bareme/pkg/logger"
	"github.com/okian/bareme/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultTimeout         = 15 * time.Second
	defaultMaxRetries      = 2
	defaultInitialInterval = 200 * time.Millisecond
	defaultMaxInterval     = 2 * time.Second
	maxErrorBodyBytes      = 4 << 10
)

// Operation names used in logs and metrics.
const (
	opAuthenticate = "authenticate"
	opEvaluations  = "evaluations"
)

// HTTPClient is an Authenticator backed by the portal gateway's JSON API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.Logger

	timeout         time.Duration
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
}

var _ Authenticator = (*HTTPClient)(nil)

// NewHTTPClient creates a gateway client rooted at baseURL.
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:         strings.TrimRight(baseURL, "/"),
		logger:          logger.Nop(),
		timeout:         defaultTimeout,
		maxRetries:      defaultMaxRetries,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}

	return c
}

type qrCodeData struct {
	Jeton string `json:"jeton"`
	Login string `json:"login"`
	URL   string `json:"url"`
}

type authRequest struct {
	PinCode        string     `json:"pinCode"`
	DataFromQRCode qrCodeData `json:"dataFromQRCode"`
	DeviceUUID     string     `json:"deviceUUID"`
}

type authResponse struct {
	SessionToken string         `json:"sessionToken"`
	Periods      []model.Period `json:"periods"`
}

type evaluationsResponse struct {
	Evaluations []model.Evaluation `json:"evaluations"`
}

type errorBody struct {
	Message string `json:"message"`
}

// Authenticate exchanges QR-code credentials for a portal session.
func (c *HTTPClient) Authenticate(ctx context.Context, req LoginRequest) (Session, error) {
	body := authRequest{
		PinCode: req.PinCode,
		DataFromQRCode: qrCodeData{
			Jeton: req.Credentials.Jeton,
			Login: req.Credentials.Login,
			URL:   req.Credentials.URL,
		},
		DeviceUUID: req.DeviceUUID,
	}

	var resp authResponse
	if err := c.call(ctx, opAuthenticate, http.MethodPost, "/v1/auth/qrcode", "", body, &resp); err != nil {
		var perr *Error
		if errors.As(err, &perr) && (perr.Status == http.StatusUnauthorized || perr.Status == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if resp.SessionToken == "" {
		return nil, fmt.Errorf("%w: empty session token", ErrAuthentication)
	}

	c.logger.Debug(ctx, "portal session opened",
		logger.String("login", req.Credentials.Login),
		logger.Int("periods", len(resp.Periods)),
	)

	return &httpSession{client: c, token: resp.SessionToken, periods: resp.Periods}, nil
}

// httpSession holds the bearer token and the periods returned at login.
type httpSession struct {
	client  *HTTPClient
	token   string
	periods []model.Period
}

func (s *httpSession) Periods(_ context.Context) ([]model.Period, error) {
	out := make([]model.Period, len(s.periods))
	copy(out, s.periods)
	return out, nil
}

func (s *httpSession) Evaluations(ctx context.Context, period model.Period) ([]model.Evaluation, error) {
	path := fmt.Sprintf("/v1/periods/%s/evaluations", url.PathEscape(period.ID))

	var resp evaluationsResponse
	if err := s.client.call(ctx, opEvaluations, http.MethodGet, path, s.token, nil, &resp); err != nil {
		return nil, fmt.Errorf("evaluations for period %q: %w", period.Name, err)
	}
	return resp.Evaluations, nil
}

// call runs one gateway operation with retries and records its outcome.
func (c *HTTPClient) call(ctx context.Context, op, method, path, token string, in, out any) error {
	start := time.Now()
	err := c.doWithRetry(ctx, op, method, path, token, in, out)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordPortalRequest(op, outcome, float64(time.Since(start).Milliseconds()))
	return err
}

func (c *HTTPClient) doWithRetry(ctx context.Context, op, method, path, token string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = c.maxInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.doOnce(ctx, method, path, token, payload, out)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.maxRetries)+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			metrics.RecordPortalRetry(op)
			c.logger.Warn(ctx, "portal call failed, retrying",
				logger.String("operation", op),
				logger.String("backoff", next.String()),
				logger.Error(err),
			)
		}),
	)
	return err
}

// doOnce performs a single HTTP exchange. Failures that retrying cannot fix
// are wrapped with backoff.Permanent.
func (c *HTTPClient) doOnce(ctx context.Context, method, path, token string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(fmt.Errorf("execute request: %w", err))
		}
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		perr := &Error{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
		if !perr.Temporary() {
			return backoff.Permanent(perr)
		}
		return perr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("%w: %w", ErrInvalidResponse, err))
	}
	return nil
}

// readErrorMessage extracts {"message": ...} from an error body, falling back to the raw text.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Message != "" {
		return eb.Message
	}
	return strings.TrimSpace(string(raw))
}
