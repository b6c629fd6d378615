package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/draftea/booking-system/booking-service/domain"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// HTTPReservationConfig configures a remote reservation service
type HTTPReservationConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
}

// HTTPReservationClient implements domain.ReservationCapability against a
// remote reservation API
type HTTPReservationClient struct {
	kind     domain.ResourceKind
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

type reservationErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewHTTPReservationClient creates a client for one resource kind
func NewHTTPReservationClient(kind domain.ResourceKind, cfg HTTPReservationConfig, logger *slog.Logger) *HTTPReservationClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPReservationClient{
		kind:     kind,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger.With("resource", kind.String(), "endpoint", cfg.Endpoint),
	}
}

// Reserve posts the reservation request. Any non-2xx answer is a ReservationFailure
// carrying the remote error message.
func (c *HTTPReservationClient) Reserve(ctx context.Context, req *domain.ReservationRequest) (*domain.ReservationResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal reservation request")
	}

	resp, err := c.do(ctx, http.MethodPost, c.endpoint+"/reservations", body)
	if err != nil {
		return nil, c.failure(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.failure(readErrorMessage(resp))
	}

	var result domain.ReservationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, c.failure("invalid reservation response: " + err.Error())
	}

	return &result, nil
}

// Cancel deletes the reservation. A missing reservation counts as cancelled.
func (c *HTTPReservationClient) Cancel(ctx context.Context, reservationID string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.endpoint+"/reservations/"+url.PathEscape(reservationID), nil)
	if err != nil {
		return errors.Wrapf(err, "failed to cancel %s reservation %s", c.kind, reservationID)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.WarnContext(ctx, "reservation not found on cancel", "reservation_id", reservationID)
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("failed to cancel %s reservation %s: %s", c.kind, reservationID, readErrorMessage(resp))
	}

	return nil
}

func (c *HTTPReservationClient) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter")
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "reservation api call",
		"method", method,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return resp, nil
}

func (c *HTTPReservationClient) failure(message string) *domain.ReservationFailure {
	return &domain.ReservationFailure{Kind: c.kind, Message: message}
}

// readErrorMessage returns the service's own error text, falling back to the raw body
func readErrorMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(raw) == 0 {
		return resp.Status
	}

	var payload reservationErrorResponse
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	return strings.TrimSpace(string(raw))
}
