package pagerduty

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/PagerDuty/go-pagerduty"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	domainerrors "github.com/qj0r9j0vc2/slackcat/internal/domain/errors"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/config"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/resilience"
)

// OnCallClient lists current on-calls through the PagerDuty REST API.
type OnCallClient struct {
	api         *pagerduty.Client
	scheduleIDs []string
	retry       *RetryPolicy
	breaker     *resilience.CircuitBreaker
	timeout     time.Duration
}

// Option configures an OnCallClient.
type Option func(*OnCallClient)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p *RetryPolicy) Option {
	return func(c *OnCallClient) { c.retry = p }
}

// WithCircuitBreaker overrides the default circuit breaker.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *OnCallClient) { c.breaker = cb }
}

// NewOnCallClient creates a client. httpClient may be nil to use the SDK default.
func NewOnCallClient(cfg config.PagerDutyConfig, httpClient *http.Client, opts ...Option) *OnCallClient {
	var clientOpts []pagerduty.ClientOptions
	if cfg.APIURL != "" {
		clientOpts = append(clientOpts, pagerduty.WithAPIEndpoint(strings.TrimSuffix(cfg.APIURL, "/")))
	}

	api := pagerduty.NewClient(cfg.APIToken, clientOpts...)
	if httpClient != nil {
		api.HTTPClient = httpClient
	}

	c := &OnCallClient{
		api:         api,
		scheduleIDs: cfg.ScheduleIDs,
		retry:       DefaultRetryPolicy(),
		breaker:     resilience.NewCircuitBreaker("pagerduty", 5, 30*time.Second),
		timeout:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ScheduleIDs returns the configured schedules. Empty means every schedule.
func (c *OnCallClient) ScheduleIDs() []string {
	return c.scheduleIDs
}

// ListOnCalls returns who is currently on call for scheduleIDs, or for every
// schedule when scheduleIDs is empty.
func (c *OnCallClient) ListOnCalls(ctx context.Context, scheduleIDs []string) ([]entity.OnCall, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := pagerduty.ListOnCallOptions{
		ScheduleIDs: scheduleIDs,
		Includes:    []string{"users"},
		Earliest:    true,
	}

	var resp *pagerduty.ListOnCallsResponse
	err := c.breaker.Execute(ctx, func() error {
		return c.retry.WithRetry(ctx, func(ctx context.Context) error {
			var err error
			resp, err = c.api.ListOnCallsWithContext(ctx, opts)
			return err
		})
	})
	if err != nil {
		return nil, categorizeError(err, "listing on-calls")
	}

	oncalls := make([]entity.OnCall, 0, len(resp.OnCalls))
	for _, oc := range resp.OnCalls {
		// Escalation-policy level entries without a schedule are skipped
		// unless no schedule filter applies.
		if oc.Schedule.ID == "" && len(scheduleIDs) > 0 {
			continue
		}
		oncalls = append(oncalls, toEntity(oc))
	}
	entity.SortOnCalls(oncalls)
	return oncalls, nil
}

func toEntity(oc pagerduty.OnCall) entity.OnCall {
	return entity.OnCall{
		UserName:        firstNonEmpty(oc.User.Name, oc.User.Summary, oc.User.ID),
		UserEmail:       oc.User.Email,
		ScheduleID:      oc.Schedule.ID,
		ScheduleName:    firstNonEmpty(oc.Schedule.Name, oc.Schedule.Summary, oc.EscalationPolicy.Summary),
		EscalationLevel: int(oc.EscalationLevel),
		Start:           parseTime(oc.Start),
		End:             parseTime(oc.End),
	}
}

// categorizeError classifies errors as transient or permanent.
func categorizeError(err error, operation string) error {
	if errors.Is(err, resilience.ErrCircuitOpen) || IsRetryable(err) {
		return domainerrors.NewTransientError(operation, err)
	}
	return domainerrors.NewPermanentError(operation, err)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
