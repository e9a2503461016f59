package pagerduty

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/qj0r9j0vc2/slackcat/internal/domain/errors"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/config"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/resilience"
)

const oncallsJSON = `{
  "oncalls": [
    {
      "user": {"id": "PU2", "type": "user", "summary": "Bob", "name": "Bob Builder", "email": "bob@example.com"},
      "schedule": {"id": "PS2", "type": "schedule_reference", "summary": "Secondary"},
      "escalation_policy": {"id": "PE1", "type": "escalation_policy_reference", "summary": "Default"},
      "escalation_level": 2,
      "start": "2024-01-01T00:00:00Z",
      "end": "2024-01-08T00:00:00Z"
    },
    {
      "user": {"id": "PU1", "type": "user_reference", "summary": "Alice"},
      "schedule": {"id": "PS1", "type": "schedule_reference", "summary": "Primary"},
      "escalation_policy": {"id": "PE1", "type": "escalation_policy_reference", "summary": "Default"},
      "escalation_level": 1,
      "start": "2024-01-01T00:00:00Z",
      "end": null
    },
    {
      "user": {"id": "PU3", "type": "user_reference", "summary": "Carol"},
      "escalation_policy": {"id": "PE1", "type": "escalation_policy_reference", "summary": "Default"},
      "escalation_level": 3
    }
  ],
  "limit": 25, "offset": 0, "more": false
}`

func fastRetry() *RetryPolicy {
	return &RetryPolicy{InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Millisecond, MaxRetries: 2}
}

func TestOnCallClient_ListOnCalls(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oncalls", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(oncallsJSON))
	}))
	defer srv.Close()

	client := NewOnCallClient(config.PagerDutyConfig{
		APIToken:    "pd-token",
		APIURL:      srv.URL + "/",
		ScheduleIDs: []string{"PS1", "PS2"},
	}, srv.Client(), WithRetryPolicy(fastRetry()))

	assert.Equal(t, []string{"PS1", "PS2"}, client.ScheduleIDs())
	oncalls, err := client.ListOnCalls(context.Background(), client.ScheduleIDs())
	require.NoError(t, err)

	assert.Equal(t, "Token token=pd-token", gotAuth)
	assert.Contains(t, gotQuery, "schedule_ids")
	assert.Contains(t, gotQuery, "PS1")
	assert.Contains(t, gotQuery, "earliest=true")

	// Carol has no schedule and a schedule filter applies.
	require.Len(t, oncalls, 2)

	assert.Equal(t, "Alice", oncalls[0].UserName)
	assert.Equal(t, "Primary", oncalls[0].ScheduleName)
	assert.Equal(t, 1, oncalls[0].EscalationLevel)
	assert.True(t, oncalls[0].End.IsZero())

	assert.Equal(t, "Bob Builder", oncalls[1].UserName)
	assert.Equal(t, "bob@example.com", oncalls[1].UserEmail)
	assert.Equal(t, "Secondary", oncalls[1].ScheduleName)
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), oncalls[1].End)
}

func TestOnCallClient_ScheduleSubset(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"oncalls": []}`))
	}))
	defer srv.Close()

	client := NewOnCallClient(config.PagerDutyConfig{
		APIToken:    "t",
		APIURL:      srv.URL,
		ScheduleIDs: []string{"PS1", "PS2"},
	}, srv.Client())

	_, err := client.ListOnCalls(context.Background(), []string{"PS2"})
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "PS2")
	assert.NotContains(t, gotQuery, "PS1")
}

func TestOnCallClient_NoScheduleFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(oncallsJSON))
	}))
	defer srv.Close()

	client := NewOnCallClient(config.PagerDutyConfig{APIToken: "t", APIURL: srv.URL}, srv.Client())

	oncalls, err := client.ListOnCalls(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, oncalls, 3)
	assert.Equal(t, "Default", oncalls[0].ScheduleName, "escalation policy names unscheduled entries")
}

func TestOnCallClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"oncalls": []}`))
	}))
	defer srv.Close()

	client := NewOnCallClient(config.PagerDutyConfig{APIToken: "t", APIURL: srv.URL}, srv.Client(),
		WithRetryPolicy(fastRetry()))

	oncalls, err := client.ListOnCalls(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, oncalls)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOnCallClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
		wantCalls int32
	}{
		{name: "unauthorized is permanent", status: http.StatusUnauthorized, transient: false, wantCalls: 1},
		{name: "server error is transient", status: http.StatusInternalServerError, transient: true, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewOnCallClient(config.PagerDutyConfig{APIToken: "t", APIURL: srv.URL}, srv.Client(),
				WithRetryPolicy(fastRetry()))

			_, err := client.ListOnCalls(context.Background(), nil)
			require.Error(t, err)
			assert.Equal(t, tt.transient, domainerrors.IsTransientError(err))
			assert.Equal(t, !tt.transient, domainerrors.IsPermanentError(err))
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestOnCallClient_CircuitOpen(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	breaker := resilience.NewCircuitBreaker("test", 1, time.Hour)
	client := NewOnCallClient(config.PagerDutyConfig{APIToken: "t", APIURL: srv.URL}, srv.Client(),
		WithRetryPolicy(fastRetry()), WithCircuitBreaker(breaker))

	_, err := client.ListOnCalls(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, resilience.StateOpen, breaker.State())

	_, err = client.ListOnCalls(context.Background(), nil)
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.True(t, domainerrors.IsTransientError(err))
	assert.Equal(t, int32(1), calls.Load(), "open circuit must not reach the API")
}
