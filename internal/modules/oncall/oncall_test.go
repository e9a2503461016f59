package oncall

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	domainerrors "github.com/qj0r9j0vc2/slackcat/internal/domain/errors"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/message"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/module"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/cache"
	"github.com/qj0r9j0vc2/slackcat/internal/modules/modulestest"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type fakeLister struct {
	calls     atomic.Int32
	schedules []string
	oncalls   []entity.OnCall
	err       error

	mu        sync.Mutex
	requested [][]string
}

func (f *fakeLister) ScheduleIDs() []string {
	return f.schedules
}

func (f *fakeLister) ListOnCalls(_ context.Context, scheduleIDs []string) ([]entity.OnCall, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.requested = append(f.requested, scheduleIDs)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(scheduleIDs) == 0 {
		return f.oncalls, nil
	}

	var out []entity.OnCall
	for _, oc := range f.oncalls {
		if slices.Contains(scheduleIDs, oc.ScheduleID) {
			out = append(out, oc)
		}
	}
	return out, nil
}

func (f *fakeLister) lastRequest() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requested) == 0 {
		return nil
	}
	return f.requested[len(f.requested)-1]
}

func setup(t *testing.T, lister *fakeLister) (*Module, *modulestest.Sender) {
	t.Helper()
	return setupWithCache(t, lister, cache.NewLRU[string, []entity.OnCall](4, time.Minute))
}

func setupWithCache(t *testing.T, lister *fakeLister, c *cache.LRU[string, []entity.OnCall]) (*Module, *modulestest.Sender) {
	t.Helper()
	sender := &modulestest.Sender{}

	var boundClient *http.Client
	m := New(func(c *http.Client) Lister {
		boundClient = c
		return lister
	}, c)
	m.now = func() time.Time { return now }
	m.Bind(modulestest.Env(sender, nil))

	client := &http.Client{}
	m.BindHTTPClient(client)
	require.Same(t, client, boundClient)
	return m, sender
}

func sampleOnCalls() []entity.OnCall {
	return []entity.OnCall{
		{UserName: "Alice", UserEmail: "alice@example.com", ScheduleID: "PPLAT", ScheduleName: "Platform", EscalationLevel: 1, End: now.Add(3*time.Hour + 30*time.Minute)},
		{UserName: "Bob", ScheduleID: "PPLAT", ScheduleName: "Platform", EscalationLevel: 2},
		{UserName: "Carol", ScheduleID: "PPAY", ScheduleName: "Payments", EscalationLevel: 1, End: now.Add(26 * time.Hour)},
	}
}

func TestModule_Capabilities(t *testing.T) {
	d := New(nil, cache.NewLRU[string, []entity.OnCall](1, 0)).Describe()
	assert.Equal(t, module.CapabilityNetwork, d.Capabilities())
}

func TestModule_Lists(t *testing.T) {
	m, sender := setup(t, &fakeLister{oncalls: sampleOnCalls()})

	require.NoError(t, m.OnInvoke(context.Background(), modulestest.Message(t, "U1", "?oncall")))

	content := sender.Last(t).Content
	assert.Equal(t, message.StyleInfo, content.Style())
	assert.Equal(t, []message.Element{
		message.Heading{Content: "On call now", Level: 1},
		message.KeyValueList{Items: []message.KeyValue{
			{Key: "Payments", Value: "Carol until Oct 20 14:00 UTC (1d 2h left)"},
			{Key: "Platform", Value: "Alice <alice@example.com> until Oct 19 15:30 UTC (3h 30m left)"},
			{Key: "Platform (level 2)", Value: "Bob indefinitely"},
		}},
		message.Context{Content: "as of 12:00 UTC"},
	}, content.Elements())
}

func TestModule_Filter(t *testing.T) {
	tests := []struct {
		raw       string
		wantItems int
		wantText  string
	}{
		{raw: "?oncall pay", wantItems: 1},
		{raw: "?oncall PLATFORM --refresh", wantItems: 2},
		{raw: "?oncall search", wantText: `No on-call schedule matches "search".`},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			m, sender := setup(t, &fakeLister{oncalls: sampleOnCalls()})

			require.NoError(t, m.OnInvoke(context.Background(), modulestest.Message(t, "U1", tt.raw)))

			elements := sender.Last(t).Content.Elements()
			if tt.wantText != "" {
				assert.Equal(t, []message.Element{message.Text{Content: tt.wantText}}, elements)
				return
			}
			require.Len(t, elements, 3)
			assert.Len(t, elements[1].(message.KeyValueList).Items, tt.wantItems)
		})
	}
}

func TestModule_Empty(t *testing.T) {
	m, sender := setup(t, &fakeLister{})

	require.NoError(t, m.OnInvoke(context.Background(), modulestest.Message(t, "U1", "?oncall")))
	assert.Equal(t, []message.Element{message.Text{Content: "Nobody is on call."}}, sender.Last(t).Content.Elements())
}

func TestModule_Cache(t *testing.T) {
	lister := &fakeLister{oncalls: sampleOnCalls()}
	m, _ := setup(t, lister)
	ctx := context.Background()

	require.NoError(t, m.OnInvoke(ctx, modulestest.Message(t, "U1", "?oncall")))
	require.NoError(t, m.OnInvoke(ctx, modulestest.Message(t, "U1", "?pager")))
	assert.Equal(t, int32(1), lister.calls.Load())

	require.NoError(t, m.OnInvoke(ctx, modulestest.Message(t, "U1", "?oncall --refresh")))
	assert.Equal(t, int32(2), lister.calls.Load())
}

func TestModule_CachesPerSchedule(t *testing.T) {
	lister := &fakeLister{schedules: []string{"PPLAT", "PPAY"}, oncalls: sampleOnCalls()}
	c := cache.NewLRU[string, []entity.OnCall](4, time.Minute)
	m, sender := setupWithCache(t, lister, c)
	ctx := context.Background()

	require.NoError(t, m.OnInvoke(ctx, modulestest.Message(t, "U1", "?oncall")))
	assert.Equal(t, []string{"PPLAT", "PPAY"}, lister.lastRequest())
	assert.Equal(t, 2, c.Len())

	require.NoError(t, m.OnInvoke(ctx, modulestest.Message(t, "U1", "?oncall")))
	assert.Equal(t, int32(1), lister.calls.Load())

	c.Remove("PPAY")
	require.NoError(t, m.OnInvoke(ctx, modulestest.Message(t, "U1", "?oncall")))
	assert.Equal(t, int32(2), lister.calls.Load())
	assert.Equal(t, []string{"PPAY"}, lister.lastRequest())

	items := sender.Last(t).Content.Elements()[1].(message.KeyValueList).Items
	require.Len(t, items, 3)
	assert.Equal(t, "Payments", items[0].Key)
}

func TestModule_CacheSizeBoundsSchedules(t *testing.T) {
	lister := &fakeLister{schedules: []string{"PPLAT", "PPAY"}, oncalls: sampleOnCalls()}
	c := cache.NewLRU[string, []entity.OnCall](1, time.Minute)
	m, _ := setupWithCache(t, lister, c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, m.OnInvoke(ctx, modulestest.Message(t, "U1", "?oncall")))
		assert.Equal(t, 1, c.Len())
	}
	assert.Equal(t, int32(3), lister.calls.Load())
	assert.Len(t, lister.lastRequest(), 1, "only the evicted schedule is fetched again")
}

func TestModule_CachesEmptySchedules(t *testing.T) {
	lister := &fakeLister{schedules: []string{"PNONE"}, oncalls: sampleOnCalls()}
	m, sender := setup(t, lister)
	ctx := context.Background()

	require.NoError(t, m.OnInvoke(ctx, modulestest.Message(t, "U1", "?oncall")))
	require.NoError(t, m.OnInvoke(ctx, modulestest.Message(t, "U1", "?oncall")))
	assert.Equal(t, int32(1), lister.calls.Load())
	assert.Equal(t, []message.Element{message.Text{Content: "Nobody is on call."}}, sender.Last(t).Content.Elements())
}

func TestModule_PlainTextFallback(t *testing.T) {
	m, sender := setup(t, &fakeLister{oncalls: sampleOnCalls()[:1]})
	sender.FailNext(errors.New("invalid_blocks"))

	require.NoError(t, m.OnInvoke(context.Background(), modulestest.Message(t, "U1", "?oncall")))

	sent := sender.Sent()
	require.Len(t, sent, 2)
	elements := sent[1].Content.Elements()
	require.Len(t, elements, 1)
	text := elements[0].(message.Text).Content
	assert.Contains(t, text, "[INFO]")
	assert.Contains(t, text, "Platform: Alice <alice@example.com>")
}

func TestModule_FallbackFailure(t *testing.T) {
	m, sender := setup(t, &fakeLister{oncalls: sampleOnCalls()})
	sender.FailNext(errors.New("invalid_blocks"), errors.New("channel_not_found"))

	err := m.OnInvoke(context.Background(), modulestest.Message(t, "U1", "?oncall"))
	assert.ErrorContains(t, err, "channel_not_found")
}

func TestModule_ListErrors(t *testing.T) {
	t.Run("transient replies with warning", func(t *testing.T) {
		m, sender := setup(t, &fakeLister{err: domainerrors.NewTransientError("listing on-calls", errors.New("503"))})

		require.NoError(t, m.OnInvoke(context.Background(), modulestest.Message(t, "U1", "?oncall")))
		assert.Equal(t, message.StyleWarning, sender.Last(t).Content.Style())
	})

	t.Run("permanent is returned", func(t *testing.T) {
		m, sender := setup(t, &fakeLister{err: domainerrors.NewPermanentError("listing on-calls", errors.New("401"))})

		err := m.OnInvoke(context.Background(), modulestest.Message(t, "U1", "?oncall"))
		assert.Error(t, err)
		assert.Empty(t, sender.Sent())
	})
}

func TestModule_Unbound(t *testing.T) {
	m := New(nil, cache.NewLRU[string, []entity.OnCall](1, 0))
	m.Bind(modulestest.Env(&modulestest.Sender{}, nil))

	err := m.OnInvoke(context.Background(), modulestest.Message(t, "U1", "?oncall"))
	assert.ErrorIs(t, err, module.ErrNotBound)
}
