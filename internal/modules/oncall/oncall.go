// Package oncall reports who is currently on call in PagerDuty.
package oncall

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/qj0r9j0vc2/slackcat/internal/adapter/presenter"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	domainerrors "github.com/qj0r9j0vc2/slackcat/internal/domain/errors"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/message"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/module"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/cache"
)

// allSchedules is the cache key used when no schedules are configured.
const allSchedules = "*"

// Lister returns the current on-call entries.
type Lister interface {
	// ScheduleIDs returns the schedules to report. Empty means every schedule.
	ScheduleIDs() []string
	ListOnCalls(ctx context.Context, scheduleIDs []string) ([]entity.OnCall, error)
}

// ListerFactory builds a Lister on top of the shared HTTP client.
type ListerFactory func(client *http.Client) Lister

// Module implements ?oncall.
type Module struct {
	module.Base

	newLister ListerFactory
	cache     *cache.LRU[string, []entity.OnCall]
	plain     *presenter.PlainTextRenderer
	now       func() time.Time

	mu     sync.RWMutex
	lister Lister
}

// New creates the oncall module. Results are cached in c, one entry per schedule.
func New(newLister ListerFactory, c *cache.LRU[string, []entity.OnCall]) *Module {
	return &Module{
		newLister: newLister,
		cache:     c,
		plain:     presenter.NewPlainTextRenderer(),
		now:       time.Now,
	}
}

// Describe returns the registration descriptor.
func (m *Module) Describe() module.Descriptor {
	return module.Describe(m, module.WithNetwork(m))
}

func (m *Module) Command() string { return "oncall" }

func (m *Module) Aliases() []string { return []string{"pager"} }

func (m *Module) Help() message.BotMessage {
	return message.New().
		Heading("oncall", 2).
		Text("Shows who is on call right now in PagerDuty.").
		KeyValueList(
			message.KeyValue{Key: "?oncall", Value: "every configured schedule"},
			message.KeyValue{Key: "?oncall <text>", Value: "schedules whose name contains text"},
			message.KeyValue{Key: "?oncall --refresh", Value: "bypass the cache"},
		).
		Build()
}

// BindHTTPClient builds the PagerDuty lister on the shared client.
func (m *Module) BindHTTPClient(client *http.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lister = m.newLister(client)
}

func (m *Module) OnInvoke(ctx context.Context, msg *entity.IncomingChatMessage) error {
	oncalls, err := m.current(ctx, msg.HasArgument("--refresh"))
	if err != nil {
		if !domainerrors.IsTransientError(err) {
			return err
		}
		m.Logger().Warn("pagerduty unavailable", "error", err)
		return m.Reply(ctx, msg, message.New().
			WithStyle(message.StyleWarning).
			Text("PagerDuty is not reachable right now. Try again in a minute.").
			Build())
	}

	filter := filterText(msg.UserText)
	return m.replyWithFallback(ctx, msg, m.render(filterOnCalls(oncalls, filter), filter))
}

// current returns the on-calls of every reported schedule. Only schedules
// missing from the cache are fetched.
func (m *Module) current(ctx context.Context, refresh bool) ([]entity.OnCall, error) {
	m.mu.RLock()
	lister := m.lister
	m.mu.RUnlock()
	if lister == nil {
		return nil, module.ErrNotBound
	}

	keys := lister.ScheduleIDs()
	if len(keys) == 0 {
		keys = []string{allSchedules}
	}

	var (
		oncalls []entity.OnCall
		missing []string
	)
	for _, key := range keys {
		if !refresh {
			if cached, ok := m.cache.Get(key); ok {
				oncalls = append(oncalls, cached...)
				continue
			}
		}
		missing = append(missing, key)
	}

	if len(missing) > 0 {
		query := missing
		if missing[0] == allSchedules {
			query = nil
		}
		fetched, err := lister.ListOnCalls(ctx, query)
		if err != nil {
			return nil, err
		}
		for key, group := range groupBySchedule(missing, fetched) {
			m.cache.Add(key, group)
		}
		oncalls = append(oncalls, fetched...)
	}

	entity.SortOnCalls(oncalls)
	return oncalls, nil
}

// groupBySchedule splits fetched entries by schedule. Every key gets an
// entry so that schedules with nobody on call are cached too.
func groupBySchedule(keys []string, oncalls []entity.OnCall) map[string][]entity.OnCall {
	if len(keys) == 1 && keys[0] == allSchedules {
		return map[string][]entity.OnCall{allSchedules: oncalls}
	}

	groups := make(map[string][]entity.OnCall, len(keys))
	for _, key := range keys {
		groups[key] = []entity.OnCall{}
	}
	for _, oc := range oncalls {
		if group, ok := groups[oc.ScheduleID]; ok {
			groups[oc.ScheduleID] = append(group, oc)
		}
	}
	return groups
}

// replyWithFallback sends content and, when the transport rejects it,
// resends it flattened to a single text paragraph.
func (m *Module) replyWithFallback(ctx context.Context, msg *entity.IncomingChatMessage, content message.BotMessage) error {
	err := m.Reply(ctx, msg, content)
	if err == nil || ctx.Err() != nil {
		return err
	}

	m.Logger().Warn("rich on-call reply failed, sending plain text", "error", err)
	if err := m.Reply(ctx, msg, message.TextMessage(m.plain.Render(content))); err != nil {
		return fmt.Errorf("sending on-call reply: %w", err)
	}
	return nil
}

func (m *Module) render(oncalls []entity.OnCall, filter string) message.BotMessage {
	if len(oncalls) == 0 {
		text := "Nobody is on call."
		if filter != "" {
			text = fmt.Sprintf("No on-call schedule matches %q.", filter)
		}
		return message.New().WithStyle(message.StyleWarning).Text(text).Build()
	}

	now := m.now()
	items := make([]message.KeyValue, 0, len(oncalls))
	for _, oc := range oncalls {
		items = append(items, message.KeyValue{
			Key:   scheduleLabel(oc),
			Value: who(oc) + " " + until(oc.End, now),
		})
	}

	return message.New().
		WithStyle(message.StyleInfo).
		Heading("On call now", 1).
		KeyValueList(items...).
		Context("as of " + now.UTC().Format("15:04 UTC")).
		Build()
}

func scheduleLabel(oc entity.OnCall) string {
	name := oc.ScheduleName
	if name == "" {
		name = "unscheduled"
	}
	if oc.EscalationLevel > 1 {
		return fmt.Sprintf("%s (level %d)", name, oc.EscalationLevel)
	}
	return name
}

func who(oc entity.OnCall) string {
	if oc.UserEmail == "" {
		return oc.UserName
	}
	return fmt.Sprintf("%s <%s>", oc.UserName, oc.UserEmail)
}

func until(end, now time.Time) string {
	if end.IsZero() {
		return "indefinitely"
	}
	remaining := end.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf("until %s (%s left)", end.UTC().Format("Jan 2 15:04 UTC"), presenter.FormatDuration(remaining))
}

func filterText(userText string) string {
	var words []string
	for _, w := range strings.Fields(userText) {
		if !strings.HasPrefix(w, "--") {
			words = append(words, w)
		}
	}
	return strings.Join(words, " ")
}

func filterOnCalls(oncalls []entity.OnCall, filter string) []entity.OnCall {
	if filter == "" {
		return oncalls
	}
	needle := strings.ToLower(filter)
	var out []entity.OnCall
	for _, oc := range oncalls {
		if strings.Contains(strings.ToLower(oc.ScheduleName), needle) {
			out = append(out, oc)
		}
	}
	return out
}
