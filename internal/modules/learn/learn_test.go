package learn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/message"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/module"
	"github.com/qj0r9j0vc2/slackcat/internal/modules/modulestest"
	"github.com/qj0r9j0vc2/slackcat/internal/modules/ping"
)

func setup(t *testing.T) (*Module, *modulestest.Sender) {
	t.Helper()
	sender := &modulestest.Sender{}
	m := New()
	m.Bind(modulestest.Env(sender, modulestest.Catalog{ping.New(), m}))
	m.BindStorage(modulestest.Storage(t, m.Tables()))
	return m, sender
}

func lastText(t *testing.T, sender *modulestest.Sender) string {
	t.Helper()
	elements := sender.Last(t).Content.Elements()
	require.Len(t, elements, 1)
	text, ok := elements[0].(message.Text)
	require.True(t, ok)
	return text.Content
}

func TestModule_Capabilities(t *testing.T) {
	d := New().Describe()
	assert.True(t, d.Has(module.CapabilityStorage|module.CapabilityUnhandledCommand))
	assert.False(t, d.Has(module.CapabilityEvents))
}

func TestModule_LearnAndAnswer(t *testing.T) {
	m, sender := setup(t)
	ctx := context.Background()

	require.NoError(t, m.OnInvoke(ctx, modulestest.Message(t, "U1", "?learn Coffee   The machine is on floor 3")))
	assert.Equal(t, "Learned `?coffee`.", lastText(t, sender))

	handled := m.OnUnhandledCommand(ctx, modulestest.Message(t, "U2", "?COFFEE"))
	assert.True(t, handled)
	assert.Equal(t, "The machine is on floor 3", lastText(t, sender))
	assert.Equal(t, "C1", sender.Last(t).ChannelID)

	assert.False(t, m.OnUnhandledCommand(ctx, modulestest.Message(t, "U2", "?tea")))
}

func TestModule_LearnRejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "registered command", raw: "?learn ping nope", want: "`?ping` is already a command."},
		{name: "registered alias", raw: "?learn DING nope", want: "`?ding` is already a command."},
		{name: "own alias", raw: "?learn unlearn nope", want: "`?unlearn` is already a command."},
		{name: "already learned", raw: "?learn coffee again", want: "I already know `?coffee`. Unlearn it first."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, sender := setup(t)
			ctx := context.Background()
			require.NoError(t, m.Learn(ctx, "coffee", "floor 3", "U1"))

			require.NoError(t, m.OnInvoke(ctx, modulestest.Message(t, "U1", tt.raw)))
			assert.Equal(t, tt.want, lastText(t, sender))
			assert.Equal(t, message.StyleWarning, sender.Last(t).Content.Style())
		})
	}
}

func TestModule_Usage(t *testing.T) {
	for _, raw := range []string{"?learn", "?learn key", "?unlearn", "?learn --force"} {
		t.Run(raw, func(t *testing.T) {
			m, sender := setup(t)

			require.NoError(t, m.OnInvoke(context.Background(), modulestest.Message(t, "U1", raw)))
			assert.Equal(t, m.Help().Elements(), sender.Last(t).Content.Elements())
		})
	}
}

func TestModule_Unlearn(t *testing.T) {
	m, sender := setup(t)
	ctx := context.Background()
	require.NoError(t, m.Learn(ctx, "coffee", "floor 3", "U1"))

	require.NoError(t, m.OnInvoke(ctx, modulestest.Message(t, "U1", "?unlearn Coffee")))
	assert.Equal(t, "Forgot `?coffee`.", lastText(t, sender))
	assert.False(t, m.OnUnhandledCommand(ctx, modulestest.Message(t, "U1", "?coffee")))

	require.NoError(t, m.OnInvoke(ctx, modulestest.Message(t, "U1", "?unlearn coffee")))
	assert.Equal(t, "I don't know `?coffee`.", lastText(t, sender))
}

func TestModule_List(t *testing.T) {
	m, sender := setup(t)
	ctx := context.Background()

	require.NoError(t, m.OnInvoke(ctx, modulestest.Message(t, "U1", "?learn --list")))
	assert.Equal(t, "Nothing learned yet.", lastText(t, sender))

	require.NoError(t, m.Learn(ctx, "tea", "kitchen", "U1"))
	require.NoError(t, m.Learn(ctx, "coffee", "floor 3", "U1"))

	require.NoError(t, m.OnInvoke(ctx, modulestest.Message(t, "U1", "?learn --list")))
	elements := sender.Last(t).Content.Elements()
	require.Len(t, elements, 2)
	assert.Equal(t, message.Text{Content: "?coffee ?tea", Style: message.TextCode}, elements[1])
}

func TestModule_FallbackSendFailureStillHandled(t *testing.T) {
	m, sender := setup(t)
	ctx := context.Background()
	require.NoError(t, m.Learn(ctx, "coffee", "floor 3", "U1"))

	sender.FailNext(errors.New("channel_not_found"))
	assert.True(t, m.OnUnhandledCommand(ctx, modulestest.Message(t, "U1", "?coffee")))
}

func TestModule_Unbound(t *testing.T) {
	m := New()
	ctx := context.Background()

	assert.ErrorIs(t, m.OnInvoke(ctx, modulestest.Message(t, "U1", "?learn a b")), module.ErrNotBound)
	assert.False(t, m.OnUnhandledCommand(ctx, modulestest.Message(t, "U1", "?a")))
}
