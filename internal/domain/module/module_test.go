package module

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/message"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/repository"
)

type recordingSender struct {
	sent     []*entity.OutgoingChatMessage
	identity entity.BotIdentity
	err      error
}

func (s *recordingSender) SendMessage(_ context.Context, msg *entity.OutgoingChatMessage, identity entity.BotIdentity) error {
	s.sent = append(s.sent, msg)
	s.identity = identity
	return s.err
}

type echoModule struct {
	Base
}

func (m *echoModule) Command() string          { return "echo" }
func (m *echoModule) Help() message.BotMessage { return message.TextMessage("?echo <text>") }
func (m *echoModule) OnInvoke(ctx context.Context, msg *entity.IncomingChatMessage) error {
	return m.Reply(ctx, msg, message.TextMessage(msg.UserText))
}

type storageEcho struct {
	echoModule
	db *sql.DB
}

func (m *storageEcho) Tables() []repository.Table { return nil }
func (m *storageEcho) BindStorage(db *sql.DB)     { m.db = db }

func (m *storageEcho) OnEvent(context.Context, entity.SlackcatEvent) error { return nil }

func TestBase_SendBeforeBind(t *testing.T) {
	m := &echoModule{}
	err := m.SendMessage(context.Background(), "C1", "", message.TextMessage("hi"))
	assert.ErrorIs(t, err, ErrNotBound)
	assert.Empty(t, m.Aliases())
}

func TestBase_ReplyUsesIdentityAndThread(t *testing.T) {
	sender := &recordingSender{}
	identity := entity.BotIdentity{DisplayName: "slackcat", Icon: ":cat:"}

	m := &echoModule{}
	m.Bind(Env{Sender: sender, Identity: identity})

	msg := &entity.IncomingChatMessage{ChannelID: "C1", ThreadID: "111.222", UserText: "hello"}
	require.NoError(t, m.OnInvoke(context.Background(), msg))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "C1", sender.sent[0].ChannelID)
	assert.Equal(t, "111.222", sender.sent[0].ThreadID)
	assert.Equal(t, identity, sender.identity)
}

func TestBase_SendErrorPropagates(t *testing.T) {
	sendErr := errors.New("channel_not_found")
	m := &echoModule{}
	m.Bind(Env{Sender: &recordingSender{err: sendErr}})

	err := m.PostHelpMessage(context.Background(), &entity.IncomingChatMessage{ChannelID: "C1"}, m.Help())
	assert.ErrorIs(t, err, sendErr)
}

func TestDescribe(t *testing.T) {
	m := &storageEcho{}
	d := Describe(m, WithStorage(m), WithEvents(m))

	assert.Equal(t, "echo", d.Name())
	assert.True(t, d.Has(CapabilityStorage))
	assert.True(t, d.Has(CapabilityStorage|CapabilityEvents))
	assert.False(t, d.Has(CapabilityNetwork))
	assert.Equal(t, "storage,events", d.Capabilities().String())
	assert.Equal(t, "none", Describe(&echoModule{}).Capabilities().String())
}
