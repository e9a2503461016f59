// Package modulestest provides collaborators for testing modules in isolation.
package modulestest

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/module"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/repository"
	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/persistence/sqlite"
)

// Sender records every message it is asked to send.
// FailNext queues errors for upcoming sends.
type Sender struct {
	mu   sync.Mutex
	sent []*entity.OutgoingChatMessage
	errs []error
}

// FailNext makes the next sends return errs in order.
func (s *Sender) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, errs...)
}

// SendMessage implements module.Sender.
func (s *Sender) SendMessage(_ context.Context, msg *entity.OutgoingChatMessage, _ entity.BotIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return err
	}
	return nil
}

// Sent returns the recorded messages.
func (s *Sender) Sent() []*entity.OutgoingChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entity.OutgoingChatMessage(nil), s.sent...)
}

// Last returns the most recent message, failing the test if none was sent.
func (s *Sender) Last(t testing.TB) *entity.OutgoingChatMessage {
	t.Helper()
	sent := s.Sent()
	require.NotEmpty(t, sent, "no message sent")
	return sent[len(sent)-1]
}

// Catalog is a fixed module list.
type Catalog []module.Module

// AllModules implements module.Catalog.
func (c Catalog) AllModules() []module.Module {
	return c
}

// Env returns an environment bound to sender and catalog.
func Env(sender module.Sender, catalog module.Catalog) module.Env {
	return module.Env{
		Sender:   sender,
		Identity: entity.BotIdentity{DisplayName: "slackcat", Icon: ":cat:"},
		Catalog:  catalog,
	}
}

// Message parses raw into a command message from user in channel C1.
func Message(t testing.TB, user, raw string) *entity.IncomingChatMessage {
	t.Helper()
	msg, ok := entity.NewIncomingChatMessage("C1", user, "1700000000.000100", raw, "")
	require.True(t, ok, "not a command: %q", raw)
	return msg
}

// Storage opens an isolated in-memory SQLite database with tables provisioned.
func Storage(t testing.TB, tables []repository.Table) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Provision(context.Background(), tables))
	return db.DB()
}
