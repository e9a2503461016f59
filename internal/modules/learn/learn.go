// Package learn lets users teach the bot canned responses.
//
// "?learn <key> <response>" stores a response. Afterwards "?<key>" replies
// with it, provided no module already owns that command.
package learn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/message"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/module"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/repository"
)

const tableName = "learned"

// maxKeyLength matches the VARCHAR(255) primary key on MySQL.
const maxKeyLength = 255

var (
	// ErrReservedKey is returned when a key names a registered command.
	ErrReservedKey = errors.New("key is a registered command")

	// ErrAlreadyLearned is returned when a key already has a response.
	ErrAlreadyLearned = errors.New("key already learned")
)

// Module implements ?learn and ?unlearn, and answers learned keys.
type Module struct {
	module.Base

	db  *sql.DB
	now func() time.Time
}

// New creates the learn module.
func New() *Module {
	return &Module{now: time.Now}
}

// Describe returns the registration descriptor.
func (m *Module) Describe() module.Descriptor {
	return module.Describe(m, module.WithStorage(m), module.WithUnhandledCommand(m))
}

func (m *Module) Command() string { return "learn" }

func (m *Module) Aliases() []string { return []string{"unlearn"} }

func (m *Module) Help() message.BotMessage {
	return message.New().
		Heading("learn", 2).
		Text("Teach the bot a response. Reply with it later using ?<key>.").
		KeyValueList(
			message.KeyValue{Key: "?learn <key> <response>", Value: "store a response"},
			message.KeyValue{Key: "?unlearn <key>", Value: "forget a response"},
			message.KeyValue{Key: "?learn --list", Value: "list learned keys"},
		).
		Build()
}

// Tables declares the learned responses table.
func (m *Module) Tables() []repository.Table {
	return []repository.Table{{
		Name: tableName,
		Columns: []repository.Column{
			{Name: "keyword", Type: repository.ColumnText, PrimaryKey: true},
			{Name: "response", Type: repository.ColumnText, NotNull: true},
			{Name: "author", Type: repository.ColumnText},
			{Name: "created_at", Type: repository.ColumnBigInt, NotNull: true, Default: "0"},
		},
	}}
}

// BindStorage receives the provisioned database.
func (m *Module) BindStorage(db *sql.DB) {
	m.db = db
}

func (m *Module) OnInvoke(ctx context.Context, msg *entity.IncomingChatMessage) error {
	if m.db == nil {
		return module.ErrNotBound
	}

	if msg.HasArgument("--list") {
		return m.replyList(ctx, msg)
	}

	key, response := splitKey(msg.UserText)
	key = normalizeKey(key)
	if key == "" {
		return m.PostHelpMessage(ctx, msg, m.Help())
	}

	if strings.EqualFold(msg.Command, "unlearn") {
		return m.unlearn(ctx, msg, key)
	}

	if response == "" {
		return m.PostHelpMessage(ctx, msg, m.Help())
	}

	err := m.Learn(ctx, key, response, msg.ChatUser.UserID)
	switch {
	case errors.Is(err, ErrReservedKey):
		return m.Reply(ctx, msg, warning(fmt.Sprintf("`?%s` is already a command.", key)))
	case errors.Is(err, ErrAlreadyLearned):
		return m.Reply(ctx, msg, warning(fmt.Sprintf("I already know `?%s`. Unlearn it first.", key)))
	case err != nil:
		return err
	}

	return m.Reply(ctx, msg, message.New().
		WithStyle(message.StyleSuccess).
		Text(fmt.Sprintf("Learned `?%s`.", key)).
		Build())
}

// OnUnhandledCommand replies with a learned response.
func (m *Module) OnUnhandledCommand(ctx context.Context, msg *entity.IncomingChatMessage) bool {
	if m.db == nil {
		return false
	}

	response, ok, err := m.Lookup(ctx, msg.Command)
	if err != nil {
		m.Logger().Error("learned response lookup failed", "command", msg.Command, "error", err)
		return false
	}
	if !ok {
		return false
	}

	if err := m.Reply(ctx, msg, message.TextMessage(response)); err != nil {
		m.Logger().Error("failed to send learned response", "command", msg.Command, "error", err)
	}
	return true
}

// Learn stores a response for key. Keys are case-insensitive.
func (m *Module) Learn(ctx context.Context, key, response, author string) error {
	key = normalizeKey(key)
	if m.isCommand(key) {
		return ErrReservedKey
	}

	if _, ok, err := m.Lookup(ctx, key); err != nil {
		return err
	} else if ok {
		return ErrAlreadyLearned
	}

	if _, err := m.db.ExecContext(ctx,
		"INSERT INTO learned (keyword, response, author, created_at) VALUES (?, ?, ?, ?)",
		key, response, author, m.now().Unix(),
	); err != nil {
		return fmt.Errorf("storing learned response: %w", err)
	}
	return nil
}

// Lookup returns the response learned for key.
func (m *Module) Lookup(ctx context.Context, key string) (string, bool, error) {
	var response string
	err := m.db.QueryRowContext(ctx,
		"SELECT response FROM learned WHERE keyword = ?", normalizeKey(key),
	).Scan(&response)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading learned response: %w", err)
	}
	return response, true, nil
}

// Forget deletes key. Returns false if it was not learned.
func (m *Module) Forget(ctx context.Context, key string) (bool, error) {
	res, err := m.db.ExecContext(ctx, "DELETE FROM learned WHERE keyword = ?", normalizeKey(key))
	if err != nil {
		return false, fmt.Errorf("deleting learned response: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting learned response: %w", err)
	}
	return n > 0, nil
}

func (m *Module) unlearn(ctx context.Context, msg *entity.IncomingChatMessage, key string) error {
	deleted, err := m.Forget(ctx, key)
	if err != nil {
		return err
	}
	if !deleted {
		return m.Reply(ctx, msg, warning(fmt.Sprintf("I don't know `?%s`.", key)))
	}
	return m.Reply(ctx, msg, message.TextMessage(fmt.Sprintf("Forgot `?%s`.", key)))
}

func (m *Module) replyList(ctx context.Context, msg *entity.IncomingChatMessage) error {
	rows, err := m.db.QueryContext(ctx, "SELECT keyword FROM learned ORDER BY keyword")
	if err != nil {
		return fmt.Errorf("listing learned responses: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return fmt.Errorf("scanning learned responses: %w", err)
		}
		keys = append(keys, "?"+key)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("listing learned responses: %w", err)
	}

	if len(keys) == 0 {
		return m.Reply(ctx, msg, message.TextMessage("Nothing learned yet."))
	}
	return m.Reply(ctx, msg, message.New().
		Heading("Learned responses", 2).
		StyledText(strings.Join(keys, " "), message.TextCode).
		Build())
}

// isCommand reports whether key is the command or alias of a registered module.
func (m *Module) isCommand(key string) bool {
	catalog := m.Env().Catalog
	if catalog == nil {
		return key == m.Command() || key == "unlearn"
	}
	for _, mod := range catalog.AllModules() {
		if strings.EqualFold(mod.Command(), key) {
			return true
		}
		for _, alias := range mod.Aliases() {
			if strings.EqualFold(alias, key) {
				return true
			}
		}
	}
	return false
}

// splitKey returns the first token of text and the rest, trimmed.
// Argument tokens are not part of the key.
func splitKey(text string) (string, string) {
	text = strings.TrimSpace(text)
	i := strings.IndexFunc(text, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' })
	if i < 0 {
		return validKey(text), ""
	}
	return validKey(text[:i]), strings.TrimSpace(text[i:])
}

func validKey(key string) string {
	key = strings.TrimPrefix(key, "?")
	if strings.HasPrefix(key, "--") || len(key) > maxKeyLength {
		return ""
	}
	return key
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func warning(text string) message.BotMessage {
	return message.New().WithStyle(message.StyleWarning).Text(text).Build()
}
