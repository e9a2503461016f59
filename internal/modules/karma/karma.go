// Package karma keeps a per-user score driven by emoji reactions.
//
// A :+1: reaction on someone's message gives its author a point and a
// :-1: takes one away. Removing the reaction reverses the change.
// Reacting to your own message does nothing.
package karma

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/entity"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/message"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/module"
	"github.com/qj0r9j0vc2/slackcat/internal/domain/repository"
)

const (
	tableName      = "karma"
	leaderboardLen = 10
)

var (
	positive = map[string]bool{"+1": true, "thumbsup": true}
	negative = map[string]bool{"-1": true, "thumbsdown": true}

	mentionPattern = regexp.MustCompile(`^<@([A-Z0-9]+)(?:\|[^>]*)?>$`)
)

// Module implements ?karma.
type Module struct {
	module.Base

	// mu serializes score writes so the update-then-insert sequence cannot race.
	mu  sync.Mutex
	db  *sql.DB
	now func() time.Time
}

// New creates the karma module.
func New() *Module {
	return &Module{now: time.Now}
}

// Describe returns the registration descriptor.
func (m *Module) Describe() module.Descriptor {
	return module.Describe(m, module.WithStorage(m), module.WithEvents(m))
}

func (m *Module) Command() string { return "karma" }

func (m *Module) Aliases() []string { return []string{"score"} }

func (m *Module) Help() message.BotMessage {
	return message.New().
		Heading("karma", 2).
		Text("React with :+1: or :-1: to change the author's karma.").
		KeyValueList(
			message.KeyValue{Key: "?karma", Value: "your karma"},
			message.KeyValue{Key: "?karma @user", Value: "someone else's karma"},
			message.KeyValue{Key: "?karma --top", Value: "leaderboard"},
		).
		Build()
}

// Tables declares the score table.
func (m *Module) Tables() []repository.Table {
	return []repository.Table{{
		Name: tableName,
		Columns: []repository.Column{
			{Name: "user_id", Type: repository.ColumnText, PrimaryKey: true},
			{Name: "score", Type: repository.ColumnBigInt, NotNull: true, Default: "0"},
			{Name: "updated_at", Type: repository.ColumnBigInt, NotNull: true, Default: "0"},
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

	if msg.HasArgument("--top") {
		return m.replyLeaderboard(ctx, msg)
	}

	user := msg.ChatUser.UserID
	if target := strings.Fields(msg.UserText); len(target) > 0 {
		match := mentionPattern.FindStringSubmatch(target[0])
		if match == nil {
			return m.PostHelpMessage(ctx, msg, m.Help())
		}
		user = match[1]
	}

	score, err := m.Score(ctx, user)
	if err != nil {
		return err
	}
	return m.Reply(ctx, msg, message.TextMessage(fmt.Sprintf("<@%s> has %d karma.", user, score)))
}

// OnEvent applies reaction changes.
func (m *Module) OnEvent(ctx context.Context, event entity.SlackcatEvent) error {
	var (
		reaction entity.Reaction
		sign     int64
	)
	switch e := event.(type) {
	case entity.ReactionAddedEvent:
		reaction, sign = e.Reaction, 1
	case entity.ReactionRemovedEvent:
		reaction, sign = e.Reaction, -1
	default:
		return nil
	}

	delta := deltaFor(reaction.Emoji)
	if delta == 0 || reaction.ItemUserID == "" || reaction.ItemUserID == reaction.UserID {
		return nil
	}
	if m.db == nil {
		return module.ErrNotBound
	}

	if err := m.adjust(ctx, reaction.ItemUserID, sign*delta); err != nil {
		return err
	}
	m.Logger().Debug("karma adjusted",
		"user", reaction.ItemUserID,
		"by", reaction.UserID,
		"delta", sign*delta,
	)
	return nil
}

// Score returns a user's karma, zero for unknown users.
func (m *Module) Score(ctx context.Context, userID string) (int64, error) {
	var score int64
	err := m.db.QueryRowContext(ctx,
		"SELECT score FROM karma WHERE user_id = ?", userID,
	).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading karma: %w", err)
	}
	return score, nil
}

func (m *Module) adjust(ctx context.Context, userID string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().Unix()
	res, err := m.db.ExecContext(ctx,
		"UPDATE karma SET score = score + ?, updated_at = ? WHERE user_id = ?",
		delta, now, userID,
	)
	if err != nil {
		return fmt.Errorf("updating karma: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	if _, err := m.db.ExecContext(ctx,
		"INSERT INTO karma (user_id, score, updated_at) VALUES (?, ?, ?)",
		userID, delta, now,
	); err != nil {
		return fmt.Errorf("inserting karma: %w", err)
	}
	return nil
}

func (m *Module) replyLeaderboard(ctx context.Context, msg *entity.IncomingChatMessage) error {
	rows, err := m.db.QueryContext(ctx,
		"SELECT user_id, score FROM karma ORDER BY score DESC, user_id ASC LIMIT ?", leaderboardLen,
	)
	if err != nil {
		return fmt.Errorf("reading leaderboard: %w", err)
	}
	defer rows.Close()

	var items []message.KeyValue
	for rows.Next() {
		var (
			user  string
			score int64
		)
		if err := rows.Scan(&user, &score); err != nil {
			return fmt.Errorf("scanning leaderboard: %w", err)
		}
		items = append(items, message.KeyValue{
			Key:   fmt.Sprintf("%d. <@%s>", len(items)+1, user),
			Value: fmt.Sprintf("%d", score),
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading leaderboard: %w", err)
	}

	if len(items) == 0 {
		return m.Reply(ctx, msg, message.TextMessage("Nobody has karma yet."))
	}
	return m.Reply(ctx, msg, message.New().
		Heading("Karma leaderboard", 1).
		KeyValueList(items...).
		Build())
}

func deltaFor(emoji string) int64 {
	name := strings.Trim(emoji, ":")
	// Skin tone variants arrive as "+1::skin-tone-2".
	if i := strings.Index(name, "::"); i >= 0 {
		name = name[:i]
	}
	switch {
	case positive[name]:
		return 1
	case negative[name]:
		return -1
	default:
		return 0
	}
}
