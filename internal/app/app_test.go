package app

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/persistence/sqlite"
	"github.com/qj0r9j0vc2/slackcat/internal/usecase/chat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// database/sql keeps a connection opener goroutine per pool until Close.
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SLACK_BOT_TOKEN", "SLACK_APP_TOKEN", "PAGERDUTY_API_TOKEN", "PAGERDUTY_SCHEDULE_IDS",
		"LOG_LEVEL", "LOG_FORMAT", "STORAGE_TYPE", "SQLITE_DATABASE_PATH",
		"SLACKCAT_MODULES", "SLACKCAT_BOT_NAME", "SLACKCAT_BOT_ICON", "SERVER_ENABLED",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, modules string) string {
	t.Helper()
	return writeConfigWithDB(t, modules, ":memory:")
}

func writeConfigWithDB(t *testing.T, modules, dbPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
bot:
  modules: [` + modules + `]
local:
  startup_delay: 1ms
storage:
  type: sqlite
  sqlite:
    path: "` + dbPath + `"
logging:
  level: error
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runLocal(t *testing.T, modules, raw string) (string, error) {
	t.Helper()
	return runLocalWithConfig(t, writeConfig(t, modules), raw)
}

func runLocalWithConfig(t *testing.T, configPath, raw string) (string, error) {
	t.Helper()
	clearEnv(t)

	var out bytes.Buffer
	application, err := New(Options{
		ConfigPath:   configPath,
		Local:        true,
		LocalMessage: raw,
		Output:       &out,
		LogOutput:    io.Discard,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runErr := application.Start(ctx)
	require.NoError(t, application.Shutdown())
	return out.String(), runErr
}

func TestLocal_Commands(t *testing.T) {
	tests := []struct {
		name    string
		modules string
		raw     string
		want    []string
	}{
		{
			name:    "ping",
			modules: "ping",
			raw:     "?ping",
			want:    []string{"[slackcat :cat:] #local", "pong"},
		},
		{
			name:    "alias",
			modules: "ping",
			raw:     "?ding",
			want:    []string{"dong"},
		},
		{
			name:    "help lists enabled modules",
			modules: "ping, help",
			raw:     "?help",
			want:    []string{"Commands", "?ping: aliases: ?bing, ?ding", "?help: aliases: ?commands"},
		},
		{
			name:    "storage module",
			modules: "learn",
			raw:     "?learn coffee floor 3",
			want:    []string{"Learned `?coffee`."},
		},
		{
			name:    "karma reads storage",
			modules: "karma",
			raw:     "?karma",
			want:    []string{"<@local-user> has 0 karma."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runLocal(t, tt.modules, tt.raw)
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestLocal_ReactionChangesKarma(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "karma.db")
	configPath := writeConfigWithDB(t, "karma", dbPath)

	score := func(user string) (int64, int) {
		t.Helper()
		db, err := sqlite.NewDB(dbPath)
		require.NoError(t, err)
		defer db.Close()

		var rows int
		require.NoError(t, db.DB().QueryRow("SELECT COUNT(*) FROM karma").Scan(&rows))
		var n int64
		err = db.DB().QueryRow("SELECT score FROM karma WHERE user_id = ?", user).Scan(&n)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, rows
		}
		require.NoError(t, err)
		return n, rows
	}

	steps := []struct {
		raw       string
		user      string
		wantScore int64
	}{
		{raw: "?react :+1:", user: "local-author", wantScore: 1},
		{raw: "?react :thumbsup::skin-tone-2:", user: "local-author", wantScore: 2},
		{raw: "?react :+1: --remove", user: "local-author", wantScore: 1},
		{raw: "?react :-1: <@U042>", user: "U042", wantScore: -1},
	}
	for _, step := range steps {
		out, err := runLocalWithConfig(t, configPath, step.raw)
		require.NoError(t, err, step.raw)
		assert.Empty(t, out)

		got, rows := score(step.user)
		assert.Equal(t, step.wantScore, got, step.raw)
		assert.Positive(t, rows)
	}

	out, err := runLocalWithConfig(t, configPath, "?karma")
	require.NoError(t, err)
	assert.Contains(t, out, "<@local-user> has 0 karma.")
}

func TestLocal_UnhandledIsFatal(t *testing.T) {
	for _, raw := range []string{"?nope", "hello there"} {
		t.Run(raw, func(t *testing.T) {
			out, err := runLocal(t, "ping", raw)
			assert.ErrorIs(t, err, chat.ErrUnhandledLocalMessage)
			assert.Empty(t, out)
		})
	}
}

func TestNew_Errors(t *testing.T) {
	t.Run("live run needs tokens", func(t *testing.T) {
		clearEnv(t)
		_, err := New(Options{ConfigPath: writeConfig(t, "ping"), LogOutput: io.Discard})
		assert.ErrorContains(t, err, "slack.bot_token")
	})

	t.Run("unknown module name", func(t *testing.T) {
		clearEnv(t)
		_, err := New(Options{ConfigPath: writeConfig(t, "ping, pnig, weather"), Local: true, LogOutput: io.Discard})
		assert.ErrorIs(t, err, errUnknownModule)
		assert.ErrorContains(t, err, "pnig, weather")
	})

	t.Run("module names are case-insensitive", func(t *testing.T) {
		clearEnv(t)
		application, err := New(Options{ConfigPath: writeConfig(t, "PING"), Local: true, LocalMessage: "?ping", LogOutput: io.Discard})
		require.NoError(t, err)
		require.NoError(t, application.Shutdown())
	})

	t.Run("oncall needs pagerduty", func(t *testing.T) {
		clearEnv(t)
		_, err := New(Options{ConfigPath: writeConfig(t, "oncall"), Local: true, LogOutput: io.Discard})
		assert.ErrorIs(t, err, errNoModules)
	})
}

func TestAtomicLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewAtomicLogger(&buf, "warn", "text")
	require.NoError(t, err)

	logger.Get().Info("hidden")
	require.NoError(t, logger.SetLevel("debug"))
	logger.Get().Debug("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Error(t, logger.SetLevel("loud"))

	_, err = NewAtomicLogger(&buf, "loud", "json")
	assert.Error(t, err)
}
