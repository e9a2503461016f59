package observability

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestTelemetry(t *testing.T) *Telemetry {
	t.Helper()
	tel, err := NewTelemetry(Options{ServiceVersion: "test", BotName: "kitty", Engine: "local"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })
	return tel
}

func gather(t *testing.T, tel *Telemetry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := tel.Gatherer.Gather()
	require.NoError(t, err)

	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestTelemetry_LabelsSeriesWithBotName(t *testing.T) {
	tel := newTestTelemetry(t)
	tel.Metrics.RecordMessageReceived(context.Background(), "local")

	families := gather(t, tel)

	var found bool
	for name, f := range families {
		if !strings.HasPrefix(name, "chat_messages_received") {
			continue
		}
		found = true
		for _, m := range f.GetMetric() {
			assert.Equal(t, "kitty", labelValue(m, "slackcat_bot_name"))
		}
	}
	assert.True(t, found, "message counter exported")

	target, ok := families["target_info"]
	require.True(t, ok, "resource exported as target_info")
	require.NotEmpty(t, target.GetMetric())
	assert.Equal(t, "local", labelValue(target.GetMetric()[0], "slackcat_engine"))
	assert.Equal(t, "slackcat", labelValue(target.GetMetric()[0], "service_name"))
}

func TestTelemetry_RuntimeCollectors(t *testing.T) {
	families := gather(t, newTestTelemetry(t))

	assert.Contains(t, families, "go_goroutines")
}

func TestTelemetry_RegisterDB(t *testing.T) {
	tel := newTestTelemetry(t)

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, tel.RegisterDB(db, "sqlite"))

	families := gather(t, tel)
	f, ok := families["go_sql_max_open_connections"]
	require.True(t, ok)
	assert.Equal(t, "sqlite", labelValue(f.GetMetric()[0], "db_name"))

	assert.Error(t, tel.RegisterDB(db, "sqlite"), "a second pool under the same name collides")
}
