package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/config"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func TestReloadHandler(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("STORAGE_TYPE", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	cm := config.NewConfigManager(path, cfg, nopLogger{})
	h := NewReloadHandler(cm, nopLogger{})

	t.Run("GET is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/-/reload", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("applies log level", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/-/reload", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "debug", cm.Current().Logging.Level)
	})

	t.Run("invalid file keeps previous config", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o600))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/-/reload", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "debug", cm.Current().Logging.Level)
	})
}
