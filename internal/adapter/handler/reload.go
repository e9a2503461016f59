package handler

import (
	"net/http"

	"github.com/qj0r9j0vc2/slackcat/internal/infrastructure/config"
)

// Logger is the logging surface used by handlers.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// ReloadHandler handles configuration reload requests.
type ReloadHandler struct {
	configManager *config.ConfigManager
	logger        Logger
}

// NewReloadHandler creates a new reload handler.
func NewReloadHandler(cm *config.ConfigManager, logger Logger) *ReloadHandler {
	return &ReloadHandler{
		configManager: cm,
		logger:        logger,
	}
}

// ServeHTTP handles POST /-/reload requests.
// Static keys that changed are logged by the manager and left untouched.
func (h *ReloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.configManager.Reload(); err != nil {
		h.logger.Error("manual reload failed", "error", err)
		http.Error(w, "Configuration reload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.logger.Info("configuration reloaded via http")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Configuration reloaded successfully\n"))
}
