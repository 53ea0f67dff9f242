package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dentaldesk/clinic/internal/audit"
	"github.com/dentaldesk/clinic/internal/model"
	"github.com/dentaldesk/clinic/internal/sessions"
)

// AuditLog is the read side of the audit trail; internal/audit.Repository
// implements it.
type AuditLog interface {
	ListRecent(ctx context.Context, limit int) ([]audit.AuditEvent, error)
}

// AuditHandler exposes recent audit events to clinic staff.
type AuditHandler struct {
	log      AuditLog
	sessions SessionStore
	logger   *slog.Logger
}

func NewAuditHandler(log AuditLog, sessionStore SessionStore, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{log: log, sessions: sessionStore, logger: logger}
}

// Recent returns the newest audit events, most recent first. Doctor sessions
// only; the optional ?limit parameter is clamped by the repository.
func (h *AuditHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, http.StatusMethodNotAllowed, "Only GET method allowed")
		return
	}

	sess, _, err := currentSession(r, h.sessions)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			fail(w, http.StatusUnauthorized, "Not logged in")
			return
		}
		h.logger.Error("session lookup failed", "err", err)
		fail(w, http.StatusInternalServerError, "Database error occurred")
		return
	}
	if sess.Role != model.RoleDoctor {
		fail(w, http.StatusForbidden, "Only doctors can view the audit log")
		return
	}

	limit := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = v
	}
	events, err := h.log.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("audit listing failed", "err", err)
		fail(w, http.StatusInternalServerError, "Failed to retrieve audit events")
		return
	}
	if events == nil {
		events = []audit.AuditEvent{}
	}
	ok(w, http.StatusOK, "Audit events retrieved", map[string]any{"events": events})
}
