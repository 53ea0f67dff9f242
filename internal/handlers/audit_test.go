package handlers

import (
	"net/http"
	"testing"

	"github.com/dentaldesk/clinic/internal/audit"
	"github.com/dentaldesk/clinic/internal/model"
)

func TestAuditRecent_RequiresDoctor(t *testing.T) {
	env := newTestEnv(t)

	rw, resp := doJSON(env.auditLog.Recent, http.MethodGet, "/api/v1/audit", "", "")
	if rw.Code != http.StatusUnauthorized || resp.Message != "Not logged in" {
		t.Fatalf("expected 401 Not logged in, got %d %q", rw.Code, resp.Message)
	}

	patientID := seedPatient(t, env, "karim@clinic.test")
	token := loginAs(t, env, patientID, model.RolePatient, "karim@clinic.test")
	rw, resp = doJSON(env.auditLog.Recent, http.MethodGet, "/api/v1/audit", "", token)
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rw.Code)
	}
	if resp.Message != "Only doctors can view the audit log" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestAuditRecent_ListsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	doctorID := seedDoctor(t, env, "amina@clinic.test")
	token := loginAs(t, env, doctorID, model.RoleDoctor, "amina@clinic.test")

	// Two failed logins leave two audit events.
	for _, email := range []string{"ghost@clinic.test", "nobody@clinic.test"} {
		doJSON(env.auth.Login, http.MethodPost, "/api/v1/login",
			`{"email":"`+email+`","password":"wrong"}`, "")
	}

	rw, resp := doJSON(env.auditLog.Recent, http.MethodGet, "/api/v1/audit", "", token)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	if resp.Message != "Audit events retrieved" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	events, isSlice := resp.Data["events"].([]any)
	if !isSlice || len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", resp.Data["events"])
	}
	first := events[0].(map[string]any)
	if first["event_type"] != audit.EventLoginFailed {
		t.Fatalf("unexpected event_type %v", first["event_type"])
	}
	// Newest first: the second failed login comes back at position 0.
	second := events[1].(map[string]any)
	if first["id"].(float64) <= second["id"].(float64) {
		t.Fatalf("expected newest first, got ids %v then %v", first["id"], second["id"])
	}

	rw, resp = doJSON(env.auditLog.Recent, http.MethodGet, "/api/v1/audit?limit=1", "", token)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if events := resp.Data["events"].([]any); len(events) != 1 {
		t.Fatalf("expected limit to apply, got %d events", len(events))
	}
}

func TestAuditRecent_MethodGuard(t *testing.T) {
	env := newTestEnv(t)

	rw, resp := doJSON(env.auditLog.Recent, http.MethodPost, "/api/v1/audit", "{}", "")
	if rw.Code != http.StatusMethodNotAllowed || resp.Message != "Only GET method allowed" {
		t.Fatalf("expected 405, got %d %q", rw.Code, resp.Message)
	}
}
