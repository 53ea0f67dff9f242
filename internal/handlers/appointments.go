package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dentaldesk/clinic/internal/clinic"
	"github.com/dentaldesk/clinic/internal/model"
	"github.com/dentaldesk/clinic/internal/sessions"
)

type AppointmentHandler struct {
	clinic   *clinic.Service
	sessions SessionStore
	logger   *slog.Logger
}

func NewAppointmentHandler(svc *clinic.Service, sessionStore SessionStore, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		clinic:   svc,
		sessions: sessionStore,
		logger:   logger,
	}
}

type bookRequest struct {
	Doctor          any    `json:"doctor"`
	AppointmentType string `json:"appointmentType"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Notes           string `json:"notes"`
}

func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, http.StatusMethodNotAllowed, "Only POST method allowed")
		return
	}

	sess, _, err := currentSession(r, h.sessions)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			fail(w, http.StatusUnauthorized, "User not logged in")
			return
		}
		h.logger.Error("session lookup failed", "err", err)
		fail(w, http.StatusInternalServerError, "Database error occurred")
		return
	}
	if sess.Role != model.RolePatient {
		fail(w, http.StatusForbidden, "Only patients can book appointments")
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON data")
		return
	}

	detail, err := h.clinic.Book(r.Context(), sess.UserID, clinic.BookingRequest{
		Doctor:          stringify(req.Doctor),
		AppointmentType: req.AppointmentType,
		Date:            req.Date,
		Time:            req.Time,
		Notes:           req.Notes,
	})
	if err != nil {
		failFromError(w, h.logger, err)
		return
	}

	ok(w, http.StatusCreated, "Appointment booked successfully", map[string]any{
		"appointment_id": detail.ID,
		"appointment":    detailJSON(detail),
	})
}

type cancelRequest struct {
	AppointmentID any `json:"appointment_id"`
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch && r.Method != http.MethodPost {
		fail(w, http.StatusMethodNotAllowed, "Only PATCH or POST method allowed")
		return
	}

	sess, _, err := currentSession(r, h.sessions)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			fail(w, http.StatusUnauthorized, "User not logged in")
			return
		}
		h.logger.Error("session lookup failed", "err", err)
		fail(w, http.StatusInternalServerError, "Database error occurred")
		return
	}
	if sess.Role != model.RolePatient {
		fail(w, http.StatusForbidden, "Only patients can cancel appointments")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON data")
		return
	}
	if !idPresent(req.AppointmentID) {
		fail(w, http.StatusBadRequest, "Appointment ID is required")
		return
	}
	appointmentID, valid := parseID(req.AppointmentID)
	if !valid {
		fail(w, http.StatusBadRequest, "Invalid appointment ID")
		return
	}

	if err := h.clinic.Cancel(r.Context(), sess.UserID, appointmentID); err != nil {
		failFromError(w, h.logger, err)
		return
	}

	ok(w, http.StatusOK, "Appointment cancelled successfully", map[string]any{
		"appointment_id": appointmentID,
	})
}

type updateStatusRequest struct {
	AppointmentID any    `json:"appointment_id"`
	Status        string `json:"status"`
}

func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		fail(w, http.StatusMethodNotAllowed, "Only PATCH method allowed")
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
		fail(w, http.StatusForbidden, "You can only update your own appointments")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON data")
		return
	}
	if !idPresent(req.AppointmentID) {
		fail(w, http.StatusBadRequest, "Appointment ID is required")
		return
	}
	if req.Status == "" {
		fail(w, http.StatusBadRequest, "Status is required")
		return
	}
	appointmentID, valid := parseID(req.AppointmentID)
	if !valid {
		fail(w, http.StatusBadRequest, "Invalid appointment ID")
		return
	}

	detail, err := h.clinic.UpdateStatus(r.Context(), sess.UserID, appointmentID, req.Status)
	if err != nil {
		// Existence and ownership collapse into one outcome here so a doctor
		// cannot probe which appointment ids exist.
		if clinic.KindOf(err) == clinic.KindNotFound {
			fail(w, http.StatusForbidden, clinic.UserMessage(err))
			return
		}
		failFromError(w, h.logger, err)
		return
	}

	ok(w, http.StatusOK, "Appointment status updated successfully", map[string]any{
		"appointment": detailJSON(detail),
	})
}

// DoctorSchedule returns every appointment assigned to the logged-in doctor,
// earliest first.
func (h *AppointmentHandler) DoctorSchedule(w http.ResponseWriter, r *http.Request) {
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
		fail(w, http.StatusForbidden, "Only doctors can view their schedule")
		return
	}

	appts, err := h.clinic.ListForDoctor(r.Context(), sess.UserID)
	if err != nil {
		h.logger.Error("doctor schedule query failed", "err", err)
		fail(w, http.StatusInternalServerError, "Failed to retrieve appointments")
		return
	}

	list := make([]appointmentJSON, 0, len(appts))
	for _, a := range appts {
		list = append(list, doctorViewJSON(a))
	}
	ok(w, http.StatusOK, "Appointments retrieved", map[string]any{"appointments": list})
}
