package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dentaldesk/clinic/internal/clinic"
	"github.com/dentaldesk/clinic/internal/model"
)

// envelope is the response shape shared by every endpoint. data is omitted on
// failures and on successes that carry no payload.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// statusForKind maps core error kinds to HTTP status codes. Clients keyed on
// the envelope's success flag keep working; the codes are additional signal.
func statusForKind(k clinic.Kind) int {
	switch k {
	case clinic.KindValidation:
		return http.StatusBadRequest
	case clinic.KindUnauthenticated:
		return http.StatusUnauthorized
	case clinic.KindForbidden:
		return http.StatusForbidden
	case clinic.KindNotFound:
		return http.StatusNotFound
	case clinic.KindConflict, clinic.KindAlreadyInState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// failFromError writes the envelope for a core error. Store and unknown
// failures are logged with their cause; the client only sees the generic
// message.
func failFromError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := clinic.KindOf(err)
	if kind == clinic.KindStore || kind == clinic.KindUnknown {
		logger.Error("request failed", "err", err)
	}
	fail(w, statusForKind(kind), clinic.UserMessage(err))
}

type appointmentJSON struct {
	ID              int64  `json:"id"`
	PatientID       int64  `json:"patient_id"`
	DoctorID        int64  `json:"doctor_id"`
	AppointmentType string `json:"appointment_type"`
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
	Notes           string `json:"notes"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`

	DoctorFirstName  string `json:"doctor_first_name,omitempty"`
	DoctorLastName   string `json:"doctor_last_name,omitempty"`
	Specialization   string `json:"specialization,omitempty"`
	PatientFirstName string `json:"patient_first_name,omitempty"`
	PatientLastName  string `json:"patient_last_name,omitempty"`
	PatientPhone     string `json:"patient_phone,omitempty"`
}

func baseAppointmentJSON(a model.Appointment) appointmentJSON {
	return appointmentJSON{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		AppointmentType: string(a.Type),
		AppointmentDate: a.Date.Format(model.DateLayout),
		AppointmentTime: a.TimeOfDay,
		Notes:           a.Notes,
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		UpdatedAt:       a.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}

func detailJSON(d model.AppointmentDetail) appointmentJSON {
	out := baseAppointmentJSON(d.Appointment)
	out.DoctorFirstName = d.DoctorFirstName
	out.DoctorLastName = d.DoctorLastName
	out.Specialization = d.Specialization
	out.PatientFirstName = d.PatientFirstName
	out.PatientLastName = d.PatientLastName
	out.PatientPhone = d.PatientPhone
	return out
}

func doctorViewJSON(a model.DoctorAppointment) appointmentJSON {
	out := baseAppointmentJSON(a.Appointment)
	out.PatientFirstName = a.PatientFirstName
	out.PatientLastName = a.PatientLastName
	out.PatientPhone = a.PatientPhone
	return out
}

func patientViewJSON(a model.PatientAppointment) appointmentJSON {
	out := baseAppointmentJSON(a.Appointment)
	out.DoctorFirstName = a.DoctorFirstName
	out.DoctorLastName = a.DoctorLastName
	out.Specialization = a.Specialization
	return out
}
