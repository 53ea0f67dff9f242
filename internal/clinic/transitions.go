package clinic

import (
	"context"
	"errors"

	"github.com/dentaldesk/clinic/internal/model"
)

// allowTransition is the single policy point for the status state machine.
// Any status may currently move to any other; tightening the graph (for
// example forbidding completed -> scheduled) only requires changing this
// function, not its call sites.
func allowTransition(from, to model.Status) bool {
	_ = from
	_ = to
	return true
}

// Cancel sets the patient's own appointment to cancelled. Only the status and
// updated_at change; an already-cancelled appointment is left untouched.
func (s *Service) Cancel(ctx context.Context, patientID, appointmentID int64) error {
	appt, err := s.appts.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return notFoundErr("Appointment not found")
		}
		return storeErr(err)
	}

	if appt.PatientID != patientID {
		return forbiddenErr("Not authorized to cancel this appointment")
	}
	if appt.Status == model.StatusCancelled {
		return alreadyInStateErr("Appointment already cancelled")
	}
	if !allowTransition(appt.Status, model.StatusCancelled) {
		return conflictErr("Appointment cannot be cancelled")
	}

	ok, err := s.appts.SetStatus(ctx, appointmentID, model.StatusCancelled)
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return updateFailedErr("Failed to cancel appointment")
	}

	s.logger.Info("appointment cancelled", "appointment_id", appointmentID, "patient_id", patientID)
	return nil
}

// UpdateStatus sets a new status on an appointment assigned to doctorID and
// returns the updated record joined with the patient's display fields.
//
// Existence and assignment failures carry distinct kinds internally but the
// same client message; the HTTP boundary collapses them into one outcome so a
// doctor cannot probe which appointment ids exist.
func (s *Service) UpdateStatus(ctx context.Context, doctorID, appointmentID int64, rawStatus string) (model.AppointmentDetail, error) {
	var zero model.AppointmentDetail

	status, ok := model.ParseStatus(rawStatus)
	if !ok {
		return zero, validationErr("status", "Invalid status value")
	}

	appt, err := s.appts.GetOwnedByDoctor(ctx, appointmentID, doctorID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAppointmentNotFound):
			return zero, notFoundErr("You can only update your own appointments")
		case errors.Is(err, ErrNotOwned):
			return zero, forbiddenErr("You can only update your own appointments")
		}
		return zero, storeErr(err)
	}

	if !allowTransition(appt.Status, status) {
		return zero, validationErr("status", "Invalid status transition")
	}

	updated, err := s.appts.SetStatus(ctx, appointmentID, status)
	if err != nil {
		return zero, storeErr(err)
	}
	if !updated {
		return zero, updateFailedErr("Failed to update appointment status")
	}

	detail, err := s.appts.Detail(ctx, appointmentID)
	if err != nil {
		return zero, storeErr(err)
	}
	s.logger.Info("appointment status updated",
		"appointment_id", appointmentID,
		"doctor_id", doctorID,
		"from", string(appt.Status),
		"to", string(status),
	)
	return detail, nil
}
