package clinic

import (
	"context"

	"github.com/dentaldesk/clinic/internal/model"
)

// ListForDoctor returns the doctor's full schedule, earliest first, each row
// joined with the patient's name. Read-only; reflects latest committed state.
func (s *Service) ListForDoctor(ctx context.Context, doctorID int64) ([]model.DoctorAppointment, error) {
	appts, err := s.appts.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, storeErr(err)
	}
	return appts, nil
}

// ListForPatient returns the patient's appointment history, most recent
// first, each row joined with the doctor's name and specialization.
func (s *Service) ListForPatient(ctx context.Context, patientID int64) ([]model.PatientAppointment, error) {
	appts, err := s.appts.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, storeErr(err)
	}
	return appts, nil
}
