package clinic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dentaldesk/clinic/internal/model"
)

// Service implements appointment booking, status transitions and role-scoped
// queries. It is transport-agnostic: the authenticated identity is threaded in
// as an argument, never read from ambient state.
type Service struct {
	appts  AppointmentStore
	ids    IdentityStore
	logger *slog.Logger
	now    func() time.Time
}

func NewService(appts AppointmentStore, ids IdentityStore, logger *slog.Logger) *Service {
	return &Service{
		appts:  appts,
		ids:    ids,
		logger: logger,
		now:    time.Now,
	}
}

// BookingRequest carries the raw booking form fields. Doctor arrives as a
// string because the front end posts the select value verbatim.
type BookingRequest struct {
	Doctor          string
	AppointmentType string
	Date            string
	Time            string
	Notes           string
}

var timePattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

// Book validates the request, checks the slot and creates a scheduled
// appointment owned by patientID. Exactly one row is written on success;
// nothing is written on any failure path.
func (s *Service) Book(ctx context.Context, patientID int64, req BookingRequest) (model.AppointmentDetail, error) {
	var zero model.AppointmentDetail

	for _, f := range []struct {
		name  string
		value string
	}{
		{"doctor", req.Doctor},
		{"appointmentType", req.AppointmentType},
		{"date", req.Date},
		{"time", req.Time},
	} {
		if strings.TrimSpace(f.value) == "" {
			return zero, validationErr(f.name, upperFirst(f.name)+" is required")
		}
	}

	doctorID, err := strconv.ParseInt(strings.TrimSpace(req.Doctor), 10, 64)
	if err != nil || doctorID <= 0 {
		return zero, validationErr("doctor", "Invalid doctor")
	}

	apptType, ok := model.ParseAppointmentType(req.AppointmentType)
	if !ok {
		return zero, validationErr("appointmentType", "Invalid appointment type")
	}

	date, err := time.ParseInLocation(model.DateLayout, req.Date, time.UTC)
	if err != nil {
		return zero, validationErr("date", "Invalid date format")
	}
	if date.Before(s.today()) {
		return zero, validationErr("date", "Cannot book appointments in the past")
	}

	m := timePattern.FindStringSubmatch(strings.TrimSpace(req.Time))
	if m == nil {
		return zero, validationErr("time", "Invalid time format")
	}
	hour, _ := strconv.Atoi(m[1])
	timeOfDay := fmt.Sprintf("%02d:%s", hour, m[2])

	if _, err := s.ids.DoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return zero, validationErr("doctor", "Invalid doctor")
		}
		return zero, storeErr(err)
	}

	taken, err := s.appts.SlotTaken(ctx, doctorID, date, timeOfDay)
	if err != nil {
		return zero, storeErr(err)
	}
	if taken {
		return zero, conflictErr("Selected time slot is not available")
	}

	id, err := s.appts.Create(ctx, model.Appointment{
		PatientID: patientID,
		DoctorID:  doctorID,
		Type:      apptType,
		Date:      date,
		TimeOfDay: timeOfDay,
		Notes:     strings.TrimSpace(req.Notes),
		Status:    model.StatusScheduled,
	})
	if err != nil {
		// A concurrent booking can win between the availability check and the
		// insert; the unique slot index reports it here.
		if errors.Is(err, ErrSlotConflict) {
			return zero, conflictErr("Selected time slot is not available")
		}
		return zero, storeErr(err)
	}

	detail, err := s.appts.Detail(ctx, id)
	if err != nil {
		return zero, storeErr(err)
	}
	s.logger.Info("appointment booked",
		"appointment_id", id,
		"patient_id", patientID,
		"doctor_id", doctorID,
		"date", date.Format(model.DateLayout),
		"time", timeOfDay,
	)
	return detail, nil
}

// today returns the current calendar day at midnight; bookings compare dates
// only, so a booking for later today is valid.
func (s *Service) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
