package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/dentaldesk/clinic/internal/model"
)

// Sentinels returned by store implementations. The core translates them into
// its error taxonomy; handlers never see them directly.
var (
	// ErrAppointmentNotFound means no appointment row exists for the id.
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrNotOwned means the appointment exists but belongs to another actor.
	ErrNotOwned = errors.New("appointment not owned by actor")
	// ErrSlotConflict means the (doctor, date, time) slot is already held by a
	// non-cancelled appointment. Implementations must return it from Create so
	// that a check-then-insert race still resolves with one winner.
	ErrSlotConflict = errors.New("slot already booked")
	// ErrIdentityNotFound means no identity row exists for the id.
	ErrIdentityNotFound = errors.New("identity not found")
)

// AppointmentStore is the single abstraction both mutating services go
// through, so the slot invariant is enforced in one place. Mutations are
// transactional: the row change and its lifecycle event commit together.
type AppointmentStore interface {
	// SlotTaken reports whether a non-cancelled appointment already occupies
	// (doctorID, date, timeOfDay).
	SlotTaken(ctx context.Context, doctorID int64, date time.Time, timeOfDay string) (bool, error)

	// Create inserts a new appointment and returns its assigned id.
	// Returns ErrSlotConflict when the slot is occupied.
	Create(ctx context.Context, appt model.Appointment) (int64, error)

	// GetByID returns the appointment or ErrAppointmentNotFound.
	GetByID(ctx context.Context, id int64) (model.Appointment, error)

	// GetOwnedByDoctor returns the appointment when it exists and is assigned
	// to doctorID; ErrAppointmentNotFound when no row exists; ErrNotOwned when
	// the row belongs to another doctor.
	GetOwnedByDoctor(ctx context.Context, id, doctorID int64) (model.Appointment, error)

	// SetStatus updates the status and refreshes updated_at. The bool is false
	// when zero rows were touched (row vanished between check and update).
	SetStatus(ctx context.Context, id int64, status model.Status) (bool, error)

	// Detail returns the appointment joined with both parties' display fields.
	Detail(ctx context.Context, id int64) (model.AppointmentDetail, error)

	// ListByDoctor returns the doctor's schedule ordered by date then time,
	// ascending.
	ListByDoctor(ctx context.Context, doctorID int64) ([]model.DoctorAppointment, error)

	// ListByPatient returns the patient's history ordered by date then time,
	// descending.
	ListByPatient(ctx context.Context, patientID int64) ([]model.PatientAppointment, error)
}

// IdentityStore is the read-only slice of the identity records the core
// consults. Identity mutation happens at the registration boundary, not here.
type IdentityStore interface {
	// DoctorByID returns the doctor profile or ErrIdentityNotFound.
	DoctorByID(ctx context.Context, id int64) (model.DoctorProfile, error)
}
