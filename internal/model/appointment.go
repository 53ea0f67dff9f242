package model

import "time"

// Status is the lifecycle state of an appointment. Cancelled appointments
// keep their row; cancellation is a status, never a delete.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled:
		return Status(raw), true
	}
	return "", false
}

// Occupying reports whether an appointment in this status holds its
// (doctor, date, time) slot. Cancelled slots are free for rebooking.
func (s Status) Occupying() bool {
	return s != StatusCancelled
}

type AppointmentType string

const (
	TypeConsultation AppointmentType = "consultation"
	TypeCleaning     AppointmentType = "cleaning"
	TypeFilling      AppointmentType = "filling"
	TypeExtraction   AppointmentType = "extraction"
	TypeOrthodontic  AppointmentType = "orthodontic"
	TypeEmergency    AppointmentType = "emergency"
)

func ParseAppointmentType(raw string) (AppointmentType, bool) {
	switch AppointmentType(raw) {
	case TypeConsultation, TypeCleaning, TypeFilling, TypeExtraction, TypeOrthodontic, TypeEmergency:
		return AppointmentType(raw), true
	}
	return "", false
}

// Appointment is one booked visit. Date carries the calendar day only
// (midnight UTC); TimeOfDay is a normalized "HH:MM" 24-hour string so that
// lexicographic order equals chronological order.
type Appointment struct {
	ID        int64
	PatientID int64
	DoctorID  int64
	Type      AppointmentType
	Date      time.Time
	TimeOfDay string
	Notes     string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

const DateLayout = "2006-01-02"

// DoctorAppointment is an appointment decorated with the patient's display
// fields for the doctor's schedule view.
type DoctorAppointment struct {
	Appointment
	PatientFirstName string
	PatientLastName  string
	PatientPhone     string
}

// PatientAppointment is an appointment decorated with the assigned doctor's
// display fields for the patient's history view.
type PatientAppointment struct {
	Appointment
	DoctorFirstName string
	DoctorLastName  string
	Specialization  string
}

// AppointmentDetail joins both sides; returned after booking and after a
// doctor status update.
type AppointmentDetail struct {
	Appointment
	DoctorFirstName  string
	DoctorLastName   string
	Specialization   string
	PatientFirstName string
	PatientLastName  string
	PatientPhone     string
}
