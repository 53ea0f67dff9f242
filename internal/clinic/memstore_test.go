package clinic

import (
	"context"
	"sort"
	"time"

	"github.com/dentaldesk/clinic/internal/model"
)

// memStore is an in-memory AppointmentStore + IdentityStore used by the core
// tests. It mirrors the SQL ordering and the unique-slot behavior of the pgx
// implementation.
type memStore struct {
	nextID   int64
	appts    map[int64]*model.Appointment
	doctors  map[int64]model.DoctorProfile
	patients map[int64]model.PatientProfile

	clock func() time.Time

	// raceConflict makes Create fail with ErrSlotConflict even when SlotTaken
	// reported the slot free, simulating a concurrent booker winning the index.
	raceConflict bool
	// zeroRows makes SetStatus touch nothing, simulating a row deleted between
	// the ownership check and the update.
	zeroRows bool
}

func newMemStore() *memStore {
	return &memStore{
		appts:    map[int64]*model.Appointment{},
		doctors:  map[int64]model.DoctorProfile{},
		patients: map[int64]model.PatientProfile{},
		clock:    time.Now,
	}
}

func (m *memStore) SlotTaken(_ context.Context, doctorID int64, date time.Time, timeOfDay string) (bool, error) {
	for _, a := range m.appts {
		if a.DoctorID == doctorID && a.Date.Equal(date) && a.TimeOfDay == timeOfDay && a.Status.Occupying() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) Create(ctx context.Context, appt model.Appointment) (int64, error) {
	if m.raceConflict {
		return 0, ErrSlotConflict
	}
	if taken, _ := m.SlotTaken(ctx, appt.DoctorID, appt.Date, appt.TimeOfDay); taken {
		return 0, ErrSlotConflict
	}
	m.nextID++
	appt.ID = m.nextID
	appt.CreatedAt = m.clock()
	appt.UpdatedAt = appt.CreatedAt
	m.appts[appt.ID] = &appt
	return appt.ID, nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (model.Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, ErrAppointmentNotFound
	}
	return *a, nil
}

func (m *memStore) GetOwnedByDoctor(_ context.Context, id, doctorID int64) (model.Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, ErrAppointmentNotFound
	}
	if a.DoctorID != doctorID {
		return model.Appointment{}, ErrNotOwned
	}
	return *a, nil
}

func (m *memStore) SetStatus(_ context.Context, id int64, status model.Status) (bool, error) {
	if m.zeroRows {
		return false, nil
	}
	a, ok := m.appts[id]
	if !ok {
		return false, nil
	}
	a.Status = status
	a.UpdatedAt = m.clock()
	return true, nil
}

func (m *memStore) Detail(_ context.Context, id int64) (model.AppointmentDetail, error) {
	a, ok := m.appts[id]
	if !ok {
		return model.AppointmentDetail{}, ErrAppointmentNotFound
	}
	d := model.AppointmentDetail{Appointment: *a}
	if doc, ok := m.doctors[a.DoctorID]; ok {
		d.DoctorFirstName = doc.FirstName
		d.DoctorLastName = doc.LastName
		d.Specialization = doc.Specialization
	}
	if p, ok := m.patients[a.PatientID]; ok {
		d.PatientFirstName = p.FirstName
		d.PatientLastName = p.LastName
		d.PatientPhone = p.Phone
	}
	return d, nil
}

func (m *memStore) ListByDoctor(_ context.Context, doctorID int64) ([]model.DoctorAppointment, error) {
	var out []model.DoctorAppointment
	for _, a := range m.appts {
		if a.DoctorID != doctorID {
			continue
		}
		row := model.DoctorAppointment{Appointment: *a}
		if p, ok := m.patients[a.PatientID]; ok {
			row.PatientFirstName = p.FirstName
			row.PatientLastName = p.LastName
			row.PatientPhone = p.Phone
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].TimeOfDay < out[j].TimeOfDay
	})
	return out, nil
}

func (m *memStore) ListByPatient(_ context.Context, patientID int64) ([]model.PatientAppointment, error) {
	var out []model.PatientAppointment
	for _, a := range m.appts {
		if a.PatientID != patientID {
			continue
		}
		row := model.PatientAppointment{Appointment: *a}
		if doc, ok := m.doctors[a.DoctorID]; ok {
			row.DoctorFirstName = doc.FirstName
			row.DoctorLastName = doc.LastName
			row.Specialization = doc.Specialization
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].TimeOfDay > out[j].TimeOfDay
	})
	return out, nil
}

func (m *memStore) DoctorByID(_ context.Context, id int64) (model.DoctorProfile, error) {
	doc, ok := m.doctors[id]
	if !ok {
		return model.DoctorProfile{}, ErrIdentityNotFound
	}
	return doc, nil
}
