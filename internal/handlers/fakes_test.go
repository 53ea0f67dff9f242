package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dentaldesk/clinic/internal/audit"
	"github.com/dentaldesk/clinic/internal/clinic"
	"github.com/dentaldesk/clinic/internal/model"
	"github.com/dentaldesk/clinic/internal/sessions"
	"github.com/dentaldesk/clinic/internal/storage"
)

// fakeDirectory is an in-memory IdentityDirectory that also satisfies
// clinic.IdentityStore via DoctorByID.
type fakeDirectory struct {
	creds    map[string]storage.Credentials
	patients map[int64]model.PatientProfile
	doctors  map[int64]model.DoctorProfile
	nextID   int64
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		creds:    map[string]storage.Credentials{},
		patients: map[int64]model.PatientProfile{},
		doctors:  map[int64]model.DoctorProfile{},
	}
}

func (d *fakeDirectory) GetCredentials(_ context.Context, email string) (storage.Credentials, error) {
	c, found := d.creds[email]
	if !found {
		return storage.Credentials{}, clinic.ErrIdentityNotFound
	}
	return c, nil
}

func (d *fakeDirectory) PatientByEmail(_ context.Context, email string) (model.PatientProfile, error) {
	for _, p := range d.patients {
		if p.Email == email {
			return p, nil
		}
	}
	return model.PatientProfile{}, clinic.ErrIdentityNotFound
}

func (d *fakeDirectory) DoctorByEmail(_ context.Context, email string) (model.DoctorProfile, error) {
	for _, doc := range d.doctors {
		if doc.Email == email {
			return doc, nil
		}
	}
	return model.DoctorProfile{}, clinic.ErrIdentityNotFound
}

func (d *fakeDirectory) PatientByID(_ context.Context, id int64) (model.PatientProfile, error) {
	p, found := d.patients[id]
	if !found {
		return model.PatientProfile{}, clinic.ErrIdentityNotFound
	}
	return p, nil
}

func (d *fakeDirectory) DoctorByID(_ context.Context, id int64) (model.DoctorProfile, error) {
	doc, found := d.doctors[id]
	if !found {
		return model.DoctorProfile{}, clinic.ErrIdentityNotFound
	}
	return doc, nil
}

func (d *fakeDirectory) CreatePatient(_ context.Context, p model.PatientProfile, passwordHash string) (int64, error) {
	if _, taken := d.creds[p.Email]; taken {
		return 0, storage.ErrEmailTaken
	}
	d.nextID++
	p.ID = d.nextID
	d.patients[p.ID] = p
	d.creds[p.Email] = storage.Credentials{Email: p.Email, PasswordHash: passwordHash, Role: model.RolePatient}
	return p.ID, nil
}

func (d *fakeDirectory) CreateDoctor(_ context.Context, doc model.DoctorProfile, passwordHash string) (int64, error) {
	if _, taken := d.creds[doc.Email]; taken {
		return 0, storage.ErrEmailTaken
	}
	for _, existing := range d.doctors {
		if existing.LicenseNumber == doc.LicenseNumber {
			return 0, storage.ErrLicenseTaken
		}
	}
	d.nextID++
	doc.ID = d.nextID
	d.doctors[doc.ID] = doc
	d.creds[doc.Email] = storage.Credentials{Email: doc.Email, PasswordHash: passwordHash, Role: model.RoleDoctor}
	return doc.ID, nil
}

func (d *fakeDirectory) ListDoctors(_ context.Context) ([]model.DoctorProfile, error) {
	out := make([]model.DoctorProfile, 0, len(d.doctors))
	for _, doc := range d.doctors {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].LastName < out[j].LastName
	})
	return out, nil
}

type fakeSessions struct {
	m      map[string]sessions.Session
	nextID int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{m: map[string]sessions.Session{}}
}

func (s *fakeSessions) Create(_ context.Context, sess sessions.Session) (string, error) {
	s.nextID++
	token := fmt.Sprintf("tok-%d", s.nextID)
	s.m[token] = sess
	return token, nil
}

func (s *fakeSessions) Get(_ context.Context, token string) (sessions.Session, error) {
	sess, found := s.m[token]
	if !found {
		return sessions.Session{}, sessions.ErrNotFound
	}
	return sess, nil
}

func (s *fakeSessions) Delete(_ context.Context, token string) error {
	delete(s.m, token)
	return nil
}

func (s *fakeSessions) TTL() time.Duration { return time.Hour }

// fakeAppointments is an in-memory clinic.AppointmentStore; list decoration
// is joined from the shared directory.
type fakeAppointments struct {
	dir    *fakeDirectory
	m      map[int64]model.Appointment
	nextID int64
}

func newFakeAppointments(dir *fakeDirectory) *fakeAppointments {
	return &fakeAppointments{dir: dir, m: map[int64]model.Appointment{}}
}

func (s *fakeAppointments) SlotTaken(_ context.Context, doctorID int64, date time.Time, timeOfDay string) (bool, error) {
	for _, a := range s.m {
		if a.DoctorID == doctorID && a.Date.Equal(date) && a.TimeOfDay == timeOfDay && a.Status.Occupying() {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeAppointments) Create(ctx context.Context, appt model.Appointment) (int64, error) {
	taken, _ := s.SlotTaken(ctx, appt.DoctorID, appt.Date, appt.TimeOfDay)
	if taken {
		return 0, clinic.ErrSlotConflict
	}
	s.nextID++
	appt.ID = s.nextID
	appt.CreatedAt = time.Now().UTC()
	appt.UpdatedAt = appt.CreatedAt
	s.m[appt.ID] = appt
	return appt.ID, nil
}

func (s *fakeAppointments) GetByID(_ context.Context, id int64) (model.Appointment, error) {
	a, found := s.m[id]
	if !found {
		return model.Appointment{}, clinic.ErrAppointmentNotFound
	}
	return a, nil
}

func (s *fakeAppointments) GetOwnedByDoctor(ctx context.Context, id, doctorID int64) (model.Appointment, error) {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if a.DoctorID != doctorID {
		return model.Appointment{}, clinic.ErrNotOwned
	}
	return a, nil
}

func (s *fakeAppointments) SetStatus(_ context.Context, id int64, status model.Status) (bool, error) {
	a, found := s.m[id]
	if !found {
		return false, nil
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	s.m[id] = a
	return true, nil
}

func (s *fakeAppointments) Detail(ctx context.Context, id int64) (model.AppointmentDetail, error) {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return model.AppointmentDetail{}, err
	}
	d := model.AppointmentDetail{Appointment: a}
	if doc, err := s.dir.DoctorByID(ctx, a.DoctorID); err == nil {
		d.DoctorFirstName = doc.FirstName
		d.DoctorLastName = doc.LastName
		d.Specialization = doc.Specialization
	}
	if pat, err := s.dir.PatientByID(ctx, a.PatientID); err == nil {
		d.PatientFirstName = pat.FirstName
		d.PatientLastName = pat.LastName
		d.PatientPhone = pat.Phone
	}
	return d, nil
}

func (s *fakeAppointments) ListByDoctor(ctx context.Context, doctorID int64) ([]model.DoctorAppointment, error) {
	var out []model.DoctorAppointment
	for _, a := range s.m {
		if a.DoctorID != doctorID {
			continue
		}
		row := model.DoctorAppointment{Appointment: a}
		if pat, err := s.dir.PatientByID(ctx, a.PatientID); err == nil {
			row.PatientFirstName = pat.FirstName
			row.PatientLastName = pat.LastName
			row.PatientPhone = pat.Phone
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

func (s *fakeAppointments) ListByPatient(ctx context.Context, patientID int64) ([]model.PatientAppointment, error) {
	var out []model.PatientAppointment
	for _, a := range s.m {
		if a.PatientID != patientID {
			continue
		}
		row := model.PatientAppointment{Appointment: a}
		if doc, err := s.dir.DoctorByID(ctx, a.DoctorID); err == nil {
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

type auditedEvent struct {
	eventType string
	actorID   string
}

type recordingAudit struct {
	events []auditedEvent
}

func (a *recordingAudit) Record(_ context.Context, eventType string, actorID string, _ map[string]any) error {
	a.events = append(a.events, auditedEvent{eventType: eventType, actorID: actorID})
	return nil
}

func (a *recordingAudit) ListRecent(_ context.Context, limit int) ([]audit.AuditEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []audit.AuditEvent
	for i := len(a.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, audit.AuditEvent{
			ID:        int64(i + 1),
			EventType: a.events[i].eventType,
			ActorID:   a.events[i].actorID,
			Metadata:  json.RawMessage(`{}`),
		})
	}
	return out, nil
}
