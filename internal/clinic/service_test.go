package clinic

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dentaldesk/clinic/internal/model"
)

var testClock = time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

func newTestService(store *memStore) *Service {
	store.clock = func() time.Time { return testClock }
	svc := NewService(store, store, slog.New(slog.DiscardHandler))
	svc.now = func() time.Time { return testClock }
	return svc
}

func seedDoctor(store *memStore, id int64) {
	store.doctors[id] = model.DoctorProfile{
		ID:             id,
		FirstName:      "Amina",
		LastName:       "Rahman",
		Specialization: "Orthodontics",
	}
}

func seedPatient(store *memStore, id int64) {
	store.patients[id] = model.PatientProfile{
		ID:        id,
		FirstName: "Karim",
		LastName:  "Hossain",
		Phone:     "+880-1711-000000",
	}
}

func validRequest() BookingRequest {
	return BookingRequest{
		Doctor:          "1",
		AppointmentType: "cleaning",
		Date:            "2026-09-01",
		Time:            "09:00",
	}
}

func TestBook_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BookingRequest)
		message string
	}{
		{"missing doctor", func(r *BookingRequest) { r.Doctor = "" }, "Doctor is required"},
		{"missing type", func(r *BookingRequest) { r.AppointmentType = "" }, "AppointmentType is required"},
		{"missing date", func(r *BookingRequest) { r.Date = "" }, "Date is required"},
		{"missing time", func(r *BookingRequest) { r.Time = "" }, "Time is required"},
		{"non-numeric doctor", func(r *BookingRequest) { r.Doctor = "dr-amina" }, "Invalid doctor"},
		{"unknown type", func(r *BookingRequest) { r.AppointmentType = "whitening" }, "Invalid appointment type"},
		{"malformed date", func(r *BookingRequest) { r.Date = "01/09/2026" }, "Invalid date format"},
		{"past date", func(r *BookingRequest) { r.Date = "2026-08-29" }, "Cannot book appointments in the past"},
		{"bad hour", func(r *BookingRequest) { r.Time = "25:00" }, "Invalid time format"},
		{"bad minute", func(r *BookingRequest) { r.Time = "09:75" }, "Invalid time format"},
		{"not a time", func(r *BookingRequest) { r.Time = "morning" }, "Invalid time format"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			seedDoctor(store, 1)
			svc := newTestService(store)

			req := validRequest()
			tc.mutate(&req)

			_, err := svc.Book(context.Background(), 42, req)
			if err == nil {
				t.Fatal("expected error")
			}
			if KindOf(err) != KindValidation {
				t.Fatalf("expected validation kind, got %v", KindOf(err))
			}
			if UserMessage(err) != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, UserMessage(err))
			}
			if len(store.appts) != 0 {
				t.Fatal("validation failure must not write a row")
			}
		})
	}
}

func TestBook_TodayIsAllowed(t *testing.T) {
	store := newMemStore()
	seedDoctor(store, 1)
	seedPatient(store, 42)
	svc := newTestService(store)

	req := validRequest()
	req.Date = testClock.Format(model.DateLayout)

	detail, err := svc.Book(context.Background(), 42, req)
	if err != nil {
		t.Fatalf("booking for today should succeed: %v", err)
	}
	if detail.Status != model.StatusScheduled {
		t.Fatalf("expected status scheduled, got %s", detail.Status)
	}
	if detail.PatientID != 42 {
		t.Fatalf("expected patient 42, got %d", detail.PatientID)
	}
	if detail.DoctorFirstName != "Amina" || detail.Specialization != "Orthodontics" {
		t.Fatalf("expected doctor display fields, got %+v", detail)
	}
}

func TestBook_UnknownDoctor(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	_, err := svc.Book(context.Background(), 42, validRequest())
	if KindOf(err) != KindValidation || UserMessage(err) != "Invalid doctor" {
		t.Fatalf("expected Invalid doctor validation, got %v", err)
	}
}

func TestBook_NormalizesTime(t *testing.T) {
	store := newMemStore()
	seedDoctor(store, 1)
	svc := newTestService(store)

	req := validRequest()
	req.Time = "9:30"

	detail, err := svc.Book(context.Background(), 42, req)
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if detail.TimeOfDay != "09:30" {
		t.Fatalf("expected normalized time 09:30, got %q", detail.TimeOfDay)
	}
}

func TestBook_DistinctSlotsAllSucceed(t *testing.T) {
	store := newMemStore()
	seedDoctor(store, 1)
	seedDoctor(store, 2)
	svc := newTestService(store)

	reqs := []BookingRequest{
		{Doctor: "1", AppointmentType: "cleaning", Date: "2026-09-01", Time: "09:00"},
		{Doctor: "1", AppointmentType: "cleaning", Date: "2026-09-01", Time: "09:30"},
		{Doctor: "1", AppointmentType: "cleaning", Date: "2026-09-02", Time: "09:00"},
		{Doctor: "2", AppointmentType: "cleaning", Date: "2026-09-01", Time: "09:00"},
	}
	for i, req := range reqs {
		if _, err := svc.Book(context.Background(), 42, req); err != nil {
			t.Fatalf("booking %d should succeed: %v", i, err)
		}
	}
}

func TestBook_SlotConflictOnRace(t *testing.T) {
	store := newMemStore()
	seedDoctor(store, 1)
	svc := newTestService(store)

	store.raceConflict = true
	_, err := svc.Book(context.Background(), 42, validRequest())
	if KindOf(err) != KindConflict {
		t.Fatalf("expected conflict when insert loses the race, got %v", err)
	}
}

// Mirrors the full slot lifecycle: patient 42 books, patient 43 collides,
// 42 cancels, 43 rebooks the freed slot.
func TestSlotLifecycle(t *testing.T) {
	store := newMemStore()
	seedDoctor(store, 1)
	seedPatient(store, 42)
	seedPatient(store, 43)
	svc := newTestService(store)

	req := BookingRequest{Doctor: "1", AppointmentType: "cleaning", Date: testClock.Format(model.DateLayout), Time: "09:00"}

	first, err := svc.Book(context.Background(), 42, req)
	if err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	if first.Status != model.StatusScheduled {
		t.Fatalf("expected scheduled, got %s", first.Status)
	}

	if _, err := svc.Book(context.Background(), 43, req); KindOf(err) != KindConflict {
		t.Fatalf("expected conflict for occupied slot, got %v", err)
	}

	if err := svc.Cancel(context.Background(), 42, first.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	second, err := svc.Book(context.Background(), 43, req)
	if err != nil {
		t.Fatalf("rebooking a cancelled slot should succeed: %v", err)
	}
	if second.PatientID != 43 {
		t.Fatalf("expected patient 43 on rebooked slot, got %d", second.PatientID)
	}
}
