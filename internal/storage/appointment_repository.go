package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dentaldesk/clinic/internal/clinic"
	"github.com/dentaldesk/clinic/internal/model"
	"github.com/dentaldesk/clinic/internal/outbox"
	"github.com/dentaldesk/clinic/libs/db"
)

// AppointmentRepository is the pgx implementation of clinic.AppointmentStore.
// Mutations write the row and its lifecycle event in one transaction; the
// slot invariant is backed by a partial unique index over
// (doctor_id, appointment_date, appointment_time) WHERE status <> 'cancelled'.
type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: outboxRepo}
}

const appointmentColumns = `
	a.id, a.patient_id, a.doctor_id, a.appointment_type, a.appointment_date,
	a.appointment_time, a.notes, a.status, a.created_at, a.updated_at`

func (r *AppointmentRepository) SlotTaken(ctx context.Context, doctorID int64, date time.Time, timeOfDay string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
				AND appointment_date = $2
				AND appointment_time = $3
				AND status <> 'cancelled'
		)
	`, doctorID, date, timeOfDay).Scan(&taken)
	return taken, err
}

func (r *AppointmentRepository) Create(ctx context.Context, appt model.Appointment) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments
			(patient_id, doctor_id, appointment_type, appointment_date, appointment_time, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, appt.PatientID, appt.DoctorID, string(appt.Type), appt.Date, appt.TimeOfDay,
		appt.Notes, string(appt.Status)).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, clinic.ErrSlotConflict
		}
		return 0, err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id":   id,
		"patient_id":       appt.PatientID,
		"doctor_id":        appt.DoctorID,
		"appointment_type": string(appt.Type),
		"date":             appt.Date.Format(model.DateLayout),
		"time":             appt.TimeOfDay,
	})
	if err != nil {
		return 0, err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   strconv.FormatInt(id, 10),
		EventType:     outbox.EventAppointmentBooked,
		Payload:       payload,
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id int64) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments a
		WHERE a.id = $1
	`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, clinic.ErrAppointmentNotFound
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) GetOwnedByDoctor(ctx context.Context, id, doctorID int64) (model.Appointment, error) {
	appt, err := r.GetByID(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if appt.DoctorID != doctorID {
		return model.Appointment{}, clinic.ErrNotOwned
	}
	return appt, nil
}

func (r *AppointmentRepository) SetStatus(ctx context.Context, id int64, status model.Status) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var patientID, doctorID int64
	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING patient_id, doctor_id
	`, id, string(status)).Scan(&patientID, &doctorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	eventType := outbox.EventAppointmentStatusChanged
	if status == model.StatusCancelled {
		eventType = outbox.EventAppointmentCancelled
	}
	payload, err := json.Marshal(map[string]any{
		"appointment_id": id,
		"patient_id":     patientID,
		"doctor_id":      doctorID,
		"status":         string(status),
	})
	if err != nil {
		return false, err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   strconv.FormatInt(id, 10),
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *AppointmentRepository) Detail(ctx context.Context, id int64) (model.AppointmentDetail, error) {
	var d model.AppointmentDetail
	row := r.pool.QueryRow(ctx, `
		SELECT`+appointmentColumns+`,
			COALESCE(d.first_name, ''), COALESCE(d.last_name, ''), COALESCE(d.specialization, ''),
			COALESCE(p.first_name, ''), COALESCE(p.last_name, ''), COALESCE(p.phone, '')
		FROM appointments a
		LEFT JOIN doctors d ON a.doctor_id = d.id
		LEFT JOIN patients p ON a.patient_id = p.id
		WHERE a.id = $1
	`, id)
	err := row.Scan(
		&d.ID, &d.PatientID, &d.DoctorID, &d.Type, &d.Date,
		&d.TimeOfDay, &d.Notes, &d.Status, &d.CreatedAt, &d.UpdatedAt,
		&d.DoctorFirstName, &d.DoctorLastName, &d.Specialization,
		&d.PatientFirstName, &d.PatientLastName, &d.PatientPhone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AppointmentDetail{}, clinic.ErrAppointmentNotFound
		}
		return model.AppointmentDetail{}, err
	}
	return d, nil
}

func (r *AppointmentRepository) ListByDoctor(ctx context.Context, doctorID int64) ([]model.DoctorAppointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentColumns+`,
			COALESCE(p.first_name, ''), COALESCE(p.last_name, ''), COALESCE(p.phone, '')
		FROM appointments a
		LEFT JOIN patients p ON a.patient_id = p.id
		WHERE a.doctor_id = $1
		ORDER BY a.appointment_date ASC, a.appointment_time ASC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.DoctorAppointment
	for rows.Next() {
		var row model.DoctorAppointment
		if err := rows.Scan(
			&row.ID, &row.PatientID, &row.DoctorID, &row.Type, &row.Date,
			&row.TimeOfDay, &row.Notes, &row.Status, &row.CreatedAt, &row.UpdatedAt,
			&row.PatientFirstName, &row.PatientLastName, &row.PatientPhone,
		); err != nil {
			return nil, err
		}
		appts = append(appts, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *AppointmentRepository) ListByPatient(ctx context.Context, patientID int64) ([]model.PatientAppointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentColumns+`,
			COALESCE(d.first_name, ''), COALESCE(d.last_name, ''), COALESCE(d.specialization, '')
		FROM appointments a
		LEFT JOIN doctors d ON a.doctor_id = d.id
		WHERE a.patient_id = $1
		ORDER BY a.appointment_date DESC, a.appointment_time DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.PatientAppointment
	for rows.Next() {
		var row model.PatientAppointment
		if err := rows.Scan(
			&row.ID, &row.PatientID, &row.DoctorID, &row.Type, &row.Date,
			&row.TimeOfDay, &row.Notes, &row.Status, &row.CreatedAt, &row.UpdatedAt,
			&row.DoctorFirstName, &row.DoctorLastName, &row.Specialization,
		); err != nil {
			return nil, err
		}
		appts = append(appts, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.Type, &a.Date,
		&a.TimeOfDay, &a.Notes, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
