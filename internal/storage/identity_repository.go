package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dentaldesk/clinic/internal/clinic"
	"github.com/dentaldesk/clinic/internal/model"
	"github.com/dentaldesk/clinic/libs/db"
)

var (
	ErrEmailTaken   = errors.New("email already registered")
	ErrLicenseTaken = errors.New("license number already registered")
)

// Credentials is the login row shared by both roles. Profiles live in their
// own role table; the credentials row only resolves email -> (hash, role).
type Credentials struct {
	Email        string
	PasswordHash string
	Role         model.Role
}

// IdentityRepository reads and registers patients and doctors. The core only
// consumes the read side (clinic.IdentityStore); registration is a boundary
// concern.
type IdentityRepository struct {
	pool *db.Pool
}

func NewIdentityRepository(pool *db.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

func (r *IdentityRepository) GetCredentials(ctx context.Context, email string) (Credentials, error) {
	var c Credentials
	err := r.pool.QueryRow(ctx, `
		SELECT email, password_hash, role
		FROM credentials
		WHERE email = $1
	`, email).Scan(&c.Email, &c.PasswordHash, &c.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credentials{}, clinic.ErrIdentityNotFound
		}
		return Credentials{}, err
	}
	return c, nil
}

func (r *IdentityRepository) PatientByEmail(ctx context.Context, email string) (model.PatientProfile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, phone, date_of_birth, COALESCE(gender, ''), COALESCE(address, '')
		FROM patients
		WHERE email = $1
	`, email)
	return scanPatient(row)
}

func (r *IdentityRepository) PatientByID(ctx context.Context, id int64) (model.PatientProfile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, phone, date_of_birth, COALESCE(gender, ''), COALESCE(address, '')
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *IdentityRepository) DoctorByEmail(ctx context.Context, email string) (model.DoctorProfile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, phone, specialization, license_number
		FROM doctors
		WHERE email = $1
	`, email)
	return scanDoctor(row)
}

func (r *IdentityRepository) DoctorByID(ctx context.Context, id int64) (model.DoctorProfile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, phone, specialization, license_number
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *IdentityRepository) ListDoctors(ctx context.Context) ([]model.DoctorProfile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, first_name, last_name, email, phone, specialization, license_number
		FROM doctors
		ORDER BY first_name, last_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doctors []model.DoctorProfile
	for rows.Next() {
		var d model.DoctorProfile
		if err := rows.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Email, &d.Phone, &d.Specialization, &d.LicenseNumber); err != nil {
			return nil, err
		}
		doctors = append(doctors, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return doctors, nil
}

// CreatePatient writes the profile row and the credentials row in one
// transaction so a failed credentials insert never leaves an orphan profile.
func (r *IdentityRepository) CreatePatient(ctx context.Context, p model.PatientProfile, passwordHash string) (int64, error) {
	exists, err := r.emailExists(ctx, p.Email)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrEmailTaken
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO patients (first_name, last_name, email, phone, date_of_birth, gender, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, p.FirstName, p.LastName, p.Email, p.Phone, p.DateOfBirth, p.Gender, p.Address).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrEmailTaken
		}
		return 0, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO credentials (email, password_hash, role)
		VALUES ($1, $2, 'patient')
	`, p.Email, passwordHash); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrEmailTaken
		}
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *IdentityRepository) CreateDoctor(ctx context.Context, d model.DoctorProfile, passwordHash string) (int64, error) {
	exists, err := r.emailExists(ctx, d.Email)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrEmailTaken
	}

	var licenseExists bool
	if err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM doctors WHERE license_number = $1)
	`, d.LicenseNumber).Scan(&licenseExists); err != nil {
		return 0, err
	}
	if licenseExists {
		return 0, ErrLicenseTaken
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO doctors (first_name, last_name, email, phone, specialization, license_number)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, d.FirstName, d.LastName, d.Email, d.Phone, d.Specialization, d.LicenseNumber).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrEmailTaken
		}
		return 0, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO credentials (email, password_hash, role)
		VALUES ($1, $2, 'doctor')
	`, d.Email, passwordHash); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrEmailTaken
		}
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *IdentityRepository) emailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM credentials WHERE email = $1)
	`, email).Scan(&exists)
	return exists, err
}

func scanPatient(row pgx.Row) (model.PatientProfile, error) {
	var p model.PatientProfile
	var dob time.Time
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &dob, &p.Gender, &p.Address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PatientProfile{}, clinic.ErrIdentityNotFound
		}
		return model.PatientProfile{}, err
	}
	p.DateOfBirth = dob.Format(model.DateLayout)
	return p, nil
}

func scanDoctor(row pgx.Row) (model.DoctorProfile, error) {
	var d model.DoctorProfile
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Email, &d.Phone, &d.Specialization, &d.LicenseNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.DoctorProfile{}, clinic.ErrIdentityNotFound
		}
		return model.DoctorProfile{}, err
	}
	return d, nil
}
