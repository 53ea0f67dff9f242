package model

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RolePatient, RoleDoctor:
		return Role(raw), true
	}
	return "", false
}

// Identity is an authenticated actor. The id is only meaningful together
// with the role: patient and doctor ids live in separate tables.
type Identity struct {
	ID   int64
	Role Role
}

type PatientProfile struct {
	ID          int64
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	DateOfBirth string
	Gender      string
	Address     string
}

type DoctorProfile struct {
	ID             int64
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	Specialization string
	LicenseNumber  string
}
