package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dentaldesk/clinic/internal/audit"
	"github.com/dentaldesk/clinic/internal/clinic"
	"github.com/dentaldesk/clinic/internal/model"
	"github.com/dentaldesk/clinic/internal/sessions"
	"github.com/dentaldesk/clinic/internal/storage"
)

// IdentityDirectory is the slice of the identity layer the auth boundary
// uses; the pgx implementation lives in internal/storage.
type IdentityDirectory interface {
	GetCredentials(ctx context.Context, email string) (storage.Credentials, error)
	PatientByEmail(ctx context.Context, email string) (model.PatientProfile, error)
	DoctorByEmail(ctx context.Context, email string) (model.DoctorProfile, error)
	PatientByID(ctx context.Context, id int64) (model.PatientProfile, error)
	DoctorByID(ctx context.Context, id int64) (model.DoctorProfile, error)
	CreatePatient(ctx context.Context, p model.PatientProfile, passwordHash string) (int64, error)
	CreateDoctor(ctx context.Context, d model.DoctorProfile, passwordHash string) (int64, error)
	ListDoctors(ctx context.Context) ([]model.DoctorProfile, error)
}

// Auditor records security-relevant events. May be backed by
// internal/audit.Repository or left nil to disable recording.
type Auditor interface {
	Record(ctx context.Context, eventType string, actorID string, metadata map[string]any) error
}

type AuthHandler struct {
	ids      IdentityDirectory
	sessions SessionStore
	clinic   *clinic.Service
	audit    Auditor
	logger   *slog.Logger
}

func NewAuthHandler(ids IdentityDirectory, sessionStore SessionStore, svc *clinic.Service, auditor Auditor, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		ids:      ids,
		sessions: sessionStore,
		clinic:   svc,
		audit:    auditor,
		logger:   logger,
	}
}

var phonePattern = regexp.MustCompile(`^[0-9+\-\s()]{8,20}$`)

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, http.StatusMethodNotAllowed, "Only POST method allowed")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON data")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Password = strings.TrimSpace(req.Password)
	if req.Email == "" || req.Password == "" {
		fail(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if !validEmail(req.Email) {
		fail(w, http.StatusBadRequest, "Invalid email format")
		return
	}

	ctx := r.Context()
	creds, err := h.ids.GetCredentials(ctx, req.Email)
	if err != nil {
		if errors.Is(err, clinic.ErrIdentityNotFound) {
			h.recordAudit(ctx, audit.EventLoginFailed, "", map[string]any{"email": req.Email, "reason": "unknown email"})
			fail(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.logger.Error("credentials lookup failed", "err", err)
		fail(w, http.StatusInternalServerError, "Database error occurred")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(req.Password)) != nil {
		h.recordAudit(ctx, audit.EventLoginFailed, "", map[string]any{"email": req.Email, "reason": "bad password"})
		fail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	var (
		sess sessions.Session
		data map[string]any
	)
	switch creds.Role {
	case model.RoleDoctor:
		doc, err := h.ids.DoctorByEmail(ctx, req.Email)
		if err != nil {
			if errors.Is(err, clinic.ErrIdentityNotFound) {
				fail(w, http.StatusUnauthorized, "Invalid email or password")
				return
			}
			h.logger.Error("doctor lookup failed", "err", err)
			fail(w, http.StatusInternalServerError, "Database error occurred")
			return
		}
		sess = sessions.Session{
			UserID: doc.ID,
			Role:   model.RoleDoctor,
			Email:  doc.Email,
			Name:   doc.FirstName + " " + doc.LastName,
		}
		data = map[string]any{
			"user_id":        doc.ID,
			"first_name":     doc.FirstName,
			"last_name":      doc.LastName,
			"email":          doc.Email,
			"role":           string(model.RoleDoctor),
			"specialization": doc.Specialization,
			"license_number": doc.LicenseNumber,
			"redirect_url":   "../doctor_dashboard/doctor.html",
		}
	default:
		pat, err := h.ids.PatientByEmail(ctx, req.Email)
		if err != nil {
			if errors.Is(err, clinic.ErrIdentityNotFound) {
				fail(w, http.StatusUnauthorized, "Invalid email or password")
				return
			}
			h.logger.Error("patient lookup failed", "err", err)
			fail(w, http.StatusInternalServerError, "Database error occurred")
			return
		}
		sess = sessions.Session{
			UserID: pat.ID,
			Role:   model.RolePatient,
			Email:  pat.Email,
			Name:   pat.FirstName + " " + pat.LastName,
		}
		data = map[string]any{
			"user_id":       pat.ID,
			"first_name":    pat.FirstName,
			"last_name":     pat.LastName,
			"email":         pat.Email,
			"role":          string(model.RolePatient),
			"phone":         pat.Phone,
			"date_of_birth": pat.DateOfBirth,
			"gender":        pat.Gender,
			"address":       pat.Address,
			"redirect_url":  "../patient_dashboard/patient.html",
		}
	}

	sess.LoginTime = time.Now().UTC()
	token, err := h.sessions.Create(ctx, sess)
	if err != nil {
		h.logger.Error("session create failed", "err", err)
		fail(w, http.StatusInternalServerError, "An error occurred during login")
		return
	}
	setSessionCookie(w, token, h.sessions.TTL())

	h.recordAudit(ctx, audit.EventLoginSucceeded, strconv.FormatInt(sess.UserID, 10), map[string]any{
		"email": sess.Email,
		"role":  string(sess.Role),
	})
	ok(w, http.StatusOK, "Login successful", data)
}

type registerPatientRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      string `json:"gender"`
	Address     string `json:"address"`
	Password    string `json:"password"`
}

func (h *AuthHandler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, http.StatusMethodNotAllowed, "Only POST method allowed")
		return
	}

	var req registerPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON data")
		return
	}

	for _, f := range []struct{ name, value string }{
		{"FirstName", req.FirstName},
		{"LastName", req.LastName},
		{"Email", req.Email},
		{"Phone", req.Phone},
		{"DateOfBirth", req.DateOfBirth},
		{"Gender", req.Gender},
		{"Password", req.Password},
	} {
		if strings.TrimSpace(f.value) == "" {
			fail(w, http.StatusBadRequest, f.name+" is required")
			return
		}
	}
	if !validEmail(req.Email) {
		fail(w, http.StatusBadRequest, "Invalid email format")
		return
	}
	if len(req.Password) < 6 {
		fail(w, http.StatusBadRequest, "Password must be at least 6 characters long")
		return
	}
	if !phonePattern.MatchString(req.Phone) {
		fail(w, http.StatusBadRequest, "Invalid phone number format")
		return
	}
	dob, err := time.ParseInLocation(model.DateLayout, req.DateOfBirth, time.UTC)
	if err != nil {
		fail(w, http.StatusBadRequest, "Invalid date of birth format")
		return
	}
	if yearsSince(dob, time.Now().UTC()) < 13 {
		fail(w, http.StatusBadRequest, "Patients must be at least 13 years old")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		fail(w, http.StatusInternalServerError, "An error occurred during registration")
		return
	}

	ctx := r.Context()
	id, err := h.ids.CreatePatient(ctx, model.PatientProfile{
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		DateOfBirth: dob.Format(model.DateLayout),
		Gender:      strings.TrimSpace(req.Gender),
		Address:     strings.TrimSpace(req.Address),
	}, string(hash))
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			h.recordAudit(ctx, audit.EventRegistrationRejected, "", map[string]any{"email": req.Email, "reason": "duplicate email"})
			fail(w, http.StatusConflict, "Email already registered")
			return
		}
		h.logger.Error("patient registration failed", "err", err)
		fail(w, http.StatusInternalServerError, "An error occurred during registration")
		return
	}

	h.recordAudit(ctx, audit.EventPatientRegistered, strconv.FormatInt(id, 10), map[string]any{"email": req.Email})
	ok(w, http.StatusCreated, "Registration successful", map[string]any{
		"patient_id": id,
		"email":      req.Email,
	})
}

type registerDoctorRequest struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"license_number"`
	Password       string `json:"password"`
}

func (h *AuthHandler) RegisterDoctor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, http.StatusMethodNotAllowed, "Only POST method allowed")
		return
	}

	var req registerDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON data")
		return
	}

	for _, f := range []struct{ name, value string }{
		{"First name", req.FirstName},
		{"Last name", req.LastName},
		{"Email", req.Email},
		{"Phone", req.Phone},
		{"Specialization", req.Specialization},
		{"License number", req.LicenseNumber},
		{"Password", req.Password},
	} {
		if strings.TrimSpace(f.value) == "" {
			fail(w, http.StatusBadRequest, f.name+" is required")
			return
		}
	}
	if !validEmail(req.Email) {
		fail(w, http.StatusBadRequest, "Invalid email format")
		return
	}
	if len(req.Password) < 6 {
		fail(w, http.StatusBadRequest, "Password must be at least 6 characters long")
		return
	}
	if !phonePattern.MatchString(req.Phone) {
		fail(w, http.StatusBadRequest, "Invalid phone number format")
		return
	}
	if len(strings.TrimSpace(req.LicenseNumber)) < 5 {
		fail(w, http.StatusBadRequest, "License number must be at least 5 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		fail(w, http.StatusInternalServerError, "An error occurred during registration")
		return
	}

	ctx := r.Context()
	doc := model.DoctorProfile{
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		Specialization: strings.TrimSpace(req.Specialization),
		LicenseNumber:  strings.TrimSpace(req.LicenseNumber),
	}
	id, err := h.ids.CreateDoctor(ctx, doc, string(hash))
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrEmailTaken):
			h.recordAudit(ctx, audit.EventRegistrationRejected, "", map[string]any{"email": req.Email, "reason": "duplicate email"})
			fail(w, http.StatusConflict, "Email already registered")
		case errors.Is(err, storage.ErrLicenseTaken):
			h.recordAudit(ctx, audit.EventRegistrationRejected, "", map[string]any{"email": req.Email, "reason": "duplicate license"})
			fail(w, http.StatusConflict, "License number already registered")
		default:
			h.logger.Error("doctor registration failed", "err", err)
			fail(w, http.StatusInternalServerError, "An error occurred during registration")
		}
		return
	}

	h.recordAudit(ctx, audit.EventDoctorRegistered, strconv.FormatInt(id, 10), map[string]any{"email": req.Email})
	ok(w, http.StatusCreated, "Doctor registered successfully", map[string]any{
		"doctor_id": id,
		"email":     doc.Email,
		"full_name": doc.FirstName + " " + doc.LastName,
	})
}

// Session multiplexes the session endpoint: ?action=check (default),
// ?action=appointments, ?action=logout.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, http.StatusMethodNotAllowed, "Only GET method allowed")
		return
	}

	action := r.URL.Query().Get("action")
	if action == "" {
		action = "check"
	}
	switch action {
	case "check":
		h.sessionCheck(w, r)
	case "appointments":
		h.sessionAppointments(w, r)
	case "logout":
		h.sessionLogout(w, r)
	default:
		fail(w, http.StatusBadRequest, "Invalid action")
	}
}

func (h *AuthHandler) sessionCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, token, err := currentSession(r, h.sessions)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			fail(w, http.StatusUnauthorized, "Not logged in")
			return
		}
		h.logger.Error("session lookup failed", "err", err)
		fail(w, http.StatusInternalServerError, "Database error occurred")
		return
	}

	// Re-read the profile so the check returns fresh data, not a snapshot
	// from login time.
	var data map[string]any
	switch sess.Role {
	case model.RoleDoctor:
		doc, err := h.ids.DoctorByID(ctx, sess.UserID)
		if err != nil {
			h.sessionCheckProfileErr(w, r, token, err)
			return
		}
		data = map[string]any{
			"id":             doc.ID,
			"first_name":     doc.FirstName,
			"last_name":      doc.LastName,
			"email":          doc.Email,
			"phone":          doc.Phone,
			"specialization": doc.Specialization,
			"license_number": doc.LicenseNumber,
			"role":           string(model.RoleDoctor),
		}
	default:
		pat, err := h.ids.PatientByID(ctx, sess.UserID)
		if err != nil {
			h.sessionCheckProfileErr(w, r, token, err)
			return
		}
		data = map[string]any{
			"id":            pat.ID,
			"first_name":    pat.FirstName,
			"last_name":     pat.LastName,
			"email":         pat.Email,
			"phone":         pat.Phone,
			"date_of_birth": pat.DateOfBirth,
			"gender":        pat.Gender,
			"address":       pat.Address,
			"role":          string(model.RolePatient),
		}
	}
	data["login_time"] = sess.LoginTime.Unix()
	ok(w, http.StatusOK, "Session valid", data)
}

// sessionCheckProfileErr handles a failed profile re-read during a session
// check. A vanished profile invalidates the session.
func (h *AuthHandler) sessionCheckProfileErr(w http.ResponseWriter, r *http.Request, token string, err error) {
	if errors.Is(err, clinic.ErrIdentityNotFound) {
		_ = h.sessions.Delete(r.Context(), token)
		clearSessionCookie(w)
		fail(w, http.StatusUnauthorized, "User not found")
		return
	}
	h.logger.Error("profile lookup failed", "err", err)
	fail(w, http.StatusInternalServerError, "Database error occurred")
}

func (h *AuthHandler) sessionAppointments(w http.ResponseWriter, r *http.Request) {
	sess, _, err := currentSession(r, h.sessions)
	if err != nil {
		fail(w, http.StatusUnauthorized, "Not logged in")
		return
	}

	ctx := r.Context()
	var list []appointmentJSON
	switch sess.Role {
	case model.RoleDoctor:
		appts, err := h.clinic.ListForDoctor(ctx, sess.UserID)
		if err != nil {
			fail(w, http.StatusInternalServerError, "Failed to retrieve appointments")
			return
		}
		list = make([]appointmentJSON, 0, len(appts))
		for _, a := range appts {
			list = append(list, doctorViewJSON(a))
		}
	default:
		appts, err := h.clinic.ListForPatient(ctx, sess.UserID)
		if err != nil {
			fail(w, http.StatusInternalServerError, "Failed to retrieve appointments")
			return
		}
		list = make([]appointmentJSON, 0, len(appts))
		for _, a := range appts {
			list = append(list, patientViewJSON(a))
		}
	}
	ok(w, http.StatusOK, "Appointments retrieved", map[string]any{"appointments": list})
}

func (h *AuthHandler) sessionLogout(w http.ResponseWriter, r *http.Request) {
	sess, token, err := currentSession(r, h.sessions)
	if err == nil {
		_ = h.sessions.Delete(r.Context(), token)
		h.recordAudit(r.Context(), audit.EventLogout, strconv.FormatInt(sess.UserID, 10), map[string]any{"email": sess.Email})
	}
	clearSessionCookie(w)
	ok(w, http.StatusOK, "Logged out successfully", nil)
}

func (h *AuthHandler) recordAudit(ctx context.Context, eventType, actorID string, metadata map[string]any) {
	if h.audit == nil {
		return
	}
	if err := h.audit.Record(ctx, eventType, actorID, metadata); err != nil {
		h.logger.Warn("audit record failed", "event_type", eventType, "err", err)
	}
}

// yearsSince computes whole years between dob and now, counting a year only
// once the birthday has passed.
func yearsSince(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	anniversary := dob.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}
