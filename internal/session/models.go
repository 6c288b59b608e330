package session

import (
	"clinic-booking/internal/apierrors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	PatientRole Role = "patient"
	DoctorRole  Role = "doctor"
)

// Session is the authenticated actor. It is either a PatientSession or a DoctorSession.
type Session interface {
	UserID() uuid.UUID
	Role() Role
	DisplayName() string
	isSession()
}

// PatientSession is the session held by a patient.
type PatientSession struct {
	UID       uuid.UUID `json:"uid"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	PatientID uuid.UUID `json:"pid"`
}

func (p PatientSession) UserID() uuid.UUID   { return p.UID }
func (p PatientSession) Role() Role          { return PatientRole }
func (p PatientSession) DisplayName() string { return p.Name }
func (p PatientSession) isSession()          {}

// DoctorSession is the session held by a doctor.
type DoctorSession struct {
	UID      uuid.UUID `json:"uid"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	DoctorID uuid.UUID `json:"did"`
}

func (d DoctorSession) UserID() uuid.UUID   { return d.UID }
func (d DoctorSession) Role() Role          { return DoctorRole }
func (d DoctorSession) DisplayName() string { return d.Name }
func (d DoctorSession) isSession()          {}

// View is the JSON representation of a session.
type View struct {
	UID       uuid.UUID  `json:"uid"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      Role       `json:"role"`
	PatientID *uuid.UUID `json:"pid,omitempty"`
	DoctorID  *uuid.UUID `json:"did,omitempty"`
}

// NewView creates the JSON representation of the given session.
func NewView(s Session) View {
	switch v := s.(type) {
	case PatientSession:
		return View{UID: v.UID, Email: v.Email, Name: v.Name, Role: PatientRole, PatientID: &v.PatientID}
	case DoctorSession:
		return View{UID: v.UID, Email: v.Email, Name: v.Name, Role: DoctorRole, DoctorID: &v.DoctorID}
	}
	return View{}
}

type Credentials struct {
	Email string `json:"email,omitempty"`
}

// Validate validates if the credentials given are valid.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return apierrors.NewValidationError("email", "required")
	}
	return nil
}

type User struct {
	UID             uuid.UUID  `json:"uid" dbfield:"uid"`
	Email           string     `json:"email" dbfield:"email"`
	Phone           *string    `json:"phone" dbfield:"phone"`
	Role            Role       `json:"role" dbfield:"role"`
	Name            string     `json:"name" dbfield:"name"`
	ProfileImageURL *string    `json:"profile_image_url" dbfield:"profile_image_url"`
	IsActive        bool       `json:"is_active" dbfield:"is_active"`
	LastLogin       *time.Time `json:"last_login" dbfield:"last_login"`
}

type Patient struct {
	PatientID   uuid.UUID  `json:"pid" dbfield:"pid"`
	UID         uuid.UUID  `json:"uid" dbfield:"uid"`
	DateOfBirth *time.Time `json:"date_of_birth" dbfield:"date_of_birth"`
	Gender      *string    `json:"gender" dbfield:"gender"`
	BloodGroup  *string    `json:"blood_group" dbfield:"blood_group"`
}

type Doctor struct {
	DoctorID       uuid.UUID `json:"did" dbfield:"did"`
	UID            uuid.UUID `json:"uid" dbfield:"uid"`
	Specialization string    `json:"specialization" dbfield:"specialization"`
	Qualification  string    `json:"qualification" dbfield:"qualification"`
	ClinicName     *string   `json:"clinic_name" dbfield:"clinic_name"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	User    User     `json:"user"`
	Patient *Patient `json:"patient,omitempty"`
	Doctor  *Doctor  `json:"doctor,omitempty"`
}
