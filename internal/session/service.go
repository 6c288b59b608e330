// Package session contains handlers, services and models used to identify patients and doctors.
//
// Login is an email lookup; there is no credential verification. The resulting session is signed
// and stored in an http-only cookie, and trusted on every request without further checks.
package session

import (
	"clinic-booking/internal/apierrors"
	"clinic-booking/internal/configs"
	"clinic-booking/internal/database"
	"context"
	"fmt"
	"strings"
)

// Authenticator determines the methods available to users get authenticated.
type Authenticator interface {

	// Login finds the account with the given email and role and returns it with the signed session token.
	Login(ctx context.Context, role Role, credentials Credentials) (*LoginResponse, string, error)
}

// Authorizer determines the methods used to identify the actor of a request.
type Authorizer interface {

	// ValidateSession validates the given session token, returning the session it carries.
	ValidateSession(ctx context.Context, token string) (Session, error)

	// GetAuthenticatedSession gets the session associated to context.
	GetAuthenticatedSession(ctx context.Context) (Session, error)
}

// Refresher rebuilds sessions from the store.
type Refresher interface {

	// Refresh reloads the given session from the store, returning it with a new token.
	Refresh(ctx context.Context, s Session) (Session, string, error)
}

type Service interface {
	Authenticator
	Authorizer
	Refresher
}

type defaultService struct {
	repository Repository
	config     configs.Config
}

// NewService creates a new session service.
func NewService(config configs.Config, dbConn database.Connection) Service {
	return &defaultService{
		config:     config,
		repository: newRepository(dbConn),
	}
}

func (d defaultService) Login(ctx context.Context, role Role, credentials Credentials) (*LoginResponse, string, error) {
	if err := credentials.Validate(); err != nil {
		return nil, "", err
	}
	email := strings.TrimSpace(credentials.Email)
	user, err := d.repository.FindUserByEmail(ctx, email, role)
	if err != nil {
		return nil, "", fmt.Errorf("an unexpected error occurred: %w", err)
	}
	var s Session
	response := &LoginResponse{}
	switch role {
	case PatientRole:
		if user == nil {
			return nil, "", apierrors.NotFound(string(ErrPatientAccountNotFound))
		}
		patient, err := d.repository.FindPatientByUserID(ctx, user.UID)
		if err != nil {
			return nil, "", fmt.Errorf("an unexpected error occurred: %w", err)
		}
		if patient == nil {
			return nil, "", apierrors.NotFound(string(ErrPatientProfileNotFound))
		}
		response.Patient = patient
		s = PatientSession{UID: user.UID, Email: user.Email, Name: user.Name, PatientID: patient.PatientID}
	case DoctorRole:
		if user == nil {
			return nil, "", apierrors.NotFound(string(ErrDoctorAccountNotFound))
		}
		doctor, err := d.repository.FindDoctorByUserID(ctx, user.UID)
		if err != nil {
			return nil, "", fmt.Errorf("an unexpected error occurred: %w", err)
		}
		if doctor == nil {
			return nil, "", apierrors.NotFound(string(ErrDoctorProfileNotFound))
		}
		response.Doctor = doctor
		s = DoctorSession{UID: user.UID, Email: user.Email, Name: user.Name, DoctorID: doctor.DoctorID}
	default:
		return nil, "", apierrors.NewValidationError("role", "unknown")
	}
	if err = d.repository.TouchLastLogin(ctx, user.UID); err != nil {
		return nil, "", fmt.Errorf("an unexpected error occurred: %w", err)
	}
	response.User = *user
	token, err := Encode(d.config.PrivateKey(), s)
	if err != nil {
		return nil, "", fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return response, token, nil
}

func (d defaultService) ValidateSession(ctx context.Context, token string) (Session, error) {
	s, err := Decode(token, d.config.PrivateKey().PublicKey)
	if err != nil {
		return nil, NewUnauthorizedError()
	}
	return s, nil
}

func (d defaultService) GetAuthenticatedSession(ctx context.Context) (Session, error) {
	s, isSession := ctx.Value(SessionContextKey).(Session)
	if !isSession {
		return nil, NewUnauthorizedError()
	}
	return s, nil
}

func (d defaultService) Refresh(ctx context.Context, s Session) (Session, string, error) {
	var refreshed Session
	switch v := s.(type) {
	case PatientSession:
		found, err := d.repository.FindPatientSession(ctx, v.PatientID)
		if err != nil {
			return nil, "", fmt.Errorf("an unexpected error occurred: %w", err)
		}
		if found == nil {
			return nil, "", NewUnauthorizedError()
		}
		refreshed = *found
	case DoctorSession:
		found, err := d.repository.FindDoctorSession(ctx, v.DoctorID)
		if err != nil {
			return nil, "", fmt.Errorf("an unexpected error occurred: %w", err)
		}
		if found == nil {
			return nil, "", NewUnauthorizedError()
		}
		refreshed = *found
	default:
		return nil, "", NewUnauthorizedError()
	}
	token, err := Encode(d.config.PrivateKey(), refreshed)
	if err != nil {
		return nil, "", fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return refreshed, token, nil
}
