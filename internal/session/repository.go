package session

import (
	"clinic-booking/internal/database"
	"context"

	"github.com/google/uuid"
)

const (
	findUserByEmailQuery     = "SELECT uid, email, phone, role, name, profile_image_url, is_active, last_login FROM tb_user WHERE email = $1 AND role = $2 AND is_active"
	findPatientByUserIDQuery = "SELECT pid, uid, date_of_birth, gender, blood_group FROM tb_patient WHERE uid = $1"
	findDoctorByUserIDQuery  = "SELECT did, uid, specialization, qualification, clinic_name FROM tb_doctor WHERE uid = $1"
	updateLastLoginQuery     = "UPDATE tb_user SET last_login = now() WHERE uid = $1"
	findPatientSessionQuery  = "SELECT u.uid, u.email, u.name, p.pid FROM tb_patient p JOIN tb_user u ON u.uid = p.uid WHERE p.pid = $1 AND u.is_active"
	findDoctorSessionQuery   = "SELECT u.uid, u.email, u.name, d.did FROM tb_doctor d JOIN tb_user u ON u.uid = d.uid WHERE d.did = $1 AND u.is_active"
)

// Repository provides access to session data.
type Repository interface {

	// FindUserByEmail finds an active user by its email and role.
	FindUserByEmail(ctx context.Context, email string, role Role) (*User, error)

	// FindPatientByUserID finds a patient profile by its user ID.
	FindPatientByUserID(ctx context.Context, uid uuid.UUID) (*Patient, error)

	// FindDoctorByUserID finds a doctor profile by its user ID.
	FindDoctorByUserID(ctx context.Context, uid uuid.UUID) (*Doctor, error)

	// TouchLastLogin sets the user's last login to now.
	TouchLastLogin(ctx context.Context, uid uuid.UUID) error

	// FindPatientSession rebuilds a patient session from the store.
	FindPatientSession(ctx context.Context, pid uuid.UUID) (*PatientSession, error)

	// FindDoctorSession rebuilds a doctor session from the store.
	FindDoctorSession(ctx context.Context, did uuid.UUID) (*DoctorSession, error)
}

type defaultRepository struct {
	dbConn database.Connection
}

func newRepository(dbConn database.Connection) Repository {
	return &defaultRepository{dbConn: dbConn}
}

func (d defaultRepository) FindUserByEmail(ctx context.Context, email string, role Role) (*User, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, findUserByEmailQuery, email, string(role))
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	if rows.Next() {
		user := new(User)
		if err = database.TransformRow(rows, user); err != nil {
			return nil, err
		}
		return user, nil
	}
	return nil, rows.Err()
}

func (d defaultRepository) FindPatientByUserID(ctx context.Context, uid uuid.UUID) (*Patient, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, findPatientByUserIDQuery, uid)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	if rows.Next() {
		patient := new(Patient)
		if err = database.TransformRow(rows, patient); err != nil {
			return nil, err
		}
		return patient, nil
	}
	return nil, rows.Err()
}

func (d defaultRepository) FindDoctorByUserID(ctx context.Context, uid uuid.UUID) (*Doctor, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, findDoctorByUserIDQuery, uid)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	if rows.Next() {
		doctor := new(Doctor)
		if err = database.TransformRow(rows, doctor); err != nil {
			return nil, err
		}
		return doctor, nil
	}
	return nil, rows.Err()
}

func (d defaultRepository) TouchLastLogin(ctx context.Context, uid uuid.UUID) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	_, err := d.dbConn.DB().ExecContext(ctx, updateLastLoginQuery, uid)
	return err
}

func (d defaultRepository) FindPatientSession(ctx context.Context, pid uuid.UUID) (*PatientSession, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, findPatientSessionQuery, pid)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	if rows.Next() {
		s := new(PatientSession)
		if err = rows.Scan(&s.UID, &s.Email, &s.Name, &s.PatientID); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, rows.Err()
}

func (d defaultRepository) FindDoctorSession(ctx context.Context, did uuid.UUID) (*DoctorSession, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, findDoctorSessionQuery, did)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	if rows.Next() {
		s := new(DoctorSession)
		if err = rows.Scan(&s.UID, &s.Email, &s.Name, &s.DoctorID); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, rows.Err()
}
