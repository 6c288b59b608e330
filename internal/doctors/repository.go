package doctors

import (
	"clinic-booking/internal/database"
	"context"

	"github.com/google/uuid"
)

const (
	doctorColumns = "d.did, d.uid, u.name, u.email, u.profile_image_url, d.specialization, d.qualification, d.years_of_experience, d.consultation_fee, d.clinic_name, d.city, d.bio"

	listActiveDoctorsQuery = "SELECT " + doctorColumns + " FROM tb_doctor d JOIN tb_user u ON u.uid = d.uid" +
		" WHERE u.is_active AND ($1 = '' OR d.specialization ILIKE $1) AND ($2 = '' OR d.city ILIKE $2) ORDER BY u.name"
	findActiveDoctorQuery = "SELECT " + doctorColumns + " FROM tb_doctor d JOIN tb_user u ON u.uid = d.uid WHERE d.did = $1 AND u.is_active"
)

// Repository provides access to the doctor directory.
type Repository interface {

	// ListActive lists the active doctors matching the given filter.
	ListActive(ctx context.Context, filter Filter) ([]*Doctor, error)

	// FindActive finds an active doctor by its ID.
	FindActive(ctx context.Context, did uuid.UUID) (*Doctor, error)
}

type defaultRepository struct {
	dbConn database.Connection
}

func newRepository(dbConn database.Connection) Repository {
	return &defaultRepository{dbConn: dbConn}
}

func (d defaultRepository) ListActive(ctx context.Context, filter Filter) ([]*Doctor, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, listActiveDoctorsQuery, filter.Specialization, filter.City)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	doctors := make([]*Doctor, 0)
	for rows.Next() {
		doctor := new(Doctor)
		if err = database.TransformRow(rows, doctor); err != nil {
			return nil, err
		}
		doctors = append(doctors, doctor)
	}
	return doctors, rows.Err()
}

func (d defaultRepository) FindActive(ctx context.Context, did uuid.UUID) (*Doctor, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, findActiveDoctorQuery, did)
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
