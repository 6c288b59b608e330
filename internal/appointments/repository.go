package appointments

import (
	"clinic-booking/internal/database"
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	appointmentColumns = "aid, pid, did, mode, status, to_char(scheduled_date, 'YYYY-MM-DD') AS scheduled_date," +
		" to_char(scheduled_time, 'HH24:MI') AS scheduled_time, start_time, end_time, duration_minutes, token_number," +
		" meeting_id, meeting_link, meeting_password, chief_complaint, symptoms, doctor_notes, cancellation_reason," +
		" cancelled_by, cancelled_at, created_at, updated_at"

	findAppointmentQuery          = "SELECT " + appointmentColumns + " FROM tb_appointment WHERE aid = $1"
	findAppointmentForUpdateQuery = findAppointmentQuery + " FOR UPDATE"
	insertAppointmentQuery        = "INSERT INTO tb_appointment (pid, did, mode, status, scheduled_date, scheduled_time, token_number, chief_complaint, symptoms)" +
		" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING " + appointmentColumns
	updateAppointmentQuery = "UPDATE tb_appointment SET status = $4, scheduled_date = $5, scheduled_time = $6, start_time = $7, end_time = $8," +
		" duration_minutes = $9, token_number = $10, meeting_id = $11, meeting_link = $12, meeting_password = $13, doctor_notes = $14," +
		" cancellation_reason = $15, cancelled_by = $16, cancelled_at = $17, updated_at = now()" +
		" WHERE aid = $1 AND did = $2 AND status = $3 RETURNING " + appointmentColumns
	listPatientAppointmentsQuery = "SELECT " + appointmentColumns + " FROM tb_appointment" +
		" WHERE pid = $1 AND status <> 'completed' ORDER BY scheduled_date, scheduled_time"
	listDoctorAppointmentsQuery = "SELECT " + appointmentColumns + " FROM tb_appointment" +
		" WHERE did = $1 AND status <> 'completed' AND ($2 = '' OR status = $2) AND ($3::date IS NULL OR scheduled_date = $3::date)" +
		" ORDER BY scheduled_date, scheduled_time"
)

// Repository provides access to appointment data.
type Repository interface {
	TokenAllocator

	// Find finds an appointment by its ID.
	Find(ctx context.Context, aid uuid.UUID) (*Appointment, error)

	// FindForUpdate finds an appointment by its ID, locking the row until the transaction ends.
	FindForUpdate(ctx context.Context, aid uuid.UUID) (*Appointment, error)

	// Insert inserts a new appointment, returning it as stored.
	Insert(ctx context.Context, appointment Appointment) (*Appointment, error)

	// Update stores the mutable fields of the given appointment if its stored status is still the
	// expected one. It returns nil when no row matched.
	Update(ctx context.Context, expected Status, appointment Appointment) (*Appointment, error)

	// ListByPatient lists the patient's open appointments ordered by date and time.
	ListByPatient(ctx context.Context, pid uuid.UUID) ([]*Appointment, error)

	// ListByDoctor lists the doctor's open appointments ordered by date and time.
	ListByDoctor(ctx context.Context, did uuid.UUID, filter DoctorFilter) ([]*Appointment, error)

	// InTransaction runs fn with a repository bound to a single transaction.
	InTransaction(ctx context.Context, fn func(repository Repository) error) error
}

type defaultRepository struct {
	dbConn  database.Connection
	querier database.Querier
}

func newRepository(dbConn database.Connection) Repository {
	return &defaultRepository{dbConn: dbConn, querier: dbConn.DB()}
}

func (d defaultRepository) InTransaction(ctx context.Context, fn func(repository Repository) error) error {
	return database.WithTransaction(ctx, d.dbConn, func(tx *sql.Tx) error {
		return fn(&defaultRepository{dbConn: d.dbConn, querier: tx})
	})
}

func (d defaultRepository) findOne(ctx context.Context, query string, params ...interface{}) (*Appointment, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.querier.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	if rows.Next() {
		appointment := new(Appointment)
		if err = database.TransformRow(rows, appointment); err != nil {
			return nil, err
		}
		return appointment, nil
	}
	return nil, rows.Err()
}

func (d defaultRepository) findMany(ctx context.Context, query string, params ...interface{}) ([]*Appointment, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.querier.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	appointments := make([]*Appointment, 0)
	for rows.Next() {
		appointment := new(Appointment)
		if err = database.TransformRow(rows, appointment); err != nil {
			return nil, err
		}
		appointments = append(appointments, appointment)
	}
	return appointments, rows.Err()
}

func (d defaultRepository) Find(ctx context.Context, aid uuid.UUID) (*Appointment, error) {
	return d.findOne(ctx, findAppointmentQuery, aid)
}

func (d defaultRepository) FindForUpdate(ctx context.Context, aid uuid.UUID) (*Appointment, error) {
	return d.findOne(ctx, findAppointmentForUpdateQuery, aid)
}

func (d defaultRepository) Insert(ctx context.Context, appointment Appointment) (*Appointment, error) {
	params := make([]interface{}, 9)
	params[0] = appointment.PatientID
	params[1] = appointment.DoctorID
	params[2] = string(appointment.Mode)
	params[3] = string(appointment.Status)
	params[4] = appointment.ScheduledDate
	params[5] = appointment.ScheduledTime
	params[6] = appointment.TokenNumber
	params[7] = appointment.ChiefComplaint
	params[8] = pq.Array([]string(appointment.Symptoms))
	return d.findOne(ctx, insertAppointmentQuery, params...)
}

func (d defaultRepository) Update(ctx context.Context, expected Status, appointment Appointment) (*Appointment, error) {
	params := make([]interface{}, 17)
	params[0] = appointment.AppointmentID
	params[1] = appointment.DoctorID
	params[2] = string(expected)
	params[3] = string(appointment.Status)
	params[4] = appointment.ScheduledDate
	params[5] = appointment.ScheduledTime
	params[6] = appointment.StartTime
	params[7] = appointment.EndTime
	params[8] = appointment.DurationMinutes
	params[9] = appointment.TokenNumber
	params[10] = appointment.MeetingID
	params[11] = appointment.MeetingLink
	params[12] = appointment.MeetingPassword
	params[13] = appointment.DoctorNotes
	params[14] = appointment.CancellationReason
	params[15] = appointment.CancelledBy
	params[16] = appointment.CancelledAt
	return d.findOne(ctx, updateAppointmentQuery, params...)
}

func (d defaultRepository) ListByPatient(ctx context.Context, pid uuid.UUID) ([]*Appointment, error) {
	return d.findMany(ctx, listPatientAppointmentsQuery, pid)
}

func (d defaultRepository) ListByDoctor(ctx context.Context, did uuid.UUID, filter DoctorFilter) ([]*Appointment, error) {
	var date interface{}
	if filter.Date != "" {
		date = filter.Date
	}
	return d.findMany(ctx, listDoctorAppointmentsQuery, did, string(filter.Status), date)
}
