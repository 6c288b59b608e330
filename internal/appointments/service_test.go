package appointments

import (
	"bytes"
	"clinic-booking/internal/apierrors"
	"clinic-booking/internal/configs"
	"clinic-booking/internal/doctors"
	"clinic-booking/internal/feed"
	"clinic-booking/internal/session"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryRepository keeps appointments and token counters in memory. Transactions stage their
// writes on a copy that is kept only if fn succeeds. Inserts fail with insertErr when it is set.
type memoryRepository struct {
	mu           *sync.Mutex
	appointments map[uuid.UUID]Appointment
	counters     map[string]int32
	insertErr    error
	inTx         bool
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		mu:           new(sync.Mutex),
		appointments: make(map[uuid.UUID]Appointment),
		counters:     make(map[string]int32),
	}
}

func (m *memoryRepository) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memoryRepository) put(a Appointment) {
	defer m.lock()()
	m.appointments[a.AppointmentID] = a
}

func (m *memoryRepository) get(aid uuid.UUID) Appointment {
	defer m.lock()()
	return m.appointments[aid]
}

func (m *memoryRepository) NextToken(ctx context.Context, did uuid.UUID, date string) (int32, error) {
	defer m.lock()()
	key := did.String() + "/" + date
	m.counters[key]++
	return m.counters[key], nil
}

func (m *memoryRepository) Find(ctx context.Context, aid uuid.UUID) (*Appointment, error) {
	defer m.lock()()
	a, found := m.appointments[aid]
	if !found {
		return nil, nil
	}
	return &a, nil
}

func (m *memoryRepository) FindForUpdate(ctx context.Context, aid uuid.UUID) (*Appointment, error) {
	return m.Find(ctx, aid)
}

func (m *memoryRepository) Insert(ctx context.Context, appointment Appointment) (*Appointment, error) {
	defer m.lock()()
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	appointment.AppointmentID = uuid.New()
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = appointment.CreatedAt
	m.appointments[appointment.AppointmentID] = appointment
	return &appointment, nil
}

func (m *memoryRepository) Update(ctx context.Context, expected Status, appointment Appointment) (*Appointment, error) {
	defer m.lock()()
	stored, found := m.appointments[appointment.AppointmentID]
	if !found || stored.Status != expected || stored.DoctorID != appointment.DoctorID {
		return nil, nil
	}
	appointment.UpdatedAt = time.Now()
	m.appointments[appointment.AppointmentID] = appointment
	return &appointment, nil
}

func (m *memoryRepository) ListByPatient(ctx context.Context, pid uuid.UUID) ([]*Appointment, error) {
	defer m.lock()()
	listed := make([]*Appointment, 0)
	for _, a := range m.appointments {
		a := a
		if a.PatientID == pid && a.Status != StatusCompleted {
			listed = append(listed, &a)
		}
	}
	return listed, nil
}

func (m *memoryRepository) ListByDoctor(ctx context.Context, did uuid.UUID, filter DoctorFilter) ([]*Appointment, error) {
	defer m.lock()()
	listed := make([]*Appointment, 0)
	for _, a := range m.appointments {
		a := a
		if a.DoctorID != did || a.Status == StatusCompleted {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Date != "" && a.ScheduledDate != filter.Date {
			continue
		}
		listed = append(listed, &a)
	}
	return listed, nil
}

func (m *memoryRepository) InTransaction(ctx context.Context, fn func(repository Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryRepository{
		mu:           m.mu,
		appointments: make(map[uuid.UUID]Appointment, len(m.appointments)),
		counters:     make(map[string]int32, len(m.counters)),
		insertErr:    m.insertErr,
		inTx:         true,
	}
	for k, v := range m.appointments {
		tx.appointments[k] = v
	}
	for k, v := range m.counters {
		tx.counters[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.appointments, m.counters = tx.appointments, tx.counters
	return nil
}

type mockDoctors struct {
	doctors map[uuid.UUID]*doctors.Doctor
}

func (m mockDoctors) List(ctx context.Context, filter doctors.Filter) ([]*doctors.Doctor, error) {
	listed := make([]*doctors.Doctor, 0, len(m.doctors))
	for _, d := range m.doctors {
		listed = append(listed, d)
	}
	return listed, nil
}

func (m mockDoctors) Get(ctx context.Context, did uuid.UUID) (*doctors.Doctor, error) {
	d, found := m.doctors[did]
	if !found {
		return nil, apierrors.NotFound(string(doctors.ErrDoctorNotFound))
	}
	return d, nil
}

type published struct {
	event    feed.Event
	channels []string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, event feed.Event, channels ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{event: event, channels: channels})
	return r.err
}

func (r *recordingPublisher) last() published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	service    Service
	repository *memoryRepository
	publisher  *recordingPublisher
	logs       *bytes.Buffer
	now        *time.Time
	doctor     session.DoctorSession
	otherDoc   session.DoctorSession
	patient    session.PatientSession
	other      session.PatientSession
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	f := &fixture{
		repository: newMemoryRepository(),
		publisher:  &recordingPublisher{},
		logs:       new(bytes.Buffer),
		now:        &now,
		doctor:     session.DoctorSession{UID: uuid.New(), Name: "Dr. Rao", DoctorID: uuid.New()},
		otherDoc:   session.DoctorSession{UID: uuid.New(), Name: "Dr. Sen", DoctorID: uuid.New()},
		patient:    session.PatientSession{UID: uuid.New(), Name: "Asha", PatientID: uuid.New()},
		other:      session.PatientSession{UID: uuid.New(), Name: "Ravi", PatientID: uuid.New()},
	}
	directory := mockDoctors{doctors: map[uuid.UUID]*doctors.Doctor{
		f.doctor.DoctorID:   {DoctorID: f.doctor.DoctorID, Name: "Dr. Rao", Specialization: "Cardiology"},
		f.otherDoc.DoctorID: {DoctorID: f.otherDoc.DoctorID, Name: "Dr. Sen", Specialization: "Dermatology"},
	}}
	service, err := NewService(configs.MustLoad("./../../test/testdata/config_valid.json"), nil,
		withRepository(f.repository),
		WithDoctors(directory),
		WithPublisher(f.publisher),
		WithLogger(log.New(f.logs, "", 0)),
		WithClock(func() time.Time { return *f.now }),
	)
	require.NoError(t, err)
	f.service = service
	return f
}

func (f *fixture) book(t *testing.T, patient session.PatientSession, did uuid.UUID, mode Mode, date, tm string) *Appointment {
	t.Helper()
	a, err := f.service.Book(context.Background(), patient, BookingRequest{
		DoctorID:       did,
		Mode:           mode,
		ScheduledDate:  date,
		ScheduledTime:  tm,
		ChiefComplaint: "fever",
	})
	require.NoError(t, err)
	return a
}

func requireKind(t *testing.T, err error, kind apierrors.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apierrors.KindOf(err), err.Error())
}

var bookingDay = time.Date(2024, 5, 30, 9, 0, 0, 0, time.UTC)

func TestBookOfflineTokens(t *testing.T) {
	f := newFixture(t, bookingDay)

	first := f.book(t, f.patient, f.doctor.DoctorID, ModeOffline, "2024-06-01", "10:00")
	require.NotNil(t, first.TokenNumber)
	assert.EqualValues(t, 1, *first.TokenNumber)
	assert.Equal(t, StatusScheduled, first.Status)

	second := f.book(t, f.other, f.doctor.DoctorID, ModeOffline, "2024-06-01", "10:30")
	require.NotNil(t, second.TokenNumber)
	assert.EqualValues(t, 2, *second.TokenNumber)

	third := f.book(t, f.patient, f.doctor.DoctorID, ModeOffline, "2024-06-01", "11:00")
	assert.EqualValues(t, 3, *third.TokenNumber)

	otherDoctor := f.book(t, f.patient, f.otherDoc.DoctorID, ModeOffline, "2024-06-01", "10:00")
	assert.EqualValues(t, 1, *otherDoctor.TokenNumber)

	otherDay := f.book(t, f.patient, f.doctor.DoctorID, ModeOffline, "2024-06-02", "10:00")
	assert.EqualValues(t, 1, *otherDay.TokenNumber)

	online := f.book(t, f.patient, f.doctor.DoctorID, ModeOnline, "2024-06-01", "12:00")
	assert.Nil(t, online.TokenNumber)

	event := f.publisher.last()
	assert.Equal(t, feed.EventInsert, event.event.Event)
	assert.Nil(t, event.event.Old)
	assert.ElementsMatch(t, []string{feed.PatientChannel(f.patient.PatientID), feed.DoctorChannel(f.doctor.DoctorID)}, event.channels)
}

func TestBookConcurrentTokens(t *testing.T) {
	f := newFixture(t, bookingDay)
	const bookings = 20

	var wg sync.WaitGroup
	tokens := make(chan int32, bookings)
	for i := 0; i < bookings; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := f.service.Book(context.Background(), f.patient, BookingRequest{
				DoctorID:       f.doctor.DoctorID,
				Mode:           ModeOffline,
				ScheduledDate:  "2024-06-01",
				ScheduledTime:  fmt.Sprintf("%02d:00", 8+i%10),
				ChiefComplaint: "cough",
			})
			if err == nil {
				tokens <- *a.TokenNumber
			}
		}(i)
	}
	wg.Wait()
	close(tokens)

	seen := make(map[int32]bool)
	for token := range tokens {
		assert.False(t, seen[token], "token %d allocated twice", token)
		seen[token] = true
	}
	require.Len(t, seen, bookings)
	for token := int32(1); token <= bookings; token++ {
		assert.True(t, seen[token], "token %d missing", token)
	}
}

func TestBookRejects(t *testing.T) {
	f := newFixture(t, bookingDay)
	tests := []struct {
		name    string
		request BookingRequest
		field   string
		kind    apierrors.Kind
	}{
		{
			name:    "should not book without a mode",
			request: BookingRequest{DoctorID: f.doctor.DoctorID, ScheduledDate: "2024-06-01", ScheduledTime: "10:00", ChiefComplaint: "fever"},
			field:   "mode",
		},
		{
			name:    "should not book an unknown mode",
			request: BookingRequest{DoctorID: f.doctor.DoctorID, Mode: "home", ScheduledDate: "2024-06-01", ScheduledTime: "10:00", ChiefComplaint: "fever"},
			field:   "mode",
		},
		{
			name:    "should not book without a complaint",
			request: BookingRequest{DoctorID: f.doctor.DoctorID, Mode: ModeOnline, ScheduledDate: "2024-06-01", ScheduledTime: "10:00", ChiefComplaint: "  "},
			field:   "chiefComplaint",
		},
		{
			name:    "should not book a malformed time",
			request: BookingRequest{DoctorID: f.doctor.DoctorID, Mode: ModeOnline, ScheduledDate: "2024-06-01", ScheduledTime: "10h", ChiefComplaint: "fever"},
			field:   "scheduledTime",
		},
		{
			name:    "should not book a past date",
			request: BookingRequest{DoctorID: f.doctor.DoctorID, Mode: ModeOnline, ScheduledDate: "2024-05-29", ScheduledTime: "10:00", ChiefComplaint: "fever"},
			field:   "scheduledDate",
		},
		{
			name:    "should not book an unknown doctor",
			request: BookingRequest{DoctorID: uuid.New(), Mode: ModeOnline, ScheduledDate: "2024-06-01", ScheduledTime: "10:00", ChiefComplaint: "fever"},
			kind:    apierrors.KindNotFound,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Book(context.Background(), f.patient, tt.request)
			if tt.kind != "" {
				requireKind(t, err, tt.kind)
				return
			}
			var validationErr *apierrors.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
	assert.Empty(t, f.repository.appointments)
}

func TestBookNormalizesSeconds(t *testing.T) {
	f := newFixture(t, bookingDay)
	a := f.book(t, f.patient, f.doctor.DoctorID, ModeOnline, "2024-06-01", "10:15:00")
	assert.Equal(t, "10:15", a.ScheduledTime)
}

func TestApprove(t *testing.T) {
	f := newFixture(t, bookingDay)
	a := f.book(t, f.patient, f.doctor.DoctorID, ModeOnline, "2024-06-01", "14:00")

	_, err := f.service.Approve(context.Background(), f.otherDoc, a.AppointmentID)
	requireKind(t, err, apierrors.KindForbidden)
	assert.Equal(t, StatusScheduled, f.repository.get(a.AppointmentID).Status)

	_, err = f.service.Approve(context.Background(), f.patient, a.AppointmentID)
	requireKind(t, err, apierrors.KindForbidden)

	approved, err := f.service.Approve(context.Background(), f.doctor, a.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, approved.Status)

	event := f.publisher.last()
	assert.Equal(t, feed.EventUpdate, event.event.Event)
	assert.Equal(t, StatusScheduled, event.event.Old.(*Appointment).Status)
	assert.Equal(t, StatusConfirmed, event.event.New.(*Appointment).Status)

	_, err = f.service.Approve(context.Background(), f.doctor, a.AppointmentID)
	requireKind(t, err, apierrors.KindInvalidTransition)
	assert.Equal(t, StatusConfirmed, f.repository.get(a.AppointmentID).Status)

	_, err = f.service.Approve(context.Background(), f.doctor, uuid.New())
	requireKind(t, err, apierrors.KindNotFound)
}

func TestTransitionsRejectForeignActors(t *testing.T) {
	f := newFixture(t, bookingDay)
	a := f.book(t, f.patient, f.doctor.DoctorID, ModeOnline, "2024-06-01", "14:00")
	ctx := context.Background()
	attempts := map[string]func() (*Appointment, error){
		"approve": func() (*Appointment, error) { return f.service.Approve(ctx, f.otherDoc, a.AppointmentID) },
		"reschedule": func() (*Appointment, error) {
			return f.service.Reschedule(ctx, f.otherDoc, a.AppointmentID, RescheduleRequest{NewDate: "2024-06-02", NewTime: "10:00"})
		},
		"reschedule to a past date": func() (*Appointment, error) {
			return f.service.Reschedule(ctx, f.otherDoc, a.AppointmentID, RescheduleRequest{NewDate: "2024-05-01", NewTime: "10:00"})
		},
		"start call":     func() (*Appointment, error) { return f.service.StartCall(ctx, f.otherDoc, a.AppointmentID) },
		"complete call":  func() (*Appointment, error) { return f.service.CompleteCall(ctx, f.otherDoc, a.AppointmentID) },
		"complete":       func() (*Appointment, error) { return f.service.Complete(ctx, f.otherDoc, a.AppointmentID, CompleteRequest{}) },
		"doctor cancel":  func() (*Appointment, error) { return f.service.Cancel(ctx, f.otherDoc, a.AppointmentID, CancelRequest{}) },
		"patient cancel": func() (*Appointment, error) { return f.service.Cancel(ctx, f.other, a.AppointmentID, CancelRequest{}) },
	}
	before := f.repository.get(a.AppointmentID)
	for name, attempt := range attempts {
		_, err := attempt()
		requireKind(t, err, apierrors.KindForbidden)
		assert.Equal(t, before, f.repository.get(a.AppointmentID), name)
	}
}

func TestRescheduleTokens(t *testing.T) {
	f := newFixture(t, bookingDay)
	first := f.book(t, f.patient, f.doctor.DoctorID, ModeOffline, "2024-06-01", "10:00")
	f.book(t, f.other, f.doctor.DoctorID, ModeOffline, "2024-06-02", "10:00")

	sameDay, err := f.service.Reschedule(context.Background(), f.doctor, first.AppointmentID, RescheduleRequest{NewDate: "2024-06-01", NewTime: "12:00"})
	require.NoError(t, err)
	assert.Equal(t, StatusRescheduled, sameDay.Status)
	assert.Equal(t, "12:00", sameDay.ScheduledTime)
	assert.EqualValues(t, 1, *sameDay.TokenNumber)

	moved, err := f.service.Reschedule(context.Background(), f.doctor, first.AppointmentID, RescheduleRequest{NewDate: "2024-06-02", NewTime: "11:00", Reason: "clinic closed"})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-02", moved.ScheduledDate)
	assert.EqualValues(t, 2, *moved.TokenNumber)
	assert.Equal(t, "clinic closed", *moved.DoctorNotes)

	before := f.repository.get(first.AppointmentID)
	_, err = f.service.Reschedule(context.Background(), f.doctor, first.AppointmentID, RescheduleRequest{NewDate: "2024-05-01", NewTime: "11:00"})
	var validationErr *apierrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "newDate", validationErr.Field)
	assert.Equal(t, before, f.repository.get(first.AppointmentID))
}

func TestBookTokenConflict(t *testing.T) {
	f := newFixture(t, bookingDay)
	f.repository.insertErr = fmt.Errorf("insert appointment: %w", &pq.Error{Code: "23505", Constraint: "ux_appointment_token"})

	_, err := f.service.Book(context.Background(), f.patient, BookingRequest{
		DoctorID:       f.doctor.DoctorID,
		Mode:           ModeOffline,
		ScheduledDate:  "2024-06-01",
		ScheduledTime:  "10:00",
		ChiefComplaint: "fever",
	})
	require.Error(t, err)
	assert.Equal(t, apierrors.Kind(""), apierrors.KindOf(err))
	assert.False(t, apierrors.IsValidationError(err))
	var pqErr *pq.Error
	assert.ErrorAs(t, err, &pqErr)
	assert.Contains(t, f.logs.String(), "token conflict on create")

	f.repository.insertErr = nil
	a := f.book(t, f.patient, f.doctor.DoctorID, ModeOffline, "2024-06-01", "10:00")
	assert.EqualValues(t, 1, *a.TokenNumber)
}

func TestBookStoreFailureIsNotAConflict(t *testing.T) {
	f := newFixture(t, bookingDay)
	f.repository.insertErr = errors.New("connection reset")

	_, err := f.service.Book(context.Background(), f.patient, BookingRequest{
		DoctorID:       f.doctor.DoctorID,
		Mode:           ModeOnline,
		ScheduledDate:  "2024-06-01",
		ScheduledTime:  "10:00",
		ChiefComplaint: "fever",
	})
	require.Error(t, err)
	assert.False(t, strings.Contains(f.logs.String(), "token conflict"))
}

func TestOnlineCall(t *testing.T) {
	f := newFixture(t, bookingDay)
	a := f.book(t, f.patient, f.doctor.DoctorID, ModeOnline, "2024-06-01", "14:00")
	_, err := f.service.Approve(context.Background(), f.doctor, a.AppointmentID)
	require.NoError(t, err)

	*f.now = time.Date(2024, 6, 1, 13, 44, 0, 0, time.UTC)
	_, err = f.service.StartCall(context.Background(), f.doctor, a.AppointmentID)
	requireKind(t, err, apierrors.KindInvalidTransition)
	assert.Equal(t, StatusConfirmed, f.repository.get(a.AppointmentID).Status)

	*f.now = time.Date(2024, 6, 1, 13, 45, 0, 0, time.UTC)
	started, err := f.service.StartCall(context.Background(), f.doctor, a.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, started.Status)
	require.NotNil(t, started.MeetingID)
	assert.Equal(t, "/call/"+*started.MeetingID, *started.MeetingLink)
	require.NotNil(t, started.MeetingPassword)
	assert.Len(t, *started.MeetingPassword, 24)

	meetingID := *started.MeetingID
	joined, err := f.service.JoinCall(context.Background(), f.patient, meetingID)
	require.NoError(t, err)
	assert.Equal(t, meetingID, joined.Credential.MeetingID)
	assert.NotEmpty(t, joined.Credential.Token)

	_, err = f.service.JoinCall(context.Background(), f.other, meetingID)
	requireKind(t, err, apierrors.KindForbidden)

	_, err = f.service.JoinCall(context.Background(), f.patient, "appointment_garbage")
	assert.True(t, apierrors.IsValidationError(err))

	*f.now = time.Date(2024, 6, 1, 14, 12, 30, 0, time.UTC)
	completed, err := f.service.Complete(context.Background(), f.doctor, a.AppointmentID, CompleteRequest{Notes: "follow up in a week"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	assert.EqualValues(t, 27, *completed.DurationMinutes)

	_, err = f.service.JoinCall(context.Background(), f.patient, meetingID)
	requireKind(t, err, apierrors.KindInvalidTransition)

	_, err = f.service.Cancel(context.Background(), f.patient, a.AppointmentID, CancelRequest{})
	requireKind(t, err, apierrors.KindInvalidTransition)
}

func TestEndCall(t *testing.T) {
	f := newFixture(t, bookingDay)
	a := f.book(t, f.patient, f.doctor.DoctorID, ModeOnline, "2024-06-01", "14:00")
	_, err := f.service.Approve(context.Background(), f.doctor, a.AppointmentID)
	require.NoError(t, err)
	*f.now = time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	started, err := f.service.StartCall(context.Background(), f.doctor, a.AppointmentID)
	require.NoError(t, err)

	stale := fmt.Sprintf("appointment_%s_1", a.AppointmentID)
	_, err = f.service.EndCall(context.Background(), f.doctor, stale)
	requireKind(t, err, apierrors.KindInvalidTransition)

	*f.now = time.Date(2024, 6, 1, 14, 20, 0, 0, time.UTC)
	ended, err := f.service.EndCall(context.Background(), f.doctor, *started.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, ended.Status)
	assert.Equal(t, *f.now, *ended.EndTime)
	assert.Nil(t, ended.DurationMinutes)
}

func TestOfflineVisit(t *testing.T) {
	f := newFixture(t, bookingDay)
	a := f.book(t, f.patient, f.doctor.DoctorID, ModeOffline, "2024-06-01", "10:00")

	_, err := f.service.Approve(context.Background(), f.doctor, a.AppointmentID)
	require.NoError(t, err)

	_, err = f.service.StartCall(context.Background(), f.doctor, a.AppointmentID)
	requireKind(t, err, apierrors.KindInvalidTransition)

	_, err = f.service.CompleteCall(context.Background(), f.doctor, a.AppointmentID)
	requireKind(t, err, apierrors.KindInvalidTransition)

	completed, err := f.service.Complete(context.Background(), f.doctor, a.AppointmentID, CompleteRequest{})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	assert.Nil(t, completed.DurationMinutes)

	_, err = f.service.Complete(context.Background(), f.doctor, a.AppointmentID, CompleteRequest{})
	requireKind(t, err, apierrors.KindInvalidTransition)
}

func TestRescheduleKeepsOldDayCounter(t *testing.T) {
	f := newFixture(t, bookingDay)
	first := f.book(t, f.patient, f.doctor.DoctorID, ModeOffline, "2024-06-01", "10:00")
	second := f.book(t, f.other, f.doctor.DoctorID, ModeOffline, "2024-06-01", "10:30")
	assert.EqualValues(t, 2, *second.TokenNumber)

	_, err := f.service.Approve(context.Background(), f.doctor, first.AppointmentID)
	require.NoError(t, err)
	moved, err := f.service.Reschedule(context.Background(), f.doctor, first.AppointmentID, RescheduleRequest{NewDate: "2024-06-04", NewTime: "10:00"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, *moved.TokenNumber)

	third := f.book(t, f.patient, f.doctor.DoctorID, ModeOffline, "2024-06-01", "11:00")
	assert.EqualValues(t, 3, *third.TokenNumber)
}

func TestRescheduleInProgressRejected(t *testing.T) {
	f := newFixture(t, bookingDay)
	a := f.book(t, f.patient, f.doctor.DoctorID, ModeOnline, "2024-06-01", "14:00")
	_, err := f.service.Approve(context.Background(), f.doctor, a.AppointmentID)
	require.NoError(t, err)
	*f.now = time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	_, err = f.service.StartCall(context.Background(), f.doctor, a.AppointmentID)
	require.NoError(t, err)

	_, err = f.service.Reschedule(context.Background(), f.doctor, a.AppointmentID, RescheduleRequest{NewDate: "2024-06-02", NewTime: "10:00"})
	requireKind(t, err, apierrors.KindInvalidTransition)
	assert.Equal(t, StatusInProgress, f.repository.get(a.AppointmentID).Status)
}

func TestCancel(t *testing.T) {
	f := newFixture(t, bookingDay)
	a := f.book(t, f.patient, f.doctor.DoctorID, ModeOnline, "2024-06-01", "10:00")

	cancelled, err := f.service.Cancel(context.Background(), f.patient, a.AppointmentID, CancelRequest{Reason: " feeling better "})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "feeling better", *cancelled.CancellationReason)
	assert.Equal(t, f.patient.UID, *cancelled.CancelledBy)
	assert.Equal(t, bookingDay, *cancelled.CancelledAt)

	_, err = f.service.Cancel(context.Background(), f.doctor, a.AppointmentID, CancelRequest{})
	requireKind(t, err, apierrors.KindInvalidTransition)
}

func TestTransitionWithoutSession(t *testing.T) {
	f := newFixture(t, bookingDay)
	a := f.book(t, f.patient, f.doctor.DoctorID, ModeOnline, "2024-06-01", "10:00")

	_, err := f.service.Approve(context.Background(), anonymous{}, a.AppointmentID)
	var unauthorized *session.UnauthorizedError
	assert.ErrorAs(t, err, &unauthorized)
}

type anonymous struct {
	session.PatientSession
}

func (anonymous) Role() session.Role {
	return ""
}

func TestPublishFailureKeepsChange(t *testing.T) {
	f := newFixture(t, bookingDay)
	a := f.book(t, f.patient, f.doctor.DoctorID, ModeOnline, "2024-06-01", "10:00")
	f.publisher.err = errors.New("redis is down")

	approved, err := f.service.Approve(context.Background(), f.doctor, a.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, approved.Status)
	assert.Equal(t, StatusConfirmed, f.repository.get(a.AppointmentID).Status)
}

func TestListForPatient(t *testing.T) {
	f := newFixture(t, bookingDay)
	f.book(t, f.patient, f.doctor.DoctorID, ModeOnline, "2024-06-01", "10:00")
	f.book(t, f.patient, f.otherDoc.DoctorID, ModeOffline, "2024-06-01", "11:00")
	f.book(t, f.other, f.doctor.DoctorID, ModeOnline, "2024-06-01", "12:00")

	listed, err := f.service.ListForPatient(context.Background(), f.patient)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	for _, a := range listed {
		require.NotNil(t, a.Doctor)
		assert.Equal(t, a.DoctorID, a.Doctor.DoctorID)
	}
}

func TestListForDoctor(t *testing.T) {
	f := newFixture(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	today := f.book(t, f.patient, f.doctor.DoctorID, ModeOnline, "2024-06-01", "10:00")
	f.book(t, f.other, f.doctor.DoctorID, ModeOnline, "2024-06-02", "10:00")
	f.book(t, f.other, f.otherDoc.DoctorID, ModeOnline, "2024-06-01", "10:00")
	_, err := f.service.Approve(context.Background(), f.doctor, today.AppointmentID)
	require.NoError(t, err)

	all, err := f.service.ListForDoctor(context.Background(), f.doctor, DoctorFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	listed, err := f.service.ListForDoctor(context.Background(), f.doctor, DoctorFilter{Date: "today"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, today.AppointmentID, listed[0].AppointmentID)

	confirmed, err := f.service.ListForDoctor(context.Background(), f.doctor, DoctorFilter{Status: StatusConfirmed})
	require.NoError(t, err)
	assert.Len(t, confirmed, 1)

	_, err = f.service.ListForDoctor(context.Background(), f.doctor, DoctorFilter{Status: "lost"})
	assert.True(t, apierrors.IsValidationError(err))

	_, err = f.service.ListForDoctor(context.Background(), f.doctor, DoctorFilter{Date: "2024-06-01"})
	assert.True(t, apierrors.IsValidationError(err))
}
